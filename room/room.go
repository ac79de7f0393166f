package room

import (
	"sync"
)

// Conn is the outbound delivery channel for one participant. Implementations
// must be safe for concurrent use, since broadcasts originating from other
// sessions send on the same connection.
type Conn interface {
	Send(v any) error
}

type Participant struct {
	SessionID string
	Name      string
	SpeakLang string
	HearLang  string
	Conn      Conn
}

// Registry maps room IDs to their current members in join order. A room
// exists exactly as long as it has at least one member. All methods are safe
// for concurrent use and never block on I/O.
type Registry struct {
	mu    sync.Mutex
	rooms map[string][]*Participant
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string][]*Participant),
	}
}

func (r *Registry) Join(roomID string, p *Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms[roomID] = append(r.rooms[roomID], p)
}

// Leave removes the participant with the given session ID. The room entry is
// deleted when its last member leaves.
func (r *Registry) Leave(roomID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return
	}

	kept := members[:0]
	for _, p := range members {
		if p.SessionID != sessionID {
			kept = append(kept, p)
		}
	}

	if len(kept) == 0 {
		delete(r.rooms, roomID)
		return
	}

	r.rooms[roomID] = kept
}

// Members returns a snapshot copy of the room's members in join order. The
// returned slice is safe to iterate while joins and leaves happen elsewhere.
func (r *Registry) Members(roomID string) []*Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[roomID]
	snapshot := make([]*Participant, len(members))
	copy(snapshot, members)
	return snapshot
}
