package gateway

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"polyglot/relay"
	"polyglot/room"
	"polyglot/stt"
)

// Server accepts participant websocket connections and runs one session per
// connection until disconnect.
type Server struct {
	rooms       *room.Registry
	recognition stt.Recognition
	broadcaster *relay.Broadcaster
	logger      *log.Logger
	upgrader    websocket.Upgrader
}

func NewServer(
	rooms *room.Registry,
	recognition stt.Recognition,
	broadcaster *relay.Broadcaster,
	logger *log.Logger,
) *Server {
	return &Server{
		rooms:       rooms,
		recognition: recognition,
		broadcaster: broadcaster,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/", s.handleWS)
	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed", "error", err)
		return
	}

	s.runSession(r.Context(), ws)
}
