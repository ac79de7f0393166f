package gateway

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/charmbracelet/log"

	"polyglot/relay"
	"polyglot/room"
	"polyglot/stt"
)

const (
	restartBackoff    = time.Second
	maxRestartBackoff = 30 * time.Second
)

// runSession drives one participant from join to disconnect: parse the join
// payload, register with the room, run the ingestion and consumption loops,
// then deregister and tell the room who is left.
func (s *Server) runSession(ctx context.Context, ws socket) {
	defer ws.Close()

	_, data, err := ws.ReadMessage()
	if err != nil {
		s.logger.Warn("connection closed before join", "error", err)
		return
	}

	join, err := parseJoin(data)
	if err != nil {
		// Abort before any room mutation.
		s.logger.Warn("rejecting connection", "error", err)
		return
	}

	logger := s.logger.With(
		"session", join.SessionID,
		"room", join.RoomID,
	)

	p := &room.Participant{
		SessionID: join.SessionID,
		Name:      join.UserName,
		SpeakLang: join.UserLanguage,
		HearLang:  join.TargetLanguage,
		Conn:      newConn(ws),
	}

	s.rooms.Join(join.RoomID, p)
	logger.Info(
		"join",
		"name", join.UserName,
		"speaks", join.UserLanguage,
		"hears", join.TargetLanguage,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer func() {
		s.rooms.Leave(join.RoomID, join.SessionID)
		s.broadcaster.Participants(join.RoomID)
		logger.Info("leave")
	}()

	s.broadcaster.Participants(join.RoomID)

	agg := relay.NewAggregator(
		join.UserName,
		join.UserLanguage,
		time.Now,
		func(seg relay.Segment) {
			s.broadcaster.Broadcast(ctx, join.RoomID, seg)
		},
	)

	if err := s.stream(ctx, ws, join, agg, logger); err != nil {
		logger.Error("session ended", "error", err)
	}
}

// stream runs the two session loops. The ingestion goroutine lives as long
// as the connection; the recognizer is restarted with capped backoff on
// transient faults so a stalled provider stream does not cost the session.
func (s *Server) stream(
	ctx context.Context,
	ws socket,
	join *joinRequest,
	agg *relay.Aggregator,
	logger *log.Logger,
) error {
	frames := make(chan []byte, 64)

	go func() {
		defer close(frames)
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				logger.Info("connection closed", "error", err)
				return
			}
			audio, err := base64.StdEncoding.DecodeString(string(data))
			if err != nil {
				logger.Warn("dropping undecodable frame", "error", err)
				continue
			}
			select {
			case frames <- audio:
			case <-ctx.Done():
				return
			}
		}
	}()

	backoff := restartBackoff
	for {
		rec, err := s.recognition.Start(ctx, join.UserLanguage)
		if err == nil {
			err = pump(ctx, rec, frames, agg, logger)
		}
		if !stt.IsTransient(err) {
			return err
		}

		logger.Warn(
			"recognizer fault, restarting",
			"error", err,
			"backoff", backoff,
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		if backoff < maxRestartBackoff {
			backoff *= 2
		}
	}
}

// pump forwards decoded audio to the recognizer and feeds recognition
// results to the aggregator until either side ends. Whichever finishes
// first shuts down the other; end-of-stream is always signalled.
func pump(
	ctx context.Context,
	rec stt.Recognizer,
	frames <-chan []byte,
	agg *relay.Aggregator,
	logger *log.Logger,
) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range rec.Results() {
			agg.Observe(res)
		}
	}()

	for {
		select {
		case data, ok := <-frames:
			if !ok {
				rec.Stop()
				<-done
				return nil
			}
			if err := rec.SendAudio(data); err != nil {
				logger.Warn("dropping audio frame", "error", err)
			}
		case <-done:
			rec.Stop()
			return rec.Err()
		case <-ctx.Done():
			rec.Stop()
			<-done
			return ctx.Err()
		}
	}
}
