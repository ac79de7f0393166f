package gateway

import (
	"sync"
)

// socket is the subset of *websocket.Conn the gateway touches, so sessions
// can be driven by a fake in tests.
type socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// conn serializes outbound writes. Gorilla connections support only one
// concurrent writer, and broadcasts from other sessions land here too.
type conn struct {
	mu sync.Mutex
	ws socket
}

func newConn(ws socket) *conn {
	return &conn{ws: ws}
}

func (c *conn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}
