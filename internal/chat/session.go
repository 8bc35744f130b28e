package chat

import (
	"encoding/json"
	"sync"
	"time"
)

// Session is one authenticated live connection. Outbound frames go through a
// bounded FIFO queue drained by the transport's write loop.
type Session struct {
	UserID      string
	Username    string
	ConnectedAt time.Time

	send   chan []byte
	mu     sync.RWMutex
	closed bool

	// guarded by Registry.mu
	rooms map[string]struct{}
}

func NewSession(userID, username string, buffer int) *Session {
	return &Session{
		UserID:      userID,
		Username:    username,
		ConnectedAt: time.Now().UTC(),
		send:        make(chan []byte, buffer),
		rooms:       make(map[string]struct{}),
	}
}

// Outbound is drained by the write loop; it is closed when the session closes.
func (s *Session) Outbound() <-chan []byte { return s.send }

func (s *Session) Sender() Sender { return Sender{ID: s.UserID, Username: s.Username} }

// Emit encodes an outbound event and queues it.
func (s *Session) Emit(event string, data any) bool {
	frame, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		return false
	}
	return s.Send(frame)
}

// Send queues a frame without blocking. A full queue means a stalled peer:
// the session is closed and the frame dropped.
func (s *Session) Send(frame []byte) bool {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return false
	}
	select {
	case s.send <- frame:
		s.mu.RUnlock()
		return true
	default:
	}
	s.mu.RUnlock()

	s.Close()
	return false
}

// Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
