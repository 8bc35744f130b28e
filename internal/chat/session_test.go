package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSession_FullQueueClosesSession(t *testing.T) {
	req := require.New(t)
	s := NewSession("u-1", "alice", 1)

	req.True(s.Send([]byte("one")))
	// The second frame does not fit: the peer is stalled.
	req.False(s.Send([]byte("two")))
	req.True(s.Closed())

	// Sending after close is a no-op, closing twice is safe.
	req.False(s.Emit(EventNewMessage, nil))
	s.Close()
}
