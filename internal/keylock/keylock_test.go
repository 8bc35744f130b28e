package keylock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMutex(t *testing.T) {
	req := require.New(t)
	k := New()

	unlockA := k.Lock("a")
	unlockB := k.Lock("b") // other keys do not block
	req.Equal(2, k.Len())

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		unlock()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second holder acquired a locked key")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-done
	unlockB()
	req.Zero(k.Len())
}
