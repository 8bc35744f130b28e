package upload

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"go-talk/internal/apperr"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb), mr
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"redis": func(t *testing.T) Store {
			s, _ := newRedisStore(t)
			return s
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			store := newStore(t)
			created := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
			s := &Session{
				FileID:     "f-1",
				OwnerID:    "alice",
				Name:       "report.pdf",
				Size:       1024,
				MimeType:   "application/pdf",
				StorageKey: "uploads/alice/f-1-report.pdf",
				UploadID:   "up-1",
				Parts:      map[int]string{},
				Status:     StatusInitialized,
				CreatedAt:  created,
			}

			// Given a new session
			req.NoError(store.Create(ctx, s))
			req.ErrorIs(store.Create(ctx, s), apperr.ErrConflict)

			// When parts arrive, one of them twice
			req.NoError(store.PutPart(ctx, "f-1", 2, "etag-2"))
			req.NoError(store.PutPart(ctx, "f-1", 1, "etag-1"))
			req.NoError(store.PutPart(ctx, "f-1", 2, "etag-2b"))

			s.Status = StatusInProgress
			s.MimeType = "application/x-pdf"
			req.NoError(store.Update(ctx, s))

			// Then the latest etag per part is kept
			got, err := store.Get(ctx, "f-1")
			req.NoError(err)
			req.Equal(map[int]string{1: "etag-1", 2: "etag-2b"}, got.Parts)
			req.Equal(StatusInProgress, got.Status)
			req.Equal("application/x-pdf", got.MimeType)
			req.Equal("up-1", got.UploadID)
			req.Equal(int64(1024), got.Size)
			req.True(created.Equal(got.CreatedAt))

			// And deleting forgets it
			req.NoError(store.Delete(ctx, "f-1"))
			_, err = store.Get(ctx, "f-1")
			req.ErrorIs(err, apperr.ErrNotFound)
			req.ErrorIs(store.Update(ctx, s), apperr.ErrNotFound)
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := NewMemoryStore()
	req.NoError(store.Create(ctx, &Session{FileID: "f-1", Parts: map[int]string{}}))

	got, err := store.Get(ctx, "f-1")
	req.NoError(err)
	got.Parts[1] = "sneaky"

	again, err := store.Get(ctx, "f-1")
	req.NoError(err)
	req.Empty(again.Parts)
}

func TestRedisStore_CompletedSessionsExpire(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store, mr := newRedisStore(t)
	s := &Session{FileID: "f-1", Parts: map[int]string{1: "e"}, Status: StatusInProgress, CreatedAt: time.Now()}
	req.NoError(store.Create(ctx, s))
	req.Zero(mr.TTL(sessionKey("f-1")))

	s.Status = StatusCompleted
	req.NoError(store.Update(ctx, s))

	req.Equal(completedTTL, mr.TTL(sessionKey("f-1")))
	req.Equal(completedTTL, mr.TTL(partsKey("f-1")))

	mr.FastForward(completedTTL + time.Second)
	_, err := store.Get(ctx, "f-1")
	req.ErrorIs(err, apperr.ErrNotFound)
}
