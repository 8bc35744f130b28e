package upload

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"go-talk/internal/apperr"
)

// Store keeps upload sessions between requests. Callers serialize access per
// file id; implementations only need to be safe for concurrent use across ids.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, fileID string) (*Session, error)
	// Update writes the session's status, mime type and url. Parts are
	// written with PutPart.
	Update(ctx context.Context, s *Session) error
	PutPart(ctx context.Context, fileID string, number int, etag string) error
	Delete(ctx context.Context, fileID string) error
}

var errSessionNotFound = fmt.Errorf("%w: upload session", apperr.ErrNotFound)

// MemoryStore is a Store for tests and single-node development runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.FileID]; ok {
		return fmt.Errorf("%w: upload session %s", apperr.ErrConflict, s.FileID)
	}
	m.sessions[s.FileID] = clone(s)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, fileID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[fileID]
	if !ok {
		return nil, errSessionNotFound
	}
	return clone(s), nil
}

func (m *MemoryStore) Update(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.FileID]
	if !ok {
		return errSessionNotFound
	}
	cur.Status = s.Status
	cur.MimeType = s.MimeType
	cur.URL = s.URL
	return nil
}

func (m *MemoryStore) PutPart(_ context.Context, fileID string, number int, etag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[fileID]
	if !ok {
		return errSessionNotFound
	}
	cur.Parts[number] = etag
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, fileID)
	return nil
}

func clone(s *Session) *Session {
	cp := *s
	cp.Parts = maps.Clone(s.Parts)
	if cp.Parts == nil {
		cp.Parts = make(map[int]string)
	}
	return &cp
}
