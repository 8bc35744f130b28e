package chat

import (
	"sync"

	"github.com/samber/lo"
)

// Registry maps identities to their live session and tracks which sessions
// joined which group rooms. One session per identity: registering again
// replaces (and returns) the previous one.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]map[*Session]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[*Session]struct{}),
	}
}

// Register binds s to its identity and returns the session it replaced, if any.
func (r *Registry) Register(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.sessions[s.UserID]
	if prev == s {
		return nil
	}
	if prev != nil {
		r.leaveAllLocked(prev)
	}
	r.sessions[s.UserID] = s
	return prev
}

// Unregister removes s only if it still owns its identity's mapping, so a
// replaced session going away never unbinds its successor.
func (r *Registry) Unregister(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveAllLocked(s)
	if cur, ok := r.sessions[s.UserID]; !ok || cur != s {
		return false
	}
	delete(r.sessions, s.UserID)
	return true
}

func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Online resolves the given identities to their live sessions, skipping the
// offline ones.
func (r *Registry) Online(userIDs []string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.FilterMap(lo.Uniq(userIDs), func(id string, _ int) (*Session, bool) {
		s, ok := r.sessions[id]
		return s, ok
	})
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions returns a snapshot of every registered session.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.sessions)
}

// Join adds s to a room. It reports false if s was already in it.
func (r *Registry) Join(s *Session, groupID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := s.rooms[groupID]; ok {
		return false
	}
	members, ok := r.rooms[groupID]
	if !ok {
		members = make(map[*Session]struct{})
		r.rooms[groupID] = members
	}
	members[s] = struct{}{}
	s.rooms[groupID] = struct{}{}
	return true
}

// Leave removes s from a room. It reports false if s was not in it.
func (r *Registry) Leave(s *Session, groupID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(s, groupID)
}

// Evict removes the identity's live session from a room, if any.
func (r *Registry) Evict(userID, groupID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return false
	}
	return r.leaveLocked(s, groupID)
}

// RoomSessions returns the sessions currently joined to a room.
func (r *Registry) RoomSessions(groupID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.rooms[groupID])
}

// Rooms returns the rooms s has joined.
func (r *Registry) Rooms(s *Session) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(s.rooms)
}

func (r *Registry) leaveLocked(s *Session, groupID string) bool {
	if _, ok := s.rooms[groupID]; !ok {
		return false
	}
	delete(s.rooms, groupID)
	if members, ok := r.rooms[groupID]; ok {
		delete(members, s)
		// no empty rooms left behind
		if len(members) == 0 {
			delete(r.rooms, groupID)
		}
	}
	return true
}

func (r *Registry) leaveAllLocked(s *Session) {
	for groupID := range s.rooms {
		r.leaveLocked(s, groupID)
	}
}
