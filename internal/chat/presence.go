package chat

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"go-talk/internal/apperr"
	"go-talk/internal/keylock"
)

// Presence derives each identity's status and pushes changes to the
// identity's online contacts.
type Presence struct {
	registry *Registry
	contacts ContactStore
	log      *zap.Logger

	// users serializes each identity's change, persist and broadcast.
	users  *keylock.Mutex
	mu     sync.Mutex
	status map[string]Status
}

func NewPresence(registry *Registry, contacts ContactStore, log *zap.Logger) *Presence {
	return &Presence{
		registry: registry,
		contacts: contacts,
		log:      log,
		users:    keylock.New(),
		status:   make(map[string]Status),
	}
}

// Status returns the last known status; unknown identities are offline.
func (p *Presence) Status(userID string) Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.status[userID]; ok {
		return st
	}
	return StatusOffline
}

// SetStatus records a status change, persists it best-effort and notifies the
// identity's online contacts. Setting the current status again is a no-op, as
// is a change that no longer matches registration: offline while a session is
// live, or any other status while none is.
func (p *Presence) SetStatus(ctx context.Context, userID string, status Status) {
	unlock := p.users.Lock(userID)
	defer unlock()

	if _, live := p.registry.Lookup(userID); live == (status == StatusOffline) {
		return
	}

	p.mu.Lock()
	prev, ok := p.status[userID]
	if !ok {
		prev = StatusOffline
	}
	if prev == status {
		p.mu.Unlock()
		return
	}
	if status == StatusOffline {
		delete(p.status, userID)
	} else {
		p.status[userID] = status
	}
	p.mu.Unlock()

	if err := p.contacts.SetStatus(ctx, userID, string(status)); err != nil {
		p.log.Warn("persist status failed",
			zap.String("user_id", userID), zap.String("status", string(status)), zap.Error(err))
	}

	contactIDs, err := p.contacts.Contacts(ctx, userID)
	if err != nil {
		p.log.Error("load contacts failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	event := StatusEvent{UserID: userID, Status: status}
	for _, s := range p.registry.Online(contactIDs) {
		s.Emit(EventFriendStatusChanged, event)
	}
}

// Update applies a client-requested status. Clients may only toggle between
// away and online; online/offline on connect and disconnect belong to the hub.
func (p *Presence) Update(ctx context.Context, userID string, status Status) error {
	switch status {
	case StatusAway, StatusOnline:
	default:
		return fmt.Errorf("%w: status must be away or online, got %q", apperr.ErrValidation, status)
	}
	if _, ok := p.registry.Lookup(userID); !ok {
		return fmt.Errorf("%w: no live session", apperr.ErrValidation)
	}
	p.SetStatus(ctx, userID, status)
	return nil
}
