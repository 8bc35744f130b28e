package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-talk/internal/apperr"
)

// fakeDirectory is an in-memory directory store.
type fakeDirectory struct {
	mu        sync.Mutex
	messages  map[string]*Message
	saved     []string
	members   map[string][]string
	contacts  map[string][]string
	statuses  map[string][]string
	saveErr   error
	statusErr error

	// hold pauses the next persist of holdStatus: entered is closed when it
	// arrives and the write proceeds once release is closed.
	holdStatus string
	entered    chan struct{}
	release    chan struct{}
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		messages: make(map[string]*Message),
		members:  make(map[string][]string),
		contacts: make(map[string][]string),
		statuses: make(map[string][]string),
	}
}

func (f *fakeDirectory) SaveMessage(_ context.Context, m *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *m
	f.messages[m.ID] = &cp
	f.saved = append(f.saved, m.ID)
	return nil
}

func (f *fakeDirectory) GetMessage(_ context.Context, id string) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: message", apperr.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeDirectory) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[id]; ok {
		m.Read = true
	}
	return nil
}

func (f *fakeDirectory) GroupMemberIDs(_ context.Context, groupID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.members[groupID]...), nil
}

func (f *fakeDirectory) Contacts(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.contacts[userID]...), nil
}

func (f *fakeDirectory) hold(status string) (entered, release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holdStatus = status
	f.entered = make(chan struct{})
	f.release = make(chan struct{})
	return f.entered, f.release
}

func (f *fakeDirectory) SetStatus(_ context.Context, userID, status string) error {
	f.mu.Lock()
	if f.holdStatus != "" && f.holdStatus == status {
		entered, release := f.entered, f.release
		f.holdStatus = ""
		f.mu.Unlock()
		close(entered)
		<-release
		f.mu.Lock()
	}
	defer f.mu.Unlock()
	f.statuses[userID] = append(f.statuses[userID], status)
	return f.statusErr
}

func (f *fakeDirectory) statusHistory(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statuses[userID]...)
}

func (f *fakeDirectory) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

var errDBDown = errors.New("db down")

type harness struct {
	dir      *fakeDirectory
	registry *Registry
	presence *Presence
	router   *Router
	relay    *Relay
	hub      *Hub
}

func newHarness() *harness {
	log := zap.NewNop()
	dir := newFakeDirectory()
	registry := NewRegistry()
	presence := NewPresence(registry, dir, log)
	router := NewRouter(registry, dir, dir, log)
	relay := NewRelay(registry, log)
	return &harness{
		dir:      dir,
		registry: registry,
		presence: presence,
		router:   router,
		relay:    relay,
		hub:      NewHub(registry, presence, router, relay, log, false),
	}
}

// connect registers a session through the hub and discards what it received
// while connecting.
func (h *harness) connect(t *testing.T, userID string) *Session {
	t.Helper()
	s := NewSession(userID, "name-"+userID, 64)
	h.hub.Connect(context.Background(), s)
	drain(t, s)
	return s
}

func sender(userID string) Sender {
	return Sender{ID: userID, Username: "name-" + userID}
}

type received struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// drain returns every frame queued on s so far.
func drain(t *testing.T, s *Session) []received {
	t.Helper()
	var out []received
	for {
		select {
		case frame, ok := <-s.Outbound():
			if !ok {
				return out
			}
			var r received
			require.NoError(t, json.Unmarshal(frame, &r))
			out = append(out, r)
		default:
			return out
		}
	}
}

func eventNames(rs []received) []string {
	return lo.Map(rs, func(r received, _ int) string { return r.Event })
}

func payload[T any](t *testing.T, r received) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.Data, &v))
	return v
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(Envelope{Event: event, Data: raw})
	require.NoError(t, err)
	return out
}
