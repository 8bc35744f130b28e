package chat

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"go-talk/internal/apperr"
)

type CallState string

const (
	CallIdle    CallState = "idle"
	CallRinging CallState = "ringing"
	CallActive  CallState = "active"
	CallEnded   CallState = "ended"
)

type Call struct {
	Caller    string
	Callee    string
	Type      string
	State     CallState
	StartedAt time.Time
}

func (c *Call) peer(userID string) string {
	if c.Caller == userID {
		return c.Callee
	}
	return c.Caller
}

var errCallBusy = fmt.Errorf("%w: call already in progress", apperr.ErrValidation)

// Relay forwards WebRTC signaling between two identities. Payloads are opaque;
// only the per-pair call state is checked so an endpoint cannot, say, answer a
// call that was never offered to it.
type Relay struct {
	registry *Registry
	log      *zap.Logger

	mu    sync.Mutex
	calls map[string]*Call
}

func NewRelay(registry *Registry, log *zap.Logger) *Relay {
	return &Relay{
		registry: registry,
		log:      log,
		calls:    make(map[string]*Call),
	}
}

func pairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

// State returns the state of the call between a and b.
func (r *Relay) State(a, b string) CallState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.calls[pairKey(a, b)]; ok {
		return c.State
	}
	return CallIdle
}

func (r *Relay) Call(from *Session, to string, offer json.RawMessage, callType string) error {
	if to == from.UserID {
		return fmt.Errorf("%w: cannot call yourself", apperr.ErrValidation)
	}
	if callType == "" {
		callType = "video"
	}
	target, ok := r.target(from, to, EventCallUser)
	if !ok {
		return nil
	}

	r.mu.Lock()
	for _, c := range r.calls {
		if c.Caller == from.UserID || c.Callee == from.UserID || c.Caller == to || c.Callee == to {
			r.mu.Unlock()
			return errCallBusy
		}
	}
	r.calls[pairKey(from.UserID, to)] = &Call{
		Caller:    from.UserID,
		Callee:    to,
		Type:      callType,
		State:     CallRinging,
		StartedAt: time.Now().UTC(),
	}
	r.mu.Unlock()

	target.Emit(EventIncomingCall, IncomingCallEvent{
		From:         from.UserID,
		FromUsername: from.Username,
		Offer:        offer,
		CallType:     callType,
	})
	return nil
}

func (r *Relay) Answer(from *Session, to string, answer json.RawMessage) error {
	target, ok := r.target(from, to, EventAnswerCall)
	if !ok {
		return nil
	}
	err := r.transition(from.UserID, to, func(c *Call) (bool, error) {
		if c.State != CallRinging || c.Callee != from.UserID {
			return false, fmt.Errorf("%w: no incoming call to answer", apperr.ErrValidation)
		}
		c.State = CallActive
		return false, nil
	})
	if err != nil {
		return err
	}
	target.Emit(EventCallAnswered, CallAnsweredEvent{From: from.UserID, Answer: answer})
	return nil
}

func (r *Relay) Reject(from *Session, to string) error {
	target, ok := r.target(from, to, EventRejectCall)
	if !ok {
		return nil
	}
	err := r.transition(from.UserID, to, func(c *Call) (bool, error) {
		if c.State != CallRinging || c.Callee != from.UserID {
			return false, fmt.Errorf("%w: no incoming call to reject", apperr.ErrValidation)
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	target.Emit(EventCallRejected, PeerEvent{From: from.UserID})
	return nil
}

func (r *Relay) Hangup(from *Session, to string) error {
	target, ok := r.target(from, to, EventEndCall)
	if !ok {
		return nil
	}
	err := r.transition(from.UserID, to, func(c *Call) (bool, error) {
		return true, nil
	})
	if err != nil {
		return err
	}
	target.Emit(EventCallEnded, PeerEvent{From: from.UserID})
	return nil
}

func (r *Relay) ICECandidate(from *Session, to string, candidate json.RawMessage) error {
	target, ok := r.target(from, to, EventICECandidate)
	if !ok {
		return nil
	}
	// ringing or active: candidates trickle in before the answer
	if err := r.transition(from.UserID, to, nil); err != nil {
		return err
	}
	target.Emit(EventICECandidate, ICECandidateEvent{From: from.UserID, Candidate: candidate})
	return nil
}

// ToggleMedia relays a video or audio mute change during an active call.
func (r *Relay) ToggleMedia(from *Session, to, track string, enabled bool) error {
	var event string
	switch track {
	case "video":
		event = EventVideoToggled
	case "audio":
		event = EventAudioToggled
	default:
		return fmt.Errorf("%w: unknown track %q", apperr.ErrValidation, track)
	}

	target, ok := r.target(from, to, "toggle_"+track)
	if !ok {
		return nil
	}
	err := r.transition(from.UserID, to, func(c *Call) (bool, error) {
		if c.State != CallActive {
			return false, fmt.Errorf("%w: call is not active", apperr.ErrValidation)
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	target.Emit(event, ToggleEvent{From: from.UserID, Enabled: enabled})
	return nil
}

// EndAll ends every call userID takes part in and tells the online peers.
func (r *Relay) EndAll(userID string) {
	r.mu.Lock()
	var peers []string
	for key, c := range r.calls {
		if c.Caller == userID || c.Callee == userID {
			peers = append(peers, c.peer(userID))
			delete(r.calls, key)
		}
	}
	r.mu.Unlock()

	for _, peer := range r.registry.Online(peers) {
		peer.Emit(EventCallEnded, PeerEvent{From: userID})
	}
}

// target resolves the peer's session. An offline peer ends any call with it
// and is reported back to the caller as target_unavailable.
func (r *Relay) target(from *Session, to, event string) (*Session, bool) {
	if s, ok := r.registry.Lookup(to); ok {
		return s, true
	}

	r.mu.Lock()
	delete(r.calls, pairKey(from.UserID, to))
	r.mu.Unlock()

	r.log.Info("signaling target unavailable",
		zap.String("from", from.UserID), zap.String("to", to), zap.String("event", event))
	from.Emit(EventTargetUnavailable, TargetUnavailableEvent{To: to, Event: event})
	return nil, false
}

// transition applies fn to the live call between a and b; fn reports whether
// the call ended. A nil fn only requires the call to exist.
func (r *Relay) transition(a, b string, fn func(c *Call) (bool, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey(a, b)
	c, ok := r.calls[key]
	if !ok {
		return fmt.Errorf("%w: no call in progress", apperr.ErrValidation)
	}
	if fn == nil {
		return nil
	}
	ended, err := fn(c)
	if err != nil {
		return err
	}
	if ended {
		c.State = CallEnded
		delete(r.calls, key)
	}
	return nil
}
