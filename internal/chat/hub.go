package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"go-talk/internal/apperr"
	"go-talk/internal/httpx"
)

type handlerFunc func(ctx context.Context, s *Session, data json.RawMessage) error

// Hub owns the session lifecycle and dispatches inbound events to the router,
// presence tracker and signaling relay. Every inbound event is answered with
// its acknowledgment or with exactly one error event.
type Hub struct {
	registry *Registry
	presence *Presence
	router   *Router
	relay    *Relay
	log      *zap.Logger
	expose   bool

	handlers map[string]handlerFunc
}

func NewHub(registry *Registry, presence *Presence, router *Router, relay *Relay, log *zap.Logger, expose bool) *Hub {
	h := &Hub{
		registry: registry,
		presence: presence,
		router:   router,
		relay:    relay,
		log:      log,
		expose:   expose,
	}
	h.handlers = map[string]handlerFunc{
		EventPrivateMessage: h.onPrivateMessage,
		EventGroupMessage:   h.onGroupMessage,
		EventTyping:         h.onTyping,
		EventMarkRead:       h.onMarkRead,
		EventJoinGroups:     h.onJoinGroups,
		EventJoinGroup:      h.onJoinGroup,
		EventLeaveGroup:     h.onLeaveGroup,
		EventUpdateStatus:   h.onUpdateStatus,
		EventCallUser:       h.onCallUser,
		EventAnswerCall:     h.onAnswerCall,
		EventRejectCall:     h.onRejectCall,
		EventEndCall:        h.onEndCall,
		EventICECandidate:   h.onICECandidate,
		EventToggleVideo:    h.onToggle("video"),
		EventToggleAudio:    h.onToggle("audio"),
	}
	return h
}

func (h *Hub) Registry() *Registry { return h.registry }

// Connect registers s, closing any session it replaces, and marks the
// identity online.
func (h *Hub) Connect(ctx context.Context, s *Session) {
	if prev := h.registry.Register(s); prev != nil {
		h.log.Info("session replaced", zap.String("user_id", s.UserID))
		prev.Close()
	}
	h.log.Info("session registered",
		zap.String("user_id", s.UserID), zap.Int("online", h.registry.Count()))
	h.presence.SetStatus(ctx, s.UserID, StatusOnline)
}

// Disconnect unregisters s. Only the session that still owns the identity
// ends its calls and marks it offline.
func (h *Hub) Disconnect(ctx context.Context, s *Session) {
	s.Close()
	if !h.registry.Unregister(s) {
		return
	}
	h.log.Info("session unregistered",
		zap.String("user_id", s.UserID), zap.Int("online", h.registry.Count()))
	h.relay.EndAll(s.UserID)
	h.presence.SetStatus(ctx, s.UserID, StatusOffline)
}

// Shutdown closes every live session.
func (h *Hub) Shutdown() {
	sessions := h.registry.Sessions()
	for _, s := range sessions {
		s.Close()
	}
	h.log.Info("hub shut down", zap.Int("closed", len(sessions)))
}

// Dispatch decodes one inbound frame and runs its handler.
func (h *Hub) Dispatch(ctx context.Context, s *Session, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		h.fail(s, "", fmt.Errorf("%w: malformed frame", apperr.ErrValidation))
		return
	}
	handle, ok := h.handlers[env.Event]
	if !ok {
		h.fail(s, env.Event, fmt.Errorf("%w: unknown event %q", apperr.ErrValidation, env.Event))
		return
	}
	if err := handle(ctx, s, env.Data); err != nil {
		h.fail(s, env.Event, err)
	}
}

func (h *Hub) fail(s *Session, event string, err error) {
	if apperr.Code(err) == "internal" {
		h.log.Error("event failed", zap.String("user_id", s.UserID), zap.String("event", event), zap.Error(err))
	} else {
		h.log.Debug("event rejected", zap.String("user_id", s.UserID), zap.String("event", event), zap.Error(err))
	}
	s.Emit(EventError, ErrorEvent{
		Event:   event,
		Code:    apperr.Code(err),
		Message: apperr.Message(err, h.expose),
	})
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, fmt.Errorf("%w: missing payload", apperr.ErrValidation)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: malformed payload: %v", apperr.ErrValidation, err)
	}
	return v, nil
}

func decodeValid[T any](data json.RawMessage) (T, error) {
	v, err := decode[T](data)
	if err != nil {
		return v, err
	}
	return v, httpx.Validate(&v)
}

func (h *Hub) onPrivateMessage(ctx context.Context, s *Session, data json.RawMessage) error {
	p, err := decodeValid[PrivateMessagePayload](data)
	if err != nil {
		return err
	}
	_, err = h.router.SendDirect(ctx, s.Sender(), p.RecipientID, p.Body)
	return err
}

func (h *Hub) onGroupMessage(ctx context.Context, s *Session, data json.RawMessage) error {
	p, err := decodeValid[GroupMessagePayload](data)
	if err != nil {
		return err
	}
	_, err = h.router.SendGroup(ctx, s.Sender(), p.GroupID, p.Body)
	return err
}

func (h *Hub) onTyping(_ context.Context, s *Session, data json.RawMessage) error {
	p, err := decodeValid[TypingPayload](data)
	if err != nil {
		return err
	}
	h.router.Typing(s, p.RecipientID, p.IsTyping)
	return nil
}

func (h *Hub) onMarkRead(ctx context.Context, s *Session, data json.RawMessage) error {
	p, err := decodeValid[MarkReadPayload](data)
	if err != nil {
		return err
	}
	return h.router.MarkRead(ctx, p.MessageID, s.UserID)
}

func (h *Hub) onJoinGroups(ctx context.Context, s *Session, data json.RawMessage) error {
	ids, err := decode[[]string](data)
	if err != nil {
		return err
	}
	joined, err := h.router.JoinGroups(ctx, s, ids)
	if err != nil {
		return err
	}
	s.Emit(EventGroupsJoined, map[string][]string{"groupIds": joined})
	return nil
}

func (h *Hub) onJoinGroup(ctx context.Context, s *Session, data json.RawMessage) error {
	groupID, err := decodeID(data)
	if err != nil {
		return err
	}
	if err := h.router.JoinGroup(ctx, s, groupID); err != nil {
		return err
	}
	s.Emit(EventGroupJoined, map[string]string{"groupId": groupID})
	return nil
}

func (h *Hub) onLeaveGroup(_ context.Context, s *Session, data json.RawMessage) error {
	groupID, err := decodeID(data)
	if err != nil {
		return err
	}
	h.router.LeaveGroup(s, groupID)
	s.Emit(EventGroupLeft, map[string]string{"groupId": groupID})
	return nil
}

func (h *Hub) onUpdateStatus(ctx context.Context, s *Session, data json.RawMessage) error {
	status, err := decode[Status](data)
	if err != nil {
		return err
	}
	if err := h.presence.Update(ctx, s.UserID, status); err != nil {
		return err
	}
	s.Emit(EventStatusUpdated, map[string]Status{"status": status})
	return nil
}

func (h *Hub) onCallUser(_ context.Context, s *Session, data json.RawMessage) error {
	p, err := decodeValid[CallPayload](data)
	if err != nil {
		return err
	}
	return h.relay.Call(s, p.To, p.Offer, p.CallType)
}

func (h *Hub) onAnswerCall(_ context.Context, s *Session, data json.RawMessage) error {
	p, err := decodeValid[AnswerPayload](data)
	if err != nil {
		return err
	}
	return h.relay.Answer(s, p.To, p.Answer)
}

func (h *Hub) onRejectCall(_ context.Context, s *Session, data json.RawMessage) error {
	p, err := decodeValid[TargetPayload](data)
	if err != nil {
		return err
	}
	return h.relay.Reject(s, p.To)
}

func (h *Hub) onEndCall(_ context.Context, s *Session, data json.RawMessage) error {
	p, err := decodeValid[TargetPayload](data)
	if err != nil {
		return err
	}
	return h.relay.Hangup(s, p.To)
}

func (h *Hub) onICECandidate(_ context.Context, s *Session, data json.RawMessage) error {
	p, err := decodeValid[ICEPayload](data)
	if err != nil {
		return err
	}
	return h.relay.ICECandidate(s, p.To, p.Candidate)
}

func (h *Hub) onToggle(track string) handlerFunc {
	return func(_ context.Context, s *Session, data json.RawMessage) error {
		p, err := decodeValid[TogglePayload](data)
		if err != nil {
			return err
		}
		return h.relay.ToggleMedia(s, p.To, track, p.Enabled)
	}
}

// decodeID accepts a bare id string or {"groupId": "..."}.
func decodeID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil && id != "" {
		return id, nil
	}
	var obj struct {
		GroupID string `json:"groupId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.GroupID != "" {
		return obj.GroupID, nil
	}
	return "", fmt.Errorf("%w: group id is required", apperr.ErrValidation)
}
