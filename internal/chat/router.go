package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"go-talk/internal/apperr"
	"go-talk/internal/httpx"
)

// Router persists messages and fans them out to the online targets.
// Persistence always happens before delivery.
type Router struct {
	registry *Registry
	messages MessageStore
	groups   MembershipStore
	log      *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewRouter(registry *Registry, messages MessageStore, groups MembershipStore, log *zap.Logger) *Router {
	return &Router{
		registry: registry,
		messages: messages,
		groups:   groups,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// SendDirect stores the message, pushes new_message to the recipient if online
// and acknowledges the sender with message_sent.
func (r *Router) SendDirect(ctx context.Context, from Sender, recipientID string, body Body) (*Message, error) {
	if recipientID == "" {
		return nil, fmt.Errorf("%w: recipientId is required", apperr.ErrValidation)
	}
	m, err := r.build(from, body)
	if err != nil {
		return nil, err
	}
	m.RecipientID = recipientID

	if err := r.messages.SaveMessage(ctx, m); err != nil {
		return nil, err
	}

	if s, ok := r.registry.Lookup(recipientID); ok {
		s.Emit(EventNewMessage, m)
	} else {
		r.log.Debug("recipient offline", zap.String("message_id", m.ID), zap.String("recipient_id", recipientID))
	}

	r.ack(m)
	return m, nil
}

// SendGroup stores the message and pushes new_group_message to every online
// member except the sender. Membership is read fresh for each send.
func (r *Router) SendGroup(ctx context.Context, from Sender, groupID string, body Body) (*Message, error) {
	if groupID == "" {
		return nil, fmt.Errorf("%w: groupId is required", apperr.ErrValidation)
	}
	m, err := r.build(from, body)
	if err != nil {
		return nil, err
	}
	m.GroupID = groupID

	memberIDs, err := r.members(ctx, groupID, from.ID)
	if err != nil {
		return nil, err
	}

	if err := r.messages.SaveMessage(ctx, m); err != nil {
		return nil, err
	}

	targets := r.registry.Online(lo.Without(memberIDs, from.ID))
	for _, s := range targets {
		s.Emit(EventNewGroupMessage, m)
	}
	r.log.Debug("group message delivered",
		zap.String("message_id", m.ID), zap.String("group_id", groupID), zap.Int("online", len(targets)))

	r.ack(m)
	return m, nil
}

// MarkRead flips the read flag when readerID is the message's recipient and
// tells the sender. Unknown messages and other readers are ignored.
func (r *Router) MarkRead(ctx context.Context, messageID, readerID string) error {
	m, err := r.messages.GetMessage(ctx, messageID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if m.RecipientID == "" || m.RecipientID != readerID {
		return nil
	}

	if err := r.messages.MarkRead(ctx, messageID); err != nil {
		return err
	}

	if s, ok := r.registry.Lookup(m.SenderID); ok {
		s.Emit(EventMessageRead, MessageReadEvent{MessageID: messageID, ReadBy: readerID})
	}
	return nil
}

// Typing relays a typing indicator to an online recipient.
func (r *Router) Typing(from *Session, recipientID string, isTyping bool) {
	if s, ok := r.registry.Lookup(recipientID); ok {
		s.Emit(EventUserTyping, TypingEvent{UserID: from.UserID, Username: from.Username, IsTyping: isTyping})
	}
}

// JoinGroups joins s to every listed room it is a member of and returns the
// rooms actually joined.
func (r *Router) JoinGroups(ctx context.Context, s *Session, groupIDs []string) ([]string, error) {
	joined := make([]string, 0, len(groupIDs))
	for _, groupID := range lo.Uniq(groupIDs) {
		if _, err := r.members(ctx, groupID, s.UserID); err != nil {
			if errors.Is(err, apperr.ErrPermissionDenied) || errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return joined, err
		}
		r.registry.Join(s, groupID)
		joined = append(joined, groupID)
	}
	return joined, nil
}

// JoinGroup joins one room and announces it to the sessions already there.
func (r *Router) JoinGroup(ctx context.Context, s *Session, groupID string) error {
	if _, err := r.members(ctx, groupID, s.UserID); err != nil {
		return err
	}
	if !r.registry.Join(s, groupID) {
		return nil
	}
	r.broadcastRoom(s, groupID, EventUserJoinedGroup)
	return nil
}

// LeaveGroup leaves one room and announces it to the sessions still there.
func (r *Router) LeaveGroup(s *Session, groupID string) {
	if r.registry.Leave(s, groupID) {
		r.broadcastRoom(s, groupID, EventUserLeftGroup)
	}
}

func (r *Router) broadcastRoom(from *Session, groupID, event string) {
	payload := RoomEvent{UserID: from.UserID, Username: from.Username, GroupID: groupID}
	for _, s := range r.registry.RoomSessions(groupID) {
		if s != from {
			s.Emit(event, payload)
		}
	}
}

// members loads the group's member ids and checks userID is among them.
func (r *Router) members(ctx context.Context, groupID, userID string) ([]string, error) {
	ids, err := r.groups.GroupMemberIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: group", apperr.ErrNotFound)
	}
	if !lo.Contains(ids, userID) {
		return nil, fmt.Errorf("%w: not a member of the group", apperr.ErrPermissionDenied)
	}
	return ids, nil
}

func (r *Router) build(from Sender, body Body) (*Message, error) {
	if err := httpx.Validate(&body); err != nil {
		return nil, err
	}
	if err := body.normalize(); err != nil {
		return nil, err
	}
	return &Message{
		ID:             r.newID(),
		SenderID:       from.ID,
		SenderUsername: from.Username,
		Content:        body.Content,
		Kind:           body.Kind,
		FileURL:        body.FileURL,
		FileName:       body.FileName,
		FileSize:       body.FileSize,
		CreatedAt:      r.now(),
	}, nil
}

func (r *Router) ack(m *Message) {
	if s, ok := r.registry.Lookup(m.SenderID); ok {
		s.Emit(EventMessageSent, m)
	}
}
