package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"go-talk/internal/apperr"
)

func TestRouter_SendDirectToOfflineRecipient(t *testing.T) {
	req := require.New(t)
	h := newHarness()
	alice := h.connect(t, "alice")

	// Given bob is offline
	m, err := h.router.SendDirect(context.Background(), sender("alice"), "bob", Body{Content: "hi"})

	// Then the message is still stored and acknowledged
	req.NoError(err)
	req.Equal(1, h.dir.savedCount())
	req.Equal(KindText, m.Kind)
	req.Equal("bob", m.RecipientID)

	got := drain(t, alice)
	req.Equal([]string{EventMessageSent}, eventNames(got))
	req.Equal(m.ID, payload[Message](t, got[0]).ID)
}

func TestRouter_SendDirectDeliversOnce(t *testing.T) {
	req := require.New(t)
	h := newHarness()
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")

	m, err := h.router.SendDirect(context.Background(), sender("alice"), "bob", Body{Content: "hello"})
	req.NoError(err)

	got := drain(t, bob)
	req.Equal([]string{EventNewMessage}, eventNames(got))
	delivered := payload[Message](t, got[0])
	req.Equal(m.ID, delivered.ID)
	req.Equal("hello", delivered.Content)
	req.Equal("alice", delivered.SenderID)
	req.Equal("name-alice", delivered.SenderUsername)

	req.Equal([]string{EventMessageSent}, eventNames(drain(t, alice)))
}

func TestRouter_SendDirectKeepsSenderOrder(t *testing.T) {
	req := require.New(t)
	h := newHarness()
	h.connect(t, "alice")
	bob := h.connect(t, "bob")

	for i := 0; i < 10; i++ {
		_, err := h.router.SendDirect(context.Background(), sender("alice"), "bob", Body{Content: fmt.Sprint(i)})
		req.NoError(err)
	}

	got := drain(t, bob)
	req.Len(got, 10)
	for i, r := range got {
		req.Equal(fmt.Sprint(i), payload[Message](t, r).Content)
	}
}

func TestRouter_PersistFailureDeliversNothing(t *testing.T) {
	req := require.New(t)
	h := newHarness()
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	h.dir.saveErr = errDBDown

	_, err := h.router.SendDirect(context.Background(), sender("alice"), "bob", Body{Content: "lost"})

	req.ErrorIs(err, errDBDown)
	req.Empty(drain(t, bob))
	req.Empty(drain(t, alice))
}

func TestRouter_SendDirectValidation(t *testing.T) {
	tests := []struct {
		name      string
		recipient string
		body      Body
	}{
		{name: "missing recipient", body: Body{Content: "x"}},
		{name: "empty content", recipient: "bob", body: Body{}},
		{name: "file without url", recipient: "bob", body: Body{Content: "x", Kind: KindFile}},
		{name: "unknown kind", recipient: "bob", body: Body{Content: "x", Kind: "sticker"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			_, err := h.router.SendDirect(context.Background(), sender("alice"), tt.recipient, tt.body)
			require.ErrorIs(t, err, apperr.ErrValidation)
			require.Zero(t, h.dir.savedCount())
		})
	}
}

func TestRouter_SendGroupFanOut(t *testing.T) {
	req := require.New(t)
	h := newHarness()
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	carol := h.connect(t, "carol")
	outsider := h.connect(t, "mallory")
	h.dir.members["g-1"] = []string{"alice", "bob", "carol", "dave"}

	m, err := h.router.SendGroup(context.Background(), sender("alice"), "g-1", Body{Content: "team"})
	req.NoError(err)
	req.Equal("g-1", m.GroupID)
	req.Equal(1, h.dir.savedCount())

	// every online member but the sender gets exactly one copy
	for _, s := range []*Session{bob, carol} {
		got := drain(t, s)
		req.Equal([]string{EventNewGroupMessage}, eventNames(got))
		delivered := payload[Message](t, got[0])
		req.Equal(m.ID, delivered.ID)
		req.Equal("name-alice", delivered.SenderUsername)
	}
	req.Equal([]string{EventMessageSent}, eventNames(drain(t, alice)))
	req.Empty(drain(t, outsider))
}

func TestRouter_SendGroupRequiresMembership(t *testing.T) {
	req := require.New(t)
	h := newHarness()
	bob := h.connect(t, "bob")
	h.dir.members["g-1"] = []string{"bob"}

	_, err := h.router.SendGroup(context.Background(), sender("mallory"), "g-1", Body{Content: "hi"})
	req.ErrorIs(err, apperr.ErrPermissionDenied)

	_, err = h.router.SendGroup(context.Background(), sender("bob"), "g-404", Body{Content: "hi"})
	req.ErrorIs(err, apperr.ErrNotFound)

	req.Zero(h.dir.savedCount())
	req.Empty(drain(t, bob))
}

func TestRouter_MarkRead(t *testing.T) {
	req := require.New(t)
	h := newHarness()
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	mallory := h.connect(t, "mallory")
	ctx := context.Background()

	m, err := h.router.SendDirect(ctx, sender("alice"), "bob", Body{Content: "read me"})
	req.NoError(err)
	drain(t, alice)
	drain(t, bob)

	// Someone other than the recipient cannot mark it read
	req.NoError(h.router.MarkRead(ctx, m.ID, "mallory"))
	stored, err := h.dir.GetMessage(ctx, m.ID)
	req.NoError(err)
	req.False(stored.Read)
	req.Empty(drain(t, alice))
	req.Empty(drain(t, mallory))

	// Unknown message ids are ignored
	req.NoError(h.router.MarkRead(ctx, "missing", "bob"))

	// The recipient can, and the sender is told
	req.NoError(h.router.MarkRead(ctx, m.ID, "bob"))
	stored, err = h.dir.GetMessage(ctx, m.ID)
	req.NoError(err)
	req.True(stored.Read)

	got := drain(t, alice)
	req.Equal([]string{EventMessageRead}, eventNames(got))
	req.Equal(MessageReadEvent{MessageID: m.ID, ReadBy: "bob"}, payload[MessageReadEvent](t, got[0]))
}

func TestRouter_Typing(t *testing.T) {
	req := require.New(t)
	h := newHarness()
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")

	h.router.Typing(alice, "bob", true)
	h.router.Typing(alice, "nobody", true)

	got := drain(t, bob)
	req.Equal([]string{EventUserTyping}, eventNames(got))
	req.Equal(TypingEvent{UserID: "alice", Username: "name-alice", IsTyping: true}, payload[TypingEvent](t, got[0]))
}

func TestRouter_Rooms(t *testing.T) {
	req := require.New(t)
	h := newHarness()
	ctx := context.Background()
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	h.dir.members["g-1"] = []string{"alice", "bob"}
	h.dir.members["g-2"] = []string{"bob"}

	joined, err := h.router.JoinGroups(ctx, alice, []string{"g-1", "g-2", "g-404", "g-1"})
	req.NoError(err)
	req.Equal([]string{"g-1"}, joined)

	req.ErrorIs(h.router.JoinGroup(ctx, alice, "g-2"), apperr.ErrPermissionDenied)

	// bob joining is announced to alice, already in the room
	req.NoError(h.router.JoinGroup(ctx, bob, "g-1"))
	got := drain(t, alice)
	req.Equal([]string{EventUserJoinedGroup}, eventNames(got))
	req.Equal(RoomEvent{UserID: "bob", Username: "name-bob", GroupID: "g-1"}, payload[RoomEvent](t, got[0]))
	req.Empty(drain(t, bob))

	h.router.LeaveGroup(bob, "g-1")
	req.Equal([]string{EventUserLeftGroup}, eventNames(drain(t, alice)))

	// leaving twice is silent
	h.router.LeaveGroup(bob, "g-1")
	req.Empty(drain(t, alice))
}
