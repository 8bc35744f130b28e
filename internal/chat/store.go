package chat

import "context"

// MessageStore persists messages for the router.
type MessageStore interface {
	SaveMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	MarkRead(ctx context.Context, id string) error
}

// MembershipStore answers group membership from the directory, uncached.
type MembershipStore interface {
	GroupMemberIDs(ctx context.Context, groupID string) ([]string, error)
}

// ContactStore is the presence tracker's view of the directory.
type ContactStore interface {
	Contacts(ctx context.Context, userID string) ([]string, error)
	SetStatus(ctx context.Context, userID, status string) error
}
