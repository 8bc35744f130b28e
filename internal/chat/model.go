package chat

import (
	"fmt"
	"strings"
	"time"

	"go-talk/internal/apperr"
)

type Kind string

const (
	KindText  Kind = "text"
	KindFile  Kind = "file"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Message is immutable once persisted, except for Read. SenderUsername is set
// on live deliveries only; history carries ids.
type Message struct {
	ID             string    `json:"id"`
	SenderID       string    `json:"senderId"`
	SenderUsername string    `json:"senderUsername,omitempty"`
	RecipientID    string    `json:"recipientId,omitempty"`
	GroupID        string    `json:"groupId,omitempty"`
	Content        string    `json:"content"`
	Kind           Kind      `json:"type"`
	FileURL        string    `json:"fileUrl,omitempty"`
	FileName       string    `json:"fileName,omitempty"`
	FileSize       int64     `json:"fileSize,omitempty"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Sender identifies who a message is from.
type Sender struct {
	ID       string
	Username string
}

// Body is the client-supplied part of a message.
type Body struct {
	Content  string `json:"content" validate:"required,max=10000"`
	Kind     Kind   `json:"type" validate:"omitempty,oneof=text file video audio"`
	FileURL  string `json:"fileUrl,omitempty" validate:"omitempty,url"`
	FileName string `json:"fileName,omitempty" validate:"max=255"`
	FileSize int64  `json:"fileSize,omitempty" validate:"gte=0"`
}

func (b *Body) normalize() error {
	if b.Kind == "" {
		b.Kind = KindText
	}
	if b.Kind != KindText && b.FileURL == "" {
		return fmt.Errorf("%w: %s message requires fileUrl", apperr.ErrValidation, b.Kind)
	}
	return nil
}

// KindForMIME picks the message kind used to wrap an uploaded file from the
// top-level media type.
func KindForMIME(contentType string) Kind {
	top, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), "/")
	switch top {
	case "video":
		return KindVideo
	case "audio":
		return KindAudio
	default:
		return KindFile
	}
}

type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatorID   string    `json:"creatorId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Member struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type GroupDetail struct {
	Group
	Members []Member `json:"members"`
}

type CreateGroupRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description" validate:"max=1000"`
	MemberIDs   []string `json:"memberIds" validate:"dive,required"`
}

type AddMemberRequest struct {
	UserID string `json:"userId" validate:"required"`
}
