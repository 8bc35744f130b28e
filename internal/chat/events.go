package chat

import "encoding/json"

// Inbound event names.
const (
	EventPrivateMessage = "private_message"
	EventGroupMessage   = "group_message"
	EventTyping         = "typing"
	EventMarkRead       = "mark_read"
	EventJoinGroups     = "join_groups"
	EventJoinGroup      = "join_group"
	EventLeaveGroup     = "leave_group"
	EventUpdateStatus   = "update_status"
	EventCallUser       = "call_user"
	EventAnswerCall     = "answer_call"
	EventRejectCall     = "reject_call"
	EventEndCall        = "end_call"
	EventICECandidate   = "ice_candidate"
	EventToggleVideo    = "toggle_video"
	EventToggleAudio    = "toggle_audio"
)

// Outbound event names.
const (
	EventNewMessage          = "new_message"
	EventNewGroupMessage     = "new_group_message"
	EventMessageSent         = "message_sent"
	EventMessageRead         = "message_read"
	EventUserTyping          = "user_typing"
	EventFriendStatusChanged = "friend_status_changed"
	EventStatusUpdated       = "status_updated"
	EventGroupsJoined        = "groups_joined"
	EventGroupJoined         = "group_joined"
	EventGroupLeft           = "group_left"
	EventUserJoinedGroup     = "user_joined_group"
	EventUserLeftGroup       = "user_left_group"
	EventIncomingCall        = "incoming_call"
	EventCallAnswered        = "call_answered"
	EventCallRejected        = "call_rejected"
	EventCallEnded           = "call_ended"
	EventVideoToggled        = "video_toggled"
	EventAudioToggled        = "audio_toggled"
	EventTargetUnavailable   = "target_unavailable"
	EventError               = "error"
)

// Envelope is the frame carried on the websocket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type PrivateMessagePayload struct {
	RecipientID string `json:"recipientId" validate:"required"`
	Body
}

type GroupMessagePayload struct {
	GroupID string `json:"groupId" validate:"required"`
	Body
}

type TypingPayload struct {
	RecipientID string `json:"recipientId" validate:"required"`
	IsTyping    bool   `json:"isTyping"`
}

type MarkReadPayload struct {
	MessageID string `json:"messageId" validate:"required"`
}

type CallPayload struct {
	To       string          `json:"to" validate:"required"`
	Offer    json.RawMessage `json:"offer"`
	CallType string          `json:"callType" validate:"omitempty,oneof=audio video"`
}

type AnswerPayload struct {
	To     string          `json:"to" validate:"required"`
	Answer json.RawMessage `json:"answer"`
}

type TargetPayload struct {
	To string `json:"to" validate:"required"`
}

type ICEPayload struct {
	To        string          `json:"to" validate:"required"`
	Candidate json.RawMessage `json:"candidate"`
}

type TogglePayload struct {
	To      string `json:"to" validate:"required"`
	Enabled bool   `json:"enabled"`
}

type MessageReadEvent struct {
	MessageID string `json:"messageId"`
	ReadBy    string `json:"readBy"`
}

type TypingEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type StatusEvent struct {
	UserID string `json:"userId"`
	Status Status `json:"status"`
}

type RoomEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	GroupID  string `json:"groupId"`
}

type IncomingCallEvent struct {
	From         string          `json:"from"`
	FromUsername string          `json:"fromUsername"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	CallType     string          `json:"callType"`
}

type CallAnsweredEvent struct {
	From   string          `json:"from"`
	Answer json.RawMessage `json:"answer,omitempty"`
}

type PeerEvent struct {
	From string `json:"from"`
}

type ICECandidateEvent struct {
	From      string          `json:"from"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type ToggleEvent struct {
	From    string `json:"from"`
	Enabled bool   `json:"enabled"`
}

type TargetUnavailableEvent struct {
	To    string `json:"to"`
	Event string `json:"event"`
}

type ErrorEvent struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
