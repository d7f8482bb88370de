// Package chat routes support chat traffic between customers, human agents
// and the automated responder. It owns connection membership, agent
// presence, message persistence and fan-out, and is independent of the
// transport that carries the events.
package chat

import (
	"context"
	"errors"

	"github.com/soyeahso/chevai-chat/internal/domain"
	"github.com/soyeahso/chevai-chat/internal/responder"
)

// Server events.
const (
	EventAdminStatusChanged = "admin_status_changed"
	EventReceiveMessage     = "receive_message"
	EventAdminTyping        = "admin_typing"
	EventUserTyping         = "user_typing"
	EventChatHistory        = "chatHistory"
	EventMessageError       = "message_error"
	EventAITypingStart      = "ai_typing_start"
	EventAITypingStop       = "ai_typing_stop"
	EventMessageRead        = "message_read"
)

// Automated sender identity.
const (
	AutomatedSenderID    = "ai-assistant"
	automatedSenderName  = "Ai-chan 🤖"
	FallbackSenderName   = automatedSenderName + " (Fallback)"
	FallbackNotice       = "Xin lỗi, mình đang gặp sự cố kỹ thuật. Admin sẽ hỗ trợ bạn ngay! 🛠️✨"
	DefaultAdminRoom     = "admin-room"
	DefaultHistoryLimit  = 50
	MaxHistoryLimit      = 200
	defaultReplyDelayMin = 1500
	defaultReplyDelayMax = 3500
)

var (
	// ErrInvalidMessage is returned for messages rejected before persistence.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrUnknownConn is returned when an operation names an unregistered connection.
	ErrUnknownConn = errors.New("unknown connection")
	// ErrAgentOnly is returned when a non-agent connection tries to join the admin room.
	ErrAgentOnly = errors.New("admin room is reserved for agents")
)

// Conn is one connected client as seen by the router.
type Conn interface {
	ID() string
	Emit(event string, payload any) error
}

// MessageStore persists conversations.
type MessageStore interface {
	Append(ctx context.Context, msg domain.Message) (domain.Message, error)
	History(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	Rooms(ctx context.Context) ([]domain.RoomSummary, error)
	DeleteRoom(ctx context.Context, roomID string) (int, error)
}

// Responder produces automated replies.
type Responder interface {
	Respond(ctx context.Context, conversationID, text string) (responder.Reply, error)
	Provider() string
}

// AgentInfo describes an authenticated human agent.
type AgentInfo struct {
	Name string `json:"name"`
}

// AdminStatus is the payload of admin_status_changed.
type AdminStatus struct {
	IsOnline  bool   `json:"isOnline"`
	AdminName string `json:"adminName,omitempty"`
}

// TypingStatus is the payload of admin_typing and user_typing.
type TypingStatus struct {
	ConversationID string `json:"conversationId,omitempty"`
	IsTyping       bool   `json:"isTyping"`
}

// MessageError is the payload of message_error.
type MessageError struct {
	Error  string `json:"error"`
	TempID string `json:"tempId,omitempty"`
}

// ReadReceipt is the payload of message_read.
type ReadReceipt struct {
	MessageID string `json:"messageId"`
}

// AITyping is the payload of ai_typing_start and ai_typing_stop.
type AITyping struct {
	ConversationID string `json:"conversationId"`
}

// automatedSender renders the sender name of an automated reply.
func automatedSender(provider string, summoned bool) string {
	name := responder.DisplayName(provider)
	if summoned {
		return automatedSenderName + " (@ai called - " + name + ")"
	}
	return automatedSenderName + " (" + name + ")"
}
