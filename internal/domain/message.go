package domain

import (
	"strings"
	"time"
)

// Role is the kind of participant that authored a message.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleAgent     Role = "agent"
	RoleAutomated Role = "automated"
)

// ParseRole normalizes a sender role, accepting the storefront's legacy
// names ("user", "admin", "ai").
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "customer", "user":
		return RoleCustomer, true
	case "agent", "admin":
		return RoleAgent, true
	case "automated", "ai":
		return RoleAutomated, true
	default:
		return "", false
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAgent || r == RoleAutomated
}

// Message is a persisted chat message. It is never mutated after the store
// accepts it.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	SenderName     string    `json:"senderName"`
	SenderRole     Role      `json:"senderRole"`
	Body           string    `json:"body"`
	MediaURL       string    `json:"mediaUrl,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`

	// TempID echoes the client's optimistic id back on confirmation. It is
	// not persisted.
	TempID string `json:"tempId,omitempty"`
}

// InboundMessage is a message submitted by a client, before persistence.
type InboundMessage struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	SenderName     string `json:"senderName"`
	SenderRole     string `json:"senderRole"`
	Body           string `json:"body"`
	MediaURL       string `json:"mediaUrl,omitempty"`
	TempID         string `json:"tempId,omitempty"`
}

// RoomSummary describes one conversation for the agent console.
type RoomSummary struct {
	ConversationID string    `json:"conversationId"`
	MessageCount   int       `json:"messageCount"`
	LastMessage    string    `json:"lastMessage"`
	LastSenderRole Role      `json:"lastSenderRole"`
	LastAt         time.Time `json:"lastAt"`
}
