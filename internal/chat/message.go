// Package chat defines conversations, messages and local identifiers.
package chat

import (
	"fmt"
	"time"
)

const (
	// PlaceholderTitle is the title given to conversations created from the client.
	PlaceholderTitle = "New Conversation"
	// GreetingText is the local-only welcome message seeded into new conversations.
	GreetingText = "Hello! I'm your legal assistant. How can I help you today?"
)

// Role identifies the message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Status tracks the delivery state of a message.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Message is one turn in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is the summary shown in the conversation list.
type Conversation struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	LastMessagePreview string    `json:"last_message_preview"`
	UpdatedAt          time.Time `json:"updated_at"`
	Unread             int       `json:"unread,omitempty"`
}

// DocumentPrompt renders the user-visible content of a document-accompanied question.
func DocumentPrompt(fileName, question string) string {
	return fmt.Sprintf("📎 %s\n\n%s", fileName, question)
}
