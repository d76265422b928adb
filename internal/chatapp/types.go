package chatapp

import (
	"context"

	"lexchat/internal/chat"
	"lexchat/internal/document"
	"lexchat/internal/remote"
)

// SessionController is the command-facing session contract.
type SessionController interface {
	Conversations() []chat.Conversation
	ActiveID() string
	Messages(conversationID string) []chat.Message
	CreateConversation(ctx context.Context) (chat.Conversation, error)
	DeleteConversation(id string) bool
	Select(ctx context.Context, id string) error
	SendText(ctx context.Context, content string) error
	UploadFile(ctx context.Context, file remote.File, question string) error
}

// CommandEnv provides adapter hooks so command handling stays independent of the terminal.
type CommandEnv struct {
	Session SessionController

	LoadDocument func(ctx context.Context, path string) (document.Document, error)
	WhoAmI       func() string
	// Go runs sends and uploads. Nil runs them inline.
	Go func(fn func())

	AppendOutput func(text string)
	AppendError  func(errText string)
}
