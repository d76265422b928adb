package chatapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lexchat/internal/chat"
	"lexchat/internal/remote"
	"lexchat/internal/session"
)

// HelpText lists the interactive commands.
var HelpText = strings.Join([]string{
	"Slash commands:",
	"/help",
	"/list",
	"/new",
	"/switch <conversation-id>",
	"/delete <conversation-id>",
	"/upload <path> <question...>",
	"/history",
	"/whoami",
	"/quit",
	"Anything else is sent as a message to the active conversation.",
}, "\n")

// Dispatch handles one line of input. It reports whether the shell should exit.
func Dispatch(ctx context.Context, line string, env CommandEnv) bool {
	if env.Session == nil {
		appendError(env, "session is not initialized")
		return false
	}

	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "/") {
		return ExecuteSlashCommand(ctx, trimmed, env)
	}
	sendText(ctx, line, env)
	return false
}

// ExecuteSlashCommand parses and handles one slash command. It reports whether the
// shell should exit.
func ExecuteSlashCommand(ctx context.Context, content string, env CommandEnv) bool {
	if env.Session == nil {
		appendError(env, "session is not initialized")
		return false
	}

	parts := strings.Fields(strings.TrimSpace(content))
	if len(parts) == 0 {
		return false
	}
	command := strings.TrimPrefix(parts[0], "/")
	args := parts[1:]

	switch command {
	case "help":
		appendOutput(env, HelpText)
	case "list":
		list := env.Session.Conversations()
		if len(list) == 0 {
			appendOutput(env, "No conversations. Use /new to start one.")
			return false
		}
		appendOutput(env, FormatConversations(list, env.Session.ActiveID()))
	case "new":
		conv, err := env.Session.CreateConversation(ctx)
		if err != nil {
			return false
		}
		appendOutput(env, fmt.Sprintf("Started conversation %s.", conv.ID))
		appendOutput(env, FormatTranscript(env.Session.Messages(conv.ID)))
	case "switch":
		if len(args) != 1 {
			appendError(env, "usage: /switch <conversation-id>")
			return false
		}
		if err := env.Session.Select(ctx, args[0]); err != nil {
			if errors.Is(err, session.ErrUnknownConversation) {
				appendError(env, "unknown conversation: "+args[0])
				return false
			}
			appendError(env, "could not load messages: "+remote.UserMessage(err))
		}
		appendOutput(env, "Switched to conversation "+args[0]+".")
		if msgs := env.Session.Messages(args[0]); len(msgs) > 0 {
			appendOutput(env, FormatTranscript(msgs))
		}
	case "delete":
		if len(args) != 1 {
			appendError(env, "usage: /delete <conversation-id>")
			return false
		}
		if !env.Session.DeleteConversation(args[0]) {
			appendError(env, "unknown conversation: "+args[0])
			return false
		}
		active := env.Session.ActiveID()
		if active == "" {
			appendOutput(env, fmt.Sprintf("Deleted conversation %s. No conversations left.", args[0]))
			return false
		}
		appendOutput(env, fmt.Sprintf("Deleted conversation %s. Active conversation: %s.", args[0], active))
	case "upload":
		if len(args) == 0 {
			appendError(env, "usage: /upload <path> <question...>")
			return false
		}
		uploadFile(ctx, args[0], strings.Join(args[1:], " "), env)
	case "history":
		active := env.Session.ActiveID()
		if active == "" {
			appendError(env, "no active conversation")
			return false
		}
		msgs := env.Session.Messages(active)
		if len(msgs) == 0 {
			appendOutput(env, "No messages yet.")
			return false
		}
		appendOutput(env, FormatTranscript(msgs))
	case "whoami":
		name := ""
		if env.WhoAmI != nil {
			name = strings.TrimSpace(env.WhoAmI())
		}
		if name == "" {
			appendOutput(env, "Not signed in.")
			return false
		}
		appendOutput(env, "Signed in as "+name+".")
	case "quit", "exit":
		return true
	default:
		appendError(env, "unknown slash command: /"+command)
	}

	return false
}

func sendText(ctx context.Context, content string, env CommandEnv) {
	convID := env.Session.ActiveID()
	run(env, func() {
		if err := env.Session.SendText(ctx, content); err != nil {
			reportIntentError(env, err)
			return
		}
		appendLastReply(env, convID)
	})
}

func uploadFile(ctx context.Context, path, question string, env CommandEnv) {
	if env.LoadDocument == nil {
		appendError(env, "document upload is not available")
		return
	}
	if env.Session.ActiveID() == "" {
		reportIntentError(env, session.ErrNoActiveConversation)
		return
	}
	doc, err := env.LoadDocument(ctx, path)
	if err != nil {
		appendError(env, err.Error())
		return
	}

	convID := env.Session.ActiveID()
	file := doc.File()
	run(env, func() {
		if err := env.Session.UploadFile(ctx, file, question); err != nil {
			reportIntentError(env, err)
			return
		}
		appendLastReply(env, convID)
	})
}

func run(env CommandEnv, fn func()) {
	if env.Go != nil {
		env.Go(fn)
		return
	}
	fn()
}

// reportIntentError prints failures the session manager does not surface as
// notifications itself.
func reportIntentError(env CommandEnv, err error) {
	switch {
	case errors.Is(err, session.ErrNoActiveConversation):
		appendError(env, "no active conversation; use /new or /switch <conversation-id>")
	case errors.Is(err, session.ErrConversationBusy):
		appendError(env, "still waiting for the previous reply in this conversation")
	case errors.Is(err, session.ErrEmptyMessage):
		appendError(env, "message is empty")
	}
}

// appendLastReply prints the reply when its conversation is still on screen. Replies
// for other conversations show up as unread counts instead.
func appendLastReply(env CommandEnv, convID string) {
	if convID != env.Session.ActiveID() {
		return
	}
	msgs := env.Session.Messages(convID)
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.Role != chat.RoleAssistant {
		return
	}
	appendOutput(env, formatMessage(last))
}

func appendOutput(env CommandEnv, text string) {
	if env.AppendOutput != nil {
		env.AppendOutput(text)
	}
}

func appendError(env CommandEnv, errText string) {
	if env.AppendError != nil {
		env.AppendError(errText)
	}
}
