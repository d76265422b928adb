package chatapp

import (
	"fmt"
	"strings"

	"lexchat/internal/chat"
)

const previewLimit = 48

// FormatConversations renders the conversation list, marking the active one.
func FormatConversations(list []chat.Conversation, activeID string) string {
	lines := make([]string, 0, len(list))
	for _, conv := range list {
		marker := " "
		if conv.ID == activeID {
			marker = "*"
		}
		line := fmt.Sprintf("%s %-6s %s", marker, conv.ID, conv.Title)
		if preview := truncate(conv.LastMessagePreview, previewLimit); preview != "" {
			line += "  - " + preview
		}
		if conv.Unread > 0 {
			line += fmt.Sprintf("  (%d new)", conv.Unread)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// FormatTranscript renders messages in order, one block per message.
func FormatTranscript(msgs []chat.Message) string {
	blocks := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		blocks = append(blocks, formatMessage(msg))
	}
	return strings.Join(blocks, "\n\n")
}

func formatMessage(msg chat.Message) string {
	speaker := "assistant"
	if msg.Role == chat.RoleUser {
		speaker = "you"
	}
	text := fmt.Sprintf("%s: %s", speaker, msg.Content)
	if msg.Status == chat.StatusFailed {
		text += " (not delivered)"
	}
	return text
}

func truncate(s string, limit int) string {
	flat := strings.Join(strings.Fields(s), " ")
	runes := []rune(flat)
	if len(runes) <= limit {
		return flat
	}
	return string(runes[:limit-1]) + "…"
}
