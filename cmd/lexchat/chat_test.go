package main

import (
	"bytes"
	"strings"
	"testing"

	"lexchat/internal/chat"
	"lexchat/internal/session"
)

func unreadSnapshot(revision uint64, unread int) session.Snapshot {
	return session.Snapshot{
		Revision:      revision,
		ActiveID:      "2",
		Conversations: []chat.Conversation{{ID: "2"}, {ID: "1", Unread: unread}},
	}
}

func TestShellAnnouncesEachUnreadReplyOnce(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	sh := &shell{out: &out, errOut: &out, unread: make(map[string]int)}

	sh.observe(unreadSnapshot(1, 0))
	sh.observe(unreadSnapshot(3, 1))
	sh.observe(unreadSnapshot(2, 0))
	sh.observe(unreadSnapshot(4, 1))

	if got := strings.Count(out.String(), "New reply in conversation 1"); got != 1 {
		t.Fatalf("announcements = %d, want 1:\n%s", got, out.String())
	}

	sh.observe(unreadSnapshot(5, 0))
	sh.observe(unreadSnapshot(6, 1))
	if got := strings.Count(out.String(), "New reply in conversation 1"); got != 2 {
		t.Fatalf("announcements after clearing = %d, want 2:\n%s", got, out.String())
	}
}
