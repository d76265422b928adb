// Package messages holds the per-conversation message sequences of a session.
package messages

import (
	"sort"

	"lexchat/internal/chat"
)

// Store maps conversation ids to their ordered message sequences.
//
// Messages keep insertion order; hydration installs the server order verbatim.
// Store is not safe for concurrent use. The session manager serializes access.
type Store struct {
	byConversation map[string][]chat.Message
}

// New constructs an empty message store.
func New() *Store {
	return &Store{byConversation: make(map[string][]chat.Message)}
}

// Hydrate replaces the sequence for conversationID.
func (s *Store) Hydrate(conversationID string, messages []chat.Message) {
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	s.byConversation[conversationID] = copied
}

// Append pushes message to the end of the conversation, creating the sequence if needed.
func (s *Store) Append(conversationID string, message chat.Message) {
	message.ConversationID = conversationID
	s.byConversation[conversationID] = append(s.byConversation[conversationID], message)
}

// SetStatus updates the status of one message. It reports whether the message was found.
func (s *Store) SetStatus(conversationID, messageID string, status chat.Status) bool {
	seq := s.byConversation[conversationID]
	for i := range seq {
		if seq[i].ID == messageID {
			seq[i].Status = status
			return true
		}
	}
	return false
}

// DropConversation removes the conversation's sequence entirely.
func (s *Store) DropConversation(conversationID string) {
	delete(s.byConversation, conversationID)
}

// Get returns a copy of the conversation's messages; never nil.
func (s *Store) Get(conversationID string) []chat.Message {
	seq := s.byConversation[conversationID]
	out := make([]chat.Message, len(seq))
	copy(out, seq)
	return out
}

// Has reports whether a sequence exists for conversationID, even an empty one.
func (s *Store) Has(conversationID string) bool {
	_, ok := s.byConversation[conversationID]
	return ok
}

// ConversationIDs lists the keys currently held, sorted.
func (s *Store) ConversationIDs() []string {
	ids := make([]string, 0, len(s.byConversation))
	for id := range s.byConversation {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reset drops every conversation.
func (s *Store) Reset() {
	s.byConversation = make(map[string][]chat.Message)
}
