// Package registry holds the ordered conversation list and the active selection.
package registry

import (
	"time"

	"lexchat/internal/chat"
)

// Evictor drops cached state for a removed conversation.
type Evictor interface {
	DropConversation(conversationID string)
}

// Registry is the ordered collection of conversation summaries plus the active id.
//
// The active id, when non-empty, always names a conversation in the list.
// Registry is not safe for concurrent use.
type Registry struct {
	items   []chat.Conversation
	active  string
	evictor Evictor
}

// New constructs an empty registry. evictor may be nil.
func New(evictor Evictor) *Registry {
	return &Registry{evictor: evictor}
}

// Hydrate replaces the whole list and activates the first entry, if any.
func (r *Registry) Hydrate(list []chat.Conversation) {
	r.items = make([]chat.Conversation, len(list))
	copy(r.items, list)
	r.active = ""
	if len(r.items) > 0 {
		r.active = r.items[0].ID
	}
}

// Add prepends a newly created conversation and makes it active.
func (r *Registry) Add(conversation chat.Conversation) {
	if i := r.index(conversation.ID); i >= 0 {
		r.items = append(r.items[:i], r.items[i+1:]...)
	}
	r.items = append([]chat.Conversation{conversation}, r.items...)
	r.active = conversation.ID
}

// Remove deletes the conversation and evicts its messages. When it was active, the
// first remaining conversation becomes active. It reports whether id was present.
func (r *Registry) Remove(id string) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	r.items = append(r.items[:i], r.items[i+1:]...)
	if r.evictor != nil {
		r.evictor.DropConversation(id)
	}
	if r.active == id {
		r.active = ""
		if len(r.items) > 0 {
			r.active = r.items[0].ID
		}
	}
	return true
}

// Touch refreshes the preview and timestamp. Unknown ids are ignored.
func (r *Registry) Touch(id, preview string, at time.Time) {
	if i := r.index(id); i >= 0 {
		r.items[i].LastMessagePreview = preview
		r.items[i].UpdatedAt = at
	}
}

// Rename replaces the title of a conversation. It reports whether the title changed.
func (r *Registry) Rename(id, title string) bool {
	i := r.index(id)
	if i < 0 || r.items[i].Title == title {
		return false
	}
	r.items[i].Title = title
	return true
}

// MarkUnread bumps the unread counter of a conversation that is not active.
func (r *Registry) MarkUnread(id string) {
	if id == r.active {
		return
	}
	if i := r.index(id); i >= 0 {
		r.items[i].Unread++
	}
}

// SetActive selects a conversation. An empty id clears the selection; unknown ids are
// rejected so the active reference never dangles.
func (r *Registry) SetActive(id string) bool {
	if id == "" {
		r.active = ""
		return true
	}
	i := r.index(id)
	if i < 0 {
		return false
	}
	r.active = id
	r.items[i].Unread = 0
	return true
}

// ActiveID returns the active conversation id or "".
func (r *Registry) ActiveID() string { return r.active }

// Get returns one conversation summary.
func (r *Registry) Get(id string) (chat.Conversation, bool) {
	if i := r.index(id); i >= 0 {
		return r.items[i], true
	}
	return chat.Conversation{}, false
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool { return r.index(id) >= 0 }

// Len returns the number of conversations.
func (r *Registry) Len() int { return len(r.items) }

// List returns a copy of the conversations in display order.
func (r *Registry) List() []chat.Conversation {
	out := make([]chat.Conversation, len(r.items))
	copy(out, r.items)
	return out
}

// Reset clears everything, including the active id.
func (r *Registry) Reset() {
	r.items = nil
	r.active = ""
}

func (r *Registry) index(id string) int {
	for i := range r.items {
		if r.items[i].ID == id {
			return i
		}
	}
	return -1
}
