// Package session keeps the conversation list, message cache and in-flight
// requests of one signed-in user consistent with the backend.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"lexchat/internal/chat"
	"lexchat/internal/messages"
	"lexchat/internal/notify"
	"lexchat/internal/registry"
	"lexchat/internal/remote"
)

const (
	errorTitle            = "Error"
	sendFailedMessage     = "Failed to get response. Please try again."
	createFailedMessage   = "Could not create conversation"
	uploadFailedTitle     = "Upload failed"
	uploadFailedMessage   = "Failed to analyze document"
	uploadDoneTitle       = "Document analyzed"
	missingQuestionTitle  = "Missing question"
	missingQuestionDetail = "Please specify what you want to do with the document"
)

var (
	// ErrRemoteRequired indicates a Manager configured without a backend.
	ErrRemoteRequired = errors.New("session remote is required")
	// ErrNoActiveConversation indicates an intent that needs a selected conversation.
	ErrNoActiveConversation = errors.New("no active conversation")
	// ErrConversationBusy indicates a send while the same conversation is awaiting a reply.
	ErrConversationBusy = errors.New("conversation is awaiting a reply")
	// ErrEmptyMessage indicates a blank text message.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrQuestionRequired indicates a document upload without a question.
	ErrQuestionRequired = errors.New("question is required")
	// ErrUnknownConversation indicates an id that is not in the conversation list.
	ErrUnknownConversation = errors.New("unknown conversation")
	// ErrSessionChanged reports a request that completed after sign-out.
	ErrSessionChanged = errors.New("session changed while the request was in flight")
)

// Remote is the subset of the backend the manager calls.
type Remote interface {
	ListConversations(ctx context.Context) ([]remote.Conversation, error)
	CreateConversation(ctx context.Context, title string) (remote.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]remote.Message, error)
	Ask(ctx context.Context, conversationID, prompt string) (remote.AskResponse, error)
	AskDocument(ctx context.Context, conversationID string, file remote.File, question string, topK int) (remote.AskDocumentResponse, error)
}

// Snapshot is an immutable view of the session.
type Snapshot struct {
	Conversations []chat.Conversation
	ActiveID      string
	Messages      []chat.Message
	State         State
	Sending       []string
	// Revision orders snapshots. A larger value reflects newer state.
	Revision uint64
}

// Config configures Manager creation.
type Config struct {
	Remote   Remote
	IDs      chat.IDGenerator
	Notifier notify.Notifier
	Logger   zerolog.Logger
	Now      func() time.Time
	TopK     int
	// OnChange runs after every state change, outside the manager lock.
	OnChange func(Snapshot)
}

// Manager orchestrates sends, uploads and conversation lifecycle.
type Manager struct {
	remote   Remote
	ids      chat.IDGenerator
	notifier notify.Notifier
	logger   zerolog.Logger
	now      func() time.Time
	topK     int
	onChange func(Snapshot)

	loads singleflight.Group

	mu         sync.Mutex
	registry   *registry.Registry
	messages   *messages.Store
	inflight   map[string]struct{}
	generation uint64
	revision   uint64
}

// New creates a manager with explicit dependencies.
func New(cfg Config) (*Manager, error) {
	if cfg.Remote == nil {
		return nil, ErrRemoteRequired
	}
	ids := cfg.IDs
	if ids == nil {
		ids = chat.LocalIDs{}
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = remote.DefaultTopK
	}

	store := messages.New()
	return &Manager{
		remote:   cfg.Remote,
		ids:      ids,
		notifier: notifier,
		logger:   cfg.Logger,
		now:      now,
		topK:     topK,
		onChange: cfg.OnChange,
		registry: registry.New(store),
		messages: store,
		inflight: make(map[string]struct{}),
	}, nil
}

// AuthChanged hydrates on sign-in and resets on sign-out.
func (m *Manager) AuthChanged(ctx context.Context, authenticated bool) {
	if !authenticated {
		m.Reset()
		return
	}
	_ = m.Hydrate(ctx)
}

// Hydrate replaces local state with the server's conversation list and loads the
// messages of the most recent conversation. Conversations with a request in flight
// keep their local messages. Failures are logged, not notified.
func (m *Manager) Hydrate(ctx context.Context) error {
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()

	list, err := m.remote.ListConversations(ctx)
	if err != nil {
		m.logHydrateFailure(err, "conversation list unavailable")
		return err
	}

	conversations := make([]chat.Conversation, 0, len(list))
	for _, c := range list {
		conversations = append(conversations, chat.Conversation{
			ID:        c.ID.String(),
			Title:     c.Title,
			UpdatedAt: c.CreatedAt.Time,
		})
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug().Msg("discarding conversation list from a previous session")
		return nil
	}
	pending := make(map[string][]chat.Message, len(m.inflight))
	for _, c := range conversations {
		if _, ok := m.inflight[c.ID]; ok {
			pending[c.ID] = m.messages.Get(c.ID)
		}
	}
	m.messages.Reset()
	m.registry.Hydrate(conversations)
	for id, msgs := range pending {
		m.messages.Hydrate(id, msgs)
	}
	first := m.registry.ActiveID()
	m.mu.Unlock()
	m.emit()

	m.logger.Debug().Int("conversations", len(conversations)).Msg("session hydrated")
	if first == "" {
		return nil
	}
	return m.loadMessages(ctx, first)
}

// Reset clears every conversation, message and the active selection.
// Replies still in flight are discarded when they arrive.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.generation++
	m.registry.Reset()
	m.messages.Reset()
	m.inflight = make(map[string]struct{})
	m.mu.Unlock()
	m.emit()
}

// SendText appends the user's message, asks the backend and appends the reply.
func (m *Manager) SendText(ctx context.Context, content string) error {
	prompt := strings.TrimSpace(content)

	m.mu.Lock()
	convID := m.registry.ActiveID()
	if convID == "" {
		m.mu.Unlock()
		return ErrNoActiveConversation
	}
	if prompt == "" {
		m.mu.Unlock()
		return ErrEmptyMessage
	}
	if _, busy := m.inflight[convID]; busy {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrConversationBusy, convID)
	}
	now := m.now()
	userMsg := m.newMessage(chat.RoleUser, content, chat.StatusPending, now)
	m.messages.Append(convID, userMsg)
	m.registry.Touch(convID, content, now)
	m.inflight[convID] = struct{}{}
	gen := m.generation
	m.mu.Unlock()
	m.emit()

	resp, err := m.remote.Ask(ctx, convID, prompt)
	if err != nil {
		m.finishFailed(gen, convID, userMsg.ID)
		m.logger.Warn().Err(err).Str("conversation", convID).Msg("ask failed")
		m.notifyError(errorTitle, err, sendFailedMessage)
		return err
	}

	m.finishReply(gen, convID, userMsg.ID, resp.Response)
	m.refreshTitle(ctx, convID)
	return nil
}

// UploadFile sends a document with a question about it.
func (m *Manager) UploadFile(ctx context.Context, file remote.File, question string) error {

	m.mu.Lock()
	convID := m.registry.ActiveID()
	if convID == "" {
		m.mu.Unlock()
		return ErrNoActiveConversation
	}
	if strings.TrimSpace(question) == "" {
		m.mu.Unlock()
		m.notifier.Notify(notify.Notification{
			Level:   notify.LevelError,
			Title:   missingQuestionTitle,
			Message: missingQuestionDetail,
		})
		return ErrQuestionRequired
	}
	if _, busy := m.inflight[convID]; busy {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrConversationBusy, convID)
	}
	userMsg := m.newMessage(chat.RoleUser, chat.DocumentPrompt(file.Name, question), chat.StatusPending, m.now())
	m.messages.Append(convID, userMsg)
	m.inflight[convID] = struct{}{}
	gen := m.generation
	m.mu.Unlock()
	m.emit()

	resp, err := m.remote.AskDocument(ctx, convID, file, question, m.topK)
	if err != nil {
		m.finishFailed(gen, convID, userMsg.ID)
		m.logger.Warn().Err(err).Str("conversation", convID).Str("file", file.Name).Msg("document ask failed")
		m.notifyError(uploadFailedTitle, err, uploadFailedMessage)
		return err
	}

	m.finishReply(gen, convID, userMsg.ID, resp.Answer)
	m.notifier.Notify(notify.Notification{
		Level:   notify.LevelInfo,
		Title:   uploadDoneTitle,
		Message: "Processed " + file.Name,
	})
	m.refreshTitle(ctx, convID)
	return nil
}

// CreateConversation creates a conversation on the backend, seeds it with the
// greeting and makes it active. Nothing changes locally on failure.
func (m *Manager) CreateConversation(ctx context.Context) (chat.Conversation, error) {
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()

	created, err := m.remote.CreateConversation(ctx, chat.PlaceholderTitle)
	if err != nil {
		m.logger.Warn().Err(err).Msg("create conversation failed")
		m.notifier.Notify(notify.Notification{
			Level:   notify.LevelError,
			Title:   errorTitle,
			Message: createFailedMessage,
		})
		return chat.Conversation{}, err
	}

	now := m.now()
	conv := chat.Conversation{
		ID:        created.ID.String(),
		Title:     created.Title,
		UpdatedAt: created.CreatedAt.Time,
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug().Str("conversation", conv.ID).Msg("discarding conversation created in a previous session")
		return chat.Conversation{}, ErrSessionChanged
	}
	m.registry.Add(conv)
	m.messages.Hydrate(conv.ID, []chat.Message{
		m.newMessage(chat.RoleAssistant, chat.GreetingText, chat.StatusComplete, now),
	})
	m.mu.Unlock()
	m.emit()
	return conv, nil
}

// DeleteConversation removes a conversation and its messages locally.
// It reports whether the conversation existed.
func (m *Manager) DeleteConversation(id string) bool {
	m.mu.Lock()
	removed := m.registry.Remove(id)
	m.mu.Unlock()
	if removed {
		m.emit()
	}
	return removed
}

// Select activates a conversation and loads its messages when none are cached.
func (m *Manager) Select(ctx context.Context, id string) error {
	m.mu.Lock()
	if !m.registry.SetActive(id) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownConversation, id)
	}
	cached := id == "" || m.messages.Has(id)
	m.mu.Unlock()
	m.emit()

	if cached {
		return nil
	}
	return m.loadMessages(ctx, id)
}

// Busy reports whether the active conversation is awaiting a reply.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, busy := m.inflight[m.registry.ActiveID()]
	return busy
}

// Sending reports whether conversationID is awaiting a reply.
func (m *Manager) Sending(conversationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, busy := m.inflight[conversationID]
	return busy
}

// State returns the send state of the active conversation.
func (m *Manager) State() State {
	if m.Busy() {
		return StateSending
	}
	return StateIdle
}

// ActiveID returns the active conversation id or "".
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.ActiveID()
}

// Conversations returns the conversation list in display order.
func (m *Manager) Conversations() []chat.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.List()
}

// Messages returns the cached messages of a conversation; never nil.
func (m *Manager) Messages(conversationID string) []chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages.Get(conversationID)
}

// Snapshot returns a copy of the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	m.revision++
	active := m.registry.ActiveID()
	snap := Snapshot{
		Conversations: m.registry.List(),
		ActiveID:      active,
		Messages:      m.messages.Get(active),
		State:         StateIdle,
		Sending:       make([]string, 0, len(m.inflight)),
		Revision:      m.revision,
	}
	for id := range m.inflight {
		snap.Sending = append(snap.Sending, id)
		if id == active {
			snap.State = StateSending
		}
	}
	sort.Strings(snap.Sending)
	return snap
}

func (m *Manager) emit() {
	if m.onChange == nil {
		return
	}
	m.onChange(m.Snapshot())
}

func (m *Manager) newMessage(role chat.Role, content string, status chat.Status, at time.Time) chat.Message {
	return chat.Message{
		ID:        m.ids.NextID(),
		Role:      role,
		Content:   content,
		Status:    status,
		CreatedAt: at,
	}
}

// finishFailed releases the conversation and marks the optimistic message failed.
// The message itself stays in the transcript.
func (m *Manager) finishFailed(gen uint64, convID, userMsgID string) {
	m.mu.Lock()
	if gen == m.generation {
		delete(m.inflight, convID)
		m.messages.SetStatus(convID, userMsgID, chat.StatusFailed)
	}
	m.mu.Unlock()
	m.emit()
}

// finishReply releases the conversation and appends the assistant reply to the
// conversation captured when the request started, even if it is no longer active.
func (m *Manager) finishReply(gen uint64, convID, userMsgID, reply string) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug().Str("conversation", convID).Msg("dropping reply from a previous session")
		return
	}
	delete(m.inflight, convID)
	if !m.registry.Has(convID) {
		m.mu.Unlock()
		m.logger.Debug().Str("conversation", convID).Msg("dropping reply for deleted conversation")
		m.emit()
		return
	}
	m.messages.SetStatus(convID, userMsgID, chat.StatusComplete)
	m.messages.Append(convID, m.newMessage(chat.RoleAssistant, reply, chat.StatusComplete, m.now()))
	m.registry.MarkUnread(convID)
	m.mu.Unlock()
	m.emit()
}

// loadMessages hydrates one conversation from the backend. Concurrent loads of the
// same id share one request.
func (m *Manager) loadMessages(ctx context.Context, convID string) error {
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()

	_, err, _ := m.loads.Do(convID, func() (any, error) {
		list, err := m.remote.ListMessages(ctx, convID)
		if err != nil {
			return nil, err
		}

		loaded := make([]chat.Message, 0, len(list))
		for _, msg := range list {
			loaded = append(loaded, chat.Message{
				ID:             msg.ID.String(),
				ConversationID: convID,
				Role:           chat.Role(msg.Role),
				Content:        msg.Content,
				Status:         chat.StatusComplete,
				CreatedAt:      msg.CreatedAt.Time,
			})
		}

		m.mu.Lock()
		switch {
		case gen != m.generation || !m.registry.Has(convID):
			m.mu.Unlock()
			m.logger.Debug().Str("conversation", convID).Msg("discarding messages for a conversation no longer listed")
			return nil, nil
		case m.messages.Has(convID):
			m.mu.Unlock()
			m.logger.Debug().Str("conversation", convID).Msg("keeping local messages appended during load")
			return nil, nil
		}
		m.messages.Hydrate(convID, loaded)
		m.mu.Unlock()
		m.emit()
		return nil, nil
	})
	if err != nil {
		m.logHydrateFailure(err, "message history unavailable")
		return err
	}
	return nil
}

// refreshTitle picks up the title the backend derives from the first question.
func (m *Manager) refreshTitle(ctx context.Context, convID string) {
	m.mu.Lock()
	conv, ok := m.registry.Get(convID)
	m.mu.Unlock()
	if !ok || conv.Title != chat.PlaceholderTitle {
		return
	}

	list, err := m.remote.ListConversations(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Str("conversation", convID).Msg("title refresh failed")
		return
	}

	renamed := false
	m.mu.Lock()
	for _, c := range list {
		if m.registry.Rename(c.ID.String(), c.Title) {
			renamed = true
		}
	}
	m.mu.Unlock()
	if renamed {
		m.emit()
	}
}

func (m *Manager) logHydrateFailure(err error, msg string) {
	if remote.IsUnauthenticated(err) {
		m.logger.Warn().Err(err).Msg(msg + ": not signed in")
		return
	}
	m.logger.Warn().Err(err).Msg(msg)
}

func (m *Manager) notifyError(title string, err error, fallback string) {
	text := remote.UserMessage(err)
	if text == "" {
		text = fallback
	}
	m.notifier.Notify(notify.Notification{Level: notify.LevelError, Title: title, Message: text})
}
