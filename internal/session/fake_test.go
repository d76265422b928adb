package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lexchat/internal/remote"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeRemote struct {
	mu            sync.Mutex
	conversations []remote.Conversation
	messages      map[string][]remote.Message
	created       remote.Conversation
	listErr       error
	createErr     error
	messagesErr   error
	createFn      func(ctx context.Context) error
	askFn         func(ctx context.Context, id, prompt string) (remote.AskResponse, error)
	documentFn    func(ctx context.Context, id string, file remote.File, question string, topK int) (remote.AskDocumentResponse, error)
	calls         []string
}

func newFakeRemote(conversations ...remote.Conversation) *fakeRemote {
	return &fakeRemote{
		conversations: conversations,
		messages:      make(map[string][]remote.Message),
	}
}

func conv(id, title string) remote.Conversation {
	return remote.Conversation{ID: remote.ID(id), Title: title, CreatedAt: remote.Timestamp{Time: t0}}
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) setTitle(id, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.conversations {
		if f.conversations[i].ID.String() == id {
			f.conversations[i].Title = title
		}
	}
}

func (f *fakeRemote) ListConversations(context.Context) ([]remote.Conversation, error) {
	f.record("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]remote.Conversation(nil), f.conversations...), nil
}

func (f *fakeRemote) CreateConversation(ctx context.Context, title string) (remote.Conversation, error) {
	f.record("create " + title)
	f.mu.Lock()
	fn := f.createFn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx); err != nil {
			return remote.Conversation{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return remote.Conversation{}, f.createErr
	}
	f.conversations = append([]remote.Conversation{f.created}, f.conversations...)
	return f.created, nil
}

func (f *fakeRemote) ListMessages(_ context.Context, id string) ([]remote.Message, error) {
	f.record("messages " + id)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	return append([]remote.Message(nil), f.messages[id]...), nil
}

func (f *fakeRemote) Ask(ctx context.Context, id, prompt string) (remote.AskResponse, error) {
	f.record("ask " + id)
	f.mu.Lock()
	fn := f.askFn
	f.mu.Unlock()
	if fn == nil {
		return remote.AskResponse{Response: "reply to " + prompt}, nil
	}
	return fn(ctx, id, prompt)
}

func (f *fakeRemote) AskDocument(ctx context.Context, id string, file remote.File, question string, topK int) (remote.AskDocumentResponse, error) {
	f.record(fmt.Sprintf("ask_pdf %s top_k=%d", id, topK))
	f.mu.Lock()
	fn := f.documentFn
	f.mu.Unlock()
	if fn == nil {
		return remote.AskDocumentResponse{Answer: "answer about " + file.Name}, nil
	}
	return fn(ctx, id, file, question, topK)
}

// gate blocks a fake call until released so tests can observe in-flight state.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gate) wait() {
	g.entered <- struct{}{}
	<-g.release
}

// seqIDs hands out predictable local ids.
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("local-%d", s.n)
}
