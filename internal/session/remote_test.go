package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexchat/internal/chat"
	"lexchat/internal/notify"
	"lexchat/internal/remote"
	"lexchat/internal/remote/remotetest"
)

func TestManagerAgainstHTTPBackend(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer()
	defer srv.Close()
	srv.AddUser("Ada", "ada@example.com", "pw")
	older := srv.SeedConversation("ada@example.com", "Tenancy")
	srv.SeedMessage(older, "user", "Can my landlord raise rent?")
	srv.SeedMessage(older, "assistant", "Only as the lease allows.")
	newest := srv.SeedConversation("ada@example.com", "Employment")

	client, err := remote.New(remote.Config{
		BaseURL: srv.URL,
		Tokens:  remote.StaticToken(srv.IssueToken("ada@example.com")),
		Retry:   remote.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
	require.NoError(t, err)

	notes := &notify.Recorder{}
	m, err := New(Config{Remote: client, Notifier: notes})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.Hydrate(ctx))
	list := m.Conversations()
	require.Len(t, list, 2)
	assert.Equal(t, newest, list[0].ID)
	assert.Equal(t, newest, m.ActiveID())

	require.NoError(t, m.Select(ctx, older))
	assert.Equal(t, []string{
		"user:Can my landlord raise rent?",
		"assistant:Only as the lease allows.",
	}, contents(m.Messages(older)))

	created, err := m.CreateConversation(ctx)
	require.NoError(t, err)
	assert.Equal(t, chat.PlaceholderTitle, created.Title)

	require.NoError(t, m.SendText(ctx, "what is force majeure"))
	assert.Equal(t, []string{
		"assistant:" + chat.GreetingText,
		"user:what is force majeure",
		"assistant:Echo: what is force majeure",
	}, contents(m.Messages(created.ID)))
	require.Equal(t, created.ID, m.ActiveID())
	assert.Equal(t, "What is", m.Conversations()[0].Title, "server title picked up after the first ask")

	file := remote.File{Name: "nda.pdf", Data: []byte("%PDF-1.4")}
	require.NoError(t, m.UploadFile(ctx, file, "Who are the parties?"))
	msgs := m.Messages(created.ID)
	assert.Equal(t, "📎 nda.pdf\n\nWho are the parties?", msgs[len(msgs)-2].Content)
	assert.Equal(t, "Answer about nda.pdf: Who are the parties?", msgs[len(msgs)-1].Content)
	require.Len(t, srv.Uploads(), 1)
	assert.Equal(t, remote.DefaultTopK, srv.Uploads()[0].TopK)

	srv.FailNext("POST", "/ask/"+created.ID, 500, `{"detail":"model overloaded"}`)
	require.Error(t, m.SendText(ctx, "retry?"))
	last, _ := notes.Last()
	assert.Equal(t, "model overloaded", last.Message)
	assert.Equal(t, chat.StatusFailed, m.Messages(created.ID)[len(m.Messages(created.ID))-1].Status)
}

func TestManagerWithoutTokenStaysEmpty(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer()
	defer srv.Close()
	client, err := remote.New(remote.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	notes := &notify.Recorder{}
	m, err := New(Config{Remote: client, Notifier: notes})
	require.NoError(t, err)

	m.AuthChanged(context.Background(), true)
	assert.Empty(t, m.Conversations())
	assert.Empty(t, notes.All())
	assert.Empty(t, srv.Requests())
}
