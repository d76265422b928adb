package auth

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexchat/internal/credentials"
	"lexchat/internal/remote"
	"lexchat/internal/remote/remotetest"
)

type transitions struct {
	mu   sync.Mutex
	seen []bool
}

func (r *transitions) AuthChanged(_ context.Context, authenticated bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, authenticated)
}

func (r *transitions) all() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.seen...)
}

func newService(t *testing.T, srv *remotetest.Server) (*Service, *credentials.Store) {
	t.Helper()
	store, err := credentials.NewStore(filepath.Join(t.TempDir(), "credentials.toml"))
	require.NoError(t, err)

	var svc *Service
	client, err := remote.New(remote.Config{
		BaseURL: srv.URL,
		Tokens:  remote.TokenFunc(func() string { return svc.Token() }),
	})
	require.NoError(t, err)

	svc, err = New(Config{Remote: client, Store: store})
	require.NoError(t, err)
	return svc, store
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrRemoteRequired)

	srv := remotetest.NewServer()
	defer srv.Close()
	client, err := remote.New(remote.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = New(Config{Remote: client})
	assert.ErrorIs(t, err, ErrStoreRequired)
}

func TestSignInPersistsAndNotifies(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer()
	defer srv.Close()
	svc, store := newService(t, srv)
	ctx := context.Background()

	rec := &transitions{}
	svc.Subscribe(rec)

	msg, err := svc.SignUp(ctx, "Ada Lovelace", "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "User created successfully", msg)
	assert.False(t, svc.Authenticated(), "signup does not sign in")

	resp, err := svc.SignIn(ctx, "ada@example.com", "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.NewConversationID)
	assert.True(t, svc.Authenticated())
	assert.Equal(t, resp.AccessToken, svc.Token())
	assert.Equal(t, []bool{true}, rec.all())

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, credentials.Credentials{AccessToken: resp.AccessToken, FullName: "Ada Lovelace"}, persisted)

	require.NoError(t, svc.SignOut(ctx))
	assert.False(t, svc.Authenticated())
	assert.Empty(t, svc.Token())
	assert.Equal(t, []bool{true, false}, rec.all())

	persisted, err = store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, persisted.Authenticated())
	assert.Empty(t, persisted.FullName)
}

func TestSignInFailureKeepsSignedOut(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer()
	defer srv.Close()
	srv.AddUser("Ada", "ada@example.com", "pw")
	svc, store := newService(t, srv)

	rec := &transitions{}
	svc.Subscribe(rec)

	_, err := svc.SignIn(context.Background(), "ada@example.com", "nope")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", remote.UserMessage(err))
	assert.False(t, svc.Authenticated())
	assert.Empty(t, rec.all())

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, persisted.Authenticated())
}

func TestValidationRejectsBeforeNetwork(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer()
	defer srv.Close()
	svc, _ := newService(t, srv)
	ctx := context.Background()

	_, err := svc.SignIn(ctx, " ", "pw")
	assert.ErrorIs(t, err, ErrEmailRequired)
	_, err = svc.SignIn(ctx, "a@b.c", "")
	assert.ErrorIs(t, err, ErrPasswordRequired)
	_, err = svc.SignUp(ctx, "", "a@b.c", "pw")
	assert.ErrorIs(t, err, ErrNameRequired)
	assert.Empty(t, srv.Requests())
}

func TestStartAnnouncesPersistedState(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer()
	defer srv.Close()
	svc, store := newService(t, srv)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, credentials.Credentials{AccessToken: "persisted", FullName: "Grace"}))

	var got []bool
	svc.Subscribe(ListenerFunc(func(_ context.Context, authenticated bool) {
		got = append(got, authenticated)
	}))

	require.NoError(t, svc.Start(ctx))
	assert.Equal(t, []bool{true}, got)
	assert.Equal(t, "persisted", svc.Token())
	assert.Equal(t, "Grace", svc.Current().FullName)
}
