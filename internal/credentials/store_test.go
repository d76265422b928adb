package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "lexchat", "credentials.toml"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestNewStoreRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := NewStore("  "); !errors.Is(err, ErrPathRequired) {
		t.Fatalf("NewStore(blank) error = %v, want %v", err, ErrPathRequired)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	creds, err := newTestStore(t).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if creds.Authenticated() || creds.FullName != "" {
		t.Fatalf("Load() = %#v, want empty credentials", creds)
	}
}

func TestSaveLoadAndClear(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, Credentials{AccessToken: "token-1", FullName: "Ada Lovelace"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(raw), "access_token") || !strings.Contains(string(raw), "token-1") {
		t.Fatalf("credentials file = %q, want access_token key", raw)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(store.Path())
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if perm := info.Mode().Perm(); perm != fileMode {
			t.Fatalf("credentials mode = %v, want %v", perm, os.FileMode(fileMode))
		}
	}

	creds, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !creds.Authenticated() || creds.FullName != "Ada Lovelace" {
		t.Fatalf("Load() = %#v", creds)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() twice error = %v", err)
	}
	creds, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() after Clear error = %v", err)
	}
	if creds.Authenticated() {
		t.Fatalf("Load() after Clear = %#v, want empty", creds)
	}
}

func TestGetSetKeys(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, KeyFullName, "Grace"); err != nil {
		t.Fatalf("Set(full_name) error = %v", err)
	}
	if err := store.Set(ctx, KeyAccessToken, "abc"); err != nil {
		t.Fatalf("Set(access_token) error = %v", err)
	}

	name, err := store.Get(ctx, KeyFullName)
	if err != nil || name != "Grace" {
		t.Fatalf("Get(full_name) = %q, %v", name, err)
	}
	token, err := store.Get(ctx, KeyAccessToken)
	if err != nil || token != "abc" {
		t.Fatalf("Get(access_token) = %q, %v", token, err)
	}

	if err := store.Set(ctx, "refresh_token", "x"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("Set(unknown) error = %v, want %v", err, ErrUnknownKey)
	}
	if _, err := store.Get(ctx, "refresh_token"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("Get(unknown) error = %v, want %v", err, ErrUnknownKey)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(store.Path()), 0o700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(store.Path(), []byte("access_token = "), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := store.Load(context.Background()); err == nil {
		t.Fatalf("Load() expected decode error")
	}
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := newTestStore(t)
	if err := store.Save(ctx, Credentials{AccessToken: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Save(canceled) error = %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load(canceled) error = %v", err)
	}
}
