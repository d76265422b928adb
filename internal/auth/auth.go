// Package auth signs users in and out and tracks the authenticated state.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"lexchat/internal/credentials"
	"lexchat/internal/remote"
)

var (
	// ErrRemoteRequired indicates a Service configured without a backend.
	ErrRemoteRequired = errors.New("auth remote is required")
	// ErrStoreRequired indicates a Service configured without credential storage.
	ErrStoreRequired = errors.New("credentials store is required")
	// ErrEmailRequired indicates a blank email on sign up or sign in.
	ErrEmailRequired = errors.New("email is required")
	// ErrPasswordRequired indicates a blank password on sign up or sign in.
	ErrPasswordRequired = errors.New("password is required")
	// ErrNameRequired indicates a blank full name on sign up.
	ErrNameRequired = errors.New("full name is required")
	// ErrEmptyToken indicates a login response without an access token.
	ErrEmptyToken = errors.New("login returned an empty access token")
)

// Remote is the subset of the backend used for authentication.
type Remote interface {
	Signup(ctx context.Context, req remote.SignupRequest) (remote.SignupResponse, error)
	Login(ctx context.Context, req remote.LoginRequest) (remote.LoginResponse, error)
}

// CredentialStore persists credentials across process restarts.
type CredentialStore interface {
	Load(ctx context.Context) (credentials.Credentials, error)
	Save(ctx context.Context, creds credentials.Credentials) error
	Clear(ctx context.Context) error
}

// Listener observes authentication transitions.
type Listener interface {
	AuthChanged(ctx context.Context, authenticated bool)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, authenticated bool)

// AuthChanged calls f.
func (f ListenerFunc) AuthChanged(ctx context.Context, authenticated bool) { f(ctx, authenticated) }

// Config configures a Service.
type Config struct {
	Remote Remote
	Store  CredentialStore
	Logger zerolog.Logger
}

// Service owns the current credentials. It implements remote.TokenSource.
type Service struct {
	remote Remote
	store  CredentialStore
	logger zerolog.Logger

	mu        sync.RWMutex
	current   credentials.Credentials
	listeners []Listener
}

// New constructs a Service. Call Start to load persisted credentials.
func New(cfg Config) (*Service, error) {
	if cfg.Remote == nil {
		return nil, ErrRemoteRequired
	}
	if cfg.Store == nil {
		return nil, ErrStoreRequired
	}
	return &Service{
		remote: cfg.Remote,
		store:  cfg.Store,
		logger: cfg.Logger,
	}, nil
}

// Subscribe registers l for future transitions.
func (s *Service) Subscribe(l Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Start reads persisted credentials and announces the initial state to listeners.
func (s *Service) Start(ctx context.Context) error {
	creds, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	s.mu.Lock()
	s.current = creds
	s.mu.Unlock()

	s.logger.Debug().Bool("authenticated", creds.Authenticated()).Msg("credentials loaded")
	s.broadcast(ctx, creds.Authenticated())
	return nil
}

// SignUp registers an account and returns the server's confirmation text.
// It does not sign the user in.
func (s *Service) SignUp(ctx context.Context, fullName, email, password string) (string, error) {
	req := remote.SignupRequest{
		FullName: strings.TrimSpace(fullName),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	switch {
	case req.FullName == "":
		return "", ErrNameRequired
	case req.Email == "":
		return "", ErrEmailRequired
	case req.Password == "":
		return "", ErrPasswordRequired
	}

	resp, err := s.remote.Signup(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// SignIn exchanges credentials for a token, persists it and notifies listeners.
func (s *Service) SignIn(ctx context.Context, email, password string) (remote.LoginResponse, error) {
	req := remote.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if req.Email == "" {
		return remote.LoginResponse{}, ErrEmailRequired
	}
	if req.Password == "" {
		return remote.LoginResponse{}, ErrPasswordRequired
	}

	resp, err := s.remote.Login(ctx, req)
	if err != nil {
		return remote.LoginResponse{}, err
	}
	if strings.TrimSpace(resp.AccessToken) == "" {
		return remote.LoginResponse{}, ErrEmptyToken
	}

	creds := credentials.Credentials{AccessToken: resp.AccessToken, FullName: resp.FullName}
	if err := s.store.Save(ctx, creds); err != nil {
		return remote.LoginResponse{}, fmt.Errorf("save credentials: %w", err)
	}
	s.mu.Lock()
	s.current = creds
	s.mu.Unlock()

	s.logger.Info().Str("user", resp.FullName).Msg("signed in")
	s.broadcast(ctx, true)
	return resp, nil
}

// SignOut clears persisted credentials and notifies listeners.
func (s *Service) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.current = credentials.Credentials{}
	s.mu.Unlock()

	err := s.store.Clear(ctx)
	s.logger.Info().Msg("signed out")
	s.broadcast(ctx, false)
	if err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// Current returns the in-memory credentials.
func (s *Service) Current() credentials.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Authenticated reports whether a token is held.
func (s *Service) Authenticated() bool {
	return s.Current().Authenticated()
}

// Token returns the bearer token, or "" when signed out.
func (s *Service) Token() string {
	return s.Current().AccessToken
}

func (s *Service) broadcast(ctx context.Context, authenticated bool) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		l.AuthChanged(ctx, authenticated)
	}
}
