package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"lexchat/internal/auth"
	"lexchat/internal/config"
	"lexchat/internal/credentials"
	"lexchat/internal/document"
	"lexchat/internal/logging"
	"lexchat/internal/notify"
	"lexchat/internal/remote"
	"lexchat/internal/session"
)

type rootOptions struct {
	configPath string
	baseURL    string
	logLevel   string
}

// app wires the client, credentials, auth service and session manager.
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	client  *remote.Client
	auth    *auth.Service
	manager *session.Manager
}

type appOptions struct {
	errOut   io.Writer
	onChange func(session.Snapshot)
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{Path: strings.TrimSpace(opts.configPath)})
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if baseURL := strings.TrimSpace(opts.baseURL); baseURL != "" {
		cfg.Server.BaseURL = baseURL
	}
	if level := strings.TrimSpace(opts.logLevel); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}
	return cfg, nil
}

func buildApp(opts *rootOptions, appOpts appOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	settings, err := cfg.RemoteSettings()
	if err != nil {
		return nil, fmt.Errorf("resolve server settings: %w", err)
	}
	logger := logging.Setup(cfg.Logging, appOpts.errOut)

	store, err := credentials.NewStore(cfg.CredentialsPath())
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}

	var authSvc *auth.Service
	client, err := remote.New(remote.Config{
		BaseURL: settings.BaseURL,
		Timeout: settings.Timeout,
		Tokens: remote.TokenFunc(func() string {
			return authSvc.Token()
		}),
		Retry: remote.RetryPolicy{
			MaxRetries: settings.Retry.MaxRetries,
			BaseDelay:  settings.Retry.BaseDelay,
			MaxDelay:   settings.Retry.MaxDelay,
		},
		Logger: logger.With().Str("component", "remote").Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	authSvc, err = auth.New(auth.Config{
		Remote: client,
		Store:  store,
		Logger: logger.With().Str("component", "auth").Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("create auth service: %w", err)
	}

	manager, err := session.New(session.Config{
		Remote:   client,
		Notifier: notify.NewPrinter(appOpts.errOut),
		Logger:   logger.With().Str("component", "session").Logger(),
		TopK:     cfg.Upload.TopK,
		OnChange: appOpts.onChange,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		auth:    authSvc,
		manager: manager,
	}, nil
}

// startSession loads persisted credentials and hydrates the session from them.
func (a *app) startSession(ctx context.Context) error {
	a.auth.Subscribe(a.manager)
	if err := a.auth.Start(ctx); err != nil {
		return err
	}
	if !a.auth.Authenticated() {
		return errNotSignedIn
	}
	return nil
}

// ensureActive selects conversationID, or makes sure some conversation is active.
func (a *app) ensureActive(ctx context.Context, conversationID string) error {
	if id := strings.TrimSpace(conversationID); id != "" {
		return a.manager.Select(ctx, id)
	}
	if a.manager.ActiveID() != "" {
		return nil
	}
	if _, err := a.manager.CreateConversation(ctx); err != nil {
		return errReported
	}
	return nil
}

func (a *app) loadDocument(ctx context.Context, path string) (document.Document, error) {
	return document.Load(ctx, path, document.Options{
		MaxBytes:   a.cfg.Upload.MaxBytes,
		Extensions: a.cfg.Upload.Extensions,
	})
}
