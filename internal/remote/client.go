// Package remote is the HTTP client for the legal-assistant backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultTopK is the number of document passages the backend considers by default.
	DefaultTopK = 5

	defaultTimeout       = 60 * time.Second
	maxResponseBodyBytes = 8 << 20
	defaultFileMIME      = "application/pdf"
)

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

// Token returns the token text.
func (s StaticToken) Token() string { return string(s) }

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

// Token calls f.
func (f TokenFunc) Token() string { return f() }

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Tokens     TokenSource
	Retry      RetryPolicy
	Logger     zerolog.Logger
}

// Client calls the backend REST endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	retry   RetryPolicy
	logger  zerolog.Logger
}

// New constructs a Client with normalized defaults.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrBaseURLRequired
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBaseURL, base)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: base,
		http:    httpClient,
		tokens:  cfg.Tokens,
		retry:   cfg.Retry.withDefaults(),
		logger:  cfg.Logger,
	}, nil
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (SignupResponse, error) {
	var out SignupResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/authenticate/signup", false, req, &out); err != nil {
		return SignupResponse{}, fmt.Errorf("signup: %w", err)
	}
	return out, nil
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	var out LoginResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/authenticate/login", false, req, &out); err != nil {
		return LoginResponse{}, fmt.Errorf("login: %w", err)
	}
	return out, nil
}

// ListConversations returns the user's conversations, newest first.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := c.getJSON(ctx, "/conversations/", &out); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// CreateConversation creates a conversation. An empty title lets the backend pick one.
func (c *Client) CreateConversation(ctx context.Context, title string) (Conversation, error) {
	var out Conversation
	body := CreateConversationRequest{Title: title}
	if err := c.sendJSON(ctx, http.MethodPost, "/conversations/", true, body, &out); err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return out, nil
}

// GetConversation returns a conversation together with its messages.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (ConversationWithMessages, error) {
	path, err := conversationPath("/conversations/", conversationID, "")
	if err != nil {
		return ConversationWithMessages{}, err
	}
	var out ConversationWithMessages
	if err := c.getJSON(ctx, path, &out); err != nil {
		return ConversationWithMessages{}, fmt.Errorf("get conversation %s: %w", conversationID, err)
	}
	return out, nil
}

// ListMessages returns the messages of one conversation in server order.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	path, err := conversationPath("/conversations/", conversationID, "/messages")
	if err != nil {
		return nil, err
	}
	var out []Message
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("list messages %s: %w", conversationID, err)
	}
	return out, nil
}

// AddMessage persists one message without asking the model.
func (c *Client) AddMessage(ctx context.Context, conversationID string, req AddMessageRequest) (Message, error) {
	path, err := conversationPath("/conversations/", conversationID, "/messages")
	if err != nil {
		return Message{}, err
	}
	var out Message
	if err := c.sendJSON(ctx, http.MethodPost, path, true, req, &out); err != nil {
		return Message{}, fmt.Errorf("add message %s: %w", conversationID, err)
	}
	return out, nil
}

// Ask sends a text prompt and returns the assistant's reply.
func (c *Client) Ask(ctx context.Context, conversationID, prompt string) (AskResponse, error) {
	path, err := conversationPath("/ask/", conversationID, "")
	if err != nil {
		return AskResponse{}, err
	}
	var out AskResponse
	if err := c.sendJSON(ctx, http.MethodPost, path, true, AskRequest{Prompt: prompt}, &out); err != nil {
		return AskResponse{}, fmt.Errorf("ask %s: %w", conversationID, err)
	}
	return out, nil
}

// AskDocument uploads a document with a question as multipart form data.
func (c *Client) AskDocument(ctx context.Context, conversationID string, file File, question string, topK int) (AskDocumentResponse, error) {
	path, err := conversationPath("/ask_pdf/", conversationID, "")
	if err != nil {
		return AskDocumentResponse{}, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	body, contentType, err := encodeDocumentForm(file, question, topK)
	if err != nil {
		return AskDocumentResponse{}, fmt.Errorf("encode document form: %w", err)
	}

	var out AskDocumentResponse
	if err := c.do(ctx, http.MethodPost, path, true, body, contentType, &out); err != nil {
		return AskDocumentResponse{}, fmt.Errorf("ask document %s: %w", conversationID, err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return withRetry(ctx, c.retry, func() error {
		return c.do(ctx, http.MethodGet, path, true, nil, "", out)
	})
}

func (c *Client) sendJSON(ctx context.Context, method, path string, auth bool, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, method, path, auth, raw, "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, body []byte, contentType string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if auth {
		token := ""
		if c.tokens != nil {
			token = strings.TrimSpace(c.tokens.Token())
		}
		if token == "" {
			return ErrNotAuthenticated
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, resp.Status, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func conversationPath(prefix, conversationID, suffix string) (string, error) {
	id := strings.TrimSpace(conversationID)
	if id == "" {
		return "", ErrConversationIDRequired
	}
	return prefix + url.PathEscape(id) + suffix, nil
}

func encodeDocumentForm(file File, question string, topK int) ([]byte, string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	mimeType := strings.TrimSpace(file.ContentType)
	if mimeType == "" {
		mimeType = defaultFileMIME
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", mimeType)
	part, err := form.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", err
	}
	if err := form.WriteField("question", question); err != nil {
		return nil, "", err
	}
	if err := form.WriteField("top_k", strconv.Itoa(topK)); err != nil {
		return nil, "", err
	}
	if err := form.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), form.FormDataContentType(), nil
}
