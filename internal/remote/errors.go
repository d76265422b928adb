package remote

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const fallbackErrorMessage = "Request failed"

var (
	// ErrBaseURLRequired indicates a client configured without a backend address.
	ErrBaseURLRequired = errors.New("base url is required")
	// ErrInvalidBaseURL indicates a malformed backend address.
	ErrInvalidBaseURL = errors.New("invalid base url")
	// ErrNotAuthenticated indicates an authenticated call attempted without a token.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrConversationIDRequired indicates a missing conversation id argument.
	ErrConversationIDRequired = errors.New("conversation id is required")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

// Error returns the server-provided message so it can be shown to users verbatim.
func (e *APIError) Error() string {
	return e.Message
}

// Unauthorized reports whether the backend rejected the credentials.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// newAPIError builds an APIError, preferring "detail" then "message" from a JSON body and
// falling back to the transport status text.
func newAPIError(statusCode int, status string, body []byte) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Status:     status,
		Message:    extractErrorMessage(statusCode, status, body),
	}
}

func extractErrorMessage(statusCode int, status string, body []byte) string {
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		detail := parsed.Get("detail")
		switch {
		case detail.Type == gjson.String && strings.TrimSpace(detail.Str) != "":
			return detail.Str
		case detail.IsArray():
			// FastAPI validation errors: [{"loc": [...], "msg": "...", "type": "..."}]
			if msg := detail.Get("0.msg").String(); strings.TrimSpace(msg) != "" {
				return msg
			}
		}
		if msg := parsed.Get("message"); msg.Type == gjson.String && strings.TrimSpace(msg.Str) != "" {
			return msg.Str
		}
	}
	if text := statusText(statusCode, status); text != "" {
		return text
	}
	return fallbackErrorMessage
}

// statusText mirrors what a browser exposes as Response.statusText: the reason phrase only.
func statusText(statusCode int, status string) string {
	trimmed := strings.TrimSpace(status)
	if code, rest, ok := strings.Cut(trimmed, " "); ok && code == strconv.Itoa(statusCode) {
		trimmed = strings.TrimSpace(rest)
	}
	if trimmed == "" {
		trimmed = http.StatusText(statusCode)
	}
	return trimmed
}

// UserMessage returns the text to show a user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return strings.TrimSpace(err.Error())
}

// IsUnauthenticated reports whether err means the user has no valid credentials.
func IsUnauthenticated(err error) bool {
	if errors.Is(err, ErrNotAuthenticated) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}
