package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

// ID is a server-issued identifier. The backend sends integers; the client treats
// them as opaque strings.
type ID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric ids as numbers, everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// JSONSchema describes ID for contract schemas.
func (ID) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{{Type: "integer"}, {Type: "string"}},
	}
}

// String returns the id text.
func (id ID) String() string { return string(id) }

// timestampLayouts covers RFC 3339 and the naive ISO forms Python emits for
// timezone-less datetimes. Naive values are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp is a server datetime.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses any of the accepted server datetime layouts.
func ParseTimestamp(raw string) (Timestamp, error) {
	value := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return Timestamp{Time: parsed}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// UnmarshalJSON decodes a datetime string; null and "" leave the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON encodes the time as RFC 3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// JSONSchema describes Timestamp for contract schemas.
func (Timestamp) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Format: "date-time"}
}

// SignupRequest is the body of POST /authenticate/signup.
type SignupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupResponse is the success body of POST /authenticate/signup.
type SignupResponse struct {
	Message string `json:"message,omitempty"`
}

// LoginRequest is the body of POST /authenticate/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the success body of POST /authenticate/login.
type LoginResponse struct {
	AccessToken       string `json:"access_token"`
	TokenType         string `json:"token_type"`
	FullName          string `json:"full_name"`
	NewConversationID ID     `json:"new_conversation_id,omitempty"`
}

// Conversation is one conversation summary.
type Conversation struct {
	ID        ID        `json:"id"`
	Title     string    `json:"title"`
	CreatedAt Timestamp `json:"created_at"`
}

// CreateConversationRequest is the body of POST /conversations/.
type CreateConversationRequest struct {
	Title string `json:"title,omitempty"`
}

// Message is one persisted conversation turn.
type Message struct {
	ID        ID        `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`
}

// ConversationWithMessages is the body of GET /conversations/{id}.
type ConversationWithMessages struct {
	Conversation
	Messages []Message `json:"messages"`
}

// AddMessageRequest is the body of POST /conversations/{id}/messages.
type AddMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskRequest is the body of POST /ask/{id}.
type AskRequest struct {
	Prompt string `json:"prompt"`
}

// AskResponse is the success body of POST /ask/{id}.
type AskResponse struct {
	Response string `json:"response"`
}

// AskDocumentResponse is the success body of POST /ask_pdf/{id}.
type AskDocumentResponse struct {
	Answer string `json:"answer"`
}

// File is the binary part of a document ask.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}
