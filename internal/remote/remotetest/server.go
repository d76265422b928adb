// Package remotetest runs an in-process fake of the legal-assistant backend.
package remotetest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
)

const (
	placeholderTitle = "New Conversation"
	naiveLayout      = "2006-01-02T15:04:05.000000"
	maxUploadBytes   = 32 << 20
)

// AskFunc produces the assistant reply for a text ask.
type AskFunc func(conversationID, prompt string) (string, error)

// DocumentFunc produces the answer for a document ask.
type DocumentFunc func(conversationID string, upload Upload) (string, error)

// Upload is what the server received on /ask_pdf.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
	Question    string
	TopK        int
}

type user struct {
	fullName string
	password string
}

type message struct {
	id        int
	role      string
	content   string
	createdAt time.Time
}

type conversation struct {
	id        int
	owner     string
	title     string
	createdAt time.Time
	messages  []message
}

type failure struct {
	route  string
	status int
	body   string
}

type ctxKey struct{}

// Server is a fake backend implementing the REST contract in memory.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	users         map[string]user
	tokens        map[string]string
	conversations map[int]*conversation
	nextConvID    int
	nextMsgID     int
	nextToken     int
	clock         time.Time
	failures      []failure
	requests      []string
	uploads       []Upload
	askFn         AskFunc
	documentFn    DocumentFunc
}

// NewServer starts a fake backend. Call Close when done.
func NewServer() *Server {
	s := &Server{
		users:         make(map[string]user),
		tokens:        make(map[string]string),
		conversations: make(map[int]*conversation),
		clock:         time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
		askFn: func(_ string, prompt string) (string, error) {
			return "Echo: " + prompt, nil
		},
		documentFn: func(_ string, upload Upload) (string, error) {
			return fmt.Sprintf("Answer about %s: %s", upload.FileName, upload.Question), nil
		},
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.injectFailures)

	r.Post("/authenticate/signup", s.handleSignup)
	r.Post("/authenticate/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/conversations/", s.handleListConversations)
		r.Post("/conversations/", s.handleCreateConversation)
		r.Get("/conversations/{id}", s.handleGetConversation)
		r.Get("/conversations/{id}/messages", s.handleListMessages)
		r.Post("/conversations/{id}/messages", s.handleAddMessage)
		r.Post("/ask/{id}", s.handleAsk)
		r.Post("/ask_pdf/{id}", s.handleAskDocument)
	})
	return r
}

// SetAsk replaces the text-ask reply generator.
func (s *Server) SetAsk(fn AskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.askFn = fn
}

// SetAskDocument replaces the document-ask reply generator.
func (s *Server) SetAskDocument(fn DocumentFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documentFn = fn
}

// AddUser registers an account directly.
func (s *Server) AddUser(fullName, email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = user{fullName: fullName, password: password}
}

// IssueToken returns a valid bearer token for email.
func (s *Server) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueTokenLocked(email)
}

// SeedConversation stores a conversation owned by email and returns its id.
func (s *Server) SeedConversation(email, title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strconv.Itoa(s.createConversationLocked(email, title).id)
}

// SeedMessage appends a persisted message and returns its id.
func (s *Server) SeedMessage(conversationID, role, content string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.lookupLocked(conversationID)
	if conv == nil {
		return ""
	}
	return strconv.Itoa(s.appendMessageLocked(conv, role, content).id)
}

// FailNext makes the next request matching "METHOD /path" answer with status and body.
func (s *Server) FailNext(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{route: method + " " + path, status: status, body: body})
}

// Requests returns "METHOD /path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Uploads returns every document received on /ask_pdf.
func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

// Title returns the stored title of a conversation.
func (s *Server) Title(conversationID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.lookupLocked(conversationID)
	if conv == nil {
		return "", false
	}
	return conv.title, true
}

// MessageCount returns how many messages are persisted for a conversation.
func (s *Server) MessageCount(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.lookupLocked(conversationID)
	if conv == nil {
		return 0
	}
	return len(conv.messages)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		s.mu.Lock()
		for i, f := range s.failures {
			if f.route != route {
				continue
			}
			s.failures = append(s.failures[:i], s.failures[i+1:]...)
			s.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, f.body)
			return
		}
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondError(w, http.StatusForbidden, "Not authenticated")
			return
		}
		s.mu.Lock()
		email, known := s.tokens[strings.TrimSpace(token)]
		s.mu.Unlock()
		if !known {
			respondError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, email)))
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if !strings.Contains(payload.Email, "@") {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{
				"loc":  []string{"body", "email"},
				"msg":  "value is not a valid email address",
				"type": "value_error.email",
			}},
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[payload.Email]; exists {
		respondError(w, http.StatusBadRequest, "Email already registered")
		return
	}
	s.users[payload.Email] = user{fullName: payload.FullName, password: payload.Password}
	respondJSON(w, http.StatusOK, map[string]string{"message": "User created successfully"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[payload.Email]
	if !ok || u.password != payload.Password {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token := s.issueTokenLocked(payload.Email)
	conv := s.createConversationLocked(payload.Email, placeholderTitle)
	respondJSON(w, http.StatusOK, map[string]any{
		"access_token":        token,
		"token_type":          "bearer",
		"full_name":           u.fullName,
		"new_conversation_id": conv.id,
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	email := ownerFrom(r)

	s.mu.Lock()
	owned := make([]*conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		if conv.owner == email {
			owned = append(owned, conv)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].createdAt.Equal(owned[j].createdAt) {
			return owned[i].id > owned[j].id
		}
		return owned[i].createdAt.After(owned[j].createdAt)
	})
	out := make([]map[string]any, 0, len(owned))
	for _, conv := range owned {
		out = append(out, conversationJSON(conv))
	}
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title *string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && err != io.EOF {
		respondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	title := placeholderTitle
	if payload.Title != nil && *payload.Title != "" {
		title = *payload.Title
	}

	s.mu.Lock()
	conv := s.createConversationLocked(ownerFrom(r), title)
	out := conversationJSON(conv)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.ownedLocked(r)
	if conv == nil {
		respondError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	out := conversationJSON(conv)
	out["messages"] = messagesJSON(conv.messages)
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.ownedLocked(r)
	if conv == nil {
		respondError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	respondJSON(w, http.StatusOK, messagesJSON(conv.messages))
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.ownedLocked(r)
	if conv == nil {
		respondError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	msg := s.appendMessageLocked(conv, payload.Role, payload.Content)
	respondJSON(w, http.StatusOK, messageJSON(msg))
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	s.mu.Lock()
	conv := s.lookupLocked(id)
	askFn := s.askFn
	s.mu.Unlock()
	if conv == nil {
		respondError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	answer, err := askFn(id, payload.Prompt)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	s.renamePlaceholderLocked(conv, payload.Prompt)
	s.appendMessageLocked(conv, "user", payload.Prompt)
	s.appendMessageLocked(conv, "assistant", answer)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]string{"response": answer})
}

func (s *Server) handleAskDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read file")
		return
	}
	question := r.FormValue("question")
	if question == "" {
		respondError(w, http.StatusUnprocessableEntity, "question is required")
		return
	}
	topK := 5
	if raw := r.FormValue("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, "top_k must be an integer")
			return
		}
		topK = parsed
	}
	upload := Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Question:    question,
		TopK:        topK,
	}

	id := chi.URLParam(r, "id")
	s.mu.Lock()
	s.uploads = append(s.uploads, upload)
	conv := s.lookupLocked(id)
	documentFn := s.documentFn
	s.mu.Unlock()
	if conv == nil {
		respondError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	answer, err := documentFn(id, upload)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	s.renamePlaceholderLocked(conv, question)
	s.appendMessageLocked(conv, "user", question)
	s.appendMessageLocked(conv, "assistant", answer)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) issueTokenLocked(email string) string {
	s.nextToken++
	token := fmt.Sprintf("token-%d", s.nextToken)
	s.tokens[token] = email
	return token
}

func (s *Server) tickLocked() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *Server) createConversationLocked(email, title string) *conversation {
	s.nextConvID++
	conv := &conversation{
		id:        s.nextConvID,
		owner:     email,
		title:     title,
		createdAt: s.tickLocked(),
	}
	s.conversations[conv.id] = conv
	return conv
}

func (s *Server) appendMessageLocked(conv *conversation, role, content string) message {
	s.nextMsgID++
	msg := message{id: s.nextMsgID, role: role, content: content, createdAt: s.tickLocked()}
	conv.messages = append(conv.messages, msg)
	return msg
}

func (s *Server) renamePlaceholderLocked(conv *conversation, prompt string) {
	if conv.title == placeholderTitle {
		conv.title = titleFromPrompt(prompt)
	}
}

func (s *Server) lookupLocked(rawID string) *conversation {
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return nil
	}
	return s.conversations[id]
}

func (s *Server) ownedLocked(r *http.Request) *conversation {
	conv := s.lookupLocked(chi.URLParam(r, "id"))
	if conv == nil || conv.owner != ownerFrom(r) {
		return nil
	}
	return conv
}

func ownerFrom(r *http.Request) string {
	email, _ := r.Context().Value(ctxKey{}).(string)
	return email
}

// titleFromPrompt derives a short title from the first two words of a prompt.
func titleFromPrompt(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) == 0 {
		return "Conversation"
	}
	if len(words) > 2 {
		words = words[:2]
	}
	runes := []rune(strings.ToLower(strings.Join(words, " ")))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func conversationJSON(conv *conversation) map[string]any {
	return map[string]any{
		"id":         conv.id,
		"title":      conv.title,
		"created_at": conv.createdAt.Format(naiveLayout),
	}
}

func messageJSON(msg message) map[string]any {
	return map[string]any{
		"id":         msg.id,
		"role":       msg.role,
		"content":    msg.content,
		"created_at": msg.createdAt.Format(naiveLayout),
	}
}

func messagesJSON(msgs []message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, messageJSON(msg))
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}
