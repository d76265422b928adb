// Package notify carries user-visible notifications from the session manager to
// whatever presents them.
package notify

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Level classifies a notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is one dismissible user-facing message.
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Notifier receives notifications.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a plain function to Notifier.
type Func func(n Notification)

// Notify calls f(n).
func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Printer writes notifications as single colored lines.
type Printer struct {
	mu         sync.Mutex
	out        io.Writer
	infoColor  *color.Color
	errorColor *color.Color
}

// NewPrinter writes to out. Colors follow fatih/color's terminal detection.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out:        out,
		infoColor:  color.New(color.FgGreen),
		errorColor: color.New(color.FgRed, color.Bold),
	}
}

// Notify prints "[title] message".
func (p *Printer) Notify(n Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.infoColor
	if n.Level == LevelError {
		c = p.errorColor
	}
	line := strings.TrimSpace(n.Message)
	if title := strings.TrimSpace(n.Title); title != "" {
		line = fmt.Sprintf("[%s] %s", title, line)
	}
	_, _ = c.Fprintln(p.out, line)
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify records n.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of every recorded notification.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}
