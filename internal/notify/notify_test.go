package notify

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinterFormatsTitleAndMessage(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Notify(Notification{Level: LevelError, Title: "Error", Message: "Unauthorized"})
	p.Notify(Notification{Level: LevelInfo, Message: "  plain  "})

	assert.Equal(t, "[Error] Unauthorized\nplain\n", buf.String())
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder
	_, ok := r.Last()
	assert.False(t, ok)

	r.Notify(Notification{Level: LevelInfo, Title: "a"})
	r.Notify(Notification{Level: LevelError, Title: "b"})

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "b", last.Title)
	assert.Len(t, r.All(), 2)
}

func TestFuncAdapter(t *testing.T) {
	t.Parallel()

	var got Notification
	var n Notifier = Func(func(x Notification) { got = x })
	n.Notify(Notification{Title: "x"})
	Discard.Notify(Notification{Title: "ignored"})

	assert.Equal(t, "x", got.Title)
}
