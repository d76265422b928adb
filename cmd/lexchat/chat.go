package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"lexchat/internal/chatapp"
	"lexchat/internal/session"
)

const maxInputLine = 1 << 20

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// shell serializes terminal output between the input loop and background sends.
type shell struct {
	mu       sync.Mutex
	out      io.Writer
	errOut   io.Writer
	revision uint64
	unread   map[string]int
}

func (s *shell) println(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.out, text)
}

func (s *shell) errorln(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.errOut, "error: "+text)
}

// observe announces replies that land in conversations other than the active one.
// Snapshots older than the last one seen are ignored.
func (s *shell) observe(snap session.Snapshot) {
	var fresh []string
	s.mu.Lock()
	if snap.Revision <= s.revision {
		s.mu.Unlock()
		return
	}
	s.revision = snap.Revision
	unread := make(map[string]int, len(snap.Conversations))
	for _, conv := range snap.Conversations {
		if conv.Unread > s.unread[conv.ID] {
			fresh = append(fresh, conv.ID)
		}
		unread[conv.ID] = conv.Unread
	}
	s.unread = unread
	s.mu.Unlock()

	for _, id := range fresh {
		s.println(fmt.Sprintf("New reply in conversation %s (/switch %s)", id, id))
	}
}

func runChat(ctx context.Context, opts *rootOptions, in io.Reader, out, errOut io.Writer) error {
	sh := &shell{out: out, errOut: errOut, unread: make(map[string]int)}
	a, err := buildApp(opts, appOptions{errOut: errOut, onChange: sh.observe})
	if err != nil {
		return err
	}
	if err := a.startSession(ctx); err != nil {
		return err
	}
	if a.manager.ActiveID() == "" {
		if _, err := a.manager.CreateConversation(ctx); err != nil {
			return errReported
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	env := chatapp.CommandEnv{
		Session:      a.manager,
		LoadDocument: a.loadDocument,
		WhoAmI: func() string {
			return a.auth.Current().FullName
		},
		Go: func(fn func()) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fn()
			}()
		},
		AppendOutput: sh.println,
		AppendError:  sh.errorln,
	}

	active := a.manager.ActiveID()
	sh.println(fmt.Sprintf("Conversation %s. Type /help for commands.", active))
	if msgs := a.manager.Messages(active); len(msgs) > 0 {
		sh.println(chatapp.FormatTranscript(msgs))
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxInputLine)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		if chatapp.Dispatch(ctx, scanner.Text(), env) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
