package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"lexchat/internal/chat"
	"lexchat/internal/chatapp"
	"lexchat/internal/remote"
	"lexchat/internal/session"
)

var errNotSignedIn = errors.New("not signed in; run `lexchat login` first")

func newSignupCmd(opts *rootOptions) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(opts, appOptions{errOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			message, err := a.auth.SignUp(cmd.Context(), name, email, password)
			if err != nil {
				return userError("signup", err)
			}
			if strings.TrimSpace(message) == "" {
				message = "Account created. You can now log in."
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	return cmd
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(opts, appOptions{errOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			resp, err := a.auth.SignIn(cmd.Context(), email, password)
			if err != nil {
				return userError("login", err)
			}
			who := strings.TrimSpace(resp.FullName)
			if who == "" {
				who = email
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", who)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(opts, appOptions{errOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			if err := a.auth.SignOut(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoAmICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(opts, appOptions{errOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			if err := a.auth.Start(cmd.Context()); err != nil {
				return fmt.Errorf("load credentials: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), whoAmI(a))
			return nil
		},
	}
}

func whoAmI(a *app) string {
	creds := a.auth.Current()
	if !creds.Authenticated() {
		return "Not signed in"
	}
	if name := strings.TrimSpace(creds.FullName); name != "" {
		return "Signed in as " + name
	}
	return "Signed in"
}

func newConversationsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(opts, appOptions{errOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			if err := a.startSession(cmd.Context()); err != nil {
				return err
			}
			list := a.manager.Conversations()
			if len(list) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No conversations")
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), chatapp.FormatConversations(list, a.manager.ActiveID()))
			return nil
		},
	}
}

func newNewCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start a new conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(opts, appOptions{errOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			if err := a.startSession(cmd.Context()); err != nil {
				return err
			}
			conv, err := a.manager.CreateConversation(cmd.Context())
			if err != nil {
				return errReported
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created conversation %s (%s)\n", conv.ID, conv.Title)
			return nil
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <conversation-id>",
		Short: "Print a conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts, appOptions{errOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			if err := a.startSession(cmd.Context()); err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			if err := a.manager.Select(cmd.Context(), id); err != nil {
				return fmt.Errorf("history %s: %w", id, err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), chatapp.FormatTranscript(a.manager.Messages(id)))
			return nil
		},
	}
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "ask <prompt...>",
		Short: "Ask a question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts, appOptions{errOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.startSession(ctx); err != nil {
				return err
			}
			if err := a.ensureActive(ctx, conversationID); err != nil {
				return err
			}
			convID := a.manager.ActiveID()
			if err := a.manager.SendText(ctx, strings.Join(args, " ")); err != nil {
				return intentError(err)
			}
			return printLastReply(cmd.OutOrStdout(), a.manager.Messages(convID))
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation id (default: most recent)")
	return cmd
}

func newAskPDFCmd(opts *rootOptions) *cobra.Command {
	var conversationID, path string
	cmd := &cobra.Command{
		Use:   "ask-pdf --file <path> <question...>",
		Short: "Upload a document and ask a question about it",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts, appOptions{errOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			doc, err := a.loadDocument(ctx, path)
			if err != nil {
				return fmt.Errorf("load document: %w", err)
			}
			if err := a.startSession(ctx); err != nil {
				return err
			}
			if err := a.ensureActive(ctx, conversationID); err != nil {
				return err
			}
			convID := a.manager.ActiveID()
			if err := a.manager.UploadFile(ctx, doc.File(), strings.Join(args, " ")); err != nil {
				return intentError(err)
			}
			return printLastReply(cmd.OutOrStdout(), a.manager.Messages(convID))
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation id (default: most recent)")
	cmd.Flags().StringVar(&path, "file", "", "Path to the document")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print JSON schemas for the backend contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schemas, err := remote.ContractSchemas()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(schemas); err != nil {
				return fmt.Errorf("encode schemas: %w", err)
			}
			return nil
		},
	}
}

// userError keeps the backend's own wording for API failures.
func userError(op string, err error) error {
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", op, remote.UserMessage(err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

// intentError passes through rejections the session does not notify about.
func intentError(err error) error {
	switch {
	case errors.Is(err, session.ErrNoActiveConversation),
		errors.Is(err, session.ErrConversationBusy),
		errors.Is(err, session.ErrEmptyMessage),
		errors.Is(err, session.ErrUnknownConversation):
		return err
	default:
		return errReported
	}
}

func printLastReply(out io.Writer, msgs []chat.Message) error {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleAssistant {
			_, _ = fmt.Fprintln(out, msgs[i].Content)
			return nil
		}
	}
	return errReported
}
