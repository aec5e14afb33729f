package root

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ffrouin/tux-copilot/pkg/chat"
	"github.com/ffrouin/tux-copilot/pkg/config"
	"github.com/ffrouin/tux-copilot/pkg/environment"
	"github.com/ffrouin/tux-copilot/pkg/session"
)

type sessionsFlags struct {
	root  *rootFlags
	store string
}

func newSessionsCmd(root *rootFlags) *cobra.Command {
	flags := sessionsFlags{root: root}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored chat sessions",
	}
	cmd.PersistentFlags().StringVar(&flags.store, "store", "", "SQLite file for session persistence")

	cmd.AddCommand(
		newSessionsListCmd(&flags),
		newSessionsShowCmd(&flags),
		newSessionsDeleteCmd(&flags),
	)

	return cmd
}

// openStore resolves the store path from the flag or the config file.
// Sessions only persist when a SQLite path is configured.
func (f *sessionsFlags) openStore(ctx context.Context) (*session.SQLiteStore, error) {
	path := f.store
	if path == "" {
		cfg, err := config.LoadOrDefault(ctx, f.root.configPath, environment.NewOSProvider())
		if err != nil {
			return nil, err
		}
		path = cfg.Session.Store
	}
	if path == "" {
		return nil, errors.New("no session store configured; pass --store or set session.store in the config")
	}
	return session.NewSQLiteStore(path)
}

func newSessionsListCmd(flags *sessionsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := flags.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.GetSessions(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 4, 8, 4, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tMESSAGES\tTOKENS\tTITLE")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					s.ID,
					formatCreatedAt(s.CreatedAt),
					len(s.Messages),
					s.InputTokens+s.OutputTokens,
					s.Title,
				)
			}
			return w.Flush()
		},
	}
}

func newSessionsShowCmd(flags *sessionsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print the transcript of a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := flags.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s (%s)\n", sess.ID, sess.CreatedAt.Local().Format(time.DateTime))
			if sess.Title != "" {
				fmt.Fprintf(out, "Title: %s\n", sess.Title)
			}
			if sess.Workdir != "" {
				fmt.Fprintf(out, "Workdir: %s\n", sess.Workdir)
			}
			fmt.Fprintf(out, "Tokens: %d in / %d out\n\n", sess.InputTokens, sess.OutputTokens)

			for _, msg := range sess.Messages {
				printTranscriptMessage(out, msg)
			}
			return nil
		},
	}
}

func newSessionsDeleteCmd(flags *sessionsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := flags.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
			return nil
		},
	}
}

// formatCreatedAt keeps recent sessions readable ("12 minutes ago") and
// switches to an absolute timestamp once relative wording stops helping.
func formatCreatedAt(t time.Time) string {
	if time.Since(t) > 5*time.Hour {
		return t.Local().Format("Jan 2, 2006 15:04")
	}
	return humanize.Time(t)
}

func printTranscriptMessage(out io.Writer, msg chat.Message) {
	switch msg.Role {
	case chat.MessageRoleUser:
		fmt.Fprintf(out, "You> %s\n", msg.Content)
	case chat.MessageRoleAssistant:
		if msg.Content != "" {
			fmt.Fprintf(out, "Tux> %s\n", msg.Content)
		}
		for _, call := range msg.ToolCalls {
			fmt.Fprintf(out, "  [tool call] %s(%s)\n", call.Function.Name, call.Function.Arguments)
		}
	case chat.MessageRoleTool:
		content := msg.Content
		if idx := strings.IndexByte(content, '\n'); idx >= 0 {
			content = content[:idx] + " ..."
		}
		fmt.Fprintf(out, "  [tool result] %s\n", content)
	}
}
