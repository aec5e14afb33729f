package root

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ffrouin/tux-copilot/pkg/cli"
)

func newRunCmd(root *rootFlags) *cobra.Command {
	flags := chatFlags{root: root}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive chat session",
		Example: `  # Chat with the current directory mounted in the sandbox
  tux-copilot run

  # Use a different project directory and persist the session
  tux-copilot run --workdir ~/src/demo --store ~/.tux-copilot/sessions.db`,
		Args: cobra.NoArgs,
		RunE: flags.runChatCommand,
	}
	flags.register(cmd)

	return cmd
}

func (f *chatFlags) runChatCommand(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := f.loadConfig(ctx)
	if err != nil {
		return err
	}

	a, err := newAssembly(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.start(ctx); err != nil {
		return err
	}

	if f.root.configPath != "" {
		if err := a.watchConfig(ctx, f.root.configPath); err != nil {
			slog.Warn("config watcher unavailable", "error", err)
		}
	}

	return cli.RunInteractive(ctx, cli.NewTerminalPrinter(), a.rt, a.newSession(), a.store, cmd.InOrStdin())
}
