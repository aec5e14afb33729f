// Package root wires up the tux-copilot command tree.
package root

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ffrouin/tux-copilot/pkg/config"
)

type rootFlags struct {
	configPath string
	debug      bool
	logFile    string
}

// NewRootCmd builds the tux-copilot command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "tux-copilot",
		Short: "Terminal AI assistant backed by a Docker sandbox",
		Long: `tux-copilot is a terminal chat assistant. The model never touches the
host directly: every file it writes and every script it runs goes through an
ephemeral Docker container, with your working directory mounted at /workdir.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return flags.setupLogging()
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to the YAML configuration file")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "Append logs to a file instead of stderr")

	cmd.AddCommand(
		newRunCmd(&flags),
		newExecCmd(&flags),
		newBuildCmd(&flags),
		newSessionsCmd(&flags),
		newToolServerCmd(&flags),
		newVersionCmd(),
	)

	return cmd
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (f *rootFlags) setupLogging() error {
	level := slog.LevelInfo
	if f.debug || os.Getenv(config.EnvDebug) != "" {
		level = slog.LevelDebug
	}

	out := io.Writer(os.Stderr)
	if f.logFile != "" {
		file, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		out = file
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return nil
}
