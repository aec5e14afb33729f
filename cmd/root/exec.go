package root

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ffrouin/tux-copilot/pkg/cli"
)

func newExecCmd(root *rootFlags) *cobra.Command {
	flags := chatFlags{root: root}

	cmd := &cobra.Command{
		Use:   "exec <message>",
		Short: "Send one message and print the final answer",
		Long: `Run a single assistant turn without entering the interactive loop.
Tool calls still go through the sandbox; only the final answer is printed,
so the output can be piped.`,
		Example: `  tux-copilot exec "list the five largest files under /workdir"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.runExecCommand(cmd, strings.Join(args, " "))
		},
	}
	flags.register(cmd)

	return cmd
}

func (f *chatFlags) runExecCommand(cmd *cobra.Command, message string) error {
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

	out := cli.NewPrinter(cmd.OutOrStdout())
	return cli.RunOnce(ctx, out, a.rt, a.newSession(), a.store, message)
}
