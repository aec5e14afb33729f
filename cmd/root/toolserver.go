package root

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ffrouin/tux-copilot/pkg/cli"
	"github.com/ffrouin/tux-copilot/pkg/config"
	"github.com/ffrouin/tux-copilot/pkg/environment"
	"github.com/ffrouin/tux-copilot/pkg/sandbox"
	"github.com/ffrouin/tux-copilot/pkg/tools"
	"github.com/ffrouin/tux-copilot/pkg/tools/builtin"
	"github.com/ffrouin/tux-copilot/pkg/toolserver"
)

type toolserverFlags struct {
	root       *rootFlags
	listenAddr string
}

func newToolServerCmd(root *rootFlags) *cobra.Command {
	flags := toolserverFlags{root: root}

	cmd := &cobra.Command{
		Use:   "toolserver",
		Short: "Expose the sandbox tools over HTTP",
		Long: `Start a minimal HTTP server that exposes the sandbox tools for remote
invocation. No model is involved; callers drive the tools directly.`,
		Example: `  # Start on the default port
  tux-copilot toolserver

  # Listen on a Unix socket
  tux-copilot toolserver --listen unix:///var/run/tux-copilot.sock

  # Call a tool using curl
  curl -X POST http://localhost:8080/tools/read_file \
    -H "Content-Type: application/json" \
    -d '{"arguments": "{\"path\": \"notes.txt\"}"}'`,
		Args: cobra.NoArgs,
		RunE: flags.runToolServerCommand,
	}

	cmd.Flags().StringVarP(&flags.listenAddr, "listen", "l", ":8080", "Address to listen on (host:port or unix:///path/to/socket)")

	return cmd
}

func (f *toolserverFlags) runToolServerCommand(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadOrDefault(ctx, f.root.configPath, environment.NewOSProvider())
	if err != nil {
		return err
	}

	engine := sandbox.NewDockerEngine(&cfg.Sandbox)
	toolsets := []tools.ToolSet{
		builtin.NewWorkspaceTool(&cfg.Sandbox, engine),
		builtin.NewExecTool(&cfg.Sandbox, engine),
		builtin.NewClockTool(),
	}

	if err := engine.EnsureImage(ctx); err != nil {
		return fmt.Errorf("preparing sandbox image: %w", err)
	}
	if err := startToolSets(ctx, toolsets); err != nil {
		return fmt.Errorf("starting toolsets: %w", err)
	}
	defer stopToolSets(toolsets)

	ln, err := listen(f.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.listenAddr, err)
	}

	out := cli.NewPrinter(cmd.OutOrStdout())
	out.Plain("Listening on " + ln.Addr().String())

	return toolserver.New(toolsets...).Serve(ctx, ln)
}

func listen(addr string) (net.Listener, error) {
	if path, ok := strings.CutPrefix(addr, "unix://"); ok {
		return net.Listen("unix", path)
	}
	return net.Listen("tcp", addr)
}

func startToolSets(ctx context.Context, toolsets []tools.ToolSet) error {
	for _, ts := range toolsets {
		s, ok := ts.(tools.Startable)
		if !ok {
			continue
		}
		if err := s.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func stopToolSets(toolsets []tools.ToolSet) {
	for _, ts := range toolsets {
		if s, ok := ts.(tools.Startable); ok {
			_ = s.Stop(context.Background())
		}
	}
}
