package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ffrouin/tux-copilot/pkg/cli"
	"github.com/ffrouin/tux-copilot/pkg/config"
	"github.com/ffrouin/tux-copilot/pkg/environment"
	"github.com/ffrouin/tux-copilot/pkg/sandbox"
)

type buildFlags struct {
	root    *rootFlags
	noCache bool
	sudo    bool
	uid     int
	gid     int
}

func newBuildCmd(root *rootFlags) *cobra.Command {
	flags := buildFlags{root: root}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build or rebuild the sandbox image",
		Long: `Build the Docker image the sandbox runs in. The image is normally built
on first use; run this to rebuild it after changing the user mapping or to
pick up updated base packages.`,
		Example: `  # Rebuild from scratch
  tux-copilot build --no-cache

  # Bake in a different user and allow sudo inside the container
  tux-copilot build --uid 1001 --gid 1001 --sudo`,
		Args: cobra.NoArgs,
		RunE: flags.runBuildCommand,
	}

	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "Build without using the Docker layer cache")
	cmd.Flags().BoolVar(&flags.sudo, "sudo", false, "Grant the sandbox user passwordless sudo")
	cmd.Flags().IntVar(&flags.uid, "uid", -1, "Numeric uid baked into the image (defaults to the current user)")
	cmd.Flags().IntVar(&flags.gid, "gid", -1, "Numeric gid baked into the image (defaults to the current group)")

	return cmd
}

func (f *buildFlags) runBuildCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadOrDefault(ctx, f.root.configPath, environment.NewOSProvider())
	if err != nil {
		return err
	}
	if f.sudo {
		cfg.Sandbox.Sudo = true
	}
	if f.uid >= 0 || f.gid >= 0 {
		uid, gid := f.uid, f.gid
		if uid < 0 {
			uid = os.Getuid()
		}
		if gid < 0 {
			gid = os.Getgid()
		}
		cfg.Sandbox.User = fmt.Sprintf("%d:%d", uid, gid)
	}

	out := cli.NewPrinter(cmd.OutOrStdout())
	out.Plain("Building sandbox image " + cfg.Sandbox.Image + "...")

	engine := sandbox.NewDockerEngine(&cfg.Sandbox)
	if err := engine.BuildImage(ctx, f.noCache); err != nil {
		return fmt.Errorf("building sandbox image: %w", err)
	}

	out.Plain("Image " + cfg.Sandbox.Image + " is ready.")
	return nil
}
