package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ffrouin/tux-copilot/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tux-copilot version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "tux-copilot version "+version.String())
		},
	}
}
