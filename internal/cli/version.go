package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropshare/dropget/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dropget %s\n", version.String())
		},
	}
}
