package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/shuv1824/kisan/cmd.version=..."
var version = "dev"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kisan version %s\n", version)
		},
	}
}
