package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/execbridge/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "execbridge %s\n", version.Full())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
