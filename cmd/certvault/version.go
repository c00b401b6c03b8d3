package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/certvault"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of certvault",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "certvault version %s\n", certvault.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
