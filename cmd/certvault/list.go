package main

import (
	"github.com/spf13/cobra"
)

var (
	listJSON bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}

		records := store.All(cmd.Context())
		if listJSON {
			return printJSON(cmd.OutOrStdout(), records)
		}

		for _, rec := range records {
			printRecord(cmd.OutOrStdout(), store.Schema(), rec)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
}
