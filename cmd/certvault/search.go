package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/certvault/pkg/core"
)

var (
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search field=value...",
	Short: "Search records",
	Long: `Search matches text fields by case-insensitive substring. For a "from"
date the record matches when its date is on or before the given one; for a
"to" date when it is on or after. All conditions must hold.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := parseAssignments(args)
		if err != nil {
			return err
		}

		store, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}

		found, err := store.Search(cmd.Context(), core.Query(fields))
		if err != nil {
			return err
		}

		if searchJSON {
			return printJSON(cmd.OutOrStdout(), found)
		}
		for _, rec := range found {
			printRecord(cmd.OutOrStdout(), store.Schema(), rec)
		}
		if len(found) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No matching records.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output in JSON format")
}
