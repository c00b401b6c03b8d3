package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	purgeYes bool
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every record and reset serial numbers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !purgeYes {
			return fmt.Errorf("refusing to delete all records without --yes")
		}

		store, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}

		count := store.Len()
		if err := store.DeleteAll(withChangeReason(cmd.Context())); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d record(s) deleted.\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().BoolVar(&purgeYes, "yes", false, "Confirm deletion of all records")
}
