package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [serial]",
	Short: "Delete a record",
	Long:  `Delete permanently removes a record file (and commits the removal with --versioning).`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serial, err := parseSerial(args[0])
		if err != nil {
			return err
		}

		store, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}

		if _, err := store.Delete(withChangeReason(cmd.Context()), serial); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Record %d deleted.\n", serial)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
