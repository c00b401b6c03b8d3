package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	updateFields []string
)

var updateCmd = &cobra.Command{
	Use:   "update [serial]",
	Short: "Update fields of a record",
	Long:  `Update overwrites only the fields given with --set; the others keep their values.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serial, err := parseSerial(args[0])
		if err != nil {
			return err
		}
		fields, err := parseAssignments(updateFields)
		if err != nil {
			return err
		}

		store, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}

		if _, err := store.Update(withChangeReason(cmd.Context()), serial, toInput(fields)); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Record %d updated.\n", serial)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringArrayVar(&updateFields, "set", nil, "Field assignment field=value (repeatable)")
}
