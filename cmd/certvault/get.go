package main

import (
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get [serial]",
	Short: "Print one record as JSON",
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

		rec, err := store.Get(cmd.Context(), serial)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
