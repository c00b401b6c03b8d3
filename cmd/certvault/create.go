package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	createFields []string
)

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a record",
	Long: `Create a record from field assignments. Every field declared in the
settings file must be given, e.g.

  certvault create --set issuedTo=Cisco --set issuedBy=Google \
    --set validFrom=2016-12-01 --set validTo=2017-12-01`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := parseAssignments(createFields)
		if err != nil {
			return err
		}

		store, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}

		rec, err := store.Create(withChangeReason(cmd.Context()), toInput(fields))
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Record %d created.\n", rec.SerialNumber)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringArrayVar(&createFields, "set", nil, "Field assignment field=value (repeatable)")
}
