package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	schemaYAML bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Validate and print the field settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := loadSchema()
		if err != nil {
			return err
		}

		if schemaYAML {
			var doc map[string]any
			if err := json.Unmarshal(schema.Document(), &doc); err != nil {
				return err
			}
			out, err := yaml.Marshal(doc)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		}

		for _, f := range schema.Fields() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", f.Param, f.Kind)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().BoolVar(&schemaYAML, "yaml", false, "Print the settings document as YAML")
}
