package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/certvault"
	"github.com/aretw0/certvault/pkg/adapters/fs"
)

var (
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the latest changes recorded in Git",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := certvault.Init(cmd.Context(), recordsDir,
			certvault.WithLogger(slog.Default()),
			certvault.WithFormat(format),
			certvault.WithVersioning(true),
			certvault.WithMustExist(true),
		)
		if err != nil {
			return err
		}

		fsRepo, ok := repo.(*fs.Repository)
		if !ok {
			return fmt.Errorf("repository does not keep history")
		}

		entries, err := fsRepo.History(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintln(cmd.OutOrStdout(), e)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
}
