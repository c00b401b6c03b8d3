package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/certvault"
	"github.com/aretw0/certvault/pkg/core"
)

var (
	verbose      bool
	recordsDir   string
	settingsPath string
	format       string
	versioning   bool
	changeReason string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "certvault",
	Short: "A file-backed store for SSL certificate records",
	Long: `certvault keeps SSL certificate records as one JSON file per record.
The record fields are declared in a settings file (uiSettings.json), and the
records can be served over HTTP or managed from the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&recordsDir, "dir", "d", "./ssls", "Directory holding the record files")
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "settings", "s", "", "Field settings file (default: nearest uiSettings.json)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "json", "Record file format (json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&versioning, "versioning", false, "Commit every change to Git")
	rootCmd.PersistentFlags().StringVarP(&changeReason, "message", "m", "", "Change reason recorded as the commit message")
}

// loadSchema resolves the settings file from the flag or by searching
// upwards from the working directory.
func loadSchema() (*core.Schema, error) {
	path := settingsPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		found, err := certvault.FindSettings(wd)
		if err != nil {
			return nil, fmt.Errorf("no settings file: pass --settings (%w)", err)
		}
		path = found
	}
	slog.Debug("loading settings", "path", path)
	return core.LoadSchema(path)
}

// openStore builds the store from the persistent flags. Read-only commands
// pass mustExist so a mistyped --dir is reported instead of created.
func openStore(ctx context.Context, mustExist bool) (*core.Store, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}

	store, err := certvault.New(ctx, recordsDir, schema,
		certvault.WithLogger(slog.Default()),
		certvault.WithFormat(format),
		certvault.WithVersioning(versioning),
		certvault.WithMustExist(mustExist),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", recordsDir, err)
	}
	return store, nil
}

// withChangeReason attaches --message to ctx for the commit.
func withChangeReason(ctx context.Context) context.Context {
	if changeReason == "" {
		return ctx
	}
	return context.WithValue(ctx, core.ChangeReasonKey, changeReason)
}
