package certvault

import (
	"context"
	"log/slog"

	"github.com/aretw0/certvault/internal/platform"
	"github.com/aretw0/certvault/pkg/core"
)

// --- Types ---

// Store is the record store returned by New and Open.
type Store = core.Store

// Record is a persisted certificate record.
type Record = core.Record

// Input carries raw field values for Create and Update.
type Input = core.Input

// Query maps field names to search terms.
type Query = core.Query

// --- Configuration ---

// Option defines a functional option for configuring the store.
type Option = platform.Option

// WithLogger sets the logger for the store and its repository.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRepository allows injecting a custom storage adapter.
func WithRepository(repo core.Repository) Option {
	return platform.WithRepository(repo)
}

// WithPrefix sets the record file name prefix. Defaults to "ssl".
func WithPrefix(prefix string) Option {
	return platform.WithPrefix(prefix)
}

// WithFormat selects the record file format: "json" (default) or "yaml".
func WithFormat(format string) Option {
	return platform.WithFormat(format)
}

// WithMustExist ensures the records directory must already exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithVersioning commits every change to Git.
func WithVersioning(enabled bool) Option {
	return platform.WithVersioning(enabled)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithWatcherErrorHandler registers a callback for errors in the watch loop.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// WithEventBuffer sets the size of the watch event buffer.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// --- Factory ---

// New creates a Store over the records directory dir using schema.
func New(ctx context.Context, dir string, schema *core.Schema, opts ...Option) (*Store, error) {
	return platform.New(ctx, dir, schema, opts...)
}

// Open loads the field settings at settingsPath and creates a Store over dir.
func Open(ctx context.Context, dir, settingsPath string, opts ...Option) (*Store, error) {
	schema, err := core.LoadSchema(settingsPath)
	if err != nil {
		return nil, err
	}
	return platform.New(ctx, dir, schema, opts...)
}

// Init initializes a repository explicitly.
func Init(ctx context.Context, dir string, opts ...Option) (core.Repository, error) {
	return platform.Init(ctx, dir, opts...)
}

// --- Utils ---

// FindSettings looks upwards from startDir for a uiSettings file.
func FindSettings(startDir string) (string, error) {
	return platform.FindSettings(startDir)
}

// ResolvePath determines the actual records directory based on safety rules.
func ResolvePath(userPath string, forceTemp bool) string {
	return platform.ResolvePath(userPath, forceTemp)
}
