package platform

import (
	"log/slog"

	"github.com/aretw0/certvault/pkg/core"
)

// options holds the internal configuration for a record store.
type options struct {
	repository   core.Repository
	logger       *slog.Logger
	prefix       string
	format       string
	mustExist    bool
	versioning   bool
	forceTemp    bool
	errorHandler func(error)
	eventBuffer  int
}

// Option defines a functional option for configuring the store.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		prefix: "ssl",
		format: "json",
	}
}

// WithLogger sets the logger for the store and its repository.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRepository allows injecting a custom storage adapter (e.g. a mock).
// If provided, the default filesystem adapter will be skipped.
func WithRepository(repo core.Repository) Option {
	return func(o *options) {
		o.repository = repo
	}
}

// WithPrefix sets the record file name prefix. Defaults to "ssl".
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithFormat selects the record file format: "json" (default) or "yaml".
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithMustExist ensures the records directory must already exist.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithVersioning commits every change to a Git repository in the records
// directory. Disabled by default.
func WithVersioning(enabled bool) Option {
	return func(o *options) {
		o.versioning = enabled
	}
}

// WithForceTemp re-roots the records directory under the system temp
// directory (useful for testing and demos).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithWatcherErrorHandler registers a callback for errors raised inside the
// watch loop, which are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}

// WithEventBuffer sets the size of the watch event buffer.
// Zero means default.
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.eventBuffer = size
	}
}
