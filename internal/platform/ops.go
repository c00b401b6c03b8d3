package platform

import (
	"context"

	"github.com/aretw0/certvault/pkg/adapters/fs"
	"github.com/aretw0/certvault/pkg/core"
)

// Init prepares the records directory described by dir and opts and returns
// the configured core.Repository.
func Init(ctx context.Context, dir string, opts ...Option) (core.Repository, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.repository != nil {
		if err := o.repository.Initialize(ctx); err != nil {
			return nil, err
		}
		return o.repository, nil
	}

	repo := initFS(dir, o)
	if err := repo.Initialize(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// initFS builds the filesystem adapter from the parsed options.
func initFS(dir string, o *options) *fs.Repository {
	resolved := ResolvePath(dir, o.forceTemp)
	if o.logger != nil && resolved != dir {
		o.logger.Warn("running in SAFE MODE (temp directory)", "original_path", dir, "resolved_path", resolved)
	}

	return fs.NewRepository(fs.Config{
		Path:         resolved,
		Prefix:       o.prefix,
		Format:       o.format,
		MustExist:    o.mustExist,
		Versioning:   o.versioning,
		Logger:       o.logger,
		ErrorHandler: o.errorHandler,
		EventBuffer:  o.eventBuffer,
	})
}
