package platform

import (
	"context"
	"fmt"

	"github.com/aretw0/certvault/pkg/core"
)

// New initializes the records directory, wires a core.Store over it and
// loads the existing records.
//
//	store, err := certvault.New("./ssls", schema, certvault.WithVersioning(true))
func New(ctx context.Context, dir string, schema *core.Schema, opts ...Option) (*core.Store, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: no schema", core.ErrInvalidSchema)
	}

	repo, err := Init(ctx, dir, opts...)
	if err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	store := core.NewStore(repo, schema, o.logger)
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
