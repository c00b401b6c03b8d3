package core

import "context"

// Repository defines the contract for persisting records.
// Each record is one durable unit addressed by its serial number.
type Repository interface {
	// Initialize ensures the underlying storage is ready (e.g. create directories).
	Initialize(ctx context.Context) error

	// Save persists a record, replacing any previous version.
	Save(ctx context.Context, rec Record) error

	// Get retrieves a persisted record by serial number.
	Get(ctx context.Context, serial int) (Record, error)

	// List returns every persisted record.
	List(ctx context.Context) ([]Record, error)

	// Delete removes a persisted record.
	Delete(ctx context.Context, serial int) error
}

// Watchable defines an interface for repositories that can report changes
// made outside the process.
type Watchable interface {
	Watch(ctx context.Context) (<-chan Event, error)
}
