package core

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Store holds the authoritative set of records and mirrors every mutation
// to its Repository. All operations are serialized behind one lock; writes
// reach the repository before they become visible in memory.
type Store struct {
	mu      sync.RWMutex
	repo    Repository
	schema  *Schema
	logger  *slog.Logger
	records []Record
	next    int
}

// NewStore creates a Store. Call Load before serving.
func NewStore(repo Repository, schema *Schema, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		repo:   repo,
		schema: schema,
		logger: logger,
	}
}

// Load rebuilds the in-memory state from the repository. The serial counter
// becomes one more than the highest serial found, or 0.
func (s *Store) Load(ctx context.Context) error {
	records, err := s.list(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = records
	s.next = nextSerial(records)
	s.logger.Debug("records loaded", "count", len(records), "next_serial", s.next)
	return nil
}

// Reload re-reads the repository after an outside change. Unlike Load it
// never moves the counter backwards, so serials are not reused.
func (s *Store) Reload(ctx context.Context) error {
	records, err := s.list(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = records
	s.next = max(s.next, nextSerial(records))
	s.logger.Info("records reloaded", "count", len(records), "next_serial", s.next)
	return nil
}

func (s *Store) list(ctx context.Context) ([]Record, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	slices.SortStableFunc(records, func(a, b Record) int {
		return cmp.Compare(a.SerialNumber, b.SerialNumber)
	})
	for _, rec := range records {
		if len(rec.Parameters) != s.schema.Len() {
			s.logger.Warn("record does not match schema", "serial", rec.SerialNumber,
				"fields", len(rec.Parameters), "expected", s.schema.Len())
		}
	}
	return records, nil
}

func nextSerial(records []Record) int {
	next := 0
	for _, rec := range records {
		if rec.SerialNumber >= next {
			next = rec.SerialNumber + 1
		}
	}
	return next
}

// Schema returns the field schema the store validates against.
func (s *Store) Schema() *Schema {
	return s.schema
}

// Create validates input and persists it as a new record.
// On failure the serial counter is unchanged.
func (s *Store) Create(ctx context.Context, input Input) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := Build(s.schema, input, s.next)
	if err != nil {
		s.logger.Debug("create rejected", "error", err)
		return Record{}, err
	}

	ctx = withReason(ctx, "create", rec.SerialNumber)
	if err := s.repo.Save(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("failed to persist record %d: %w", rec.SerialNumber, err)
	}

	s.records = append(s.records, rec)
	s.next++
	s.logger.Debug("record created", "serial", rec.SerialNumber)
	return rec.Clone(), nil
}

// All returns every record in creation order.
func (s *Store) All(ctx context.Context) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.Clone()
	}
	return out
}

// Get returns the record with the given serial number.
func (s *Store) Get(ctx context.Context, serial int) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(serial)
	if i < 0 {
		return Record{}, fmt.Errorf("%w: %d", ErrNotFound, serial)
	}
	return s.records[i].Clone(), nil
}

// Update overwrites the fields present in input. A rejected update leaves
// the record exactly as it was.
func (s *Store) Update(ctx context.Context, serial int, input Input) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(serial)
	if i < 0 {
		return Record{}, fmt.Errorf("%w: %d", ErrNotFound, serial)
	}

	merged, err := Merge(s.schema, s.records[i], input)
	if err != nil {
		s.logger.Debug("update rejected", "serial", serial, "error", err)
		return Record{}, err
	}

	ctx = withReason(ctx, "update", serial)
	if err := s.repo.Save(ctx, merged); err != nil {
		return Record{}, fmt.Errorf("failed to persist record %d: %w", serial, err)
	}

	s.records[i] = merged
	s.logger.Debug("record updated", "serial", serial)
	return merged.Clone(), nil
}

// Delete removes a record and returns its serial number, or -1 and
// ErrNotFound when there is no such record.
func (s *Store) Delete(ctx context.Context, serial int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(serial)
	if i < 0 {
		return -1, fmt.Errorf("%w: %d", ErrNotFound, serial)
	}

	ctx = withReason(ctx, "delete", serial)
	if err := s.repo.Delete(ctx, serial); err != nil && !errors.Is(err, ErrNotFound) {
		return -1, fmt.Errorf("failed to delete record %d: %w", serial, err)
	}

	s.records = slices.Delete(s.records, i, i+1)
	s.logger.Debug("record deleted", "serial", serial)
	return serial, nil
}

// DeleteAll removes every record and resets the serial counter to 0.
// Records are removed one at a time in serial order. When a removal fails,
// the records removed so far stay removed (memory follows the repository),
// the rest are kept, and the counter is left as it was so serials of the
// surviving records are never handed out again.
func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.records) > 0 {
		serial := s.records[0].SerialNumber
		if err := s.repo.Delete(withReason(ctx, "delete", serial), serial); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to delete record %d: %w", serial, err)
		}
		s.records = s.records[1:]
	}

	s.records = nil
	s.next = 0
	s.logger.Info("all records deleted")
	return nil
}

// Search filters the records by query. See the package level Search.
func (s *Store) Search(ctx context.Context, query Query) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found, err := Search(s.schema, s.records, query)
	if err != nil {
		return nil, err
	}
	for i := range found {
		found[i] = found[i].Clone()
	}
	return found, nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// NextSerial returns the serial number the next created record will get.
func (s *Store) NextSerial() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next
}

// Watch observes outside changes to the repository if supported.
func (s *Store) Watch(ctx context.Context) (<-chan Event, error) {
	w, ok := s.repo.(Watchable)
	if !ok {
		return nil, errors.New("repository does not support watching")
	}
	return w.Watch(ctx)
}

// Follow reloads the store whenever events arrive, coalescing bursts into a
// single reload. It returns when ctx is done or events is closed.
func (s *Store) Follow(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			s.logger.Debug("outside change detected", "event", e.String())

		drain:
			for {
				select {
				case _, ok := <-events:
					if !ok {
						break drain
					}
				default:
					break drain
				}
			}

			if err := s.Reload(ctx); err != nil {
				s.logger.Error("reload failed", "error", err)
			}
		}
	}
}

func (s *Store) indexOf(serial int) int {
	return slices.IndexFunc(s.records, func(r Record) bool {
		return r.SerialNumber == serial
	})
}

func withReason(ctx context.Context, action string, serial int) context.Context {
	if val, ok := ctx.Value(ChangeReasonKey).(string); ok && val != "" {
		return ctx
	}
	return context.WithValue(ctx, ChangeReasonKey, fmt.Sprintf("%s record %d", action, serial))
}
