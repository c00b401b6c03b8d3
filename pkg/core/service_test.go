package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/certvault/pkg/core"
)

// MockRepository implements core.Repository in memory.
type MockRepository struct {
	mu       sync.Mutex
	records  map[int]core.Record
	reasons  []string
	failNext error
	failOn   map[int]error // Delete of these serials fails
}

func NewMockRepository() *MockRepository {
	return &MockRepository{records: make(map[int]core.Record)}
}

func (m *MockRepository) Initialize(ctx context.Context) error { return nil }

func (m *MockRepository) Save(ctx context.Context, rec core.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	if reason, ok := ctx.Value(core.ChangeReasonKey).(string); ok {
		m.reasons = append(m.reasons, reason)
	}
	m.records[rec.SerialNumber] = rec.Clone()
	return nil
}

func (m *MockRepository) Get(ctx context.Context, serial int) (core.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[serial]
	if !ok {
		return core.Record{}, core.ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *MockRepository) List(ctx context.Context) ([]core.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Record
	for _, rec := range m.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (m *MockRepository) Delete(ctx context.Context, serial int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn[serial]; err != nil {
		return err
	}
	if _, ok := m.records[serial]; !ok {
		return core.ErrNotFound
	}
	delete(m.records, serial)
	return nil
}

func newStore(t *testing.T, repo core.Repository) *core.Store {
	t.Helper()
	store := core.NewStore(repo, testSchema(t), nil)
	require.NoError(t, store.Load(context.Background()))
	return store
}

func infosysInput() core.Input {
	return core.Input{
		"issuedTo":  "Infosys",
		"issuedBy":  "TCS",
		"validFrom": "1988-05-18",
		"validTo":   "2000-06-02",
	}
}

func TestStore_Create(t *testing.T) {
	repo := NewMockRepository()
	store := newStore(t, repo)
	ctx := context.Background()

	a, err := store.Create(ctx, ciscoInput())
	require.NoError(t, err)
	assert.Equal(t, 0, a.SerialNumber)

	b, err := store.Create(ctx, infosysInput())
	require.NoError(t, err)
	assert.Equal(t, 1, b.SerialNumber)
	assert.Len(t, b.Parameters, 4)

	assert.Equal(t, 2, store.NextSerial())
	assert.Equal(t, []int{0, 1}, serials(store.All(ctx)))
	assert.Len(t, repo.records, 2)
	assert.Equal(t, []string{"create record 0", "create record 1"}, repo.reasons)
}

func TestStore_CreateRejected(t *testing.T) {
	repo := NewMockRepository()
	store := newStore(t, repo)
	ctx := context.Background()

	input := ciscoInput()
	delete(input, "issuedBy")
	_, err := store.Create(ctx, input)
	assert.ErrorIs(t, err, core.ErrMissingField)

	input = ciscoInput()
	input["validFrom"], input["validTo"] = "2017-12-01", "2016-12-01"
	_, err = store.Create(ctx, input)
	assert.ErrorIs(t, err, core.ErrInvalidRange)

	assert.Equal(t, 0, store.NextSerial(), "counter must not advance on rejection")
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, repo.records)

	rec, err := store.Create(ctx, ciscoInput())
	require.NoError(t, err)
	assert.Equal(t, 0, rec.SerialNumber)
}

func TestStore_CreatePersistFailure(t *testing.T) {
	repo := NewMockRepository()
	store := newStore(t, repo)

	repo.failNext = errors.New("disk full")
	_, err := store.Create(context.Background(), ciscoInput())
	require.Error(t, err)
	assert.False(t, core.IsValidation(err))
	assert.Equal(t, 0, store.NextSerial())
	assert.Equal(t, 0, store.Len())
}

func TestStore_Get(t *testing.T) {
	store := newStore(t, NewMockRepository())
	ctx := context.Background()

	created, err := store.Create(ctx, ciscoInput())
	require.NoError(t, err)

	got, err := store.Get(ctx, created.SerialNumber)
	require.NoError(t, err)
	assert.True(t, got.Equal(created))

	_, err = store.Get(ctx, -1)
	assert.ErrorIs(t, err, core.ErrNotFound)

	// Returned records are copies.
	got.Parameters["issuedTo"] = core.TextValue("tampered")
	again, err := store.Get(ctx, created.SerialNumber)
	require.NoError(t, err)
	assert.Equal(t, "Cisco", again.Parameters["issuedTo"].Text)
}

func TestStore_Update(t *testing.T) {
	repo := NewMockRepository()
	store := newStore(t, repo)
	ctx := context.Background()

	created, err := store.Create(ctx, ciscoInput())
	require.NoError(t, err)

	t.Run("Full", func(t *testing.T) {
		updated, err := store.Update(ctx, created.SerialNumber, core.Input{
			"issuedTo":  "Infosys",
			"issuedBy":  "TCS",
			"validFrom": "2015-11-05",
			"validTo":   "2017-04-06",
		})
		require.NoError(t, err)
		assert.Equal(t, created.SerialNumber, updated.SerialNumber)
		assert.Equal(t, "Infosys", updated.Parameters["issuedTo"].Text)
		assert.True(t, updated.Parameters["validFrom"].Date.Equal(date("2015-11-05")))

		persisted := repo.records[created.SerialNumber]
		assert.True(t, persisted.Equal(updated))
	})

	t.Run("Partial", func(t *testing.T) {
		before, err := store.Get(ctx, created.SerialNumber)
		require.NoError(t, err)

		updated, err := store.Update(ctx, created.SerialNumber, core.Input{"issuedBy": "Wipro"})
		require.NoError(t, err)
		assert.Equal(t, "Wipro", updated.Parameters["issuedBy"].Text)
		for _, param := range []string{"issuedTo", "validFrom", "validTo"} {
			assert.True(t, before.Parameters[param].Equal(updated.Parameters[param]), param)
		}
	})

	t.Run("Rejected Range Does Not Mutate", func(t *testing.T) {
		before, err := store.Get(ctx, created.SerialNumber)
		require.NoError(t, err)

		_, err = store.Update(ctx, created.SerialNumber, core.Input{
			"issuedTo":  "Someone",
			"validFrom": "2017-11-05",
			"validTo":   "2015-04-06",
		})
		assert.ErrorIs(t, err, core.ErrInvalidRange)

		after, err := store.Get(ctx, created.SerialNumber)
		require.NoError(t, err)
		assert.True(t, after.Equal(before))
		assert.True(t, repo.records[created.SerialNumber].Equal(before))
	})

	t.Run("Not Found", func(t *testing.T) {
		_, err := store.Update(ctx, -1, infosysInput())
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestStore_Delete(t *testing.T) {
	repo := NewMockRepository()
	store := newStore(t, repo)
	ctx := context.Background()

	created, err := store.Create(ctx, ciscoInput())
	require.NoError(t, err)
	_, err = store.Create(ctx, infosysInput())
	require.NoError(t, err)

	n, err := store.Delete(ctx, created.SerialNumber)
	require.NoError(t, err)
	assert.Equal(t, created.SerialNumber, n)

	_, err = store.Get(ctx, created.SerialNumber)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NotContains(t, repo.records, created.SerialNumber)

	n, err = store.Delete(ctx, -10)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, -1, n)
	assert.Equal(t, 1, store.Len())

	// Serials are never reused after a delete.
	rec, err := store.Create(ctx, ciscoInput())
	require.NoError(t, err)
	assert.Equal(t, 2, rec.SerialNumber)
}

func TestStore_DeleteAll(t *testing.T) {
	repo := NewMockRepository()
	store := newStore(t, repo)
	ctx := context.Background()

	for range 3 {
		_, err := store.Create(ctx, ciscoInput())
		require.NoError(t, err)
	}

	require.NoError(t, store.DeleteAll(ctx))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, store.NextSerial())
	assert.Empty(t, repo.records)

	_, err := store.Get(ctx, 0)
	assert.ErrorIs(t, err, core.ErrNotFound)

	rec, err := store.Create(ctx, ciscoInput())
	require.NoError(t, err)
	assert.Equal(t, 0, rec.SerialNumber)
}

func TestStore_DeleteAllPartialFailure(t *testing.T) {
	repo := NewMockRepository()
	store := newStore(t, repo)
	ctx := context.Background()

	for range 3 {
		_, err := store.Create(ctx, ciscoInput())
		require.NoError(t, err)
	}
	repo.failOn = map[int]error{1: errors.New("disk full")}

	err := store.DeleteAll(ctx)
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, serials(store.All(ctx)))
	assert.Len(t, repo.records, 2)
	assert.Equal(t, 3, store.NextSerial())

	repo.failOn = nil
	require.NoError(t, store.DeleteAll(ctx))
	assert.Equal(t, 0, store.NextSerial())
}

func TestStore_Search(t *testing.T) {
	store := newStore(t, NewMockRepository())
	ctx := context.Background()

	_, err := store.Create(ctx, ciscoInput())
	require.NoError(t, err)
	_, err = store.Create(ctx, infosysInput())
	require.NoError(t, err)

	found, err := store.Search(ctx, core.Query{"issuedTo": "i"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, serials(found))

	found, err = store.Search(ctx, core.Query{"validFrom": "1989-05-18"})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, serials(found))
}

func TestStore_LoadAndReload(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	schema := testSchema(t)

	for _, serial := range []int{4, 1, 9} {
		rec, err := core.Build(schema, ciscoInput(), serial)
		require.NoError(t, err)
		repo.records[serial] = rec
	}

	store := newStore(t, repo)
	assert.Equal(t, []int{1, 4, 9}, serials(store.All(ctx)))
	assert.Equal(t, 10, store.NextSerial())

	// An outside delete of the highest serial must not lower the counter.
	delete(repo.records, 9)
	require.NoError(t, store.Reload(ctx))
	assert.Equal(t, []int{1, 4}, serials(store.All(ctx)))
	assert.Equal(t, 10, store.NextSerial())

	// A fresh load derives the counter from what is on disk.
	fresh := newStore(t, repo)
	assert.Equal(t, 5, fresh.NextSerial())
}

func TestStore_Follow(t *testing.T) {
	repo := NewMockRepository()
	store := newStore(t, repo)
	schema := testSchema(t)

	rec, err := core.Build(schema, ciscoInput(), 3)
	require.NoError(t, err)
	repo.records[3] = rec

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan core.Event, 4)
	done := make(chan error, 1)
	go func() { done <- store.Follow(ctx, events) }()

	events <- core.Event{Type: core.EventCreate, Serial: 3}
	events <- core.Event{Type: core.EventModify, Serial: 3}

	assert.Eventually(t, func() bool { return store.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 4, store.NextSerial())

	close(events)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after channel close")
	}
}

func TestStore_WatchUnsupported(t *testing.T) {
	store := newStore(t, NewMockRepository())
	_, err := store.Watch(context.Background())
	assert.Error(t, err)
}

func TestStore_State(t *testing.T) {
	store := newStore(t, NewMockRepository())
	_, err := store.Create(context.Background(), ciscoInput())
	require.NoError(t, err)

	state, ok := store.State().(core.StoreState)
	require.True(t, ok)
	assert.Equal(t, 1, state.Records)
	assert.Equal(t, 1, state.NextSerial)
	assert.Equal(t, 4, state.Fields)
	assert.Equal(t, "repository", state.RepositoryType)
	assert.Equal(t, "store", store.ComponentType())
}
