package fs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/certvault/pkg/core"
)

const (
	defaultEventBuffer = 16
	debounceWindow     = 50 * time.Millisecond
)

// Watch reports record files created, modified or removed by other processes.
// The returned channel is closed once ctx is done.
func (r *Repository) Watch(ctx context.Context) (<-chan core.Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(r.Path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", r.Path, err)
	}

	size := r.config.EventBuffer
	if size <= 0 {
		size = defaultEventBuffer
	}
	events := make(chan core.Event, size)

	w := &watchWorker{
		repo:      r,
		events:    events,
		watcher:   watcher,
		debouncer: newDebouncer(debounceWindow),
	}

	r.setWatcherActive(true)
	lifecycle.Go(ctx, w.run, lifecycle.WithErrorHandler(func(err error) {
		if r.config.ErrorHandler != nil {
			r.config.ErrorHandler(fmt.Errorf("watcher: %w", err))
			return
		}
		r.config.Logger.Error("watcher stopped", "error", err)
	}))

	return events, nil
}

type watchWorker struct {
	repo      *Repository
	events    chan core.Event
	watcher   *fsnotify.Watcher
	debouncer *debouncer
}

// run is the main event loop. It owns the events channel and closes it on exit.
func (w *watchWorker) run(ctx context.Context) (err error) {
	runCtx, cancel := context.WithCancel(ctx)

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if w.repo.config.Logger.Enabled(ctx, slog.LevelDebug) {
				w.repo.config.Logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			}
		}
		cancel()
		// Timers emit into events, so they must all be done before close.
		w.debouncer.stopAndWait(5 * time.Second)
		close(w.events)
		_ = w.watcher.Close()
		w.repo.setWatcherActive(false)
	}()

	for {
		select {
		case <-runCtx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.process(runCtx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.repo.config.Logger.Error("fsnotify error", "error", wErr)
			if w.repo.config.ErrorHandler != nil {
				w.repo.config.ErrorHandler(wErr)
			}
		}
	}
}

// process filters, maps and debounces a filesystem event.
func (w *watchWorker) process(ctx context.Context, event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	w.repo.config.Logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	serial, ok := w.repo.parseSerial(name)
	if !ok {
		return false
	}
	if w.repo.isOwn(name) {
		return false
	}

	eType := mapEventType(event)
	if eType == "" {
		return false
	}

	w.repo.recordEvent()
	w.debouncer.add(core.Event{
		Type:      eType,
		Serial:    serial,
		Timestamp: time.Now().Unix(),
	}, func(e core.Event) {
		select {
		case w.events <- e:
		case <-ctx.Done():
		}
	})
	return true
}

func mapEventType(event fsnotify.Event) core.EventType {
	switch {
	case event.Has(fsnotify.Create):
		return core.EventCreate
	case event.Has(fsnotify.Write):
		return core.EventModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return core.EventDelete
	default:
		return ""
	}
}

// debouncer coalesces events per serial number, emitting the latest one
// after the file has been quiet for the wait duration.
type debouncer struct {
	mu      sync.Mutex
	wait    time.Duration
	timers  map[int]*time.Timer
	pending map[int]core.Event
	stopped bool
	wg      sync.WaitGroup
}

func newDebouncer(wait time.Duration) *debouncer {
	return &debouncer{
		wait:    wait,
		timers:  make(map[int]*time.Timer),
		pending: make(map[int]core.Event),
	}
}

func (d *debouncer) add(e core.Event, emit func(core.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	key := e.Serial
	d.pending[key] = e
	if t, ok := d.timers[key]; ok && t.Stop() {
		t.Reset(d.wait)
		return
	}

	d.wg.Add(1)
	d.timers[key] = time.AfterFunc(d.wait, func() {
		defer d.wg.Done()

		d.mu.Lock()
		ev, ok := d.pending[key]
		delete(d.pending, key)
		delete(d.timers, key)
		stopped := d.stopped
		d.mu.Unlock()

		if ok && !stopped {
			emit(ev)
		}
	})
}

// stopAndWait drops pending events and waits for in-flight emits to return.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	for key, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, key)
	}
	d.pending = make(map[int]core.Event)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}
}
