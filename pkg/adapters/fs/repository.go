package fs

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/certvault/pkg/core"
	"github.com/aretw0/certvault/pkg/git"
)

const (
	// DefaultPrefix is the file name prefix of record files.
	DefaultPrefix = "ssl"
	// DefaultFormat is the serialization format of record files.
	DefaultFormat = "json"

	ownWriteWindow = time.Second
)

// Repository implements core.Repository with one file per record, named
// <prefix><serial><ext>, optionally committing every change to Git.
type Repository struct {
	Path       string
	config     Config
	serializer Serializer
	git        *git.Client

	mu            sync.RWMutex
	watcherActive bool
	lastEvent     *time.Time
	own           map[string]time.Time
}

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path         string
	Prefix       string // defaults to "ssl"
	Format       string // "json" (default) or "yaml"
	MustExist    bool
	Versioning   bool // commit every change to a Git repository at Path
	Logger       *slog.Logger
	ErrorHandler func(error)
	EventBuffer  int
}

// NewRepository creates a new filesystem-backed repository.
func NewRepository(config Config) *Repository {
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	if config.Format == "" {
		config.Format = DefaultFormat
	}
	if config.Format == "yml" {
		config.Format = "yaml"
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	return &Repository{
		Path:       config.Path,
		config:     config,
		serializer: DefaultSerializers()[config.Format],
		git:        git.NewClient(config.Path, "", config.Logger),
		own:        make(map[string]time.Time),
	}
}

// Initialize performs the necessary setup for the repository (mkdir, git init).
func (r *Repository) Initialize(ctx context.Context) error {
	if r.serializer == nil {
		return fmt.Errorf("unsupported record format %q", r.config.Format)
	}
	if strings.ContainsAny(r.config.Prefix, `*?[]{}\/`) {
		return fmt.Errorf("invalid record file prefix %q", r.config.Prefix)
	}

	if r.config.MustExist {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("records path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("records path is not a directory: %s", r.Path)
		}
	} else {
		if err := os.MkdirAll(r.Path, 0755); err != nil {
			return fmt.Errorf("failed to create records directory: %w", err)
		}
	}

	if !r.config.Versioning {
		return nil
	}

	if !git.IsInstalled() {
		return fmt.Errorf("git is not installed")
	}

	unlock, err := r.git.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	wasNewRepo := false
	if !r.git.IsRepo() {
		if err := r.git.Init(); err != nil {
			return fmt.Errorf("failed to git init: %w", err)
		}
		wasNewRepo = true
	}

	mod, err := r.ensureIgnore()
	if err != nil {
		return fmt.Errorf("failed to ensure .gitignore: %w", err)
	}

	if mod && wasNewRepo {
		if err := r.git.Add(".gitignore"); err != nil {
			return fmt.Errorf("failed to add .gitignore: %w", err)
		}
		if err := r.git.Commit("chore: ignore lock and temp files"); err != nil {
			return fmt.Errorf("failed to commit .gitignore: %w", err)
		}
	}

	return nil
}

func (r *Repository) ensureIgnore() (bool, error) {
	ignorePath := filepath.Join(r.Path, ".gitignore")
	wanted := []string{r.git.LockPath(), TempFilePrefix + "*"}

	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(content), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, entry := range wanted {
		if !present[entry] {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	f, err := os.OpenFile(ignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		if _, err := f.WriteString("\n"); err != nil {
			return false, err
		}
	}

	if _, err := f.WriteString(strings.Join(missing, "\n") + "\n"); err != nil {
		return false, err
	}

	return true, nil
}

// Filename returns the file name holding the record with the given serial.
func (r *Repository) Filename(serial int) string {
	return r.config.Prefix + strconv.Itoa(serial) + r.serializer.Extension()
}

// parseSerial extracts the serial number from a record file name. Names that
// do not match <prefix><digits><ext> exactly are rejected.
func (r *Repository) parseSerial(name string) (int, bool) {
	ext := r.serializer.Extension()
	if len(name) <= len(r.config.Prefix)+len(ext) ||
		!strings.HasPrefix(name, r.config.Prefix) || !strings.HasSuffix(name, ext) {
		return 0, false
	}
	digits := name[len(r.config.Prefix) : len(name)-len(ext)]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	serial, err := strconv.Atoi(digits)
	if err != nil || strconv.Itoa(serial) != digits {
		// Leading zeros would alias another record's file.
		return 0, false
	}
	return serial, true
}

// Save persists a record to its file and commits it to Git when versioning.
//
// Workflow:
//  1. Serialize the record with the configured format.
//  2. Write it atomically to <prefix><serial><ext>.
//  3. (If versioning) 'git add' and 'git commit' with the change reason from ctx.
//
// A failed commit puts the previous file content back, so the change is
// neither on disk nor in history.
func (r *Repository) Save(ctx context.Context, rec core.Record) error {
	if rec.SerialNumber < 0 {
		return fmt.Errorf("invalid serial number %d", rec.SerialNumber)
	}

	filename := r.Filename(rec.SerialNumber)
	data, err := r.serializer.Serialize(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}

	path := filepath.Join(r.Path, filename)
	prev, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read previous version: %w", err)
	}
	existed := err == nil

	r.markOwn(filename)
	if err := writeFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	err = r.commit(ctx, filename, "update record "+strconv.Itoa(rec.SerialNumber), func() error {
		return r.git.Add(filename)
	})
	if err != nil {
		r.restore(filename, prev, existed)
		return err
	}
	return nil
}

// Get reads a record file.
func (r *Repository) Get(ctx context.Context, serial int) (core.Record, error) {
	return r.read(r.Filename(serial), serial)
}

func (r *Repository) read(filename string, serial int) (core.Record, error) {
	f, err := os.Open(filepath.Join(r.Path, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return core.Record{}, fmt.Errorf("%w: record %d", core.ErrNotFound, serial)
		}
		return core.Record{}, err
	}
	defer f.Close()

	rec, err := r.serializer.Parse(f)
	if err != nil {
		return core.Record{}, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	if rec.SerialNumber != serial {
		return core.Record{}, fmt.Errorf("%s holds serial number %d", filename, rec.SerialNumber)
	}
	return rec, nil
}

// List reads every record file in the directory, ordered by serial number.
// Files that do not follow the naming pattern are ignored.
func (r *Repository) List(ctx context.Context) ([]core.Record, error) {
	pattern := r.config.Prefix + "*" + r.serializer.Extension()
	names, err := doublestar.Glob(os.DirFS(r.Path), pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	records := make([]core.Record, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		serial, ok := r.parseSerial(name)
		if !ok {
			r.config.Logger.Debug("skipping file", "name", name)
			continue
		}

		rec, err := r.read(name, serial)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				// Removed between glob and open.
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}

	slices.SortFunc(records, func(a, b core.Record) int {
		return cmp.Compare(a.SerialNumber, b.SerialNumber)
	})
	return records, nil
}

// Delete removes a record file and commits the removal when versioning.
func (r *Repository) Delete(ctx context.Context, serial int) error {
	filename := r.Filename(serial)
	path := filepath.Join(r.Path, filename)

	prev, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: record %d", core.ErrNotFound, serial)
		}
		return fmt.Errorf("failed to read record file: %w", err)
	}

	r.markOwn(filename)
	if err := removeFileDurable(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: record %d", core.ErrNotFound, serial)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	err = r.commit(ctx, filename, "delete record "+strconv.Itoa(serial), func() error {
		return r.git.Rm(filename)
	})
	if err != nil {
		r.restore(filename, prev, true)
		return err
	}
	return nil
}

// restore undoes a file change whose commit failed: the previous content is
// written back, or the file is removed when it did not exist before.
func (r *Repository) restore(filename string, prev []byte, existed bool) {
	path := filepath.Join(r.Path, filename)
	r.markOwn(filename)

	var err error
	if existed {
		err = writeFileAtomic(path, prev, 0644)
	} else {
		err = removeFileDurable(path)
	}
	if err != nil && !os.IsNotExist(err) {
		r.config.Logger.Error("failed to restore record file", "file", filename, "error", err)
		return
	}
	r.config.Logger.Warn("change rolled back", "file", filename)
}

// commit stages and commits filename. When staging succeeded but the commit
// did not, the file is unstaged again.
func (r *Repository) commit(ctx context.Context, filename, fallback string, stage func() error) error {
	if !r.config.Versioning {
		return nil
	}

	unlock, err := r.git.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	if err := stage(); err != nil {
		return fmt.Errorf("failed to stage change: %w", err)
	}

	msg := fallback
	if val, ok := ctx.Value(core.ChangeReasonKey).(string); ok && val != "" {
		msg = val
	}

	if err := r.git.Commit(msg); err != nil {
		if rerr := r.git.Reset(filename); rerr != nil {
			r.config.Logger.Debug("failed to unstage", "file", filename, "error", rerr)
		}
		return fmt.Errorf("failed to git commit: %w", err)
	}
	return nil
}

// History returns the last n commit messages when versioning is enabled.
func (r *Repository) History(ctx context.Context, n int) ([]string, error) {
	if !r.config.Versioning {
		return nil, fmt.Errorf("versioning is disabled")
	}
	unlock, err := r.git.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()
	return r.git.Log(n)
}

// IsGitInstalled reports whether versioning can be enabled on this machine.
func IsGitInstalled() bool {
	return git.IsInstalled()
}

func (r *Repository) markOwn(filename string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.own[filename] = time.Now()
}

// isOwn reports whether filename was written by this process within the
// suppression window.
func (r *Repository) isOwn(filename string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.own[filename]
	if !ok {
		return false
	}
	if time.Since(at) > ownWriteWindow {
		delete(r.own, filename)
		return false
	}
	return true
}

var (
	_ core.Repository = (*Repository)(nil)
	_ core.Watchable  = (*Repository)(nil)
)
