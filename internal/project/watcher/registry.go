package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/ralphmgr/internal/event"
)

// Registry owns the set of active file watches, keyed by absolute path.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu sync.Mutex

	fsw    *fsnotify.Watcher
	pub    event.Publisher
	config Config

	entries map[string]*entry
	dirs    map[string]int

	// Stats
	startTime     time.Time
	notifications atomic.Int64
	emitted       atomic.Int64
	skipped       atomic.Int64
	totalErrors   atomic.Int64
	lastError     atomic.Pointer[error]

	// Lifecycle
	closed   bool
	closedWg sync.WaitGroup
}

// entry is one armed watch.
type entry struct {
	path string

	active atomic.Bool

	// timerMu guards the pending reconciliation timer.
	timerMu sync.Mutex
	timer   *time.Timer

	// deliverMu is held across a read and publish. Deactivation takes it
	// to wait out a reconciliation already in progress.
	deliverMu sync.Mutex
}

// NewRegistry creates a registry that publishes file.changed events to pub.
func NewRegistry(pub event.Publisher, opts ...Option) (*Registry, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if pub == nil {
		pub = event.Discard
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	r := &Registry{
		fsw:       fsw,
		pub:       pub,
		config:    config,
		entries:   make(map[string]*entry),
		dirs:      make(map[string]int),
		startTime: time.Now(),
	}

	r.closedWg.Add(1)
	go r.processLoop()

	return r, nil
}

// Watch arms a watch on path. If path is already watched the existing
// watch is torn down first and then re-armed. On failure nothing remains
// armed for path.
func (r *Registry) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	if err := checkReadableFile(absPath); err != nil {
		return fmt.Errorf("watch %s: %w", absPath, err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}

	old := r.detachLocked(absPath)

	dir := filepath.Dir(absPath)
	if err := r.retainDirLocked(dir); err != nil {
		r.mu.Unlock()
		deactivate(old)
		return fmt.Errorf("watch %s: %w", absPath, err)
	}

	e := &entry{path: absPath}
	e.active.Store(true)
	r.entries[absPath] = e
	r.mu.Unlock()

	deactivate(old)
	r.config.Logger.Debug("watch armed", "path", absPath)
	return nil
}

// Unwatch tears down the watch for path. It is a successful no-op when
// path is not watched. Once Unwatch returns no file.changed event for path
// is published by this registry until it is watched again.
//
// Unwatch waits for an in-progress reconciliation of path to finish, so it
// must not be called from a file.changed handler for the same path.
func (r *Registry) Unwatch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("unwatch %s: %w", path, err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	e := r.detachLocked(absPath)
	r.mu.Unlock()

	if e != nil {
		deactivate(e)
		r.config.Logger.Debug("watch released", "path", absPath)
	}
	return nil
}

// UnwatchAll tears down every active watch.
func (r *Registry) UnwatchAll() {
	r.mu.Lock()
	removed := make([]*entry, 0, len(r.entries))
	for p := range r.entries {
		removed = append(removed, r.detachLocked(p))
	}
	r.mu.Unlock()

	for _, e := range removed {
		deactivate(e)
	}
}

// Close releases every watch and the underlying backend. It is idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	removed := make([]*entry, 0, len(r.entries))
	for p := range r.entries {
		removed = append(removed, r.detachLocked(p))
	}
	r.closed = true
	r.mu.Unlock()

	for _, e := range removed {
		deactivate(e)
	}

	// Closing the backend closes its channels, which ends processLoop.
	err := r.fsw.Close()
	r.closedWg.Wait()
	return err
}

// IsWatching returns true if path is being watched.
func (r *Registry) IsWatching(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[absPath]
	return ok
}

// WatchedPaths returns all watched paths, sorted.
func (r *Registry) WatchedPaths() []string {
	r.mu.Lock()
	paths := make([]string, 0, len(r.entries))
	for p := range r.entries {
		paths = append(paths, p)
	}
	r.mu.Unlock()

	sort.Strings(paths)
	return paths
}

// Stats returns registry statistics.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	watched, dirs := len(r.entries), len(r.dirs)
	r.mu.Unlock()

	var last error
	if p := r.lastError.Load(); p != nil {
		last = *p
	}

	return Stats{
		WatchedPaths:  watched,
		WatchedDirs:   dirs,
		Notifications: r.notifications.Load(),
		Emitted:       r.emitted.Load(),
		Skipped:       r.skipped.Load(),
		Errors:        r.totalErrors.Load(),
		LastError:     last,
		StartTime:     r.startTime,
	}
}

// detachLocked removes the entry for absPath and releases its directory.
// The returned entry, if any, still has to be deactivated. r.mu must be held.
func (r *Registry) detachLocked(absPath string) *entry {
	e, ok := r.entries[absPath]
	if !ok {
		return nil
	}
	delete(r.entries, absPath)
	r.releaseDirLocked(filepath.Dir(absPath))
	return e
}

// retainDirLocked arms dir on first use. r.mu must be held.
func (r *Registry) retainDirLocked(dir string) error {
	if r.dirs[dir] == 0 {
		if err := r.fsw.Add(dir); err != nil {
			return err
		}
	}
	r.dirs[dir]++
	return nil
}

// releaseDirLocked disarms dir when its last file is released.
// r.mu must be held.
func (r *Registry) releaseDirLocked(dir string) {
	n := r.dirs[dir]
	if n <= 1 {
		delete(r.dirs, dir)
		if err := r.fsw.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
			r.config.Logger.Debug("remove directory watch", "dir", dir, "error", err)
		}
		return
	}
	r.dirs[dir] = n - 1
}

// deactivate stops e and waits for any reconciliation in progress.
func deactivate(e *entry) {
	if e == nil {
		return
	}
	e.active.Store(false)

	e.timerMu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerMu.Unlock()

	e.deliverMu.Lock()
	//nolint:staticcheck // wait out the current reconciliation
	e.deliverMu.Unlock()
}

// processLoop handles incoming fsnotify notifications.
func (r *Registry) processLoop() {
	defer r.closedWg.Done()

	for {
		select {
		case fsEvent, ok := <-r.fsw.Events:
			if !ok {
				return
			}
			r.handleFSEvent(fsEvent)

		case err, ok := <-r.fsw.Errors:
			if !ok {
				return
			}
			r.recordError(err)
		}
	}
}

// handleFSEvent schedules a reconciliation if the notification is for a
// watched file.
func (r *Registry) handleFSEvent(fsEvent fsnotify.Event) {
	op := convertOp(fsEvent.Op)
	if !op.affectsContent() {
		return
	}

	name := filepath.Clean(fsEvent.Name)
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return
	}

	r.notifications.Add(1)
	r.schedule(e)
}

// schedule arms the reconciliation timer for e unless one is pending.
func (r *Registry) schedule(e *entry) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()

	if !e.active.Load() || e.timer != nil {
		return
	}
	e.timer = time.AfterFunc(r.config.Coalesce, func() {
		r.reconcile(e)
	})
}

// reconcile reads the current content of e and publishes it.
func (r *Registry) reconcile(e *entry) {
	e.timerMu.Lock()
	e.timer = nil
	e.timerMu.Unlock()

	e.deliverMu.Lock()
	defer e.deliverMu.Unlock()

	if !e.active.Load() {
		return
	}

	content, err := os.ReadFile(e.path)
	if err != nil {
		// A removed file that has not been recreated publishes nothing;
		// the directory watch stays armed so a recreate is observed.
		r.skipped.Add(1)
		if !errors.Is(err, fs.ErrNotExist) {
			r.config.Logger.Warn("read watched file", "path", e.path, "error", err)
		}
		return
	}

	r.emitted.Add(1)
	r.pub.Publish(event.TopicFileChanged, event.FileChanged{
		Path:      e.path,
		Content:   string(content),
		Timestamp: time.Now(),
	})
}

// recordError records a backend error in stats.
func (r *Registry) recordError(err error) {
	r.totalErrors.Add(1)
	r.lastError.Store(&err)
	r.config.Logger.Warn("file watcher error", "error", err)
}

// checkReadableFile verifies that path is an existing, readable regular file.
func checkReadableFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrPathNotExist
		}
		if errors.Is(err, fs.ErrPermission) {
			return ErrNotReadable
		}
		return err
	}
	if info.IsDir() {
		return ErrIsDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return ErrNotReadable
		}
		return err
	}
	return f.Close()
}
