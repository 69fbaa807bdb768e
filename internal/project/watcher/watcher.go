// Package watcher provides the per-file watch registry used by a session.
//
// The registry arms one watch per file path, detects external changes,
// reads the new content and publishes a file.changed event. Bursts of
// notifications for the same path (for example an editor that writes a
// temp file and renames it over the original) are coalesced into a single
// read and a single event per reconciliation tick.
//
// Every watched file arms a watch on its parent directory rather than on
// the file itself, so the watch survives the file being replaced by
// rename. Directory watches are reference counted across files.
package watcher

import (
	"errors"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Common errors returned by registry operations.
var (
	ErrRegistryClosed = errors.New("watch registry is closed")
	ErrPathNotExist   = errors.New("path does not exist")
	ErrNotReadable    = errors.New("path is not readable")
	ErrIsDirectory    = errors.New("path is a directory")
)

// DefaultCoalesce is the default reconciliation tick.
const DefaultCoalesce = 50 * time.Millisecond

// Op represents the type of file system operation.
type Op uint32

const (
	// OpCreate indicates a file was created, including by rename into place.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written to.
	OpWrite
	// OpRemove indicates a file was removed.
	OpRemove
	// OpRename indicates a file was renamed away.
	OpRename
	// OpChmod indicates file permissions were changed.
	OpChmod
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// affectsContent reports whether op may have changed what a read returns.
func (op Op) affectsContent() bool {
	return op&(OpCreate|OpWrite|OpRemove|OpRename) != 0
}

// convertOp converts fsnotify.Op to watcher.Op.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsOp.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}

// Stats provides registry status information.
type Stats struct {
	// WatchedPaths is the number of files being watched.
	WatchedPaths int

	// WatchedDirs is the number of parent directories armed.
	WatchedDirs int

	// Notifications is the number of raw notifications for watched files.
	Notifications int64

	// Emitted is the number of file.changed events published.
	Emitted int64

	// Skipped is the number of reconciliations that published nothing
	// because the file was gone or unreadable.
	Skipped int64

	// Errors is the total number of watcher backend errors.
	Errors int64

	// LastError is the most recent backend error, if any.
	LastError error

	// StartTime is when the registry was created.
	StartTime time.Time
}

// Config holds registry configuration options.
type Config struct {
	// Coalesce is the reconciliation tick. Notifications for one path
	// inside the tick produce one read and one event.
	// Default: 50ms
	Coalesce time.Duration

	// Logger receives backend errors and reconciliation failures.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Coalesce: DefaultCoalesce,
		Logger:   slog.Default(),
	}
}

// Option configures a registry.
type Option func(*Config)

// WithCoalesce sets the reconciliation tick. Non-positive values are
// ignored.
func WithCoalesce(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Coalesce = d
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}
