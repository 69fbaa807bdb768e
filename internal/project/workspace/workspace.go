// Package workspace describes the directory a session operates on and the
// agent loop artifacts it is expected to hold.
//
// The session core only needs to know where the artifacts live. Their
// contents (the task list, the progress log, the loop script) belong to
// the loop script and are never parsed here.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Common errors.
var (
	ErrInvalidPath       = errors.New("invalid workspace path")
	ErrNotDirectory      = errors.New("workspace path is not a directory")
	ErrWorkspaceClosed   = errors.New("workspace is closed")
	ErrOutsideWorkspace  = errors.New("path is outside the workspace")
	ErrLoopScriptMissing = errors.New("loop script not found")
)

// Workspace is an opened workspace root.
type Workspace struct {
	mu     sync.RWMutex
	root   string
	layout Layout
	closed bool
}

// Open opens the directory at path as a workspace using layout. Empty
// layout names fall back to the defaults.
func Open(path string, layout Layout) (*Workspace, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrInvalidPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open workspace %s: %w", absPath, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("open workspace %s: %w", absPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open workspace %s: %w", absPath, ErrNotDirectory)
	}

	return &Workspace{
		root:   absPath,
		layout: layout.withDefaults(),
	}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Layout returns the artifact layout.
func (w *Workspace) Layout() Layout {
	return w.layout
}

// Close marks the workspace closed.
func (w *Workspace) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

// IsClosed returns whether the workspace is closed.
func (w *Workspace) IsClosed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

// Contains checks if path is within the workspace root.
func (w *Workspace) Contains(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return isSubPath(w.root, absPath)
}

// Resolve returns path as an absolute path. Relative paths are taken
// relative to the workspace root.
func (w *Workspace) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(w.root, path)
}

// RelativePath returns path relative to the workspace root.
func (w *Workspace) RelativePath(path string) (string, error) {
	absPath := w.Resolve(path)
	if !isSubPath(w.root, absPath) {
		return "", fmt.Errorf("%s: %w", absPath, ErrOutsideWorkspace)
	}
	return filepath.Rel(w.root, absPath)
}

// LoopScript resolves script, or the layout's loop script when script is
// empty, and verifies that it exists as a regular file.
func (w *Workspace) LoopScript(script string) (string, error) {
	if w.IsClosed() {
		return "", ErrWorkspaceClosed
	}
	if script == "" {
		script = w.layout.LoopScript
	}

	path := w.Resolve(script)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%s: %w", path, ErrLoopScriptMissing)
	}
	return path, nil
}

// Inspect reports which artifacts exist in the workspace.
func (w *Workspace) Inspect() Artifacts {
	return w.layout.Inspect(w.root)
}

// isSubPath checks if child is a subpath of parent.
func isSubPath(parent, child string) bool {
	// Normalize paths
	parent = filepath.Clean(parent)
	child = filepath.Clean(child)

	if child == parent {
		return true
	}

	// Ensure parent ends with separator for proper prefix matching
	if !strings.HasSuffix(parent, string(filepath.Separator)) {
		parent += string(filepath.Separator)
	}
	return strings.HasPrefix(child, parent)
}
