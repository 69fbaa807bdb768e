package integration

import (
	"os"
	"sort"

	"github.com/dshills/ralphmgr/internal/event"
	"github.com/dshills/ralphmgr/internal/project/workspace"
)

// OpenFileForEditing arms a watcher on path and returns its current
// content. The watcher is armed before the read so no change between the
// two is lost. Opening a file that is already open keeps its buffer.
func (c *Coordinator) OpenFileForEditing(path string) (string, error) {
	const op = "open_file"
	if c.closed.Load() {
		return "", opError(op, ErrCoordinatorClosed)
	}

	abs, err := c.resolve(path)
	if err != nil {
		return "", opError(op, err)
	}

	if err := c.registry.Watch(abs); err != nil {
		return "", opError(op, err)
	}

	content, err := readFile(abs)
	if err != nil {
		_ = c.registry.Unwatch(abs)
		return "", opError(op, err)
	}

	c.bufMu.Lock()
	buf, ok := c.buffers[abs]
	if !ok {
		c.buffers[abs] = NewEditBuffer(abs, content)
	}
	c.bufMu.Unlock()

	if ok {
		buf.ApplyExternal(content)
	}

	c.logger.Debug("file opened for editing", "path", abs)
	return content, nil
}

// CloseFileForEditing disarms the watcher on path and drops its buffer.
// Closing a file that is not open succeeds.
func (c *Coordinator) CloseFileForEditing(path string) error {
	const op = "close_file"

	abs, err := c.resolve(path)
	if err != nil {
		return opError(op, err)
	}

	if err := c.registry.Unwatch(abs); err != nil {
		return opError(op, err)
	}

	c.bufMu.Lock()
	delete(c.buffers, abs)
	c.bufMu.Unlock()
	return nil
}

// EditBuffer replaces the in-memory content of an open file.
func (c *Coordinator) EditBuffer(path, content string) error {
	buf, err := c.buffer("edit_buffer", path)
	if err != nil {
		return err
	}
	buf.Edit(content)
	return nil
}

// SaveFile writes the buffer of path to disk and marks it clean.
func (c *Coordinator) SaveFile(path string) error {
	const op = "save_file"
	buf, err := c.buffer(op, path)
	if err != nil {
		return err
	}

	content := buf.Content()
	if err := os.WriteFile(buf.path, []byte(content), 0o644); err != nil {
		return opError(op, err)
	}
	buf.MarkSaved(content)
	return nil
}

// Buffer returns a snapshot of the buffer for path.
func (c *Coordinator) Buffer(path string) (BufferSnapshot, bool) {
	abs, err := c.resolve(path)
	if err != nil {
		return BufferSnapshot{}, false
	}

	c.bufMu.Lock()
	buf, ok := c.buffers[abs]
	c.bufMu.Unlock()
	if !ok {
		return BufferSnapshot{}, false
	}
	return buf.Snapshot(), true
}

// OpenFiles returns the paths open for editing, sorted.
func (c *Coordinator) OpenFiles() []string {
	c.bufMu.Lock()
	paths := make([]string, 0, len(c.buffers))
	for p := range c.buffers {
		paths = append(paths, p)
	}
	c.bufMu.Unlock()

	sort.Strings(paths)
	return paths
}

// ReadFile returns the content of path.
func (c *Coordinator) ReadFile(path string) (string, error) {
	const op = "read_file"
	abs, err := c.resolve(path)
	if err != nil {
		return "", opError(op, err)
	}
	content, err := readFile(abs)
	return content, opError(op, err)
}

// WriteFile writes content to path. If path is open for editing its
// buffer takes the written content and becomes clean.
func (c *Coordinator) WriteFile(path, content string) error {
	const op = "write_file"
	abs, err := c.resolve(path)
	if err != nil {
		return opError(op, err)
	}

	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return opError(op, err)
	}

	c.bufMu.Lock()
	buf, ok := c.buffers[abs]
	c.bufMu.Unlock()
	if ok {
		buf.Edit(content)
		buf.MarkSaved(content)
	}
	return nil
}

// WatchFile arms a watcher on path without opening a buffer.
func (c *Coordinator) WatchFile(path string) error {
	const op = "watch_file"
	abs, err := c.resolve(path)
	if err != nil {
		return opError(op, err)
	}
	return opError(op, c.registry.Watch(abs))
}

// UnwatchFile disarms the watcher on path.
func (c *Coordinator) UnwatchFile(path string) error {
	const op = "unwatch_file"
	abs, err := c.resolve(path)
	if err != nil {
		return opError(op, err)
	}
	return opError(op, c.registry.Unwatch(abs))
}

// ListDirectory lists dir, relative to the workspace root when one is open.
func (c *Coordinator) ListDirectory(dir string) ([]workspace.Entry, error) {
	const op = "list_directory"
	abs, err := c.resolve(dir)
	if err != nil {
		return nil, opError(op, err)
	}
	entries, err := workspace.ListDirectory(abs)
	return entries, opError(op, err)
}

// FileStats returns size and modification time of path.
func (c *Coordinator) FileStats(path string) (workspace.FileInfo, error) {
	const op = "file_stats"
	abs, err := c.resolve(path)
	if err != nil {
		return workspace.FileInfo{}, opError(op, err)
	}
	info, err := workspace.Stat(abs)
	return info, opError(op, err)
}

func (c *Coordinator) buffer(op, path string) (*EditBuffer, error) {
	abs, err := c.resolve(path)
	if err != nil {
		return nil, opError(op, err)
	}

	c.bufMu.Lock()
	buf, ok := c.buffers[abs]
	c.bufMu.Unlock()
	if !ok {
		return nil, opError(op, ErrNotOpen)
	}
	return buf, nil
}

// onFileChanged applies a disk change to the matching buffer.
func (c *Coordinator) onFileChanged(p event.FileChanged) {
	c.bufMu.Lock()
	buf, ok := c.buffers[p.Path]
	c.bufMu.Unlock()
	if !ok {
		return
	}

	if !buf.ApplyExternal(p.Content) {
		c.logger.Info("disk change kept aside, buffer has unsaved edits", "path", p.Path)
	}
}
