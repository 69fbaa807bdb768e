package integration

import (
	"sync"
	"time"
)

// EditBuffer is the in-memory copy of a file open for editing.
//
// The buffer is dirty while its content differs from what was last read
// from or written to disk. A change observed on disk replaces a clean
// buffer and never a dirty one; in the dirty case the disk content is kept
// aside and the buffer is marked stale.
type EditBuffer struct {
	mu sync.Mutex

	path    string
	content string
	disk    string
	dirty   bool
	stale   bool
	version uint64
	updated time.Time
}

// BufferSnapshot is a point-in-time copy of an EditBuffer.
type BufferSnapshot struct {
	Path    string
	Content string

	// Disk is the last content observed on disk.
	Disk string

	Dirty bool

	// Stale is set when the disk changed under a dirty buffer.
	Stale bool

	// Version increments on every content change.
	Version uint64
	Updated time.Time
}

// NewEditBuffer creates a clean buffer holding content.
func NewEditBuffer(path, content string) *EditBuffer {
	return &EditBuffer{
		path:    path,
		content: content,
		disk:    content,
		updated: time.Now(),
	}
}

// Edit replaces the buffer content. Editing back to the disk content
// makes the buffer clean again.
func (b *EditBuffer) Edit(content string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if content == b.content {
		return
	}
	b.content = content
	b.dirty = content != b.disk
	b.version++
	b.updated = time.Now()
}

// ApplyExternal records content observed on disk. It reports whether the
// buffer content was replaced.
func (b *EditBuffer) ApplyExternal(content string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.disk = content
	if b.dirty {
		b.stale = content != b.content
		return false
	}

	if content != b.content {
		b.content = content
		b.version++
		b.updated = time.Now()
	}
	b.stale = false
	return true
}

// MarkSaved records that content was written to disk. The buffer is clean
// if nothing was edited since content was taken.
func (b *EditBuffer) MarkSaved(content string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.disk = content
	b.dirty = b.content != content
	b.stale = false
}

// Content returns the buffer content.
func (b *EditBuffer) Content() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.content
}

// IsDirty reports whether the buffer has unsaved edits.
func (b *EditBuffer) IsDirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty
}

// Snapshot returns a copy of the buffer state.
func (b *EditBuffer) Snapshot() BufferSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferSnapshot{
		Path:    b.path,
		Content: b.content,
		Disk:    b.disk,
		Dirty:   b.dirty,
		Stale:   b.stale,
		Version: b.version,
		Updated: b.updated,
	}
}
