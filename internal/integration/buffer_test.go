package integration

import "testing"

func TestEditBuffer_CleanTakesDiskChange(t *testing.T) {
	b := NewEditBuffer("/w/a.txt", "one")

	if !b.ApplyExternal("two") {
		t.Fatal("clean buffer rejected disk change")
	}
	s := b.Snapshot()
	if s.Content != "two" || s.Dirty || s.Stale {
		t.Errorf("snapshot = %+v", s)
	}
	if s.Version != 1 {
		t.Errorf("version = %d, want 1", s.Version)
	}
}

func TestEditBuffer_DirtyKeepsEdits(t *testing.T) {
	b := NewEditBuffer("/w/a.txt", "one")
	b.Edit("mine")
	if !b.IsDirty() {
		t.Fatal("edited buffer not dirty")
	}

	if b.ApplyExternal("theirs") {
		t.Fatal("dirty buffer was overwritten")
	}
	s := b.Snapshot()
	if s.Content != "mine" || !s.Dirty || !s.Stale || s.Disk != "theirs" {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestEditBuffer_EditBackToDiskIsClean(t *testing.T) {
	b := NewEditBuffer("/w/a.txt", "one")
	b.Edit("two")
	b.Edit("one")
	if b.IsDirty() {
		t.Error("buffer equal to disk reported dirty")
	}
}

func TestEditBuffer_MarkSaved(t *testing.T) {
	b := NewEditBuffer("/w/a.txt", "one")
	b.Edit("two")
	b.MarkSaved("two")
	if b.IsDirty() {
		t.Fatal("saved buffer still dirty")
	}

	// The watcher echo of our own save is a no-op.
	b.ApplyExternal("two")
	if s := b.Snapshot(); s.Content != "two" || s.Version != 1 {
		t.Errorf("snapshot after echo = %+v", s)
	}

	// An edit made after the content was taken stays dirty.
	b.Edit("three")
	b.MarkSaved("two")
	if !b.IsDirty() {
		t.Error("buffer edited during save reported clean")
	}
}

func TestEditBuffer_SameDiskContentClearsStale(t *testing.T) {
	b := NewEditBuffer("/w/a.txt", "one")
	b.Edit("mine")
	b.ApplyExternal("theirs")
	b.ApplyExternal("mine")
	if b.Snapshot().Stale {
		t.Error("buffer matching disk reported stale")
	}
}
