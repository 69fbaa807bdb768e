package workspace

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	ws, err := Open(dir, Layout{})
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	if ws.Root() != dir {
		t.Errorf("Root = %q, want %q", ws.Root(), dir)
	}
	if ws.Layout() != DefaultLayout() {
		t.Errorf("Layout = %+v, want defaults", ws.Layout())
	}
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	writeFile(t, file, "x")

	if _, err := Open("", Layout{}); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Open empty error = %v, want ErrInvalidPath", err)
	}
	if _, err := Open(filepath.Join(dir, "missing"), Layout{}); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open missing error = %v, want fs.ErrNotExist", err)
	}
	if _, err := Open(file, Layout{}); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("Open file error = %v, want ErrNotDirectory", err)
	}
}

func TestWorkspace_Contains(t *testing.T) {
	dir := t.TempDir()
	ws, err := Open(dir, Layout{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{dir, true},
		{filepath.Join(dir, "a.txt"), true},
		{filepath.Join(dir, "sub", "b.txt"), true},
		{filepath.Dir(dir), false},
		{dir + "-sibling", false},
	}
	for _, tt := range tests {
		if got := ws.Contains(tt.path); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWorkspace_RelativePath(t *testing.T) {
	dir := t.TempDir()
	ws, err := Open(dir, Layout{})
	if err != nil {
		t.Fatal(err)
	}

	rel, err := ws.RelativePath(filepath.Join(dir, "sub", "a.txt"))
	if err != nil || rel != filepath.Join("sub", "a.txt") {
		t.Errorf("RelativePath = %q, %v", rel, err)
	}
	if got := ws.Resolve("prd.json"); got != filepath.Join(dir, "prd.json") {
		t.Errorf("Resolve = %q", got)
	}
	if _, err := ws.RelativePath("/etc/passwd"); !errors.Is(err, ErrOutsideWorkspace) {
		t.Errorf("RelativePath outside error = %v", err)
	}
}

func TestWorkspace_Inspect(t *testing.T) {
	dir := t.TempDir()
	ws, err := Open(dir, Layout{})
	if err != nil {
		t.Fatal(err)
	}

	a := ws.Inspect()
	if a.Ready() {
		t.Error("empty workspace reported ready")
	}
	for _, art := range a.All() {
		if art.Exists {
			t.Errorf("%s reported present", art.Name)
		}
	}

	writeFile(t, filepath.Join(dir, DefaultLoopScript), "#!/bin/bash\necho hi\n")
	writeFile(t, filepath.Join(dir, DefaultTaskFile), `{"tasks":[]}`)

	a = ws.Inspect()
	if !a.Ready() {
		t.Error("workspace with loop script not ready")
	}
	if !a.TaskFile.Exists || a.TaskFile.Size != int64(len(`{"tasks":[]}`)) {
		t.Errorf("task file = %+v", a.TaskFile)
	}
	if a.ProgressLog.Exists {
		t.Error("progress log reported present")
	}
}

func TestWorkspace_CustomLayout(t *testing.T) {
	dir := t.TempDir()
	ws, err := Open(dir, Layout{LoopScript: "scripts/loop.sh"})
	if err != nil {
		t.Fatal(err)
	}
	if ws.Layout().TaskFile != DefaultTaskFile {
		t.Errorf("TaskFile = %q, want default", ws.Layout().TaskFile)
	}

	writeFile(t, filepath.Join(dir, "scripts", "loop.sh"), "echo\n")
	path, err := ws.LoopScript("")
	if err != nil {
		t.Fatalf("LoopScript error = %v", err)
	}
	if path != filepath.Join(dir, "scripts", "loop.sh") {
		t.Errorf("LoopScript = %q", path)
	}
}

func TestWorkspace_LoopScriptMissing(t *testing.T) {
	dir := t.TempDir()
	ws, err := Open(dir, Layout{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ws.LoopScript(""); !errors.Is(err, ErrLoopScriptMissing) {
		t.Errorf("LoopScript error = %v, want ErrLoopScriptMissing", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "dir.sh"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := ws.LoopScript("dir.sh"); !errors.Is(err, ErrLoopScriptMissing) {
		t.Errorf("LoopScript(dir) error = %v, want ErrLoopScriptMissing", err)
	}

	ws.Close()
	if !ws.IsClosed() {
		t.Error("expected closed")
	}
	if _, err := ws.LoopScript(""); !errors.Is(err, ErrWorkspaceClosed) {
		t.Errorf("LoopScript after Close error = %v", err)
	}
}

func TestListDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "zdir", "x"), "x")

	entries, err := ListDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"zdir", "a.txt", "b.txt"}
	if len(entries) != len(want) {
		t.Fatalf("entries = %+v", entries)
	}
	for i, name := range want {
		if entries[i].Name != name {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i].Name, name)
		}
	}
	if !entries[0].IsDir || entries[1].IsDir {
		t.Error("IsDir flags wrong")
	}
	if entries[1].Path != filepath.Join(dir, "a.txt") {
		t.Errorf("Path = %q", entries[1].Path)
	}

	if _, err := ListDirectory(filepath.Join(dir, "missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ListDirectory missing error = %v", err)
	}
}

func TestStat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.txt")
	writeFile(t, path, "12345")

	info, err := Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size != 5 || info.IsDir || info.Modified.IsZero() {
		t.Errorf("Stat = %+v", info)
	}

	if _, err := Stat(filepath.Join(dir, "missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat missing error = %v", err)
	}
}
