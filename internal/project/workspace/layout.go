package workspace

import (
	"os"
	"path/filepath"
	"time"
)

// Default artifact names.
const (
	DefaultLoopScript  = "ralph-loop.sh"
	DefaultTaskFile    = "prd.json"
	DefaultProgressLog = "progress.txt"
)

// Layout names the agent loop artifacts, relative to the workspace root.
type Layout struct {
	// LoopScript is the script the supervisor runs.
	LoopScript string `toml:"loop_script" yaml:"loop_script"`

	// TaskFile is the task list the loop works through.
	TaskFile string `toml:"task_file" yaml:"task_file"`

	// ProgressLog is the log the loop appends to.
	ProgressLog string `toml:"progress_log" yaml:"progress_log"`
}

// DefaultLayout returns the conventional artifact names.
func DefaultLayout() Layout {
	return Layout{
		LoopScript:  DefaultLoopScript,
		TaskFile:    DefaultTaskFile,
		ProgressLog: DefaultProgressLog,
	}
}

func (l Layout) withDefaults() Layout {
	def := DefaultLayout()
	if l.LoopScript == "" {
		l.LoopScript = def.LoopScript
	}
	if l.TaskFile == "" {
		l.TaskFile = def.TaskFile
	}
	if l.ProgressLog == "" {
		l.ProgressLog = def.ProgressLog
	}
	return l
}

// Artifact is the observed state of one layout file.
type Artifact struct {
	Name     string
	Path     string
	Exists   bool
	Size     int64
	Modified time.Time
}

// Artifacts is the result of inspecting a workspace.
type Artifacts struct {
	Root        string
	LoopScript  Artifact
	TaskFile    Artifact
	ProgressLog Artifact
}

// Ready reports whether the loop can be started.
func (a Artifacts) Ready() bool {
	return a.LoopScript.Exists
}

// All returns the artifacts in layout order.
func (a Artifacts) All() []Artifact {
	return []Artifact{a.LoopScript, a.TaskFile, a.ProgressLog}
}

// Inspect reports which artifacts of l exist under root.
func (l Layout) Inspect(root string) Artifacts {
	l = l.withDefaults()
	return Artifacts{
		Root:        root,
		LoopScript:  inspect(root, l.LoopScript),
		TaskFile:    inspect(root, l.TaskFile),
		ProgressLog: inspect(root, l.ProgressLog),
	}
}

func inspect(root, name string) Artifact {
	a := Artifact{Name: name, Path: filepath.Join(root, name)}
	info, err := os.Stat(a.Path)
	if err != nil || info.IsDir() {
		return a
	}
	a.Exists = true
	a.Size = info.Size()
	a.Modified = info.ModTime()
	return a
}
