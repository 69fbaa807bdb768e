package git

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dshills/ralphmgr/internal/event"
)

// DefaultRemote is the remote used for pull and push.
const DefaultRemote = "origin"

// DefaultLogLimit is the number of commits Log returns when limit <= 0.
const DefaultLogLimit = 10

// StatusCode represents the status of a file in the working tree.
type StatusCode int

const (
	// StatusUnmodified indicates the file is unchanged.
	StatusUnmodified StatusCode = iota
	// StatusModified indicates the file has been modified.
	StatusModified
	// StatusAdded indicates the file is newly added.
	StatusAdded
	// StatusDeleted indicates the file has been deleted.
	StatusDeleted
	// StatusRenamed indicates the file has been renamed.
	StatusRenamed
	// StatusCopied indicates the file has been copied.
	StatusCopied
	// StatusConflict indicates a merge conflict.
	StatusConflict
)

// String returns the string representation of a StatusCode.
func (s StatusCode) String() string {
	switch s {
	case StatusUnmodified:
		return "unmodified"
	case StatusModified:
		return "modified"
	case StatusAdded:
		return "added"
	case StatusDeleted:
		return "deleted"
	case StatusRenamed:
		return "renamed"
	case StatusCopied:
		return "copied"
	case StatusConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// FileStatus represents the status of a single file.
type FileStatus struct {
	// Path is the file path relative to repository root.
	Path string

	// OldPath is the original path for renamed files.
	OldPath string

	// Status indicates the type of change.
	Status StatusCode
}

// Status represents the working tree status.
type Status struct {
	// Branch is the current branch name, empty when detached.
	Branch string

	// Head is the HEAD commit hash, empty before the first commit.
	Head string

	// Upstream is the upstream branch name (e.g., "origin/main").
	Upstream string

	// Ahead is the number of commits ahead of upstream.
	Ahead int

	// Behind is the number of commits behind upstream.
	Behind int

	// Staged contains staged changes.
	Staged []FileStatus

	// Unstaged contains unstaged changes.
	Unstaged []FileStatus

	// Untracked contains untracked file paths.
	Untracked []string

	// Conflicts contains paths with merge conflicts.
	Conflicts []string

	// IsDetached indicates detached HEAD state.
	IsDetached bool
}

// IsClean returns true if there are no staged, unstaged, untracked or
// conflicting paths.
func (s *Status) IsClean() bool {
	return len(s.Staged) == 0 && len(s.Unstaged) == 0 && len(s.Untracked) == 0 && len(s.Conflicts) == 0
}

// HasStagedChanges returns true if there are staged changes.
func (s *Status) HasStagedChanges() bool {
	return len(s.Staged) > 0
}

// HasConflicts returns true if there are merge conflicts.
func (s *Status) HasConflicts() bool {
	return len(s.Conflicts) > 0
}

// Commit represents a git commit.
type Commit struct {
	// Hash is the full commit hash.
	Hash string

	// ShortHash is the abbreviated commit hash.
	ShortHash string

	// Message is the commit subject.
	Message string

	// Author is the commit author name.
	Author string

	// AuthorEmail is the commit author email.
	AuthorEmail string

	// AuthorTime is when the author created the commit.
	AuthorTime time.Time

	// Parents are the parent commit hashes.
	Parents []string
}

// Remote represents a git remote.
type Remote struct {
	// Name is the remote name (e.g., "origin").
	Name string

	// FetchURL is the URL used for fetching.
	FetchURL string

	// PushURL is the URL used for pushing.
	PushURL string
}

// Engine runs git operations against one workspace directory.
//
// Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	dir string

	runner        Runner
	remote        string
	authorName    string
	authorEmail   string
	initialBranch string
	timeout       time.Duration

	pub    event.Publisher
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRunner sets the git binding. Default: ExecRunner{}.
func WithRunner(r Runner) Option {
	return func(e *Engine) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithRemote sets the remote used by Pull, Push and Sync.
func WithRemote(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.remote = name
		}
	}
}

// WithIdentity sets the commit identity passed to git for every
// invocation, overriding repository and global configuration.
func WithIdentity(name, email string) Option {
	return func(e *Engine) {
		e.authorName = name
		e.authorEmail = email
	}
}

// WithInitialBranch sets the branch name EnsureRepo initializes with.
func WithInitialBranch(name string) Option {
	return func(e *Engine) {
		e.initialBranch = name
	}
}

// WithTimeout bounds every git invocation. Zero means no bound beyond
// the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithPublisher sets the publisher for git.* events.
func WithPublisher(pub event.Publisher) Option {
	return func(e *Engine) {
		if pub != nil {
			e.pub = pub
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine for the repository at dir.
func NewEngine(dir string, opts ...Option) *Engine {
	e := &Engine{
		dir:    dir,
		runner: ExecRunner{},
		remote: DefaultRemote,
		pub:    event.Discard,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dir returns the workspace directory.
func (e *Engine) Dir() string {
	return e.dir
}

// Remote returns the remote name used for sync.
func (e *Engine) Remote() string {
	return e.remote
}

// EnsureRepo initializes a repository in the workspace directory if none
// exists. It reports whether a repository was created.
func (e *Engine) EnsureRepo(ctx context.Context) (bool, error) {
	if err := e.checkDir("init"); err != nil {
		return false, err
	}

	ok, err := e.IsRepo(ctx)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}

	args := []string{"init"}
	if e.initialBranch != "" {
		args = append(args, "--initial-branch="+e.initialBranch)
	}
	if _, err := e.run(ctx, "init", args...); err != nil {
		return false, err
	}

	e.logger.Info("git repository initialized", "dir", e.dir)
	return true, nil
}

// IsRepo reports whether the workspace directory is inside a git work tree.
func (e *Engine) IsRepo(ctx context.Context) (bool, error) {
	if err := e.checkDir("rev-parse"); err != nil {
		return false, err
	}

	out, err := e.run(ctx, "rev-parse", "rev-parse", "--is-inside-work-tree")
	if err != nil {
		if errors.Is(err, ErrNotRepository) {
			return false, nil
		}
		return false, err
	}
	return strings.TrimSpace(out.Stdout) == "true", nil
}

// checkDir verifies the workspace directory exists.
func (e *Engine) checkDir(op string) error {
	info, err := os.Stat(e.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newError(op, KindNotFound, e.dir)
		}
		return &Error{Op: op, Kind: KindCommand, Err: err}
	}
	if !info.IsDir() {
		return newError(op, KindNotFound, e.dir+" is not a directory")
	}
	return nil
}

// run executes one git invocation and classifies generic failures.
// Operation-specific classification is left to the caller.
func (e *Engine) run(ctx context.Context, op string, args ...string) (Output, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	full := args
	if e.authorName != "" || e.authorEmail != "" {
		full = make([]string, 0, len(args)+4)
		if e.authorName != "" {
			full = append(full, "-c", "user.name="+e.authorName)
		}
		if e.authorEmail != "" {
			full = append(full, "-c", "user.email="+e.authorEmail)
		}
		full = append(full, args...)
	}

	out, err := e.runner.Run(ctx, e.dir, full...)
	if err == nil {
		return out, nil
	}

	detail := strings.TrimSpace(out.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(out.Stdout)
	}

	switch {
	case errors.Is(err, ErrToolMissing), errors.Is(err, exec.ErrNotFound):
		return out, &Error{Op: op, Kind: KindToolMissing, Detail: err.Error(), Err: ErrToolMissing}
	case errors.Is(err, fs.ErrNotExist):
		return out, &Error{Op: op, Kind: KindNotFound, Detail: err.Error(), Err: ErrPathNotFound}
	case strings.Contains(detail, "not a git repository"):
		return out, &Error{Op: op, Kind: KindNotFound, Detail: detail, Err: ErrNotRepository}
	case ctx.Err() != nil:
		return out, &Error{Op: op, Kind: KindCommand, Detail: detail, Err: ctx.Err()}
	}

	e.logger.Debug("git command failed", "op", op, "args", strings.Join(args, " "), "error", err)
	return out, &Error{Op: op, Kind: KindCommand, Detail: detail, Err: err}
}
