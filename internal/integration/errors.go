package integration

import (
	"errors"
	"io/fs"

	"github.com/dshills/ralphmgr/internal/integration/git"
	"github.com/dshills/ralphmgr/internal/integration/github"
	"github.com/dshills/ralphmgr/internal/integration/process"
	"github.com/dshills/ralphmgr/internal/project/watcher"
	"github.com/dshills/ralphmgr/internal/project/workspace"
)

// Sentinel errors for the integration package.
var (
	// ErrCoordinatorClosed is returned when operations are attempted on a closed coordinator.
	ErrCoordinatorClosed = errors.New("session coordinator is closed")

	// ErrNoWorkspace is returned when an operation needs an open workspace.
	ErrNoWorkspace = errors.New("no workspace open")

	// ErrNotOpen is returned for buffer operations on a file that is not
	// open for editing.
	ErrNotOpen = errors.New("file is not open for editing")

	// ErrInvalidArgument is returned for malformed requests.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrorKind is the category a failure is reported under at the
// presentation boundary.
type ErrorKind string

// Error kinds.
const (
	KindNone            ErrorKind = ""
	KindNotFound        ErrorKind = "not_found"
	KindToolMissing     ErrorKind = "tool_missing"
	KindProcess         ErrorKind = "process"
	KindSyncConflict    ErrorKind = "sync_conflict"
	KindNothingToCommit ErrorKind = "nothing_to_commit"
	KindNoBranch        ErrorKind = "no_branch"
	KindInvalid         ErrorKind = "invalid"
	KindInternal        ErrorKind = "internal"
)

// OpError annotates a failure with the coordinator operation that relayed it.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// Result is the success/failure outcome of a boundary request.
type Result struct {
	Success   bool      `json:"success"`
	Op        string    `json:"op,omitempty"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// ResultOf converts err into a Result. A nil error is a success.
func ResultOf(err error) Result {
	if err == nil {
		return Result{Success: true}
	}

	r := Result{
		ErrorKind: Classify(err),
		Detail:    err.Error(),
	}

	var opErr *OpError
	if errors.As(err, &opErr) {
		r.Op = opErr.Op
	}

	// Git failures carry the tool's own output, which is what a user
	// needs to see for conflicts and rejections.
	var gitErr *git.Error
	if errors.As(err, &gitErr) && gitErr.Detail != "" {
		r.Detail = gitErr.Detail
	}
	return r
}

// Classify maps err onto an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var gitErr *git.Error
	if errors.As(err, &gitErr) {
		switch gitErr.Kind {
		case git.KindNotFound:
			return KindNotFound
		case git.KindToolMissing:
			return KindToolMissing
		case git.KindNothingToCommit:
			return KindNothingToCommit
		case git.KindNoBranch:
			return KindNoBranch
		case git.KindConflict, git.KindNetwork, git.KindRejected:
			return KindSyncConflict
		case git.KindInvalid:
			return KindInvalid
		default:
			return KindInternal
		}
	}

	switch {
	case errors.Is(err, github.ErrToolMissing):
		return KindToolMissing
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, watcher.ErrPathNotExist),
		errors.Is(err, watcher.ErrNotReadable),
		errors.Is(err, workspace.ErrLoopScriptMissing):
		return KindNotFound
	case errors.Is(err, process.ErrSpawn),
		errors.Is(err, process.ErrNoProcess),
		errors.Is(err, process.ErrStillRunning),
		errors.Is(err, process.ErrTerminationTimeout),
		errors.Is(err, process.ErrSupervisorShutdown):
		return KindProcess
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrNoWorkspace),
		errors.Is(err, ErrNotOpen),
		errors.Is(err, process.ErrInvalidCommand),
		errors.Is(err, watcher.ErrIsDirectory),
		errors.Is(err, workspace.ErrInvalidPath),
		errors.Is(err, workspace.ErrNotDirectory),
		errors.Is(err, workspace.ErrOutsideWorkspace),
		errors.Is(err, github.ErrInvalidRepo):
		return KindInvalid
	default:
		return KindInternal
	}
}
