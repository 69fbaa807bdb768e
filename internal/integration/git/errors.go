package git

import (
	"errors"
	"fmt"
)

// Error types for git operations.
var (
	// ErrNotRepository indicates the path is not a git repository.
	ErrNotRepository = errors.New("not a git repository")

	// ErrPathNotFound indicates the workspace directory does not exist.
	ErrPathNotFound = errors.New("path not found")

	// ErrToolMissing indicates the git binary could not be found.
	ErrToolMissing = errors.New("git executable not found")

	// ErrNothingToCommit indicates there are no staged changes to commit.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrNoBranch indicates there is no current branch, either because
	// HEAD is detached or because the repository has no commits.
	ErrNoBranch = errors.New("no current branch")

	// ErrConflict indicates a merge conflict exists.
	ErrConflict = errors.New("merge conflict")

	// ErrNetwork indicates the remote could not be reached.
	ErrNetwork = errors.New("remote unreachable")

	// ErrPushRejected indicates the remote rejected the push.
	ErrPushRejected = errors.New("push rejected")

	// ErrEmptyMessage indicates a commit was requested without a message.
	ErrEmptyMessage = errors.New("empty commit message")
)

// Kind classifies an engine failure.
type Kind int

const (
	// KindCommand is a git invocation that failed for any other reason.
	KindCommand Kind = iota
	// KindNotFound means the workspace or repository does not exist.
	KindNotFound
	// KindToolMissing means the git binary is not installed.
	KindToolMissing
	// KindNothingToCommit means a commit had nothing staged.
	KindNothingToCommit
	// KindNoBranch means the branch could not be resolved.
	KindNoBranch
	// KindConflict means a pull or commit hit merge conflicts.
	KindConflict
	// KindNetwork means the remote could not be reached.
	KindNetwork
	// KindRejected means the remote refused the push.
	KindRejected
	// KindInvalid means the request itself was malformed.
	KindInvalid
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindNotFound:
		return "not_found"
	case KindToolMissing:
		return "tool_missing"
	case KindNothingToCommit:
		return "nothing_to_commit"
	case KindNoBranch:
		return "no_branch"
	case KindConflict:
		return "conflict"
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Error is returned by every Engine operation that fails.
type Error struct {
	// Op is the engine operation, e.g. "pull".
	Op string

	// Kind classifies the failure.
	Kind Kind

	// Detail is the git output explaining the failure, verbatim.
	Detail string

	// Err is the underlying cause, usually one of the package sentinels.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("git %s: %v: %s", e.Op, e.Err, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("git %s: %s", e.Op, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("git %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("git %s: %s failure", e.Op, e.Kind)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindCommand if err is not an *Error.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindCommand
}

// newError builds an *Error whose cause is the sentinel for kind.
func newError(op string, kind Kind, detail string) *Error {
	return &Error{Op: op, Kind: kind, Detail: detail, Err: sentinelFor(kind)}
}

func sentinelFor(kind Kind) error {
	switch kind {
	case KindNotFound:
		return ErrPathNotFound
	case KindToolMissing:
		return ErrToolMissing
	case KindNothingToCommit:
		return ErrNothingToCommit
	case KindNoBranch:
		return ErrNoBranch
	case KindConflict:
		return ErrConflict
	case KindNetwork:
		return ErrNetwork
	case KindRejected:
		return ErrPushRejected
	default:
		return nil
	}
}
