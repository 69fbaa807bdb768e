package git

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/ralphmgr/internal/event"
)

// commitLogFormat is the format string for parsing git log output.
// Format: Hash, ShortHash, Subject, AuthorName, AuthorEmail, AuthorTime, Parents
const commitLogFormat = "%H%n%h%n%s%n%an%n%ae%n%at%n%P"

// TaskCommitMessage formats the commit message recorded when the loop
// completes a task.
func TaskCommitMessage(taskID, description string, iteration int) string {
	return fmt.Sprintf("[Ralph] Complete task %s: %s (Iteration %d)", taskID, description, iteration)
}

// StageAll stages every change in the working tree, including deletions
// and untracked files.
func (e *Engine) StageAll(ctx context.Context) error {
	_, err := e.run(ctx, "add", "add", "-A")
	return err
}

// Commit records the staged changes. It fails with ErrNothingToCommit when
// nothing is staged and with ErrConflict while conflicts are unresolved.
func (e *Engine) Commit(ctx context.Context, message string) (*Commit, error) {
	if strings.TrimSpace(message) == "" {
		return nil, &Error{Op: "commit", Kind: KindInvalid, Err: ErrEmptyMessage}
	}

	status, err := e.Status(ctx)
	if err != nil {
		return nil, err
	}
	if status.HasConflicts() {
		return nil, newError("commit", KindConflict, strings.Join(status.Conflicts, ", "))
	}
	if !status.HasStagedChanges() {
		return nil, newError("commit", KindNothingToCommit, "")
	}

	if _, err := e.run(ctx, "commit", "commit", "-m", message); err != nil {
		return nil, err
	}

	commit, err := e.headCommit(ctx)
	if err != nil {
		// The commit exists; only its details are missing.
		e.logger.Warn("commit created but details unavailable", "error", err)
		commit = &Commit{Message: message}
	}

	e.logger.Info("commit created", "dir", e.dir, "hash", commit.ShortHash)
	e.pub.Publish(event.TopicGitCommitCreated, event.GitCommitCreated{
		Repository: e.dir,
		Hash:       commit.Hash,
		Message:    message,
		Timestamp:  time.Now(),
	})
	return commit, nil
}

// StageAndCommit stages everything and commits it. Use it instead of
// StageAll followed by Commit so the two steps run back to back.
func (e *Engine) StageAndCommit(ctx context.Context, message string) (*Commit, error) {
	if strings.TrimSpace(message) == "" {
		return nil, &Error{Op: "commit", Kind: KindInvalid, Err: ErrEmptyMessage}
	}
	if err := e.StageAll(ctx); err != nil {
		return nil, err
	}
	return e.Commit(ctx, message)
}

// CommitTaskCompletion stages and commits with the task completion message.
func (e *Engine) CommitTaskCompletion(ctx context.Context, taskID, description string, iteration int) (*Commit, error) {
	return e.StageAndCommit(ctx, TaskCommitMessage(taskID, description, iteration))
}

// Log returns up to limit commits reachable from HEAD, newest first.
// A limit <= 0 uses DefaultLogLimit. A repository without commits yields
// an empty history.
func (e *Engine) Log(ctx context.Context, limit int) ([]*Commit, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}

	out, err := e.run(ctx, "log", "log", "--format="+commitLogFormat+"%x00", fmt.Sprintf("-n%d", limit))
	if err != nil {
		if gerr, ok := err.(*Error); ok && gerr.Kind == KindCommand && isEmptyHistory(gerr.Detail) {
			return []*Commit{}, nil
		}
		return nil, err
	}

	// Parse commits (separated by null bytes)
	entries := strings.Split(out.Stdout, "\x00")
	commits := make([]*Commit, 0, limit)
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		commit, err := parseCommitOutput(entry)
		if err != nil {
			e.logger.Debug("skip unparsable log entry", "error", err)
			continue
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// Diff returns the unified diff of unstaged changes, or of staged changes
// when staged is true.
func (e *Engine) Diff(ctx context.Context, staged bool) (string, error) {
	args := []string{"diff"}
	if staged {
		args = append(args, "--cached")
	}
	out, err := e.run(ctx, "diff", args...)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

// headCommit returns the HEAD commit.
func (e *Engine) headCommit(ctx context.Context) (*Commit, error) {
	out, err := e.run(ctx, "log", "log", "-1", "--format="+commitLogFormat)
	if err != nil {
		return nil, err
	}
	return parseCommitOutput(out.Stdout)
}

// isEmptyHistory reports whether git log failed only because the current
// branch has no commits.
func isEmptyHistory(detail string) bool {
	return strings.Contains(detail, "does not have any commits yet") ||
		strings.Contains(detail, "bad default revision 'HEAD'")
}

// parseCommitOutput parses git log output into a Commit.
// Expected format (7 lines): Hash, ShortHash, Subject, AuthorName,
// AuthorEmail, AuthorTime, Parents
func parseCommitOutput(output string) (*Commit, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) < 6 {
		return nil, fmt.Errorf("invalid commit output: expected at least 6 lines, got %d", len(lines))
	}

	authorTime, err := strconv.ParseInt(lines[5], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse author time: %w", err)
	}

	commit := &Commit{
		Hash:        lines[0],
		ShortHash:   lines[1],
		Message:     lines[2],
		Author:      lines[3],
		AuthorEmail: lines[4],
		AuthorTime:  time.Unix(authorTime, 0),
	}

	// Parse parent hashes
	if len(lines) > 6 && lines[6] != "" {
		commit.Parents = strings.Fields(lines[6])
	}

	return commit, nil
}
