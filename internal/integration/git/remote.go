package git

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dshills/ralphmgr/internal/event"
)

// networkPatterns are git messages that mean the remote was unreachable.
var networkPatterns = []string{
	"Could not resolve host",
	"unable to access",
	"Could not read from remote repository",
	"Connection refused",
	"Connection timed out",
	"Network is unreachable",
	"network unreachable",
}

// CommitResult is the outcome of CommitAndSync.
type CommitResult struct {
	// Commit is the recorded commit.
	Commit *Commit

	// Synced reports whether a pull-then-push completed.
	Synced bool

	// Branch is the branch that was synced, if any.
	Branch string
}

// ListRemotes returns all configured remotes, sorted by name.
func (e *Engine) ListRemotes(ctx context.Context) ([]Remote, error) {
	out, err := e.run(ctx, "remote", "remote", "-v")
	if err != nil {
		return nil, err
	}

	// Parse output: name\turl (fetch|push)
	remotes := make(map[string]*Remote)
	for _, line := range strings.Split(strings.TrimSpace(out.Stdout), "\n") {
		parts := strings.Fields(line)
		if len(parts) < 3 {
			continue
		}

		name, url, kind := parts[0], parts[1], strings.Trim(parts[2], "()")
		remote, ok := remotes[name]
		if !ok {
			remote = &Remote{Name: name}
			remotes[name] = remote
		}

		switch kind {
		case "fetch":
			remote.FetchURL = url
		case "push":
			remote.PushURL = url
		}
	}

	result := make([]Remote, 0, len(remotes))
	for _, remote := range remotes {
		result = append(result, *remote)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// HasRemote reports whether the remote used for sync is configured.
func (e *Engine) HasRemote(ctx context.Context) (bool, error) {
	remotes, err := e.ListRemotes(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range remotes {
		if r.Name == e.remote {
			return true, nil
		}
	}
	return false, nil
}

// AddRemote adds a new remote.
func (e *Engine) AddRemote(ctx context.Context, name, url string) error {
	if name == "" || url == "" {
		return &Error{Op: "remote", Kind: KindInvalid, Detail: "remote name and url are required"}
	}
	_, err := e.run(ctx, "remote", "remote", "add", name, url)
	return err
}

// Pull integrates branch from the sync remote. An empty branch resolves to
// the current branch.
func (e *Engine) Pull(ctx context.Context, branch string) error {
	branch, err := e.resolveBranch(ctx, branch)
	if err != nil {
		return err
	}

	out, err := e.run(ctx, "pull", "pull", "--no-rebase", "--no-edit", e.remote, branch)
	if err != nil {
		return classifyRemote("pull", out, err)
	}
	return nil
}

// Push sends branch to the sync remote and records it as upstream. An
// empty branch resolves to the current branch.
func (e *Engine) Push(ctx context.Context, branch string) error {
	branch, err := e.resolveBranch(ctx, branch)
	if err != nil {
		return err
	}

	out, err := e.run(ctx, "push", "push", "-u", e.remote, branch)
	if err != nil {
		return classifyRemote("push", out, err)
	}
	return nil
}

// Sync pulls branch and, only if the pull succeeded, pushes it. A failed
// pull is returned unchanged and no push is attempted.
func (e *Engine) Sync(ctx context.Context, branch string) (string, error) {
	branch, err := e.resolveBranch(ctx, branch)
	if err != nil {
		return "", err
	}

	err = e.Pull(ctx, branch)
	if err == nil {
		err = e.Push(ctx, branch)
	}

	e.pub.Publish(event.TopicGitSyncCompleted, event.GitSyncCompleted{
		Repository: e.dir,
		Branch:     branch,
		Pushed:     err == nil,
		Err:        err,
		Timestamp:  time.Now(),
	})
	if err != nil {
		e.logger.Warn("git sync failed", "dir", e.dir, "branch", branch, "error", err)
		return branch, err
	}

	e.logger.Info("git sync completed", "dir", e.dir, "branch", branch)
	return branch, nil
}

// CommitAndSync stages and commits, then syncs when shouldSync is set and
// the sync remote is configured. Without a remote the local commit is the
// whole, successful, result.
func (e *Engine) CommitAndSync(ctx context.Context, message string, shouldSync bool) (*CommitResult, error) {
	commit, err := e.StageAndCommit(ctx, message)
	if err != nil {
		return nil, err
	}
	result := &CommitResult{Commit: commit}

	if !shouldSync {
		return result, nil
	}

	ok, err := e.HasRemote(ctx)
	if err != nil {
		return result, err
	}
	if !ok {
		e.logger.Debug("no remote configured, commit kept local", "dir", e.dir, "remote", e.remote)
		return result, nil
	}

	branch, err := e.Sync(ctx, "")
	result.Branch = branch
	if err != nil {
		return result, err
	}
	result.Synced = true
	return result, nil
}

// resolveBranch returns branch, or the current branch when it is empty.
func (e *Engine) resolveBranch(ctx context.Context, branch string) (string, error) {
	if branch != "" {
		return branch, nil
	}
	return e.CurrentBranch(ctx)
}

// classifyRemote refines a generic pull or push failure.
func classifyRemote(op string, out Output, err error) error {
	gerr, ok := err.(*Error)
	if !ok || gerr.Kind != KindCommand {
		return err
	}

	text := out.Stdout + "\n" + out.Stderr
	switch {
	case strings.Contains(text, "CONFLICT") || strings.Contains(text, "unmerged files"):
		gerr.Kind, gerr.Err = KindConflict, ErrConflict
		gerr.Detail = strings.TrimSpace(text)
	case strings.Contains(text, "[rejected]") || strings.Contains(text, "non-fast-forward"):
		gerr.Kind, gerr.Err = KindRejected, ErrPushRejected
	default:
		for _, p := range networkPatterns {
			if strings.Contains(text, p) {
				gerr.Kind, gerr.Err = KindNetwork, ErrNetwork
				break
			}
		}
	}
	gerr.Op = op
	return gerr
}
