package integration

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/ralphmgr/internal/integration/git"
	"github.com/dshills/ralphmgr/internal/project/workspace"
)

// EnsureRepo initializes a repository at the workspace root if none
// exists. It reports whether one was created.
func (c *Coordinator) EnsureRepo(ctx context.Context) (bool, error) {
	const op = "ensure_repo"
	e, err := c.engine()
	if err != nil {
		return false, opError(op, err)
	}
	created, err := e.EnsureRepo(ctx)
	return created, opError(op, err)
}

// GitStatus returns the working tree status of the workspace.
func (c *Coordinator) GitStatus(ctx context.Context) (*git.Status, error) {
	const op = "git_status"
	e, err := c.engine()
	if err != nil {
		return nil, opError(op, err)
	}
	st, err := e.Status(ctx)
	return st, opError(op, err)
}

// GitStageAndCommit stages every change and commits it.
func (c *Coordinator) GitStageAndCommit(ctx context.Context, message string) (*git.Commit, error) {
	const op = "git_stage_and_commit"
	e, err := c.engine()
	if err != nil {
		return nil, opError(op, err)
	}
	commit, err := e.StageAndCommit(ctx, message)
	return commit, opError(op, err)
}

// GitSync pulls then pushes branch, or the current branch when empty.
// It returns the branch that was synced.
func (c *Coordinator) GitSync(ctx context.Context, branch string) (string, error) {
	const op = "git_sync"
	e, err := c.engine()
	if err != nil {
		return "", opError(op, err)
	}
	synced, err := e.Sync(ctx, branch)
	return synced, opError(op, err)
}

// GitCommitAndSync stages and commits, then syncs when shouldSync is set
// and a remote is configured.
func (c *Coordinator) GitCommitAndSync(ctx context.Context, message string, shouldSync bool) (*git.CommitResult, error) {
	const op = "git_commit_and_sync"
	e, err := c.engine()
	if err != nil {
		return nil, opError(op, err)
	}
	result, err := e.CommitAndSync(ctx, message, shouldSync)
	return result, opError(op, err)
}

// GitLog returns up to limit commits, newest first.
func (c *Coordinator) GitLog(ctx context.Context, limit int) ([]*git.Commit, error) {
	const op = "git_log"
	e, err := c.engine()
	if err != nil {
		return nil, opError(op, err)
	}
	commits, err := e.Log(ctx, limit)
	return commits, opError(op, err)
}

// GitDiff returns the unstaged diff, or the staged one.
func (c *Coordinator) GitDiff(ctx context.Context, staged bool) (string, error) {
	const op = "git_diff"
	e, err := c.engine()
	if err != nil {
		return "", opError(op, err)
	}
	diff, err := e.Diff(ctx, staged)
	return diff, opError(op, err)
}

// Overview is a summary of the active workspace.
type Overview struct {
	Root      string
	IsRepo    bool
	Status    *git.Status
	Log       []*git.Commit
	Remotes   []git.Remote
	HasRemote bool
	Artifacts workspace.Artifacts
}

// Overview gathers status, recent history and remotes concurrently. A
// workspace without a repository yields an overview with IsRepo unset.
func (c *Coordinator) Overview(ctx context.Context, logLimit int) (*Overview, error) {
	const op = "overview"
	e, err := c.engine()
	if err != nil {
		return nil, opError(op, err)
	}
	ws := c.Workspace()
	if ws == nil {
		return nil, opError(op, ErrNoWorkspace)
	}

	ov := &Overview{Root: ws.Root(), Artifacts: ws.Inspect()}

	isRepo, err := e.IsRepo(ctx)
	if err != nil {
		return nil, opError(op, err)
	}
	if !isRepo {
		return ov, nil
	}
	ov.IsRepo = true

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := e.Status(gctx)
		ov.Status = st
		return err
	})
	g.Go(func() error {
		commits, err := e.Log(gctx, logLimit)
		ov.Log = commits
		return err
	})
	g.Go(func() error {
		remotes, err := e.ListRemotes(gctx)
		ov.Remotes = remotes
		for _, r := range remotes {
			if r.Name == e.Remote() {
				ov.HasRemote = true
			}
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, opError(op, err)
	}
	return ov, nil
}
