package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/ralphmgr/internal/integration/process"
	"github.com/dshills/ralphmgr/internal/project/workspace"
)

// StartLoop runs scriptPath with the configured shell as the supervised
// process, replacing any live one.
//
// An empty scriptPath selects the layout's loop script. A relative
// scriptPath and an empty workingDir are resolved against the workspace
// root. The script must exist before anything is spawned.
func (c *Coordinator) StartLoop(ctx context.Context, scriptPath, workingDir string) (*process.Handle, error) {
	const op = "start_loop"
	if c.closed.Load() {
		return nil, opError(op, ErrCoordinatorClosed)
	}

	script, dir, err := c.loopPaths(scriptPath, workingDir)
	if err != nil {
		return nil, opError(op, err)
	}

	h, err := c.supervisor.Start(ctx, process.Command{
		Name: c.shell,
		Args: []string{script},
		Dir:  dir,
	})
	if err != nil {
		return nil, opError(op, err)
	}
	if h.ReplacedForcefully() {
		c.logger.Warn("previous loop had to be killed", "pid", h.PID())
	}
	return h, nil
}

// StopLoop asks the supervised process to terminate.
func (c *Coordinator) StopLoop(ctx context.Context) error {
	return opError("stop_loop", c.supervisor.Stop(ctx))
}

// LoopState returns the supervisor state.
func (c *Coordinator) LoopState() process.State {
	return c.supervisor.State()
}

// CurrentLoop returns the handle of the supervised process, or nil.
func (c *Coordinator) CurrentLoop() *process.Handle {
	return c.supervisor.Current()
}

// Inspect reports which loop artifacts exist in the active workspace.
func (c *Coordinator) Inspect() (workspace.Artifacts, error) {
	ws := c.Workspace()
	if ws == nil {
		return workspace.Artifacts{}, opError("inspect", ErrNoWorkspace)
	}
	return ws.Inspect(), nil
}

func (c *Coordinator) loopPaths(scriptPath, workingDir string) (string, string, error) {
	ws := c.Workspace()

	var script string
	switch {
	case ws != nil:
		p, err := ws.LoopScript(scriptPath)
		if err != nil {
			return "", "", err
		}
		script = p
	case scriptPath == "":
		return "", "", ErrNoWorkspace
	default:
		p, err := filepath.Abs(scriptPath)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		if info, err := os.Stat(p); err != nil || info.IsDir() {
			return "", "", fmt.Errorf("%s: %w", p, workspace.ErrLoopScriptMissing)
		}
		script = p
	}

	dir := workingDir
	switch {
	case dir == "" && ws != nil:
		dir = ws.Root()
	case dir == "":
		dir = filepath.Dir(script)
	case ws != nil:
		dir = ws.Resolve(dir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return "", "", fmt.Errorf("working directory: %w", err)
	}
	if !info.IsDir() {
		return "", "", fmt.Errorf("%w: working directory %s is not a directory", ErrInvalidArgument, dir)
	}
	return script, dir, nil
}
