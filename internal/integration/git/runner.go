package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Output is the captured result of one git invocation.
type Output struct {
	Stdout string
	Stderr string
}

// Runner executes git commands. It is the engine's only binding to git,
// so tests can substitute a recording fake.
type Runner interface {
	// Run executes git with args in dir. A non-nil error means the
	// command could not be started or exited non-zero; Output is filled
	// in either case.
	Run(ctx context.Context, dir string, args ...string) (Output, error)
}

// ExecRunner runs the git binary.
type ExecRunner struct {
	// Path is the git executable. Default: "git" from PATH.
	Path string

	// Env is appended to the process environment.
	Env []string
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, dir string, args ...string) (Output, error) {
	path := r.Path
	if path == "" {
		path = "git"
	}
	// A configured path that does not exist fails the same way as a
	// binary missing from PATH.
	if _, err := exec.LookPath(path); err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrToolMissing, err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	// Keep git from prompting for credentials on a terminal nobody watches.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Env = append(cmd.Env, r.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return Output{Stdout: stdout.String(), Stderr: stderr.String()}, err
}

var _ Runner = ExecRunner{}
