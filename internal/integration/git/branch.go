package git

import (
	"context"
	"strings"
)

// CurrentBranch returns the checked out branch. It fails with ErrNoBranch
// when HEAD is detached or the branch has no commits yet.
func (e *Engine) CurrentBranch(ctx context.Context) (string, error) {
	out, err := e.run(ctx, "branch", "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		if KindOf(err) == KindCommand {
			return "", newError("branch", KindNoBranch, "HEAD is detached")
		}
		return "", err
	}
	branch := strings.TrimSpace(out.Stdout)

	if _, err := e.run(ctx, "branch", "rev-parse", "--verify", "-q", "HEAD"); err != nil {
		if KindOf(err) == KindCommand {
			return "", newError("branch", KindNoBranch, "branch "+branch+" has no commits yet")
		}
		return "", err
	}
	return branch, nil
}

// CreateBranch creates a branch at HEAD and checks it out.
func (e *Engine) CreateBranch(ctx context.Context, name string) error {
	if name == "" {
		return &Error{Op: "checkout", Kind: KindInvalid, Detail: "branch name is required"}
	}
	_, err := e.run(ctx, "checkout", "checkout", "-b", name)
	return err
}

// Checkout switches to an existing branch.
func (e *Engine) Checkout(ctx context.Context, name string) error {
	if name == "" {
		return &Error{Op: "checkout", Kind: KindInvalid, Detail: "branch name is required"}
	}
	_, err := e.run(ctx, "checkout", "checkout", name)
	return err
}
