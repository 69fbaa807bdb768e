// Package github lists and clones repositories through the GitHub CLI.
//
// The client shells out to the gh binary, which owns authentication.
// Listing asks gh for JSON and reads it with gjson.
package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultLimit is the number of repositories listed when no limit is given.
const DefaultLimit = 50

// Common errors.
var (
	ErrToolMissing   = errors.New("gh CLI not found")
	ErrCommandFailed = errors.New("gh command failed")
	ErrBadResponse   = errors.New("failed to parse GitHub response")
	ErrInvalidRepo   = errors.New("invalid repository name")
)

// Repo is one repository from a listing.
type Repo struct {
	Name        string
	Owner       string
	Description string
}

// FullName returns "owner/name".
func (r Repo) FullName() string {
	if r.Owner == "" {
		return r.Name
	}
	return r.Owner + "/" + r.Name
}

// Runner executes the gh binary.
type Runner interface {
	Run(ctx context.Context, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs gh with os/exec.
type ExecRunner struct {
	// Path is the gh binary. Empty means "gh" from PATH.
	Path string
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	bin := r.Path
	if bin == "" {
		bin = "gh"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrToolMissing, err)
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Client talks to GitHub through gh.
type Client struct {
	runner Runner
}

// Option configures a Client.
type Option func(*Client)

// WithRunner sets the command runner.
func WithRunner(r Runner) Option {
	return func(c *Client) {
		if r != nil {
			c.runner = r
		}
	}
}

// NewClient creates a client.
func NewClient(opts ...Option) *Client {
	c := &Client{runner: ExecRunner{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListRepos lists up to limit repositories of the authenticated user.
func (c *Client) ListRepos(ctx context.Context, limit int) ([]Repo, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	out, err := c.run(ctx, "repo", "list", "--limit", strconv.Itoa(limit), "--json", "name,owner,description")
	if err != nil {
		return nil, err
	}
	return parseRepos(out)
}

// Clone clones repo ("owner/name" or "name") into dir. An empty dir lets
// gh choose the directory.
func (c *Client) Clone(ctx context.Context, repo, dir string) error {
	repo = strings.TrimSpace(repo)
	if repo == "" || strings.HasPrefix(repo, "-") {
		return fmt.Errorf("%w: %q", ErrInvalidRepo, repo)
	}

	args := []string{"repo", "clone", repo}
	if dir != "" {
		args = append(args, dir)
	}
	_, err := c.run(ctx, args...)
	return err
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	stdout, stderr, err := c.runner.Run(ctx, args...)
	if err == nil {
		return stdout, nil
	}
	if errors.Is(err, ErrToolMissing) {
		return nil, err
	}
	if errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrToolMissing, err)
	}

	detail := strings.TrimSpace(string(stderr))
	if detail == "" {
		detail = err.Error()
	}
	return nil, fmt.Errorf("%w: gh %s: %s", ErrCommandFailed, args[0]+" "+args[1], detail)
}

func parseRepos(out []byte) ([]Repo, error) {
	if !gjson.ValidBytes(out) {
		return nil, ErrBadResponse
	}
	result := gjson.ParseBytes(out)
	if !result.IsArray() {
		return nil, ErrBadResponse
	}

	var repos []Repo
	result.ForEach(func(_, value gjson.Result) bool {
		repos = append(repos, Repo{
			Name:        value.Get("name").String(),
			Owner:       value.Get("owner.login").String(),
			Description: value.Get("description").String(),
		})
		return true
	})
	return repos, nil
}
