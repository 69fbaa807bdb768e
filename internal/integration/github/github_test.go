package github

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

type fakeRunner struct {
	stdout string
	stderr string
	err    error
	calls  [][]string
}

func (f *fakeRunner) Run(_ context.Context, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, args)
	return []byte(f.stdout), []byte(f.stderr), f.err
}

func TestListRepos(t *testing.T) {
	fr := &fakeRunner{stdout: `[
		{"name":"ralph","owner":{"id":"1","login":"dshills"},"description":"loop runner"},
		{"name":"notes","owner":{"login":"dshills"},"description":""}
	]`}
	c := NewClient(WithRunner(fr))

	repos, err := c.ListRepos(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRepos error = %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("repos = %+v", repos)
	}
	if repos[0].FullName() != "dshills/ralph" || repos[0].Description != "loop runner" {
		t.Errorf("repos[0] = %+v", repos[0])
	}

	got := strings.Join(fr.calls[0], " ")
	if got != "repo list --limit 50 --json name,owner,description" {
		t.Errorf("args = %q", got)
	}
}

func TestListRepos_BadResponse(t *testing.T) {
	for _, out := range []string{"", "not json", `{"name":"x"}`} {
		c := NewClient(WithRunner(&fakeRunner{stdout: out}))
		if _, err := c.ListRepos(context.Background(), 10); !errors.Is(err, ErrBadResponse) {
			t.Errorf("ListRepos(%q) error = %v, want ErrBadResponse", out, err)
		}
	}
}

func TestListRepos_CommandFailed(t *testing.T) {
	fr := &fakeRunner{stderr: "To get started with GitHub CLI, please run: gh auth login\n", err: errors.New("exit status 4")}
	c := NewClient(WithRunner(fr))

	_, err := c.ListRepos(context.Background(), 10)
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("error = %v, want ErrCommandFailed", err)
	}
	if !strings.Contains(err.Error(), "gh auth login") {
		t.Errorf("error %q lacks stderr detail", err)
	}
}

func TestToolMissing(t *testing.T) {
	for _, path := range []string{"gh-binary-that-does-not-exist", "/nonexistent/bin/gh"} {
		c := NewClient(WithRunner(ExecRunner{Path: path}))

		_, err := c.ListRepos(context.Background(), 1)
		if !errors.Is(err, ErrToolMissing) || errors.Is(err, ErrCommandFailed) {
			t.Errorf("ListRepos with %q: error = %v, want ErrToolMissing", path, err)
		}
	}

	fr := &fakeRunner{err: exec.ErrNotFound}
	if err := NewClient(WithRunner(fr)).Clone(context.Background(), "a/b", ""); !errors.Is(err, ErrToolMissing) {
		t.Errorf("Clone error = %v, want ErrToolMissing", err)
	}
}

func TestClone(t *testing.T) {
	fr := &fakeRunner{}
	c := NewClient(WithRunner(fr))

	if err := c.Clone(context.Background(), "dshills/ralph", "/tmp/ralph"); err != nil {
		t.Fatalf("Clone error = %v", err)
	}
	if got := strings.Join(fr.calls[0], " "); got != "repo clone dshills/ralph /tmp/ralph" {
		t.Errorf("args = %q", got)
	}

	for _, repo := range []string{"", "  ", "--help"} {
		if err := c.Clone(context.Background(), repo, ""); !errors.Is(err, ErrInvalidRepo) {
			t.Errorf("Clone(%q) error = %v, want ErrInvalidRepo", repo, err)
		}
	}
}
