package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// setupWorkspace writes a config selecting sh and a loop script into a
// temporary workspace.
func setupWorkspace(t *testing.T, script string) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	cfgPath = filepath.Join(t.TempDir(), "ralphmgr.toml")
	cfg := "[log]\nlevel = \"error\"\n\n[process]\nshell = \"sh\"\n\n[git]\ninitial_branch = \"main\"\nauthor_name = \"Test\"\nauthor_email = \"test@example.com\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	if script != "" {
		if err := os.WriteFile(filepath.Join(dir, "ralph-loop.sh"), []byte(script), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return dir, cfgPath
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if e, ok := err.(*exitError); ok {
		return e.code
	}
	return 1
}

func TestRunCommand(t *testing.T) {
	dir, cfg := setupWorkspace(t, "echo iteration 1\nexit 3\n")

	stdout, _, err := execute(t, "--config", cfg, "--workspace", dir, "run")
	if got := exitCode(err); got != 3 {
		t.Errorf("exit code = %d, want 3 (err %v)", got, err)
	}
	if stdout != "iteration 1\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRunCommand_MissingScript(t *testing.T) {
	dir, cfg := setupWorkspace(t, "")

	_, stderr, err := execute(t, "--config", cfg, "--workspace", dir, "run")
	if exitCode(err) != 1 {
		t.Errorf("err = %v, want exit 1", err)
	}
	if !strings.Contains(stderr, "not_found") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestGitCommands(t *testing.T) {
	dir, cfg := setupWorkspace(t, "echo hi\n")
	base := []string{"--config", cfg, "--workspace", dir}

	if _, _, err := execute(t, append(base, "git", "init")...); err != nil {
		t.Fatalf("git init: %v", err)
	}

	stdout, _, err := execute(t, append(base, "--json", "git", "commit", "-m", "Add loop script")...)
	if err != nil {
		t.Fatalf("git commit: %v", err)
	}
	var res map[string]any
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("commit output is not JSON: %q", stdout)
	}
	if res["success"] != true {
		t.Errorf("commit result = %v", res)
	}

	stdout, _, err = execute(t, append(base, "--json", "git", "commit", "-m", "again")...)
	if exitCode(err) != 1 {
		t.Fatalf("second commit err = %v", err)
	}
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("failure output is not JSON: %q", stdout)
	}
	if res["success"] != false || res["errorKind"] != "nothing_to_commit" {
		t.Errorf("failure result = %v", res)
	}

	stdout, _, err = execute(t, append(base, "git", "log")...)
	if err != nil || !strings.Contains(stdout, "Add loop script") {
		t.Errorf("git log = %q, %v", stdout, err)
	}

	stdout, _, err = execute(t, append(base, "inspect")...)
	if err != nil || !strings.Contains(stdout, "sync disabled") {
		t.Errorf("inspect = %q, %v", stdout, err)
	}
}

func TestReposClone_InvalidRepo(t *testing.T) {
	_, cfg := setupWorkspace(t, "")

	_, stderr, err := execute(t, "--config", cfg, "repos", "clone", "--", "-x", t.TempDir())
	if exitCode(err) != 1 {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(stderr, "invalid") {
		t.Errorf("stderr = %q", stderr)
	}
}
