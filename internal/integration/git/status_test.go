package git

import "testing"

func TestParseStatus(t *testing.T) {
	output := "# branch.oid 1111111111111111111111111111111111111111\n" +
		"# branch.head main\n" +
		"# branch.upstream origin/main\n" +
		"# branch.ab +2 -1\n" +
		"1 M. N... 100644 100644 100644 aaa bbb staged.go\n" +
		"1 .M N... 100644 100644 100644 aaa bbb unstaged.go\n" +
		"1 MM N... 100644 100644 100644 aaa bbb both ways.go\n" +
		"2 R. N... 100644 100644 100644 aaa bbb R100 new.go\told.go\n" +
		"u UU N... 100644 100644 100644 100644 aaa bbb ccc conflict.go\n" +
		"? notes.txt\n"

	status, err := parseStatus(output)
	if err != nil {
		t.Fatalf("parseStatus error = %v", err)
	}

	if status.Branch != "main" || status.Upstream != "origin/main" {
		t.Errorf("branch = %q upstream = %q", status.Branch, status.Upstream)
	}
	if status.Ahead != 2 || status.Behind != 1 {
		t.Errorf("ahead/behind = %d/%d, want 2/1", status.Ahead, status.Behind)
	}
	if status.Head == "" {
		t.Error("expected head commit")
	}

	if len(status.Staged) != 3 {
		t.Fatalf("staged = %+v, want 3 entries", status.Staged)
	}
	if status.Staged[1].Path != "both ways.go" {
		t.Errorf("path with space = %q", status.Staged[1].Path)
	}
	if rn := status.Staged[2]; rn.Path != "new.go" || rn.OldPath != "old.go" || rn.Status != StatusRenamed {
		t.Errorf("rename entry = %+v", rn)
	}

	if len(status.Unstaged) != 2 {
		t.Errorf("unstaged = %+v, want 2 entries", status.Unstaged)
	}
	if len(status.Conflicts) != 1 || status.Conflicts[0] != "conflict.go" {
		t.Errorf("conflicts = %v", status.Conflicts)
	}
	if len(status.Untracked) != 1 || status.Untracked[0] != "notes.txt" {
		t.Errorf("untracked = %v", status.Untracked)
	}
	if status.IsClean() {
		t.Error("status should not be clean")
	}
}

func TestParseStatus_InitialAndDetached(t *testing.T) {
	status, err := parseStatus("# branch.oid (initial)\n# branch.head main\n")
	if err != nil {
		t.Fatal(err)
	}
	if status.Head != "" || status.Branch != "main" || !status.IsClean() {
		t.Errorf("initial status = %+v", status)
	}

	status, err = parseStatus("# branch.oid 1111111\n# branch.head (detached)\n")
	if err != nil {
		t.Fatal(err)
	}
	if !status.IsDetached || status.Branch != "" {
		t.Errorf("detached status = %+v", status)
	}
}

func TestStatusCode_String(t *testing.T) {
	tests := []struct {
		code StatusCode
		want string
	}{
		{StatusUnmodified, "unmodified"},
		{StatusModified, "modified"},
		{StatusAdded, "added"},
		{StatusDeleted, "deleted"},
		{StatusRenamed, "renamed"},
		{StatusCopied, "copied"},
		{StatusConflict, "conflict"},
		{StatusCode(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("StatusCode(%d).String() = %q, want %q", tt.code, got, tt.want)
		}
	}
}
