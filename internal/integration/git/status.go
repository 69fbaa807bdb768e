package git

import (
	"bufio"
	"context"
	"strconv"
	"strings"
)

// Status returns the working tree status.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	out, err := e.run(ctx, "status", "status", "--porcelain=v2", "--branch", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	return parseStatus(out.Stdout)
}

// HasUncommittedChanges reports whether the working tree is not clean.
// A failing status call is returned as is.
func (e *Engine) HasUncommittedChanges(ctx context.Context) (bool, error) {
	status, err := e.Status(ctx)
	if err != nil {
		return false, err
	}
	return !status.IsClean(), nil
}

// parseStatus parses `git status --porcelain=v2 --branch` output.
func parseStatus(output string) (*Status, error) {
	status := &Status{}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		switch line[0] {
		case '#':
			parseBranchHeader(status, line)
		case '1':
			// Ordinary changed entry
			staged, unstaged := parseOrdinaryEntry(line)
			if staged != nil {
				status.Staged = append(status.Staged, *staged)
			}
			if unstaged != nil {
				status.Unstaged = append(status.Unstaged, *unstaged)
			}
		case '2':
			// Renamed or copied entry
			staged, unstaged := parseRenamedEntry(line)
			if staged != nil {
				status.Staged = append(status.Staged, *staged)
			}
			if unstaged != nil {
				status.Unstaged = append(status.Unstaged, *unstaged)
			}
		case 'u':
			if path := parseUnmergedEntry(line); path != "" {
				status.Conflicts = append(status.Conflicts, path)
			}
		case '?':
			if len(line) > 2 {
				status.Untracked = append(status.Untracked, line[2:])
			}
		}
	}

	return status, scanner.Err()
}

// parseBranchHeader applies one "# branch.*" header line.
func parseBranchHeader(status *Status, line string) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return
	}

	switch fields[1] {
	case "branch.oid":
		if fields[2] != "(initial)" {
			status.Head = fields[2]
		}
	case "branch.head":
		if fields[2] == "(detached)" {
			status.IsDetached = true
		} else {
			status.Branch = fields[2]
		}
	case "branch.upstream":
		status.Upstream = fields[2]
	case "branch.ab":
		if len(fields) >= 4 {
			status.Ahead, _ = strconv.Atoi(strings.TrimPrefix(fields[2], "+"))
			status.Behind, _ = strconv.Atoi(strings.TrimPrefix(fields[3], "-"))
		}
	}
}

// parseOrdinaryEntry parses a porcelain v2 ordinary entry into its index
// and worktree halves.
// Format: 1 <XY> <sub> <mH> <mI> <mW> <hH> <hI> <path>
func parseOrdinaryEntry(line string) (staged, unstaged *FileStatus) {
	fields := strings.SplitN(line, " ", 9)
	if len(fields) < 9 || len(fields[1]) != 2 {
		return nil, nil
	}

	xy := fields[1]
	path := fields[8]

	if xy[0] != '.' {
		staged = &FileStatus{Path: path, Status: charToStatus(xy[0])}
	}
	if xy[1] != '.' {
		unstaged = &FileStatus{Path: path, Status: charToStatus(xy[1])}
	}
	return staged, unstaged
}

// parseRenamedEntry parses a porcelain v2 renamed/copied entry.
// Format: 2 <XY> <sub> <mH> <mI> <mW> <hH> <hI> <X><score> <path><tab><origPath>
func parseRenamedEntry(line string) (staged, unstaged *FileStatus) {
	tabIdx := strings.LastIndex(line, "\t")
	if tabIdx == -1 {
		return nil, nil
	}

	fields := strings.SplitN(line[:tabIdx], " ", 10)
	if len(fields) < 10 || len(fields[1]) != 2 || fields[8] == "" {
		return nil, nil
	}

	xy := fields[1]
	newPath := fields[9]
	oldPath := line[tabIdx+1:]

	code := StatusRenamed
	if fields[8][0] == 'C' {
		code = StatusCopied
	}

	if xy[0] != '.' {
		staged = &FileStatus{Path: newPath, OldPath: oldPath, Status: code}
	}
	if xy[1] != '.' {
		unstaged = &FileStatus{Path: newPath, Status: charToStatus(xy[1])}
	}
	return staged, unstaged
}

// parseUnmergedEntry parses a porcelain v2 unmerged entry.
// Format: u <XY> <sub> <m1> <m2> <m3> <mW> <h1> <h2> <h3> <path>
func parseUnmergedEntry(line string) string {
	fields := strings.SplitN(line, " ", 11)
	if len(fields) < 11 {
		return ""
	}
	return fields[10]
}

// charToStatus converts a porcelain status character to StatusCode.
func charToStatus(c byte) StatusCode {
	switch c {
	case 'M', 'T':
		return StatusModified
	case 'A':
		return StatusAdded
	case 'D':
		return StatusDeleted
	case 'R':
		return StatusRenamed
	case 'C':
		return StatusCopied
	case 'U':
		return StatusConflict
	default:
		return StatusUnmodified
	}
}
