// Package sandbox provides version-control-backed isolated working copies.
// This file parses the machine-readable worktree listing.
package sandbox

import "strings"

// parseWorktreeList parses `git worktree list --porcelain` output.
// Blocks are separated by blank lines; each block carries a "worktree <path>"
// line, optionally a "HEAD <sha>" line, and a "branch refs/heads/<name>" line
// whose ref prefix is stripped. Detached worktrees have no branch line.
func parseWorktreeList(output string) []Info {
	var infos []Info
	var current *Info

	flush := func() {
		if current != nil {
			infos = append(infos, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			current = &Info{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "HEAD ") && current != nil:
			current.HeadCommit = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch ") && current != nil:
			current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "" && current != nil:
			flush()
		}
	}
	flush()

	return infos
}
