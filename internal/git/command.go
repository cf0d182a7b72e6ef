// Package git provides git command execution for dilagent.
// Sandboxing is built entirely on the git CLI: worktrees give each hypothesis
// an isolated working copy, and every invocation pins its working directory so
// the original context directory is never touched.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	dilerrors "github.com/mrz1836/dilagent/internal/errors"
)

// RunCommand executes a git command with its working directory pinned to
// workDir and returns trimmed stdout. All failures are wrapped with
// ErrCommandFailed and include the subcommand, working directory, and stderr
// for debugging.
func RunCommand(ctx context.Context, workDir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...) //#nosec G204 -- args are constructed internally, not user input
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check for context cancellation
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// Include stderr in error for debugging, wrap with ErrCommandFailed
		if stderr.Len() > 0 {
			return "", fmt.Errorf("git %s in %s failed: %s: %w",
				args[0], workDir, strings.TrimSpace(stderr.String()), dilerrors.ErrCommandFailed)
		}
		return "", fmt.Errorf("git %s in %s failed: %w", args[0], workDir, dilerrors.ErrCommandFailed)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// IsRepository reports whether dir is inside a git working tree.
func IsRepository(ctx context.Context, dir string) bool {
	out, err := RunCommand(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// RepoRoot returns the top-level directory of the repository containing dir.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	out, err := RunCommand(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("%w: %w", dilerrors.ErrNotGitRepo, err)
	}
	return out, nil
}
