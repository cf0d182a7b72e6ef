// Package sandbox provides version-control-backed isolated working copies for
// dilagent runs. This file implements the Manager which materializes the root
// sandbox and per-hypothesis sandboxes.
//
// Isolation invariants:
//   - the original context directory is never written to and never becomes a
//     sandbox itself;
//   - every git invocation pins its working directory to a sandbox or the
//     discovered repository root;
//   - sandboxes never share working files, only history.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mrz1836/dilagent/internal/ctxutil"
	dilerrors "github.com/mrz1836/dilagent/internal/errors"
	"github.com/mrz1836/dilagent/internal/git"
	"github.com/mrz1836/dilagent/internal/paths"
)

// CommandFunc executes a git command in a working directory and returns its
// trimmed stdout. Production managers use git.RunCommand; tests substitute a
// recorder so no real repositories are needed.
type CommandFunc func(ctx context.Context, workDir string, args ...string) (string, error)

// RootSandbox describes an established root sandbox.
type RootSandbox struct {
	// SandboxPath is the absolute path of the root sandbox working copy.
	SandboxPath string

	// RelativePath locates the original context directory inside the
	// checkout. When the context directory sits below a larger repository
	// the sandbox mirrors the whole repository, and workers need this path
	// to find the content they were pointed at. "." when the context
	// directory is itself the repository root (or was plainly copied).
	RelativePath string
}

// Info describes one attached sandbox worktree.
type Info struct {
	// Path is the absolute worktree path.
	Path string `json:"path"`

	// Branch is the checked-out branch, empty for a detached HEAD.
	Branch string `json:"branch"`

	// HeadCommit is the worktree HEAD commit SHA.
	HeadCommit string `json:"head_commit,omitempty"`
}

// Manager creates and removes sandboxes. Operations are blocking external
// command invocations with no built-in timeout or retry; callers apply
// timeouts through ctx.
type Manager struct {
	registry *paths.Registry
	run      CommandFunc
}

// NewManager creates a Manager that shells out to the git CLI.
func NewManager(registry *paths.Registry) *Manager {
	return &Manager{registry: registry, run: git.RunCommand}
}

// NewManagerWithRunner creates a Manager with a custom command runner.
// This is primarily intended for testing.
func NewManagerWithRunner(registry *paths.Registry, run CommandFunc) *Manager {
	return &Manager{registry: registry, run: run}
}

// EstablishRootSandbox materializes the root sandbox for a run.
//
// If contextDir is under version control, the sandbox is a worktree of the
// discovered repository root checked out to a fresh "<runId>/main" branch, and
// RelativePath points at contextDir inside the checkout. Otherwise the context
// directory's entries (hidden files included) are copied into the sandbox, a
// fresh repository is initialized and committed there, and RelativePath is ".".
//
// Any stale worktree registered at the sandbox path is force-removed first;
// only the absence case of that removal is suppressed.
func (m *Manager) EstablishRootSandbox(ctx context.Context, contextDir, runID string) (*RootSandbox, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	if contextDir == "" {
		return nil, fmt.Errorf("context directory cannot be empty: %w", dilerrors.ErrEmptyValue)
	}

	absContext, err := filepath.Abs(contextDir)
	if err != nil {
		return nil, dilerrors.Wrap(err, "failed to resolve context directory")
	}
	if _, err = os.Stat(absContext); err != nil {
		return nil, dilerrors.Wrapf(err, "context directory %q not accessible", contextDir)
	}

	branch, err := paths.RootBranch(runID)
	if err != nil {
		return nil, err
	}

	sandboxPath := m.registry.RootSandboxDir()
	if err = os.MkdirAll(m.registry.DilagentDir(), 0o750); err != nil {
		return nil, dilerrors.Wrap(err, "failed to create dilagent directory")
	}

	if m.isRepository(ctx, absContext) {
		return m.establishFromRepository(ctx, absContext, sandboxPath, branch)
	}
	return m.establishFromCopy(ctx, absContext, sandboxPath, branch)
}

// establishFromRepository creates the root sandbox as a worktree of the
// repository containing contextDir.
func (m *Manager) establishFromRepository(ctx context.Context, absContext, sandboxPath, branch string) (*RootSandbox, error) {
	repoRoot, err := m.run(ctx, absContext, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dilerrors.ErrNotGitRepo, err)
	}

	relPath, err := filepath.Rel(repoRoot, absContext)
	if err != nil {
		return nil, dilerrors.Wrap(err, "failed to relativize context directory")
	}

	if err = m.ensureWorktreeAbsent(ctx, repoRoot, sandboxPath); err != nil {
		return nil, err
	}

	if _, err = m.run(ctx, repoRoot, "worktree", "add", sandboxPath, "-b", branch); err != nil {
		return nil, classifyWorktreeError(err, branch)
	}

	log.Info().
		Str("sandbox_path", sandboxPath).
		Str("branch", branch).
		Str("repo_root", repoRoot).
		Str("relative_path", relPath).
		Msg("root sandbox established from repository")

	return &RootSandbox{SandboxPath: sandboxPath, RelativePath: relPath}, nil
}

// establishFromCopy creates the root sandbox by copying the context directory
// and initializing a fresh repository inside the copy. The context directory
// itself is only ever read.
//
// The metadata directory lives under the working root, which may sit inside
// the context directory (serve --context-dir . from the working root). The
// copy must not descend into its own destination, so that subtree is skipped.
func (m *Manager) establishFromCopy(ctx context.Context, absContext, sandboxPath, branch string) (*RootSandbox, error) {
	dilagentDir := m.registry.DilagentDir()
	if containsPath(dilagentDir, absContext) {
		return nil, fmt.Errorf("context directory %q is inside the dilagent metadata directory %q: %w",
			absContext, dilagentDir, dilerrors.ErrValueOutOfRange)
	}

	skip := ""
	if containsPath(absContext, dilagentDir) {
		rel, relErr := filepath.Rel(absContext, dilagentDir)
		if relErr != nil {
			return nil, dilerrors.Wrap(relErr, "failed to relativize metadata directory")
		}
		skip = filepath.ToSlash(rel)
	}

	// A stale copy-based sandbox is just a directory; remove it wholesale.
	if err := os.RemoveAll(sandboxPath); err != nil {
		return nil, dilerrors.Wrap(err, "failed to remove stale sandbox")
	}
	if err := os.MkdirAll(sandboxPath, 0o750); err != nil {
		return nil, dilerrors.Wrap(err, "failed to create sandbox directory")
	}

	if err := copyTree(absContext, sandboxPath, skip); err != nil {
		return nil, dilerrors.Wrap(err, "failed to copy context directory")
	}

	// Initialize, commit everything, and land on the run branch. Identity is
	// pinned per-invocation so commits work on hosts without git config.
	steps := [][]string{
		{"init"},
		{"add", "-A"},
		{"-c", "user.name=dilagent", "-c", "user.email=dilagent@localhost",
			"commit", "--no-verify", "-m", "dilagent: import context directory"},
		{"checkout", "-b", branch},
	}
	for _, args := range steps {
		if _, err := m.run(ctx, sandboxPath, args...); err != nil {
			return nil, dilerrors.Wrapf(err, "failed to initialize sandbox repository (git %s)", args[0])
		}
	}

	log.Info().
		Str("sandbox_path", sandboxPath).
		Str("branch", branch).
		Str("context_dir", absContext).
		Msg("root sandbox established from copy")

	return &RootSandbox{SandboxPath: sandboxPath, RelativePath: "."}, nil
}

// CreateHypothesisSandbox creates an isolated worktree for one hypothesis,
// branched from the root sandbox's current head. The root sandbox must already
// be a valid repository.
func (m *Manager) CreateHypothesisSandbox(ctx context.Context, hypothesisID, hypothesisSlug, runID string) (string, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return "", err
	}

	rootPath := m.registry.RootSandboxDir()
	if !m.isRepository(ctx, rootPath) {
		return "", fmt.Errorf("root sandbox at %q is missing or invalid: %w", rootPath, dilerrors.ErrRepositoryNotFound)
	}

	sandboxPath, err := m.registry.HypothesisSandboxDir(hypothesisID, hypothesisSlug)
	if err != nil {
		return "", err
	}
	branch, err := paths.HypothesisBranch(runID, hypothesisID, hypothesisSlug)
	if err != nil {
		return "", err
	}

	if err = m.ensureWorktreeAbsent(ctx, rootPath, sandboxPath); err != nil {
		return "", err
	}

	if _, err = m.run(ctx, rootPath, "worktree", "add", sandboxPath, "-b", branch); err != nil {
		return "", classifyWorktreeError(err, branch)
	}

	log.Info().
		Str("hypothesis_id", hypothesisID).
		Str("sandbox_path", sandboxPath).
		Str("branch", branch).
		Msg("hypothesis sandbox created")

	return sandboxPath, nil
}

// ListSandboxes returns all worktrees attached to the root sandbox repository,
// parsed from the porcelain listing.
func (m *Manager) ListSandboxes(ctx context.Context) ([]Info, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	output, err := m.run(ctx, m.registry.RootSandboxDir(), "worktree", "list", "--porcelain")
	if err != nil {
		return nil, dilerrors.Wrap(err, "failed to list sandboxes")
	}

	return parseWorktreeList(output), nil
}

// RemoveSandbox detaches the worktree at path. Unlike the stale-cleanup step
// inside sandbox creation, this fails loudly when path is not an attached
// worktree: an administrative removal of something that does not exist is a
// caller bug worth surfacing.
func (m *Manager) RemoveSandbox(ctx context.Context, path string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return dilerrors.Wrap(err, "failed to resolve sandbox path")
	}

	_, err = m.run(ctx, m.registry.RootSandboxDir(), "worktree", "remove", "--force", absPath)
	if err != nil {
		if isAbsenceError(err) {
			return fmt.Errorf("'%s' is not an attached sandbox: %w", path, dilerrors.ErrNotAWorktree)
		}
		return fmt.Errorf("failed to remove sandbox '%s': %w: %w", path, dilerrors.ErrWorktreeOperation, err)
	}

	log.Info().Str("sandbox_path", absPath).Msg("sandbox removed")
	return nil
}

// Branch returns the currently checked-out branch of the sandbox at path.
func (m *Manager) Branch(ctx context.Context, path string) (string, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return "", err
	}

	branch, err := m.run(ctx, path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", dilerrors.Wrapf(err, "failed to read branch of sandbox %q", path)
	}
	return branch, nil
}

// isRepository reports whether dir is inside a git working tree.
func (m *Manager) isRepository(ctx context.Context, dir string) bool {
	if _, err := os.Stat(dir); err != nil {
		return false
	}
	out, err := m.run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// ensureWorktreeAbsent force-removes any stale worktree registered at path,
// then clears an orphaned directory left behind by a previous failed run.
// Only the absence case of the removal is suppressed; any other failure is
// returned to the caller.
func (m *Manager) ensureWorktreeAbsent(ctx context.Context, repoDir, path string) error {
	_, err := m.run(ctx, repoDir, "worktree", "remove", "--force", path)
	if err != nil && !isAbsenceError(err) {
		return fmt.Errorf("failed to remove stale worktree '%s': %w: %w", path, dilerrors.ErrWorktreeOperation, err)
	}
	if err == nil {
		log.Debug().Str("path", path).Msg("removed stale worktree")
	}

	// The directory may survive the removal (or never have been registered).
	if _, statErr := os.Stat(path); statErr == nil {
		log.Debug().Str("path", path).Msg("removing orphaned sandbox directory")
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return dilerrors.Wrapf(rmErr, "failed to remove orphaned directory '%s'", path)
		}
	}

	return nil
}

// containsPath reports whether path equals dir or lies below it.
// Both arguments must be absolute and cleaned.
func containsPath(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// copyTree copies the tree rooted at src into dst. skip names one subtree
// (slash-separated, relative to src; empty for none) that is left out of the
// copy. Symlinks and other irregular entries are skipped; run content is
// regular files and directories.
func copyTree(src, dst, skip string) error {
	return fs.WalkDir(os.DirFS(src), ".", func(entry string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if skip != "" && entry == skip {
			return fs.SkipDir
		}

		target := filepath.Join(dst, filepath.FromSlash(entry))
		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode().IsRegular():
			return copyFile(filepath.Join(src, filepath.FromSlash(entry)), target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

// copyFile copies one regular file, preserving its permission bits.
func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src) //#nosec G304 -- path comes from walking the validated context directory
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// isAbsenceError reports whether a worktree removal failed only because
// nothing was there to remove.
func isAbsenceError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "is not a working tree") ||
		strings.Contains(msg, "No such file or directory") ||
		strings.Contains(msg, "not a valid path")
}

// classifyWorktreeError maps a failed worktree add onto the error taxonomy.
// Branch collisions get their own sentinel so callers can distinguish them
// from disk-level failures.
func classifyWorktreeError(err error, branch string) error {
	msg := err.Error()
	if strings.Contains(msg, "already exists") && strings.Contains(msg, branch) {
		return fmt.Errorf("branch '%s' already exists: %w: %w", branch, dilerrors.ErrBranchExists, dilerrors.ErrWorktreeOperation)
	}
	return fmt.Errorf("failed to add worktree on branch '%s': %w: %w", branch, dilerrors.ErrWorktreeOperation, err)
}
