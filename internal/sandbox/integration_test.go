package sandbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/dilagent/internal/git"
	"github.com/mrz1836/dilagent/internal/paths"
)

// requireGit skips the test when no git binary is on PATH.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// tempDir returns a fully resolved temp directory so git's resolved paths
// compare equal to ours.
func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

// hashTree fingerprints every entry under root: relative path plus content
// hash for files, just the relative path for directories.
func hashTree(t *testing.T, root string) map[string]string {
	t.Helper()

	tree := make(map[string]string)
	err := fs.WalkDir(os.DirFS(root), ".", func(p string, d fs.DirEntry, walkErr error) error {
		require.NoError(t, walkErr)
		if d.IsDir() {
			tree[p] = "dir"
			return nil
		}
		data, readErr := os.ReadFile(filepath.Join(root, filepath.FromSlash(p))) //#nosec G304 -- test-controlled path
		require.NoError(t, readErr)
		sum := sha256.Sum256(data)
		tree[p] = hex.EncodeToString(sum[:])
		return nil
	})
	require.NoError(t, err)
	return tree
}

// commitAll stages and commits everything in dir with a pinned identity.
func commitAll(t *testing.T, ctx context.Context, dir, message string) {
	t.Helper()
	_, err := git.RunCommand(ctx, dir, "add", "-A")
	require.NoError(t, err)
	_, err = git.RunCommand(ctx, dir,
		"-c", "user.name=test", "-c", "user.email=test@localhost",
		"commit", "--no-verify", "-m", message)
	require.NoError(t, err)
}

func TestIntegration_HypothesisSandboxesAreIsolated(t *testing.T) {
	t.Parallel()
	requireGit(t)

	ctx := context.Background()

	contextDir := tempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(contextDir, "main.go"), []byte("package main\n"), 0o600))
	_, err := git.RunCommand(ctx, contextDir, "init")
	require.NoError(t, err)
	commitAll(t, ctx, contextDir, "initial")

	registry, err := paths.NewRegistry(tempDir(t))
	require.NoError(t, err)
	mgr := NewManager(registry)

	root, err := mgr.EstablishRootSandbox(ctx, contextDir, "run-4f9a12")
	require.NoError(t, err)

	branch, err := mgr.Branch(ctx, root.SandboxPath)
	require.NoError(t, err)
	assert.Equal(t, "run-4f9a12/main", branch)

	h1, err := mgr.CreateHypothesisSandbox(ctx, "H001", "stale-cache", "run-4f9a12")
	require.NoError(t, err)
	h2, err := mgr.CreateHypothesisSandbox(ctx, "H002", "null-deref", "run-4f9a12")
	require.NoError(t, err)

	// Both start from the same content.
	assert.FileExists(t, filepath.Join(h1, "main.go"))
	assert.FileExists(t, filepath.Join(h2, "main.go"))

	// A write in one sandbox never shows up in a sibling or the root.
	require.NoError(t, os.WriteFile(filepath.Join(h1, "experiment.txt"), []byte("patch attempt\n"), 0o600))
	assert.NoFileExists(t, filepath.Join(h2, "experiment.txt"))
	assert.NoFileExists(t, filepath.Join(root.SandboxPath, "experiment.txt"))
	assert.NoFileExists(t, filepath.Join(contextDir, "experiment.txt"))

	sandboxes, err := mgr.ListSandboxes(ctx)
	require.NoError(t, err)
	branches := make([]string, 0, len(sandboxes))
	for _, sb := range sandboxes {
		branches = append(branches, sb.Branch)
	}
	assert.Contains(t, branches, "run-4f9a12/H001-stale-cache")
	assert.Contains(t, branches, "run-4f9a12/H002-null-deref")
}

func TestIntegration_EstablishFromCopyLeavesContextUntouched(t *testing.T) {
	t.Parallel()
	requireGit(t)

	ctx := context.Background()

	contextDir := tempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(contextDir, "main.go"), []byte("package main\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(contextDir, ".env"), []byte("PORT=8080\n"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(contextDir, "internal"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(contextDir, "internal", "app.go"), []byte("package internal\n"), 0o600))

	before := hashTree(t, contextDir)

	registry, err := paths.NewRegistry(tempDir(t))
	require.NoError(t, err)
	mgr := NewManager(registry)

	root, err := mgr.EstablishRootSandbox(ctx, contextDir, "run-4f9a12")
	require.NoError(t, err)
	assert.Equal(t, ".", root.RelativePath)

	// The copy became a repository on the run branch; the context did not.
	assert.DirExists(t, filepath.Join(root.SandboxPath, ".git"))
	assert.NoDirExists(t, filepath.Join(contextDir, ".git"))

	branch, err := mgr.Branch(ctx, root.SandboxPath)
	require.NoError(t, err)
	assert.Equal(t, "run-4f9a12/main", branch)

	// Byte-for-byte identical afterwards: no entries added, removed, or changed.
	assert.Equal(t, before, hashTree(t, contextDir))
}
