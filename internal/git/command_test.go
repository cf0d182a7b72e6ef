package git

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dilerrors "github.com/mrz1836/dilagent/internal/errors"
)

// requireGit skips the test when no git binary is on PATH.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func TestRunCommand_Success(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir := t.TempDir()
	_, err := RunCommand(context.Background(), dir, "init")
	require.NoError(t, err)

	assert.True(t, IsRepository(context.Background(), dir))
}

func TestRunCommand_FailureWrapsSentinel(t *testing.T) {
	t.Parallel()
	requireGit(t)

	// rev-parse outside any repository fails with stderr.
	_, err := RunCommand(context.Background(), t.TempDir(), "rev-parse", "--show-toplevel")
	require.ErrorIs(t, err, dilerrors.ErrCommandFailed)
	assert.Contains(t, err.Error(), "rev-parse")
}

func TestRunCommand_CanceledContext(t *testing.T) {
	t.Parallel()
	requireGit(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunCommand(ctx, t.TempDir(), "status")
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsRepository_PlainDirectory(t *testing.T) {
	t.Parallel()
	requireGit(t)

	assert.False(t, IsRepository(context.Background(), t.TempDir()))
}

func TestRepoRoot(t *testing.T) {
	t.Parallel()
	requireGit(t)

	dir := t.TempDir()
	_, err := RunCommand(context.Background(), dir, "init")
	require.NoError(t, err)

	root, err := RepoRoot(context.Background(), dir)
	require.NoError(t, err)
	assert.NotEmpty(t, root)

	_, err = RepoRoot(context.Background(), t.TempDir())
	require.ErrorIs(t, err, dilerrors.ErrNotGitRepo)
}
