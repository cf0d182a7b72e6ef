package paths

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/dilagent/internal/errors"
)

func TestNewRegistry_AbsolutePaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	r, err := NewRegistry(root)
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(r.WorkingRoot()))
	assert.Equal(t, filepath.Join(root, ".dilagent"), r.DilagentDir())
	assert.Equal(t, filepath.Join(root, ".dilagent", "logs"), r.LogsDir())
	assert.Equal(t, filepath.Join(root, ".dilagent", "artifacts"), r.ArtifactsDir())
	assert.Equal(t, filepath.Join(root, ".dilagent", "context-repo"), r.RootSandboxDir())
	assert.Equal(t, filepath.Join(root, ".dilagent", "state.json"), r.StateFile())
	assert.Equal(t, filepath.Join(root, ".dilagent", "timeline.json"), r.TimelineFile())
	assert.Equal(t, filepath.Join(root, ".dilagent", "logs", "dilagent.log"), r.ManagerLogFile())
}

func TestNewRegistry_RelativeRootResolved(t *testing.T) {
	// Not parallel: depends on the process working directory.
	t.Chdir(t.TempDir())

	r, err := NewRegistry(".")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(r.WorkingRoot()))
}

func TestHypothesisSandboxDir(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(t.TempDir())
	require.NoError(t, err)

	dir, err := r.HypothesisSandboxDir("H001", "null-deref")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.DilagentDir(), "H001-null-deref"), dir)

	_, err = r.HypothesisSandboxDir("../escape", "slug")
	require.ErrorIs(t, err, errors.ErrInvalidIdentifier)
}

func TestBranchNames(t *testing.T) {
	t.Parallel()

	branch, err := RootBranch("run-4f9a12")
	require.NoError(t, err)
	assert.Equal(t, "run-4f9a12/main", branch)

	branch, err = HypothesisBranch("run-4f9a12", "H002", "stale-cache")
	require.NoError(t, err)
	assert.Equal(t, "run-4f9a12/H002-stale-cache", branch)

	_, err = RootBranch("")
	require.ErrorIs(t, err, errors.ErrEmptyValue)

	_, err = HypothesisBranch("run-4f9a12", "H 02", "slug")
	require.ErrorIs(t, err, errors.ErrInvalidIdentifier)
}

func TestValidateIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ident   string
		wantErr error
	}{
		{name: "simple", ident: "H001"},
		{name: "with dash and underscore", ident: "run-4f9a12_x"},
		{name: "empty", ident: "", wantErr: errors.ErrEmptyValue},
		{name: "leading dash", ident: "-H001", wantErr: errors.ErrInvalidIdentifier},
		{name: "path traversal", ident: "../etc", wantErr: errors.ErrInvalidIdentifier},
		{name: "embedded slash", ident: "a/b", wantErr: errors.ErrInvalidIdentifier},
		{name: "whitespace", ident: "H 001", wantErr: errors.ErrInvalidIdentifier},
		{name: "too long", ident: strings.Repeat("a", 200), wantErr: errors.ErrValueOutOfRange},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateIdentifier(tc.ident)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain words", input: "Null pointer in parser", expected: "null-pointer-in-parser"},
		{name: "punctuation stripped", input: "stale cache?! (redis)", expected: "stale-cache-redis"},
		{name: "collapses separators", input: "a  --  b", expected: "a-b"},
		{name: "already clean", input: "stale-cache", expected: "stale-cache"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, Slugify(tc.input))
		})
	}
}
