package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWorktreeList(t *testing.T) {
	t.Parallel()

	output := "worktree /work/.dilagent/context-repo\n" +
		"HEAD aaaa1111aaaa1111aaaa1111aaaa1111aaaa1111\n" +
		"branch refs/heads/run-4f9a12/main\n" +
		"\n" +
		"worktree /work/.dilagent/H001-stale-cache\n" +
		"HEAD bbbb2222bbbb2222bbbb2222bbbb2222bbbb2222\n" +
		"branch refs/heads/run-4f9a12/H001-stale-cache\n" +
		"\n" +
		"worktree /work/.dilagent/detached-probe\n" +
		"HEAD cccc3333cccc3333cccc3333cccc3333cccc3333\n" +
		"detached\n"

	infos := parseWorktreeList(output)
	require.Len(t, infos, 3)

	assert.Equal(t, "/work/.dilagent/context-repo", infos[0].Path)
	assert.Equal(t, "run-4f9a12/main", infos[0].Branch)
	assert.Equal(t, "aaaa1111aaaa1111aaaa1111aaaa1111aaaa1111", infos[0].HeadCommit)

	assert.Equal(t, "run-4f9a12/H001-stale-cache", infos[1].Branch)

	// Detached worktrees carry no branch.
	assert.Equal(t, "/work/.dilagent/detached-probe", infos[2].Path)
	assert.Empty(t, infos[2].Branch)
}

func TestParseWorktreeList_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, parseWorktreeList(""))
	assert.Empty(t, parseWorktreeList("\n\n"))
}

func TestParseWorktreeList_CRLF(t *testing.T) {
	t.Parallel()

	output := "worktree /work/.dilagent/context-repo\r\n" +
		"branch refs/heads/run-4f9a12/main\r\n"

	infos := parseWorktreeList(output)
	require.Len(t, infos, 1)
	assert.Equal(t, "/work/.dilagent/context-repo", infos[0].Path)
	assert.Equal(t, "run-4f9a12/main", infos[0].Branch)
}
