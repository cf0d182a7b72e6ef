package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/dilagent/internal/constants"
	"github.com/mrz1836/dilagent/internal/domain"
	"github.com/mrz1836/dilagent/internal/sandbox"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-10", truncate("exactly-10", 10))
	assert.Equal(t, "way-too-l…", truncate("way-too-long-value", 10))
}

func TestOutputSandboxesTable(t *testing.T) {
	t.Parallel()

	sandboxes := []sandbox.Info{
		{Path: "/work/run-abcd1234-H001", Branch: "run-abcd1234/H001-stale-cache", HeadCommit: "0123456789abcdef"},
		{Path: "/work/detached", Branch: "", HeadCommit: "fedcba98"},
	}

	var buf bytes.Buffer
	require.NoError(t, outputSandboxesTable(&buf, sandboxes))

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Contains(t, lines[0], "PATH")
	assert.Contains(t, lines[0], "BRANCH")
	assert.Contains(t, lines[0], "HEAD")
	assert.Contains(t, lines[1], "run-abcd1234/H001-stale-cache")
	assert.Contains(t, lines[1], "01234567")
	assert.NotContains(t, lines[1], "0123456789abcdef")
	assert.Contains(t, lines[2], "(detached)")
}

func TestOutputSandboxesJSON(t *testing.T) {
	t.Parallel()

	sandboxes := []sandbox.Info{
		{Path: "/work/root", Branch: "run-abcd1234/main", HeadCommit: "deadbeef"},
	}

	var buf bytes.Buffer
	require.NoError(t, outputSandboxesJSON(&buf, sandboxes))

	out := buf.String()
	assert.Contains(t, out, `"run-abcd1234/main"`)
	assert.Contains(t, out, `"deadbeef"`)
}

func TestFormatEvent(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	phaseEv := domain.NewPhaseEvent("phase_started", constants.PhaseExperimentation, nil)
	phaseEv.Timestamp = ts
	assert.Equal(t, "2026-03-14T09:26:53Z phase [experimentation] phase_started", formatEvent(phaseEv))

	hypEv := domain.NewHypothesisEvent("status_reported", "H001", nil)
	hypEv.Timestamp = ts
	assert.Equal(t, "2026-03-14T09:26:53Z hypothesis [H001] status_reported", formatEvent(hypEv))

	sysEv := domain.NewSystemEvent("manager_started", nil)
	sysEv.Timestamp = ts
	assert.Equal(t, "2026-03-14T09:26:53Z system manager_started", formatEvent(sysEv))
}
