package coordination

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/dilagent/internal/constants"
	"github.com/mrz1836/dilagent/internal/domain"
	dilerrors "github.com/mrz1836/dilagent/internal/errors"
	"github.com/mrz1836/dilagent/internal/paths"
	"github.com/mrz1836/dilagent/internal/state"
	"github.com/mrz1836/dilagent/internal/timeline"
)

// stubClock returns strictly increasing timestamps.
type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

// newTestService wires a service over a fresh working root with two
// registered hypotheses.
func newTestService(t *testing.T) (*Service, *state.Store, *timeline.Log) {
	t.Helper()

	registry, err := paths.NewRegistry(t.TempDir())
	require.NoError(t, err)

	clk := newStubClock()
	store := state.NewStore(registry, state.Options{AutoPersist: true, RunID: "run-4f9a12", Clock: clk})
	tl := timeline.NewLog(registry, timeline.Options{AutoPersist: true, Clock: clk})

	ctx := context.Background()
	require.NoError(t, store.RegisterHypothesis(ctx, "H001", "stale-cache", "cache outlives TTL"))
	require.NoError(t, store.RegisterHypothesis(ctx, "H002", "null-deref", "nil guard missing"))

	return NewService(store, tl, clk), store, tl
}

func TestReportStatus_MarksRunning(t *testing.T) {
	t.Parallel()

	svc, store, tl := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.ReportStatus(ctx, "H001", "DESIGNING", "", "sketching experiment", nil))
	require.NoError(t, svc.ReportStatus(ctx, "H001", "TESTING", "E1", "running repro", map[string]any{"attempt": 1}))

	st, err := store.State(ctx)
	require.NoError(t, err)
	record := st.Hypotheses["H001"]
	assert.Equal(t, constants.HypothesisStatusRunning, record.Status)
	require.NotNil(t, record.StartedAt)
	assert.Equal(t, 2, st.Metrics.StatusReports)

	// StartedAt is stamped by the first report only.
	firstStart := *record.StartedAt
	require.NoError(t, svc.ReportStatus(ctx, "H001", "TESTING", "E1", "still running", nil))
	st, err = store.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, firstStart, *st.Hypotheses["H001"].StartedAt)

	events, err := tl.Events(ctx, timeline.Filter{HypothesisID: "H001"})
	require.NoError(t, err)
	assert.Len(t, events, 3)
	assert.Equal(t, "status_reported", events[0].Name)
}

func TestReportStatus_UnknownHypothesis(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	err := svc.ReportStatus(context.Background(), "H999", "TESTING", "", "hello", nil)
	require.ErrorIs(t, err, dilerrors.ErrUnknownHypothesis)
}

func TestReportStatus_TerminalRefused(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetResult(ctx, "H001", domain.Proven{RootCause: "ttl never applied"}))

	err := svc.ReportStatus(ctx, "H001", "TESTING", "", "late report", nil)
	require.ErrorIs(t, err, dilerrors.ErrHypothesisTerminal)

	// The refused report changed nothing.
	st, err := store.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, constants.HypothesisStatusCompleted, st.Hypotheses["H001"].Status)
	assert.Zero(t, st.Metrics.StatusReports)
}

func TestSetResult_RecordsTerminalState(t *testing.T) {
	t.Parallel()

	svc, store, tl := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.ReportStatus(ctx, "H001", "TESTING", "E1", "running", nil))
	require.NoError(t, svc.SetResult(ctx, "H001", domain.Proven{
		RootCause: "ttl never applied",
		Evidence:  []string{"cache entry served 40m past expiry"},
	}))

	st, err := store.State(ctx)
	require.NoError(t, err)
	record := st.Hypotheses["H001"]
	assert.Equal(t, constants.HypothesisStatusCompleted, record.Status)
	require.NotNil(t, record.Result)
	assert.Equal(t, domain.VerdictProven, record.Result.Value.Verdict())
	require.NotNil(t, record.CompletedAt)
	assert.Equal(t, 1, st.Metrics.HypothesesCompleted)

	events, err := tl.Events(ctx, timeline.Filter{HypothesisID: "H001"})
	require.NoError(t, err)
	assert.Equal(t, "result_recorded", events[len(events)-1].Name)
}

func TestSetResult_LastWriterWins(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetResult(ctx, "H001", domain.Proven{RootCause: "first"}))
	require.NoError(t, svc.SetResult(ctx, "H001", domain.Disproven{Reason: "second submission"}))

	st, err := store.State(ctx)
	require.NoError(t, err)
	record := st.Hypotheses["H001"]
	assert.Equal(t, domain.VerdictDisproven, record.Result.Value.Verdict())
	// The overwrite does not double-count completion.
	assert.Equal(t, 1, st.Metrics.HypothesesCompleted)
}

func TestSetResult_InvalidInput(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.SetResult(ctx, "H001", nil), dilerrors.ErrInvalidResult)
	require.ErrorIs(t, svc.SetResult(ctx, "H999", domain.Proven{RootCause: "x"}), dilerrors.ErrUnknownHypothesis)
}

func TestQueryAllStatuses(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.ReportStatus(ctx, "H002", "TESTING", "E7", "bisecting", nil))
	require.NoError(t, svc.SetResult(ctx, "H001", domain.Disproven{Reason: "ruled out"}))

	views, err := svc.QueryAllStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)

	// Sorted by hypothesis id.
	assert.Equal(t, "H001", views[0].HypothesisID)
	assert.Equal(t, "H002", views[1].HypothesisID)

	assert.Equal(t, constants.HypothesisStatusCompleted, views[0].Status)
	require.NotNil(t, views[0].Result)

	assert.Equal(t, constants.HypothesisStatusRunning, views[1].Status)
	assert.Equal(t, "TESTING", views[1].Phase)
	assert.Equal(t, "E7", views[1].ExperimentID)
	assert.Equal(t, "bisecting", views[1].Message)
	require.NotNil(t, views[1].ReportedAt)
}

func TestResetAll(t *testing.T) {
	t.Parallel()

	svc, store, tl := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.ReportStatus(ctx, "H001", "TESTING", "", "running", nil))
	require.NoError(t, svc.SetResult(ctx, "H002", domain.Inconclusive{Reason: "blocked"}))

	require.NoError(t, svc.ResetAll(ctx))
	// Idempotent: resetting an all-pending run is still fine.
	require.NoError(t, svc.ResetAll(ctx))

	st, err := store.State(ctx)
	require.NoError(t, err)
	for _, record := range st.Hypotheses {
		assert.Equal(t, constants.HypothesisStatusPending, record.Status)
		assert.Nil(t, record.Result)
	}

	// Transient progress reports are gone from the status view.
	views, err := svc.QueryAllStatuses(ctx)
	require.NoError(t, err)
	for _, view := range views {
		assert.Empty(t, view.Phase)
		assert.Nil(t, view.ReportedAt)
	}

	events, err := tl.Events(ctx, timeline.Filter{})
	require.NoError(t, err)
	resets := 0
	for _, ev := range events {
		if ev.Name == "hypotheses_reset" {
			resets++
		}
	}
	assert.Equal(t, 2, resets)

	// A reset hypothesis accepts reports again.
	require.NoError(t, svc.ReportStatus(ctx, "H002", "DESIGNING", "", "starting over", nil))
}
