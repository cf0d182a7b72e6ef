package coordination

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/dilagent/internal/constants"
	"github.com/mrz1836/dilagent/internal/domain"
	dilerrors "github.com/mrz1836/dilagent/internal/errors"
)

// startTestServer runs a coordination server on a free loopback port and
// returns a client pointed at it. The server is shut down with the test.
func startTestServer(t *testing.T, svc *Service) *Client {
	t.Helper()

	srv := NewServer(svc, 0)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, srv.Shutdown(shutdownCtx))
		require.NoError(t, <-errCh)
	})

	deadline := time.Now().Add(5 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("coordination server did not bind in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	return NewClient("http://" + srv.Addr().String())
}

// TestServer_WorkerLifecycle drives the full worker protocol over the wire:
// two workers report progress, one proves its hypothesis, and the aggregate
// view reflects all of it.
func TestServer_WorkerLifecycle(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(t)
	client := startTestServer(t, svc)
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	require.NoError(t, client.ReportStatus(ctx, "H001", StatusReportRequest{
		Phase:   "DESIGNING",
		Message: "sketching cache-expiry experiment",
	}))
	require.NoError(t, client.ReportStatus(ctx, "H002", StatusReportRequest{
		Phase:        "TESTING",
		ExperimentID: "E3",
		Message:      "bisecting nil guard",
		Evidence:     map[string]any{"commits_left": 5},
	}))

	require.NoError(t, client.SetResult(ctx, "H001", domain.Proven{
		RootCause: "ttl never applied on write path",
		Evidence:  []string{"entry served 40m past expiry"},
	}))

	statuses, err := client.QueryAllStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, "H001", statuses[0].HypothesisID)
	assert.Equal(t, constants.HypothesisStatusCompleted, statuses[0].Status)
	require.NotNil(t, statuses[0].Result)
	assert.Equal(t, domain.VerdictProven, statuses[0].Result.Value.Verdict())

	assert.Equal(t, "H002", statuses[1].HypothesisID)
	assert.Equal(t, constants.HypothesisStatusRunning, statuses[1].Status)
	assert.Equal(t, "E3", statuses[1].ExperimentID)

	// The durable state matches what the wire reported.
	st, err := store.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, constants.HypothesisStatusCompleted, st.Hypotheses["H001"].Status)
	assert.Equal(t, 2, st.Metrics.StatusReports)
}

func TestServer_ErrorMapping(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	client := startTestServer(t, svc)
	ctx := context.Background()

	// Unknown hypothesis maps to 404 and back to the sentinel.
	err := client.ReportStatus(ctx, "H999", StatusReportRequest{Phase: "TESTING", Message: "hello"})
	require.ErrorIs(t, err, dilerrors.ErrUnknownHypothesis)

	// Schema violations map to 400.
	err = client.ReportStatus(ctx, "H001", StatusReportRequest{Message: "no phase"})
	require.ErrorIs(t, err, dilerrors.ErrInvalidPayload)

	// Reporting against a completed hypothesis maps to 409.
	require.NoError(t, client.SetResult(ctx, "H001", domain.Disproven{Reason: "ruled out"}))
	err = client.ReportStatus(ctx, "H001", StatusReportRequest{Phase: "TESTING", Message: "late"})
	require.ErrorIs(t, err, dilerrors.ErrHypothesisTerminal)
}

func TestServer_ResetOverWire(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	client := startTestServer(t, svc)
	ctx := context.Background()

	require.NoError(t, client.SetResult(ctx, "H001", domain.Proven{RootCause: "found"}))
	require.NoError(t, client.ResetAll(ctx))

	statuses, err := client.QueryAllStatuses(ctx)
	require.NoError(t, err)
	for _, sv := range statuses {
		assert.Equal(t, constants.HypothesisStatusPending, sv.Status)
		assert.Nil(t, sv.Result)
	}

	// Terminal status is exited by the reset; reports flow again.
	require.NoError(t, client.ReportStatus(ctx, "H001", StatusReportRequest{Phase: "DESIGNING", Message: "round two"}))
}
