package constants

// HypothesisStatus represents the state of a hypothesis in the run lifecycle.
// Status values use snake_case for JSON serialization compatibility.
//
// The state machine is deliberately small:
//
//	Pending → Running (first status report)
//	Running → Running (repeated status reports self-loop)
//	Running → Completed (terminal result submitted)
//	any → Pending (administrative reset only, applied to all hypotheses)
//
// Completed is terminal under normal transitions. Failed and Skipped are set
// directly by the manager, never by workers.
type HypothesisStatus string

const (
	// HypothesisStatusPending indicates a hypothesis is registered but no
	// worker has reported against it yet.
	HypothesisStatusPending HypothesisStatus = "pending"

	// HypothesisStatusRunning indicates a worker is actively testing the hypothesis.
	HypothesisStatusRunning HypothesisStatus = "running"

	// HypothesisStatusCompleted indicates a terminal result has been recorded.
	HypothesisStatusCompleted HypothesisStatus = "completed"

	// HypothesisStatusFailed indicates the worker process failed before
	// producing a result. Set by the manager, not via the coordination protocol.
	HypothesisStatusFailed HypothesisStatus = "failed"

	// HypothesisStatusSkipped indicates the manager decided not to run the hypothesis.
	HypothesisStatusSkipped HypothesisStatus = "skipped"
)

// IsTerminalStatus returns true for statuses where no further worker-driven
// transitions are allowed. Only a full administrative reset exits them.
func IsTerminalStatus(status HypothesisStatus) bool {
	switch status {
	case HypothesisStatusCompleted, HypothesisStatusFailed, HypothesisStatusSkipped:
		return true
	case HypothesisStatusPending, HypothesisStatusRunning:
		return false
	default:
		return false
	}
}
