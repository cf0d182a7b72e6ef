package constants

// Phase represents a stage of a debugging run.
type Phase string

// Run phases, in workflow order. SetPhase appends to the completed-phases
// list only when the run moves forward through this order.
const (
	// PhaseSetup covers sandbox materialization and state initialization.
	PhaseSetup Phase = "setup"

	// PhaseHypothesisGeneration covers producing candidate root causes.
	PhaseHypothesisGeneration Phase = "hypothesis_generation"

	// PhaseExperimentation covers parallel worker execution.
	PhaseExperimentation Phase = "experimentation"

	// PhaseReporting covers aggregation of worker results.
	PhaseReporting Phase = "reporting"

	// PhaseCompleted is the terminal phase set by CompleteRun.
	PhaseCompleted Phase = "completed"
)

// phaseOrder maps each phase to its position in the workflow.
//
//nolint:gochecknoglobals // Read-only lookup table
var phaseOrder = map[Phase]int{
	PhaseSetup:                0,
	PhaseHypothesisGeneration: 1,
	PhaseExperimentation:      2,
	PhaseReporting:            3,
	PhaseCompleted:            4,
}

// Phases returns every phase in workflow order.
func Phases() []Phase {
	return []Phase{
		PhaseSetup,
		PhaseHypothesisGeneration,
		PhaseExperimentation,
		PhaseReporting,
		PhaseCompleted,
	}
}

// PhaseIndex returns the workflow position of a phase and whether it is known.
func PhaseIndex(p Phase) (int, bool) {
	idx, ok := phaseOrder[p]
	return idx, ok
}

// IsForwardPhase reports whether moving from one phase to another advances the
// workflow. Unknown phases never count as forward moves.
func IsForwardPhase(from, to Phase) bool {
	fromIdx, fromOK := PhaseIndex(from)
	toIdx, toOK := PhaseIndex(to)
	if !fromOK || !toOK {
		return false
	}
	return toIdx > fromIdx
}
