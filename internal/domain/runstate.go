package domain

import (
	"time"

	"github.com/mrz1836/dilagent/internal/constants"
)

// RunState is the single authoritative snapshot of run progress.
// Exactly one live instance exists per run, owned by the manager process;
// workers never touch it except through the coordination service.
//
// Example JSON representation (state.json):
//
//	{
//	    "schema_version": 1,
//	    "run_id": "run-4f2a91c3",
//	    "working_dir_id": "payments-api",
//	    "problem_prompt": "login sessions leak across tenants",
//	    "hypotheses": {"H001": {...}},
//	    "current_phase": "experimentation",
//	    "completed_phases": ["setup", "hypothesis_generation"],
//	    "progress": {"message": "2/4 hypotheses running"},
//	    "metrics": {"hypotheses_generated": 4, "start_time": "..."}
//	}
type RunState struct {
	// SchemaVersion enables forward-compatible schema migrations.
	SchemaVersion int `json:"schema_version"`

	// RunID identifies one end-to-end workflow invocation.
	RunID string `json:"run_id"`

	// WorkingDirID identifies the working root this run operates on.
	WorkingDirID string `json:"working_dir_id"`

	// ProblemPrompt is the problem statement the run is debugging.
	ProblemPrompt string `json:"problem_prompt"`

	// Hypotheses maps hypothesis id to its record.
	Hypotheses map[string]*HypothesisRecord `json:"hypotheses"`

	// CurrentPhase is the phase the run is in right now.
	CurrentPhase constants.Phase `json:"current_phase"`

	// CompletedPhases lists phases the run has moved past, in order.
	CompletedPhases []constants.Phase `json:"completed_phases"`

	// Progress is the latest human-readable progress summary.
	Progress Progress `json:"progress"`

	// Metrics aggregates run counters and timing.
	Metrics Metrics `json:"metrics"`
}

// Progress is a lightweight human-readable progress summary.
type Progress struct {
	// Message describes what the run is currently doing.
	Message string `json:"message"`

	// UpdatedAt is when the message was last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Metrics aggregates counters and timing for a run.
type Metrics struct {
	// HypothesesGenerated counts successful RegisterHypothesis calls.
	HypothesesGenerated int `json:"hypotheses_generated"`

	// HypothesesCompleted counts terminal results recorded.
	HypothesesCompleted int `json:"hypotheses_completed"`

	// StatusReports counts worker status reports received.
	StatusReports int `json:"status_reports"`

	// StartTime is when the run state was first created.
	StartTime time.Time `json:"start_time"`

	// EndTime is stamped by CompleteRun.
	EndTime *time.Time `json:"end_time,omitempty"`
}

// Clone returns a deep copy of the run state. The state store hands copies to
// readers so a snapshot can never be mutated behind the owning mutex.
func (s *RunState) Clone() *RunState {
	if s == nil {
		return nil
	}

	out := *s

	out.Hypotheses = make(map[string]*HypothesisRecord, len(s.Hypotheses))
	for id, h := range s.Hypotheses {
		out.Hypotheses[id] = h.Clone()
	}

	out.CompletedPhases = make([]constants.Phase, len(s.CompletedPhases))
	copy(out.CompletedPhases, s.CompletedPhases)

	if s.Metrics.EndTime != nil {
		t := *s.Metrics.EndTime
		out.Metrics.EndTime = &t
	}

	return &out
}
