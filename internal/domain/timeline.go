package domain

import (
	"time"

	"github.com/mrz1836/dilagent/internal/constants"
)

// EventKind tags the variant of a timeline event.
type EventKind string

// Event kinds. Phase events mark workflow stage changes, hypothesis events
// track individual worker activity, and system events cover everything else
// (server start, resets, sandbox operations).
const (
	EventKindPhase      EventKind = "phase"
	EventKindHypothesis EventKind = "hypothesis"
	EventKindSystem     EventKind = "system"
)

// TimelineEvent is one entry in the append-only run history. Events are never
// mutated or deleted after append; the timeline complements the run state's
// "current" view rather than being derivable from it.
type TimelineEvent struct {
	// Kind is the variant tag of the event.
	Kind EventKind `json:"kind"`

	// Name is the event name (e.g. "phase_started", "status_reported").
	Name string `json:"name"`

	// Timestamp is stamped by the timeline log at append time.
	Timestamp time.Time `json:"timestamp"`

	// Phase is set for phase events and for hypothesis events that carry
	// phase context.
	Phase constants.Phase `json:"phase,omitempty"`

	// HypothesisID is set for hypothesis events.
	HypothesisID string `json:"hypothesis_id,omitempty"`

	// Details carries arbitrary structured payload.
	Details map[string]any `json:"details,omitempty"`
}

// NewPhaseEvent builds a phase event. The timestamp is left zero; the
// timeline log stamps it at append time.
func NewPhaseEvent(name string, phase constants.Phase, details map[string]any) TimelineEvent {
	return TimelineEvent{
		Kind:    EventKindPhase,
		Name:    name,
		Phase:   phase,
		Details: details,
	}
}

// NewHypothesisEvent builds a hypothesis event.
func NewHypothesisEvent(name, hypothesisID string, details map[string]any) TimelineEvent {
	return TimelineEvent{
		Kind:         EventKindHypothesis,
		Name:         name,
		HypothesisID: hypothesisID,
		Details:      details,
	}
}

// NewSystemEvent builds a system event.
func NewSystemEvent(name string, details map[string]any) TimelineEvent {
	return TimelineEvent{
		Kind:    EventKindSystem,
		Name:    name,
		Details: details,
	}
}
