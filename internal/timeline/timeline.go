// Package timeline provides the append-only event history of a dilagent run.
//
// The timeline is complementary to the run state: state answers "where are we
// now", the timeline answers "what happened, in order". Events are stamped at
// append time by a single writer, so wall-clock order is the only ordering
// source and append order is non-decreasing in timestamp.
package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mrz1836/dilagent/internal/clock"
	"github.com/mrz1836/dilagent/internal/constants"
	"github.com/mrz1836/dilagent/internal/ctxutil"
	"github.com/mrz1836/dilagent/internal/domain"
	"github.com/mrz1836/dilagent/internal/durable"
	dilerrors "github.com/mrz1836/dilagent/internal/errors"
	"github.com/mrz1836/dilagent/internal/paths"
)

// Directory and file permission constants.
const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// Options configure a Log at construction time.
type Options struct {
	// AutoPersist rewrites the durable timeline file wholesale after every
	// append. Acceptable because per-run event volume is small; this is a
	// snapshot file, not an incremental log.
	AutoPersist bool

	// Clock supplies timestamps. Defaults to the system clock.
	Clock clock.Clock
}

// Filter selects events by phase and/or hypothesis id. Zero fields match all.
type Filter struct {
	Phase        constants.Phase
	HypothesisID string
}

// Statistics summarizes the timeline. Computed on demand, never stored.
type Statistics struct {
	TotalEvents        int                     `json:"total_events"`
	EventsByPhase      map[constants.Phase]int `json:"events_by_phase"`
	EventsByHypothesis map[string]int          `json:"events_by_hypothesis"`
	FirstEvent         *domain.TimelineEvent   `json:"first_event,omitempty"`
	LastEvent          *domain.TimelineEvent   `json:"last_event,omitempty"`
}

// document is the serialized form of the timeline file.
type document struct {
	CreatedAt time.Time              `json:"createdAt"`
	Events    []domain.TimelineEvent `json:"events"`
}

// Log is the append-only event history of one run.
type Log struct {
	registry    *paths.Registry
	autoPersist bool
	clk         clock.Clock

	mu        sync.Mutex
	createdAt time.Time
	events    []domain.TimelineEvent
	loaded    bool
}

// NewLog creates a Log rooted at the registry's working root. Existing events
// are loaded lazily from the durable timeline file on first use.
func NewLog(registry *paths.Registry, opts Options) *Log {
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Log{
		registry:    registry,
		autoPersist: opts.AutoPersist,
		clk:         clk,
	}
}

// RecordEvent stamps the event with the current time and appends it.
// If auto-persist is enabled the full sequence is rewritten to the durable
// timeline file.
func (l *Log) RecordEvent(ctx context.Context, event domain.TimelineEvent) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoaded(); err != nil {
		return err
	}

	event.Timestamp = l.clk.Now()
	l.events = append(l.events, event)

	log.Debug().
		Str("kind", string(event.Kind)).
		Str("event", event.Name).
		Str("hypothesis_id", event.HypothesisID).
		Msg("timeline event recorded")

	if !l.autoPersist {
		return nil
	}
	return l.persistLocked()
}

// Events returns events matching the filter, preserving append order.
func (l *Log) Events(ctx context.Context, filter Filter) ([]domain.TimelineEvent, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoaded(); err != nil {
		return nil, err
	}

	matched := make([]domain.TimelineEvent, 0, len(l.events))
	for _, event := range l.events {
		if filter.Phase != "" && event.Phase != filter.Phase {
			continue
		}
		if filter.HypothesisID != "" && event.HypothesisID != filter.HypothesisID {
			continue
		}
		matched = append(matched, event)
	}
	return matched, nil
}

// Statistics computes summary statistics over the full timeline.
func (l *Log) Statistics(ctx context.Context) (*Statistics, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoaded(); err != nil {
		return nil, err
	}

	stats := &Statistics{
		TotalEvents:        len(l.events),
		EventsByPhase:      make(map[constants.Phase]int),
		EventsByHypothesis: make(map[string]int),
	}

	for _, event := range l.events {
		if event.Phase != "" {
			stats.EventsByPhase[event.Phase]++
		}
		if event.HypothesisID != "" {
			stats.EventsByHypothesis[event.HypothesisID]++
		}
	}

	if len(l.events) > 0 {
		first := l.events[0]
		last := l.events[len(l.events)-1]
		stats.FirstEvent = &first
		stats.LastEvent = &last
	}

	return stats, nil
}

// Persist writes the full sequence to the durable timeline file regardless of
// the auto-persist policy.
func (l *Log) Persist(ctx context.Context) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoaded(); err != nil {
		return err
	}
	return l.persistLocked()
}

// ensureLoaded lazily loads the durable timeline file.
// Must be called with l.mu held.
func (l *Log) ensureLoaded() error {
	if l.loaded {
		return nil
	}

	timelinePath := l.registry.TimelineFile()
	data, err := os.ReadFile(timelinePath) //#nosec G304 -- path is derived from the validated working root
	switch {
	case err == nil:
		var doc document
		if unmarshalErr := json.Unmarshal(data, &doc); unmarshalErr != nil {
			return fmt.Errorf("timeline file %q is unreadable: %w. Delete it to start fresh", timelinePath, dilerrors.ErrTimelineCorrupted)
		}
		l.createdAt = doc.CreatedAt
		l.events = doc.Events
	case os.IsNotExist(err):
		l.createdAt = l.clk.Now()
	default:
		return dilerrors.Wrapf(err, "failed to read timeline file %q", timelinePath)
	}

	l.loaded = true
	return nil
}

// persistLocked rewrites the durable timeline file wholesale.
// Must be called with l.mu held.
func (l *Log) persistLocked() error {
	doc := document{CreatedAt: l.createdAt, Events: l.events}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return dilerrors.Wrap(err, "failed to marshal timeline")
	}

	timelinePath := l.registry.TimelineFile()
	if err = os.MkdirAll(filepath.Dir(timelinePath), dirPerm); err != nil {
		return dilerrors.Wrap(err, "failed to create dilagent directory")
	}

	if err = durable.WriteFile(timelinePath, data, filePerm); err != nil {
		return dilerrors.Wrap(err, "failed to persist timeline")
	}
	return nil
}
