// Package state provides the single authoritative run-state store for dilagent.
//
// One Store instance owns the RunState snapshot for a run. All mutation flows
// through a single mutex, so concurrent in-process callers serialize and never
// lose updates. Cross-process callers (the isolated workers) never touch this
// package directly; their mutations arrive one at a time through the
// coordination service hosted by the state-owning manager process.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mrz1836/dilagent/internal/clock"
	"github.com/mrz1836/dilagent/internal/constants"
	"github.com/mrz1836/dilagent/internal/ctxutil"
	"github.com/mrz1836/dilagent/internal/domain"
	"github.com/mrz1836/dilagent/internal/durable"
	dilerrors "github.com/mrz1836/dilagent/internal/errors"
	"github.com/mrz1836/dilagent/internal/paths"
)

// CurrentSchemaVersion is the current version of the run-state schema.
// This enables forward-compatible schema migrations.
const CurrentSchemaVersion = 1

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// Options configure a Store at construction time.
//
// AutoPersist is deliberately a construction-time policy, not a mutable flag:
// persistence behavior is deterministic for the lifetime of an instance.
type Options struct {
	// AutoPersist rewrites the durable state file wholesale after every mutation.
	AutoPersist bool

	// RunID seeds the default snapshot when no durable state exists.
	RunID string

	// ProblemPrompt seeds the default snapshot when no durable state exists.
	ProblemPrompt string

	// Clock supplies timestamps. Defaults to the system clock.
	Clock clock.Clock
}

// Store owns the authoritative RunState snapshot for one run.
type Store struct {
	registry    *paths.Registry
	autoPersist bool
	runID       string
	prompt      string
	clk         clock.Clock

	mu    sync.Mutex
	state *domain.RunState // nil until lazily initialized
}

// NewStore creates a Store rooted at the registry's working root.
// The snapshot is initialized lazily on first access: loaded from the durable
// state file if present, otherwise built from working-root metadata.
func NewStore(registry *paths.Registry, opts Options) *Store {
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Store{
		registry:    registry,
		autoPersist: opts.AutoPersist,
		runID:       opts.RunID,
		prompt:      opts.ProblemPrompt,
		clk:         clk,
	}
}

// State returns a deep copy of the current snapshot, initializing it first if
// needed. Callers can inspect the copy freely without holding any lock.
func (s *Store) State(ctx context.Context) (*domain.RunState, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	return s.state.Clone(), nil
}

// Update atomically replaces the snapshot by applying fn to the current state.
// fn runs under the store mutex; if it returns an error the snapshot is left
// untouched and nothing is persisted.
func (s *Store) Update(ctx context.Context, fn func(*domain.RunState) error) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureInitialized(); err != nil {
		return err
	}

	// Apply fn to a copy so a failed update never leaves a half-mutated snapshot.
	next := s.state.Clone()
	if err := fn(next); err != nil {
		return err
	}
	s.state = next

	return s.persistLocked()
}

// RegisterHypothesis inserts a new pending hypothesis record and increments
// the generated counter. Fails with ErrHypothesisExists if the id is taken.
func (s *Store) RegisterHypothesis(ctx context.Context, id, slug, description string) error {
	if err := paths.ValidateIdentifier(id); err != nil {
		return dilerrors.Wrapf(err, "invalid hypothesis id %q", id)
	}
	if err := paths.ValidateIdentifier(slug); err != nil {
		return dilerrors.Wrapf(err, "invalid hypothesis slug %q", slug)
	}

	return s.Update(ctx, func(st *domain.RunState) error {
		if _, exists := st.Hypotheses[id]; exists {
			return fmt.Errorf("hypothesis '%s': %w", id, dilerrors.ErrHypothesisExists)
		}
		st.Hypotheses[id] = &domain.HypothesisRecord{
			ID:          id,
			Slug:        slug,
			Description: description,
			Status:      constants.HypothesisStatusPending,
		}
		st.Metrics.HypothesesGenerated++
		return nil
	})
}

// UpdateHypothesis merges a partial patch into an existing record.
// Fails with ErrUnknownHypothesis if the id is not registered.
func (s *Store) UpdateHypothesis(ctx context.Context, id string, patch domain.HypothesisPatch) error {
	return s.Update(ctx, func(st *domain.RunState) error {
		record, exists := st.Hypotheses[id]
		if !exists {
			return fmt.Errorf("hypothesis '%s': %w", id, dilerrors.ErrUnknownHypothesis)
		}
		hadResult := record.Result != nil
		patch.Apply(record)
		if patch.Result != nil && !hadResult {
			st.Metrics.HypothesesCompleted++
		}
		return nil
	})
}

// SetPhase advances the current phase. The previous phase is appended to the
// completed list only when the run moves forward through the workflow order,
// so re-entering an earlier phase never rewrites history.
func (s *Store) SetPhase(ctx context.Context, phase constants.Phase, message string) error {
	if message == "" {
		message = fmt.Sprintf("entered phase %s", phase)
	}

	return s.Update(ctx, func(st *domain.RunState) error {
		if constants.IsForwardPhase(st.CurrentPhase, phase) {
			st.CompletedPhases = append(st.CompletedPhases, st.CurrentPhase)
		}
		st.CurrentPhase = phase
		st.Progress = domain.Progress{Message: message, UpdatedAt: s.clk.Now()}
		return nil
	})
}

// CompleteRun moves the run to the terminal phase and stamps the end time.
func (s *Store) CompleteRun(ctx context.Context) error {
	return s.Update(ctx, func(st *domain.RunState) error {
		if constants.IsForwardPhase(st.CurrentPhase, constants.PhaseCompleted) {
			st.CompletedPhases = append(st.CompletedPhases, st.CurrentPhase)
		}
		st.CurrentPhase = constants.PhaseCompleted
		now := s.clk.Now()
		st.Metrics.EndTime = &now
		st.Progress = domain.Progress{Message: "run completed", UpdatedAt: now}
		return nil
	})
}

// ResetAllHypotheses returns every hypothesis to pending, dropping results and
// timestamps. The administrative escape hatch out of terminal statuses; it is
// idempotent and always resets all hypotheses, never one.
func (s *Store) ResetAllHypotheses(ctx context.Context) error {
	return s.Update(ctx, func(st *domain.RunState) error {
		for _, record := range st.Hypotheses {
			record.Status = constants.HypothesisStatusPending
			record.Result = nil
			record.StartedAt = nil
			record.CompletedAt = nil
		}
		st.Metrics.HypothesesCompleted = 0
		return nil
	})
}

// Persist writes the current snapshot to the durable state file regardless of
// the auto-persist policy. Useful as a final flush when auto-persist is off.
func (s *Store) Persist(ctx context.Context) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return dilerrors.ErrStateNotInitialized
	}
	return s.writeSnapshotLocked()
}

// ensureInitialized lazily loads or builds the snapshot.
// Must be called with s.mu held.
func (s *Store) ensureInitialized() error {
	if s.state != nil {
		return nil
	}

	statePath := s.registry.StateFile()
	data, err := os.ReadFile(statePath) //#nosec G304 -- path is derived from the validated working root
	switch {
	case err == nil:
		var loaded domain.RunState
		if unmarshalErr := json.Unmarshal(data, &loaded); unmarshalErr != nil {
			return fmt.Errorf("state file %q is unreadable: %w. Delete it to start fresh", statePath, dilerrors.ErrStateCorrupted)
		}
		if loaded.Hypotheses == nil {
			loaded.Hypotheses = make(map[string]*domain.HypothesisRecord)
		}
		s.state = &loaded
		log.Debug().Str("state_file", statePath).Int("hypotheses", len(loaded.Hypotheses)).Msg("run state loaded")
		return nil
	case os.IsNotExist(err):
		s.state = s.defaultState()
		log.Debug().Str("run_id", s.state.RunID).Msg("run state initialized from defaults")
		return nil
	default:
		return dilerrors.Wrapf(err, "failed to read state file %q", statePath)
	}
}

// defaultState builds the initial snapshot from working-root metadata.
func (s *Store) defaultState() *domain.RunState {
	return &domain.RunState{
		SchemaVersion: CurrentSchemaVersion,
		RunID:         s.runID,
		WorkingDirID:  filepath.Base(s.registry.WorkingRoot()),
		ProblemPrompt: s.prompt,
		Hypotheses:    make(map[string]*domain.HypothesisRecord),
		CurrentPhase:  constants.PhaseSetup,
		Metrics:       domain.Metrics{StartTime: s.clk.Now()},
	}
}

// persistLocked rewrites the durable file if auto-persist is enabled.
// Must be called with s.mu held.
func (s *Store) persistLocked() error {
	if !s.autoPersist {
		return nil
	}
	return s.writeSnapshotLocked()
}

// writeSnapshotLocked serializes the snapshot and rewrites the durable file
// wholesale, guarded by a file lock against a second dilagent process sharing
// the working root. Must be called with s.mu held.
func (s *Store) writeSnapshotLocked() error {
	s.state.SchemaVersion = CurrentSchemaVersion

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return dilerrors.Wrap(err, "failed to marshal run state")
	}

	statePath := s.registry.StateFile()
	if err = os.MkdirAll(filepath.Dir(statePath), dirPerm); err != nil {
		return dilerrors.Wrap(err, "failed to create dilagent directory")
	}

	if err = durable.WriteFile(statePath, data, filePerm); err != nil {
		return dilerrors.Wrap(err, "failed to persist run state")
	}
	return nil
}
