// Package coordination bridges isolated worker processes to the run state and
// timeline owned by the manager process.
//
// Workers share no memory or files with the manager or each other; the four
// operations in this package are their only channel into shared state. The
// network layer accepts concurrent calls, but every mutation funnels through
// the state store's single mutex, so remote read-modify-write cycles serialize
// without any distributed-consensus machinery.
package coordination

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mrz1836/dilagent/internal/clock"
	"github.com/mrz1836/dilagent/internal/constants"
	"github.com/mrz1836/dilagent/internal/ctxutil"
	"github.com/mrz1836/dilagent/internal/domain"
	dilerrors "github.com/mrz1836/dilagent/internal/errors"
	"github.com/mrz1836/dilagent/internal/state"
	"github.com/mrz1836/dilagent/internal/timeline"
)

// progressReport is the latest non-terminal report from a worker.
// Reports are transient manager-process memory: after a restart the
// authoritative view comes from persisted results, not old reports.
type progressReport struct {
	Phase        string
	ExperimentID string
	Message      string
	ReportedAt   time.Time
}

// Service implements the four coordination operations against the run state
// store and the timeline log.
type Service struct {
	store *state.Store
	tl    *timeline.Log
	clk   clock.Clock

	mu      sync.Mutex
	reports map[string]progressReport
}

// NewService creates a Service. A nil clk defaults to the system clock.
func NewService(store *state.Store, tl *timeline.Log, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Service{
		store:   store,
		tl:      tl,
		clk:     clk,
		reports: make(map[string]progressReport),
	}
}

// ReportStatus marks the hypothesis running and records the progress report.
// Callable many times per hypothesis lifetime; it never sets a terminal
// result, and it refuses to regress a hypothesis that already completed.
func (s *Service) ReportStatus(ctx context.Context, hypothesisID, phase, experimentID, message string, evidence map[string]any) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	now := s.clk.Now()
	err := s.store.Update(ctx, func(st *domain.RunState) error {
		record, exists := st.Hypotheses[hypothesisID]
		if !exists {
			return fmt.Errorf("hypothesis '%s': %w", hypothesisID, dilerrors.ErrUnknownHypothesis)
		}
		if constants.IsTerminalStatus(record.Status) {
			return fmt.Errorf("hypothesis '%s' is %s: %w", hypothesisID, record.Status, dilerrors.ErrHypothesisTerminal)
		}
		record.Status = constants.HypothesisStatusRunning
		if record.StartedAt == nil {
			t := now
			record.StartedAt = &t
		}
		st.Metrics.StatusReports++
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.reports[hypothesisID] = progressReport{
		Phase:        phase,
		ExperimentID: experimentID,
		Message:      message,
		ReportedAt:   now,
	}
	s.mu.Unlock()

	details := map[string]any{"phase": phase, "message": message}
	if experimentID != "" {
		details["experiment_id"] = experimentID
	}
	if len(evidence) > 0 {
		details["evidence"] = evidence
	}
	if err = s.tl.RecordEvent(ctx, domain.NewHypothesisEvent("status_reported", hypothesisID, details)); err != nil {
		return dilerrors.Wrap(err, "failed to record status event")
	}

	log.Debug().
		Str("hypothesis_id", hypothesisID).
		Str("worker_phase", phase).
		Str("message", message).
		Msg("status report accepted")
	return nil
}

// SetResult marks the hypothesis completed and stores the terminal result.
// Racing submissions are resolved last-writer-wins: there is no version
// check, and a second result overwrites the first.
func (s *Service) SetResult(ctx context.Context, hypothesisID string, result domain.HypothesisResult) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("result cannot be nil: %w", dilerrors.ErrInvalidResult)
	}

	now := s.clk.Now()
	err := s.store.Update(ctx, func(st *domain.RunState) error {
		record, exists := st.Hypotheses[hypothesisID]
		if !exists {
			return fmt.Errorf("hypothesis '%s': %w", hypothesisID, dilerrors.ErrUnknownHypothesis)
		}
		if record.Result == nil {
			st.Metrics.HypothesesCompleted++
		}
		record.Status = constants.HypothesisStatusCompleted
		record.Result = &domain.Result{Value: result}
		t := now
		record.CompletedAt = &t
		if record.StartedAt == nil {
			record.StartedAt = &t
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err = s.tl.RecordEvent(ctx, domain.NewHypothesisEvent("result_recorded", hypothesisID, map[string]any{
		"verdict": string(result.Verdict()),
	})); err != nil {
		return dilerrors.Wrap(err, "failed to record result event")
	}

	log.Info().
		Str("hypothesis_id", hypothesisID).
		Str("verdict", string(result.Verdict())).
		Msg("terminal result recorded")
	return nil
}

// StatusView is one entry of the query-all-statuses response: a hypothesis
// with its latest progress report or terminal result.
type StatusView struct {
	HypothesisID string                     `json:"hypothesis_id"`
	Slug         string                     `json:"slug"`
	Status       constants.HypothesisStatus `json:"status"`
	Phase        string                     `json:"phase,omitempty"`
	ExperimentID string                     `json:"experiment_id,omitempty"`
	Message      string                     `json:"message,omitempty"`
	Result       *domain.Result             `json:"result,omitempty"`
	ReportedAt   *time.Time                 `json:"reported_at,omitempty"`
}

// QueryAllStatuses returns the latest view of every known hypothesis, sorted
// by id. Workers consult this during their designing sub-phase to avoid
// duplicating a sibling's experiment; that is a usage convention, not an
// enforced access restriction.
func (s *Service) QueryAllStatuses(ctx context.Context) ([]StatusView, error) {
	st, err := s.store.State(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]StatusView, 0, len(st.Hypotheses))
	for id, record := range st.Hypotheses {
		view := StatusView{
			HypothesisID: id,
			Slug:         record.Slug,
			Status:       record.Status,
			Result:       record.Result,
		}
		if report, ok := s.reports[id]; ok {
			view.Phase = report.Phase
			view.ExperimentID = report.ExperimentID
			view.Message = report.Message
			t := report.ReportedAt
			view.ReportedAt = &t
		}
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool { return views[i].HypothesisID < views[j].HypothesisID })
	return views, nil
}

// ResetAll returns every hypothesis to pending, dropping results, timestamps,
// and transient progress reports. Idempotent: resetting an all-pending run is
// a no-op that yields the same state.
func (s *Service) ResetAll(ctx context.Context) error {
	if err := s.store.ResetAllHypotheses(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.reports = make(map[string]progressReport)
	s.mu.Unlock()

	if err := s.tl.RecordEvent(ctx, domain.NewSystemEvent("hypotheses_reset", nil)); err != nil {
		return dilerrors.Wrap(err, "failed to record reset event")
	}

	log.Info().Msg("all hypotheses reset to pending")
	return nil
}
