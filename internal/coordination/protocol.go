// Package coordination bridges isolated workers to shared run state.
// This file defines the wire protocol: structured request/response payloads
// for the four remote-callable operations, validated at the boundary.
package coordination

import (
	"encoding/json"
	"fmt"

	"github.com/mrz1836/dilagent/internal/domain"
	dilerrors "github.com/mrz1836/dilagent/internal/errors"
)

// maxMessageLength bounds free-text fields so a misbehaving worker cannot
// bloat the persisted state or timeline.
const maxMessageLength = 4096

// StatusReportRequest is the payload of POST /v1/hypotheses/:id/status.
type StatusReportRequest struct {
	// Phase is the worker's current sub-phase (e.g. "DESIGNING", "TESTING").
	Phase string `json:"phase"`

	// ExperimentID optionally names the experiment being run.
	ExperimentID string `json:"experiment_id,omitempty"`

	// Message is a human-readable progress line.
	Message string `json:"message"`

	// Evidence carries arbitrary structured observations.
	Evidence map[string]any `json:"evidence,omitempty"`
}

// Validate checks the request against the protocol schema.
func (r *StatusReportRequest) Validate() error {
	if r.Phase == "" {
		return fmt.Errorf("%w: phase is required", dilerrors.ErrInvalidPayload)
	}
	if r.Message == "" {
		return fmt.Errorf("%w: message is required", dilerrors.ErrInvalidPayload)
	}
	if len(r.Message) > maxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters", dilerrors.ErrInvalidPayload, maxMessageLength)
	}
	return nil
}

// SetResultRequest is the payload of POST /v1/hypotheses/:id/result.
// The result is the tagged envelope shared with state.json.
type SetResultRequest struct {
	// Verdict selects the result variant.
	Verdict domain.Verdict `json:"verdict"`

	// Details is the variant payload, decoded according to Verdict.
	Details json.RawMessage `json:"details,omitempty"`
}

// Validate checks the request and decodes the tagged result.
func (r *SetResultRequest) Validate() (domain.HypothesisResult, error) {
	if r.Verdict == "" {
		return nil, fmt.Errorf("%w: verdict is required", dilerrors.ErrInvalidPayload)
	}
	result, err := domain.DecodeResult(r.Verdict, r.Details)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dilerrors.ErrInvalidPayload, err)
	}
	return result, nil
}

// QueryStatusesResponse is the payload of GET /v1/hypotheses/status.
type QueryStatusesResponse struct {
	Statuses []StatusView `json:"statuses"`
}

// AckResponse is the generic success payload of mutating operations.
type AckResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is the structured error payload of failed operations.
type ErrorResponse struct {
	Error string `json:"error"`
}
