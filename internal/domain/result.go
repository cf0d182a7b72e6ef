package domain

import (
	"encoding/json"
	"fmt"

	dilerrors "github.com/mrz1836/dilagent/internal/errors"
)

// Verdict identifies the outcome variant of a hypothesis result.
type Verdict string

// Verdict values. The set is closed: every consumer of a result must handle
// all three.
const (
	VerdictProven       Verdict = "proven"
	VerdictDisproven    Verdict = "disproven"
	VerdictInconclusive Verdict = "inconclusive"
)

// HypothesisResult is the closed set of terminal hypothesis outcomes.
// The unexported method seals the interface to the three variants below;
// consumers switch on the concrete type and handle each exhaustively.
type HypothesisResult interface {
	// Verdict returns the variant tag of the result.
	Verdict() Verdict

	sealedResult()
}

// Proven records a confirmed root cause with supporting evidence.
type Proven struct {
	// RootCause is the confirmed explanation of the failure.
	RootCause string `json:"root_cause"`

	// Evidence lists observations supporting the conclusion.
	Evidence []string `json:"evidence,omitempty"`

	// FixSuggestion optionally describes a remediation.
	FixSuggestion string `json:"fix_suggestion,omitempty"`
}

// Verdict implements HypothesisResult.
func (Proven) Verdict() Verdict { return VerdictProven }

func (Proven) sealedResult() {}

// Disproven records that the hypothesis was ruled out.
type Disproven struct {
	// Reason explains why the hypothesis does not hold.
	Reason string `json:"reason"`

	// Evidence lists observations ruling the hypothesis out.
	Evidence []string `json:"evidence,omitempty"`
}

// Verdict implements HypothesisResult.
func (Disproven) Verdict() Verdict { return VerdictDisproven }

func (Disproven) sealedResult() {}

// Inconclusive records that testing could not confirm or rule out the hypothesis.
type Inconclusive struct {
	// Reason explains why no conclusion was reached.
	Reason string `json:"reason"`

	// BlockedBy optionally names the missing prerequisite (access, data, tooling).
	BlockedBy string `json:"blocked_by,omitempty"`
}

// Verdict implements HypothesisResult.
func (Inconclusive) Verdict() Verdict { return VerdictInconclusive }

func (Inconclusive) sealedResult() {}

// Result wraps a HypothesisResult for JSON serialization. On the wire and on
// disk a result is a tagged envelope:
//
//	{"verdict": "proven", "details": {"root_cause": "...", "evidence": [...]}}
type Result struct {
	Value HypothesisResult
}

// resultEnvelope is the serialized form of a Result.
type resultEnvelope struct {
	Verdict Verdict         `json:"verdict"`
	Details json.RawMessage `json:"details"`
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Value == nil {
		return nil, fmt.Errorf("result has no value: %w", dilerrors.ErrInvalidResult)
	}

	details, err := json.Marshal(r.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result details: %w", err)
	}

	return json.Marshal(resultEnvelope{
		Verdict: r.Value.Verdict(),
		Details: details,
	})
}

// UnmarshalJSON implements json.Unmarshaler. It rejects unknown verdicts so a
// corrupted or future-version envelope never silently decodes to a zero value.
func (r *Result) UnmarshalJSON(data []byte) error {
	var env resultEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to unmarshal result envelope: %w", err)
	}

	value, err := decodeResult(env.Verdict, env.Details)
	if err != nil {
		return err
	}

	r.Value = value
	return nil
}

// decodeResult decodes the details payload for a verdict.
// The switch is exhaustive over the closed verdict set.
func decodeResult(verdict Verdict, details json.RawMessage) (HypothesisResult, error) {
	switch verdict {
	case VerdictProven:
		var v Proven
		if err := json.Unmarshal(details, &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal proven result: %w", err)
		}
		return v, nil
	case VerdictDisproven:
		var v Disproven
		if err := json.Unmarshal(details, &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal disproven result: %w", err)
		}
		return v, nil
	case VerdictInconclusive:
		var v Inconclusive
		if err := json.Unmarshal(details, &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal inconclusive result: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unknown verdict %q", dilerrors.ErrInvalidResult, verdict)
	}
}

// DecodeResult builds a HypothesisResult from a verdict tag and raw details.
// The coordination boundary uses this to validate incoming payloads before any
// state mutation happens.
func DecodeResult(verdict Verdict, details json.RawMessage) (HypothesisResult, error) {
	if len(details) == 0 {
		details = json.RawMessage("{}")
	}
	return decodeResult(verdict, details)
}
