// Package domain provides shared domain types for the dilagent run-coordination system.
package domain

import (
	"time"

	"github.com/mrz1836/dilagent/internal/constants"
)

// HypothesisRecord tracks one candidate root-cause explanation under test.
// Records are created at hypothesis-generation time and mutated only through
// the coordination service (or directly by the manager before workers start).
// Nothing deletes a record; only a full reset clears its progress.
//
// Example JSON representation:
//
//	{
//	    "id": "H001",
//	    "slug": "auth-bug",
//	    "description": "Stale session tokens survive logout",
//	    "status": "running",
//	    "worktree_path": ".dilagent/H001-auth-bug",
//	    "branch_name": "run-4f2a91c3/H001-auth-bug",
//	    "started_at": "2026-08-31T10:00:00Z"
//	}
type HypothesisRecord struct {
	// ID is the unique identifier of the hypothesis within a run (e.g. "H001").
	ID string `json:"id"`

	// Slug is a short path- and branch-safe label derived from the description.
	Slug string `json:"slug"`

	// Description is the human-readable hypothesis statement.
	Description string `json:"description"`

	// Status is the current lifecycle state of the hypothesis.
	Status constants.HypothesisStatus `json:"status"`

	// Result is the terminal verdict, present only once completed.
	Result *Result `json:"result,omitempty"`

	// WorktreePath is the sandbox directory assigned to this hypothesis.
	WorktreePath string `json:"worktree_path,omitempty"`

	// BranchName is the git branch the sandbox is checked out to.
	BranchName string `json:"branch_name,omitempty"`

	// StartedAt is when the first status report arrived.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the terminal result was recorded.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the record.
func (h *HypothesisRecord) Clone() *HypothesisRecord {
	if h == nil {
		return nil
	}
	out := *h
	if h.StartedAt != nil {
		t := *h.StartedAt
		out.StartedAt = &t
	}
	if h.CompletedAt != nil {
		t := *h.CompletedAt
		out.CompletedAt = &t
	}
	if h.Result != nil {
		r := *h.Result
		out.Result = &r
	}
	return &out
}

// HypothesisPatch carries a partial update to a hypothesis record.
// Nil fields are left untouched, which gives UpdateHypothesis true
// merge semantics: patching only Status never clobbers Slug or Description.
type HypothesisPatch struct {
	Slug         *string
	Description  *string
	Status       *constants.HypothesisStatus
	Result       HypothesisResult
	WorktreePath *string
	BranchName   *string
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// Apply merges the patch into the record in place.
func (p HypothesisPatch) Apply(h *HypothesisRecord) {
	if p.Slug != nil {
		h.Slug = *p.Slug
	}
	if p.Description != nil {
		h.Description = *p.Description
	}
	if p.Status != nil {
		h.Status = *p.Status
	}
	if p.Result != nil {
		h.Result = &Result{Value: p.Result}
	}
	if p.WorktreePath != nil {
		h.WorktreePath = *p.WorktreePath
	}
	if p.BranchName != nil {
		h.BranchName = *p.BranchName
	}
	if p.StartedAt != nil {
		t := *p.StartedAt
		h.StartedAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		h.CompletedAt = &t
	}
}
