// Package paths derives the canonical on-disk layout of a dilagent run.
// A Registry is pure and stateless: given a working root and identifiers it
// produces sandbox, state, and timeline paths plus branch names, so every
// component agrees on where artifacts live without sharing state.
//
// Layout under a working root:
//
//	<root>/.dilagent/logs/               manager + worker logs
//	<root>/.dilagent/artifacts/          worker-produced files
//	<root>/.dilagent/context-repo/       root sandbox (mirror of context dir)
//	<root>/.dilagent/<id>-<slug>/        per-hypothesis sandboxes
//	<root>/.dilagent/state.json          run-state snapshot
//	<root>/.dilagent/timeline.json       append-only event history
package paths

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mrz1836/dilagent/internal/constants"
	dilerrors "github.com/mrz1836/dilagent/internal/errors"
)

// validIdentRegex matches identifiers that are safe in both directory names
// and branch names (alphanumeric start, then alphanumeric, dash, underscore).
var validIdentRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// maxIdentLength bounds identifier length to keep derived paths portable.
const maxIdentLength = 128

// Registry derives canonical paths and branch names from a working root.
type Registry struct {
	workingRoot string
}

// NewRegistry creates a Registry for the given working root.
func NewRegistry(workingRoot string) (*Registry, error) {
	if workingRoot == "" {
		return nil, fmt.Errorf("working root cannot be empty: %w", dilerrors.ErrEmptyValue)
	}
	abs, err := filepath.Abs(workingRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working root: %w", err)
	}
	return &Registry{workingRoot: abs}, nil
}

// WorkingRoot returns the absolute working root.
func (r *Registry) WorkingRoot() string {
	return r.workingRoot
}

// DilagentDir returns the run artifact directory (<root>/.dilagent).
func (r *Registry) DilagentDir() string {
	return filepath.Join(r.workingRoot, constants.DilagentDir)
}

// LogsDir returns the log directory.
func (r *Registry) LogsDir() string {
	return filepath.Join(r.DilagentDir(), constants.LogsDir)
}

// ArtifactsDir returns the worker artifact directory.
func (r *Registry) ArtifactsDir() string {
	return filepath.Join(r.DilagentDir(), constants.ArtifactsDir)
}

// RootSandboxDir returns the root sandbox directory.
func (r *Registry) RootSandboxDir() string {
	return filepath.Join(r.DilagentDir(), constants.RootSandboxDir)
}

// HypothesisSandboxDir returns the sandbox directory for a hypothesis.
// The directory name is deterministic in the two identifiers so the same
// hypothesis always lands in the same place.
func (r *Registry) HypothesisSandboxDir(hypothesisID, slug string) (string, error) {
	if err := ValidateIdentifier(hypothesisID); err != nil {
		return "", dilerrors.Wrapf(err, "invalid hypothesis id %q", hypothesisID)
	}
	if err := ValidateIdentifier(slug); err != nil {
		return "", dilerrors.Wrapf(err, "invalid hypothesis slug %q", slug)
	}
	return filepath.Join(r.DilagentDir(), hypothesisID+"-"+slug), nil
}

// StateFile returns the path of the durable run-state snapshot.
func (r *Registry) StateFile() string {
	return filepath.Join(r.DilagentDir(), constants.StateFileName)
}

// TimelineFile returns the path of the durable timeline file.
func (r *Registry) TimelineFile() string {
	return filepath.Join(r.DilagentDir(), constants.TimelineFileName)
}

// ManagerLogFile returns the path of the rotating manager log file.
func (r *Registry) ManagerLogFile() string {
	return filepath.Join(r.LogsDir(), constants.ManagerLogFileName)
}

// RootBranch returns the branch name of the root sandbox for a run.
func RootBranch(runID string) (string, error) {
	if err := ValidateIdentifier(runID); err != nil {
		return "", dilerrors.Wrapf(err, "invalid run id %q", runID)
	}
	return runID + "/" + constants.RootBranchSuffix, nil
}

// HypothesisBranch returns the branch name of a hypothesis sandbox.
func HypothesisBranch(runID, hypothesisID, slug string) (string, error) {
	if err := ValidateIdentifier(runID); err != nil {
		return "", dilerrors.Wrapf(err, "invalid run id %q", runID)
	}
	if err := ValidateIdentifier(hypothesisID); err != nil {
		return "", dilerrors.Wrapf(err, "invalid hypothesis id %q", hypothesisID)
	}
	if err := ValidateIdentifier(slug); err != nil {
		return "", dilerrors.Wrapf(err, "invalid hypothesis slug %q", slug)
	}
	return runID + "/" + hypothesisID + "-" + slug, nil
}

// ValidateIdentifier checks that an identifier is safe for use in directory
// and branch names. Path separators and traversal sequences are rejected so a
// hostile identifier can never escape the dilagent directory.
func ValidateIdentifier(ident string) error {
	if ident == "" {
		return fmt.Errorf("identifier cannot be empty: %w", dilerrors.ErrEmptyValue)
	}
	if len(ident) > maxIdentLength {
		return fmt.Errorf("identifier too long (max %d characters): %w", maxIdentLength, dilerrors.ErrValueOutOfRange)
	}
	if strings.Contains(ident, "..") || strings.ContainsAny(ident, `/\`) {
		return fmt.Errorf("identifier contains path characters: %w", dilerrors.ErrInvalidIdentifier)
	}
	if !validIdentRegex.MatchString(ident) {
		return fmt.Errorf("identifier contains invalid characters (use alphanumeric, dash, underscore): %w", dilerrors.ErrInvalidIdentifier)
	}
	return nil
}

// Slugify converts free text into a slug usable in identifiers: lowercase,
// non-alphanumerics collapsed to single dashes, trimmed, length-bounded.
func Slugify(text string) string {
	var b strings.Builder
	lastDash := true // suppress leading dash
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if len(slug) > maxIdentLength {
		slug = strings.TrimSuffix(slug[:maxIdentLength], "-")
	}
	if slug == "" {
		slug = "hypothesis"
	}
	return slug
}
