// Package errors provides centralized error handling for dilagent.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrCommandFailed indicates that an external git invocation exited non-zero.
	// The wrapping error carries the subcommand and working directory.
	ErrCommandFailed = errors.New("git command failed")

	// ErrRepositoryNotFound indicates an expected sandbox repository is missing
	// or is not a valid git repository.
	ErrRepositoryNotFound = errors.New("sandbox repository not found")

	// ErrWorktreeOperation indicates a worktree add or remove failed, typically
	// due to a branch collision or disk exhaustion.
	ErrWorktreeOperation = errors.New("worktree operation failed")

	// ErrNotAWorktree indicates the path is not an attached git worktree.
	ErrNotAWorktree = errors.New("not a git worktree")

	// ErrBranchExists indicates the branch already exists and would be
	// silently overwritten by the requested operation.
	ErrBranchExists = errors.New("branch already exists")

	// ErrStateNotInitialized indicates the run state was accessed before the
	// store could initialize or load a snapshot.
	ErrStateNotInitialized = errors.New("run state not initialized")

	// ErrUnknownHypothesis indicates the referenced hypothesis id is not
	// registered in the run state.
	ErrUnknownHypothesis = errors.New("unknown hypothesis")

	// ErrHypothesisExists indicates an attempt to register a hypothesis id
	// that is already present in the run state.
	ErrHypothesisExists = errors.New("hypothesis already registered")

	// ErrHypothesisTerminal indicates a worker tried a normal-path transition
	// on a hypothesis that already carries a terminal result. Only a full
	// reset exits the completed status.
	ErrHypothesisTerminal = errors.New("hypothesis already completed")

	// ErrStateCorrupted indicates the durable state file is unreadable.
	ErrStateCorrupted = errors.New("state file corrupted")

	// ErrTimelineCorrupted indicates the durable timeline file is unreadable.
	ErrTimelineCorrupted = errors.New("timeline file corrupted")

	// ErrInvalidPayload indicates a coordination request failed schema validation.
	ErrInvalidPayload = errors.New("invalid coordination payload")

	// ErrInvalidResult indicates a hypothesis result carries an unknown verdict.
	ErrInvalidResult = errors.New("invalid hypothesis result")

	// ErrLockTimeout indicates a file lock could not be acquired within the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrValueOutOfRange indicates that a value is outside the allowed range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidServer indicates an invalid coordination server configuration value.
	ErrConfigInvalidServer = errors.New("invalid server configuration")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrNotGitRepo indicates the path is not a git repository.
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrInvalidIdentifier indicates a run or hypothesis identifier contains
	// characters that are not safe for paths or branch names.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)
