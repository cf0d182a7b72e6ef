// Package testutil provides testing utilities for dilagent.
//
// This package contains mock errors and test helpers used across test files.
// It should only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
// These errors are used to simulate various failure scenarios in tests.
var (
	// ErrMockGitFailed indicates a mock git command failed (used in tests).
	ErrMockGitFailed = errors.New("git command failed")

	// ErrMockDiskFull indicates a mock disk-exhaustion failure (used in tests).
	ErrMockDiskFull = errors.New("no space left on device")

	// ErrMockPersist indicates a mock persistence failure (used in tests).
	ErrMockPersist = errors.New("persist failed")

	// ErrMockUpdate indicates a mock update-function failure (used in tests).
	ErrMockUpdate = errors.New("update rejected")
)
