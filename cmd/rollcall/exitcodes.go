package main

import (
	"errors"

	"github.com/matsen/rollcall/internal/attendance"
	"github.com/matsen/rollcall/internal/config"
	"github.com/matsen/rollcall/internal/standing"
)

// Exit codes.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (missing or invalid settings)
	ExitDataError   = 3 // Data error (empty sheet, unparseable scores)
	ExitStoreError  = 4 // Cell notes could not be written
)

// exitCodeFor maps an error to the exit code that describes it best.
// A failed note write outranks bad rows.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, config.ErrMissingSetting):
		return ExitConfigError
	case standing.IsSubmissionError(err):
		return ExitStoreError
	case errors.Is(err, attendance.ErrEmptyGrid), errors.Is(err, standing.ErrInvalidScore):
		return ExitDataError
	default:
		return ExitError
	}
}
