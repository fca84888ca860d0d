package sheets

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Common errors returned by the Sheets client.
var (
	// ErrNotFound indicates the spreadsheet or range does not exist.
	ErrNotFound = errors.New("not found in spreadsheet")

	// ErrAuth indicates missing or insufficient credentials.
	ErrAuth = errors.New("spreadsheet authentication error")

	// ErrRateLimited indicates the API quota has been exceeded.
	ErrRateLimited = errors.New("spreadsheet rate limit exceeded")

	// ErrAPI indicates a general API error.
	ErrAPI = errors.New("spreadsheet API error")
)

// APIError represents an error response from the Sheets API.
type APIError struct {
	Op         string // "read" or "batch write"
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sheets %s failed (status %d): %s", e.Op, e.StatusCode, e.Message)
}

// Is maps the status code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrAuth:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrAPI:
		return true
	}
	return false
}

// IsNotFound returns true if the error indicates a missing spreadsheet or range.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsAuthError returns true if the error indicates an authentication problem.
func IsAuthError(err error) bool { return errors.Is(err, ErrAuth) }

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// classify converts a googleapi error into an *APIError; other errors
// (network failures, context expiry) are wrapped unchanged.
func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{Op: op, StatusCode: gerr.Code, Message: gerr.Message}
	}
	return fmt.Errorf("sheets %s: %w", op, err)
}
