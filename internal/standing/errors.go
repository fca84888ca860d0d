package standing

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Errors returned by the standing engine.
var (
	// ErrNoMutations indicates there was nothing to write to the store.
	// It is benign: callers log it and carry on.
	ErrNoMutations = errors.New("no cell mutations to submit")

	// ErrNotRefreshed indicates the directory has never completed a refresh.
	ErrNotRefreshed = errors.New("standing directory has not been refreshed yet")

	// ErrNotFound indicates a name has no record in the current generation.
	ErrNotFound = errors.New("no standing record for that name")

	// ErrInvalidScore is matched by every *InvalidScoreError.
	ErrInvalidScore = errors.New("invalid score")
)

// InvalidScoreError reports a score cell that is not a number.
type InvalidScoreError struct {
	Name  string
	Score string
	Err   error
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("invalid score %q for %s", e.Score, e.Name)
}

func (e *InvalidScoreError) Unwrap() error { return e.Err }

// Is reports whether target is ErrInvalidScore.
func (e *InvalidScoreError) Is(target error) bool { return target == ErrInvalidScore }

// StoreSubmissionError reports a failed or timed-out batch write.
// The generation that produced the batch is still published.
type StoreSubmissionError struct {
	Mutations int
	Err       error
}

func (e *StoreSubmissionError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("submitting %d cell notes timed out: %v", e.Mutations, e.Err)
	}
	return fmt.Sprintf("submitting %d cell notes: %v", e.Mutations, e.Err)
}

func (e *StoreSubmissionError) Unwrap() error { return e.Err }

// Timeout reports whether the submission failed because its deadline expired.
func (e *StoreSubmissionError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// RefreshError collects the non-fatal problems of one refresh.
type RefreshError struct {
	Members []error // one *InvalidScoreError per bad row
	Submit  error   // *StoreSubmissionError, or nil
}

func (e *RefreshError) Error() string {
	var parts []string
	if n := len(e.Members); n > 0 {
		parts = append(parts, fmt.Sprintf("%d member(s) with problems", n))
	}
	if e.Submit != nil {
		parts = append(parts, e.Submit.Error())
	}
	return "refresh completed with errors: " + strings.Join(parts, "; ")
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e *RefreshError) Unwrap() []error {
	errs := append([]error(nil), e.Members...)
	if e.Submit != nil {
		errs = append(errs, e.Submit)
	}
	return errs
}

// IsSubmissionError returns true if err carries a StoreSubmissionError.
func IsSubmissionError(err error) bool {
	var se *StoreSubmissionError
	return errors.As(err, &se)
}
