// Package logcarerr defines the error kinds the log-as-storage engine raises,
// following the sentinel-plus-wrapper convention used throughout the
// package: a package-level ErrXxx for errors.Is checks, wrapped by an
// operation-tagged struct that preserves the underlying cause.
package logcarerr

import (
	"fmt"

	"github.com/logcar/logcar/internal/logcar/errorutil"
)

var (
	// ErrMissingDeploymentID is raised when a read is attempted without a
	// configured deployment/environment scope.
	ErrMissingDeploymentID = fmt.Errorf("logcar: missing deployment id")

	// ErrEmptyFragmentSet is raised when reassembly is requested with zero
	// fragments.
	ErrEmptyFragmentSet = fmt.Errorf("logcar: empty fragment set")

	// ErrIncompleteFragmentSet is raised when, after the repair pass, fewer
	// fragments are present than the declared total.
	ErrIncompleteFragmentSet = fmt.Errorf("logcar: incomplete fragment set")

	// ErrFragmentSequenceError is raised when fragment indices are not a
	// contiguous, non-duplicated range [0, total).
	ErrFragmentSequenceError = fmt.Errorf("logcar: fragment sequence error")

	// ErrDecryptionError is raised for a wrong key, corrupted ciphertext, or
	// malformed encryption envelope.
	ErrDecryptionError = fmt.Errorf("logcar: decryption error")

	// ErrSearchBackendError is raised when the log-search backend returns no
	// result or a malformed payload.
	ErrSearchBackendError = fmt.Errorf("logcar: search backend error")

	// ErrTimeout is raised when a request deadline is exceeded.
	ErrTimeout = fmt.Errorf("logcar: timeout")

	// ErrFragmentBudgetExceeded is raised when chunking a value would
	// produce more fragments than the configured per-write cap.
	ErrFragmentBudgetExceeded = fmt.Errorf("logcar: fragment budget exceeded")

	// ErrEmitFailed is raised when a fragment cannot be marshaled or written
	// to the emit sink.
	ErrEmitFailed = fmt.Errorf("logcar: emit failed")

	// ErrRecordNotFound is raised when a read targets a rid with no live
	// state: never written, or terminally deleted.
	ErrRecordNotFound = fmt.Errorf("logcar: record not found")
)

// Error wraps a logcar failure with a stable sentinel for errors.Is, an
// operation label, positional coordinates, and the underlying cause.
type Error struct {
	Err    error
	Op     string
	Coords *errorutil.Coordinates
	Cause  error
}

func (e *Error) Error() string {
	coords := e.Coords.FormatCoordinates()
	switch {
	case e.Op == "" && coords == "":
		return e.Err.Error()
	case coords == "":
		return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
	case e.Op == "":
		return fmt.Sprintf("%s (%s)", e.Err.Error(), coords)
	default:
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Err.Error(), coords)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// CauseErr returns the underlying cause, if any, for logging.
func (e *Error) CauseErr() error { return e.Cause }

// Wrap builds an *Error for the given sentinel, operation, coordinates and
// cause. coords may be nil.
func Wrap(op string, sentinel error, coords *errorutil.Coordinates, cause error) error {
	return &Error{
		Err:    sentinel,
		Op:     op,
		Coords: coords,
		Cause:  cause,
	}
}
