// Package errors provides common domain error types for summit.
//
// Sentinel errors describe domain conditions ("not found", "invalid state") and
// are checked with errors.Is through the IsX helpers. Failures talking to the
// external report, transcript and chat services are reported as *UpstreamError,
// which always matches ErrUpstream.
//
// Usage:
//
//	import smerrors "github.com/otherjamesbrown/summit/pkg/errors"
//
//	if smerrors.IsUploadInProgress(err) {
//	    // tell the user to wait for the current upload
//	}
package errors

import "errors"

// Domain errors.
var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrUploadInProgress is returned when an upload is started while another
	// one is still between the uploading and analyzing stages.
	ErrUploadInProgress = &stateError{msg: "an upload is already in progress"}

	// ErrBusy indicates a request is already outstanding for the same session.
	ErrBusy = &stateError{msg: "a request is already in flight"}

	// ErrUpstream indicates an external service call failed.
	ErrUpstream = errors.New("upstream service error")
)

// stateError is an ErrInvalidState refinement.
type stateError struct {
	msg string
}

func (e *stateError) Error() string { return e.msg }

func (e *stateError) Unwrap() error { return ErrInvalidState }

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
// ErrUploadInProgress and ErrBusy both satisfy it.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsUploadInProgress reports whether any error in err's chain is ErrUploadInProgress.
func IsUploadInProgress(err error) bool {
	return errors.Is(err, ErrUploadInProgress)
}

// IsBusy reports whether any error in err's chain is ErrBusy.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

// IsUpstream reports whether any error in err's chain is an upstream failure.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}
