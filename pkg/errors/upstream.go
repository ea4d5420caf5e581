package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode classifies an upstream failure.
type ErrorCode string

const (
	CodeTransport  ErrorCode = "transport"
	CodeHTTPStatus ErrorCode = "http_status"
	CodeDecode     ErrorCode = "decode"
	CodeTimeout    ErrorCode = "timeout"
	CodeCancelled  ErrorCode = "cancelled"
)

// UpstreamError is returned by every external service call that fails.
// Message is what the user sees.
type UpstreamError struct {
	Code       ErrorCode
	Service    string
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// Is makes every UpstreamError match ErrUpstream.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// StatusMessage builds the message used for a non-2xx response. A "message"
// field from the response body wins over the generic status text.
func StatusMessage(status int, bodyMessage string) string {
	if bodyMessage != "" {
		return bodyMessage
	}
	return fmt.Sprintf("HTTP error! status: %d", status)
}

// NewStatusError builds an UpstreamError for a non-2xx response.
func NewStatusError(service, operation string, status int, bodyMessage string) *UpstreamError {
	return &UpstreamError{
		Code:       CodeHTTPStatus,
		Service:    service,
		Operation:  operation,
		StatusCode: status,
		Message:    StatusMessage(status, bodyMessage),
	}
}

// NewDecodeError builds an UpstreamError for a body that is not the expected JSON.
func NewDecodeError(service, operation string, cause error) *UpstreamError {
	return &UpstreamError{
		Code:      CodeDecode,
		Service:   service,
		Operation: operation,
		Message:   fmt.Sprintf("unexpected response from %s: %v", service, cause),
		Cause:     cause,
	}
}

// Classify turns any error from an upstream call into an *UpstreamError.
// An error that already is one is returned unchanged.
func Classify(err error, service, operation string) *UpstreamError {
	if err == nil {
		return nil
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue
	}

	out := &UpstreamError{
		Service:   service,
		Operation: operation,
		Cause:     err,
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		out.Code = CodeTimeout
		out.Message = fmt.Sprintf("%s did not respond in time", service)
	case errors.Is(err, context.Canceled):
		out.Code = CodeCancelled
		out.Message = "request cancelled"
	default:
		out.Code = CodeTransport
		out.Message = fmt.Sprintf("could not reach %s: %v", service, err)
	}
	return out
}

// CodeOf returns the upstream code of err, or "" if err is not an upstream failure.
func CodeOf(err error) ErrorCode {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ""
}
