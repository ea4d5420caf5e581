package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct match", ErrNotFound, true},
		{"wrapped once", fmt.Errorf("get meeting: %w", ErrNotFound), true},
		{"wrapped twice", fmt.Errorf("server: %w", fmt.Errorf("client: %w", ErrNotFound)), true},
		{"different error", ErrValidation, false},
		{"nil error", nil, false},
		{"unrelated error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct match", ErrValidation, true},
		{"wrapped", fmt.Errorf("title: %w", ErrValidation), true},
		{"different error", ErrNotFound, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.want {
				t.Errorf("IsValidation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInvalidStateRefinements(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		wantInvalidState bool
		wantInProgress   bool
		wantBusy         bool
	}{
		{"invalid state", ErrInvalidState, true, false, false},
		{"upload in progress", ErrUploadInProgress, true, true, false},
		{"wrapped upload in progress", fmt.Errorf("start: %w", ErrUploadInProgress), true, true, false},
		{"busy", ErrBusy, true, false, true},
		{"unrelated", ErrNotFound, false, false, false},
		{"nil", nil, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInvalidState(tt.err); got != tt.wantInvalidState {
				t.Errorf("IsInvalidState() = %v, want %v", got, tt.wantInvalidState)
			}
			if got := IsUploadInProgress(tt.err); got != tt.wantInProgress {
				t.Errorf("IsUploadInProgress() = %v, want %v", got, tt.wantInProgress)
			}
			if got := IsBusy(tt.err); got != tt.wantBusy {
				t.Errorf("IsBusy() = %v, want %v", got, tt.wantBusy)
			}
		})
	}
}

func TestSentinelErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrNotFound, "not found"},
		{ErrValidation, "validation error"},
		{ErrInvalidState, "invalid state"},
		{ErrUploadInProgress, "an upload is already in progress"},
		{ErrBusy, "a request is already in flight"},
		{ErrUpstream, "upstream service error"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
