// Package upload tracks the single in-flight audio upload through its five
// stages: uploading, speech-to-text, script, analyzing and completed.
//
// Stages 2 to 5 label the lifetime of one multipart request; they are not
// separate calls. All state changes go through Reduce, and only the
// Coordinator applies them.
package upload

import (
	"encoding/json"
	"fmt"
	"time"

	smerrors "github.com/otherjamesbrown/summit/pkg/errors"
)

// Stage is the upload lifecycle position.
type Stage string

const (
	StageIdle      Stage = "idle"
	StageUploading Stage = "uploading"
	StageSTT       Stage = "stt"
	StageScript    Stage = "script"
	StageAnalyzing Stage = "analyzing"
	StageCompleted Stage = "completed"
	StageError     Stage = "error"
)

// MaxProgress is the progress value of a completed upload.
const MaxProgress = 5

var stageInfo = map[Stage]struct {
	progress int
	label    string
}{
	StageIdle:      {0, ""},
	StageUploading: {1, "Uploading audio file"},
	StageSTT:       {2, "Converting speech to text"},
	StageScript:    {3, "Saving script"},
	StageAnalyzing: {4, "Creating report source"},
	StageCompleted: {5, "Done"},
	StageError:     {-1, "Failed"},
}

// Progress is the 0..5 step count of s. Error keeps the step it failed at,
// so it reports -1 here.
func (s Stage) Progress() int {
	if info, ok := stageInfo[s]; ok {
		return info.progress
	}
	return -1
}

// Label is the human-readable stage text.
func (s Stage) Label() string {
	return stageInfo[s].label
}

// InFlight reports whether the request is still outstanding.
func (s Stage) InFlight() bool {
	switch s {
	case StageUploading, StageSTT, StageScript, StageAnalyzing:
		return true
	}
	return false
}

// Terminal reports whether s is completed or error.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// State is the upload as seen by progress views.
type State struct {
	UploadID    string          `json:"upload_id,omitempty"`
	IsUploading bool            `json:"is_uploading"`
	FileName    string          `json:"file_name"`
	Title       string          `json:"title"`
	Progress    int             `json:"progress"`
	Stage       Stage           `json:"stage"`
	StageText   string          `json:"stage_text"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Navigated   bool            `json:"navigated,omitempty"`
	StartedAt   time.Time       `json:"started_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

// IdleState is the state with no upload tracked.
func IdleState() State {
	return State{Stage: StageIdle}
}

// ActionKind names a lifecycle event.
type ActionKind string

const (
	ActionStart     ActionKind = "start"
	ActionSending   ActionKind = "sending"
	ActionReceived  ActionKind = "received"
	ActionAnalyzing ActionKind = "analyzing"
	ActionCompleted ActionKind = "completed"
	ActionFailed    ActionKind = "failed"
	ActionNavigated ActionKind = "navigated"
	ActionReset     ActionKind = "reset"
)

// Action is one event fed to Reduce. Every action except start must carry
// the id of the upload it belongs to.
type Action struct {
	Kind     ActionKind
	UploadID string
	FileName string
	Title    string
	Result   json.RawMessage
	Err      string
	At       time.Time
}

var (
	// ErrStaleAction is returned for an action that belongs to an upload
	// other than the current one.
	ErrStaleAction = fmt.Errorf("stale upload action: %w", smerrors.ErrInvalidState)

	// ErrInvalidTransition is returned for an action not allowed in the
	// current stage.
	ErrInvalidTransition = fmt.Errorf("invalid upload transition: %w", smerrors.ErrInvalidState)
)

// next maps the forward-only stage transitions.
var next = map[ActionKind]struct{ from, to Stage }{
	ActionSending:   {StageUploading, StageSTT},
	ActionReceived:  {StageSTT, StageScript},
	ActionAnalyzing: {StageScript, StageAnalyzing},
	ActionCompleted: {StageAnalyzing, StageCompleted},
}

// Reduce applies a to s. It never mutates s. The returned error is
// ErrUploadInProgress, ErrStaleAction or ErrInvalidTransition, and s is
// returned unchanged with it.
func Reduce(s State, a Action) (State, error) {
	if a.Kind == ActionStart {
		if s.Stage.InFlight() {
			return s, smerrors.ErrUploadInProgress
		}
		return State{
			UploadID:    a.UploadID,
			IsUploading: true,
			FileName:    a.FileName,
			Title:       a.Title,
			Progress:    StageUploading.Progress(),
			Stage:       StageUploading,
			StageText:   StageUploading.Label(),
			StartedAt:   a.At,
			UpdatedAt:   a.At,
		}, nil
	}

	if a.UploadID == "" || a.UploadID != s.UploadID {
		return s, ErrStaleAction
	}

	out := s
	out.UpdatedAt = a.At

	switch a.Kind {
	case ActionSending, ActionReceived, ActionAnalyzing, ActionCompleted:
		step := next[a.Kind]
		if s.Stage != step.from {
			return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, a.Kind, s.Stage)
		}
		out.Stage = step.to
		out.Progress = step.to.Progress()
		out.StageText = step.to.Label()
		if a.Kind == ActionCompleted {
			out.Result = a.Result
		}
		return out, nil

	case ActionFailed:
		if !s.Stage.InFlight() {
			return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, a.Kind, s.Stage)
		}
		out.Stage = StageError
		out.StageText = StageError.Label()
		out.Error = a.Err
		return out, nil

	case ActionNavigated:
		if s.Stage != StageCompleted || s.Navigated {
			return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, a.Kind, s.Stage)
		}
		out.Navigated = true
		return out, nil

	case ActionReset:
		if !s.Stage.Terminal() {
			return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, a.Kind, s.Stage)
		}
		idle := IdleState()
		idle.UpdatedAt = a.At
		return idle, nil
	}

	return s, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, a.Kind)
}
