package upload

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	smerrors "github.com/otherjamesbrown/summit/pkg/errors"
)

// DefaultMaxTitleLength is the longest accepted meeting title, in characters.
const DefaultMaxTitleLength = 100

// audioExtensions covers formats the system mime table often lacks.
var audioExtensions = map[string]string{
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".webm": "audio/webm",
	".weba": "audio/webm",
	".amr":  "audio/amr",
}

// Request is one recording to upload.
type Request struct {
	FileName    string
	Title       string
	ContentType string
	Body        io.Reader
}

// DetectContentType guesses a content type from the file extension.
func DetectContentType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ct, ok := audioExtensions[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}

// IsAudio reports whether the request carries an audio/* file.
func (r Request) IsAudio() bool {
	ct := r.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ct = DetectContentType(r.FileName)
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "audio/")
}

// Validate checks the request before anything is sent. maxTitle <= 0 uses
// DefaultMaxTitleLength. Errors wrap ErrValidation.
func (r Request) Validate(maxTitle int) error {
	if maxTitle <= 0 {
		maxTitle = DefaultMaxTitleLength
	}
	if r.Body == nil || r.FileName == "" {
		return fmt.Errorf("please choose a file: %w", smerrors.ErrValidation)
	}
	if !r.IsAudio() {
		return fmt.Errorf("only audio files can be uploaded (%s): %w", r.FileName, smerrors.ErrValidation)
	}
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return fmt.Errorf("please enter a meeting title: %w", smerrors.ErrValidation)
	}
	if n := utf8.RuneCountInString(title); n > maxTitle {
		return fmt.Errorf("title is %d characters, the limit is %d: %w", n, maxTitle, smerrors.ErrValidation)
	}
	return nil
}
