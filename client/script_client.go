package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	smerrors "github.com/otherjamesbrown/summit/pkg/errors"
	"github.com/otherjamesbrown/summit/pkg/meeting"
)

const scriptsPath = "scripts"

// ScriptClient reads transcripts and submits recordings for transcription.
type ScriptClient struct {
	baseClient
}

// NewScriptClient creates a client for the transcript service rooted at
// baseURL (the service's /api prefix).
func NewScriptClient(baseURL string, opts *Options) *ScriptClient {
	return &ScriptClient{baseClient: newBaseClient(ServiceTranscript, baseURL, opts)}
}

// CreatedScript is the transcript service's reply to an upload.
type CreatedScript struct {
	ScriptID string            `json:"script_id,omitempty"`
	ID       string            `json:"id,omitempty"`
	Title    string            `json:"title,omitempty"`
	Segments []meeting.Segment `json:"segments,omitempty"`

	// Raw is the full response body.
	Raw json.RawMessage `json:"-"`
}

// MeetingID returns script_id, falling back to id.
func (s *CreatedScript) MeetingID() string {
	if s.ScriptID != "" {
		return s.ScriptID
	}
	return s.ID
}

// GetMeetingScript returns the transcript of one meeting with FormattedScript filled in.
func (c *ScriptClient) GetMeetingScript(ctx context.Context, id string) (*meeting.Transcript, error) {
	var t meeting.Transcript
	if err := c.get(ctx, "get_script", c.endpoint(scriptsPath, id), &t); err != nil {
		return nil, err
	}
	if t.ScriptID == "" {
		t.ScriptID = id
	}
	t.FormattedScript = meeting.FormatScript(t.Segments)
	return &t, nil
}

// GetMeetingScriptRaw returns the transcript body with formatted_script added.
func (c *ScriptClient) GetMeetingScriptRaw(ctx context.Context, id string) (json.RawMessage, error) {
	var body map[string]json.RawMessage
	if err := c.get(ctx, "get_script", c.endpoint(scriptsPath, id), &body); err != nil {
		return nil, err
	}
	if err := meeting.DecorateScript(body); err != nil {
		return nil, smerrors.NewDecodeError(c.service, "get_script", err)
	}
	out, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding script %s: %w", id, err)
	}
	return out, nil
}

// PostScript uploads a recording as a single multipart request with
// "title" and "file" parts and returns the 2xx body undecoded. The file is
// streamed, not buffered.
func (c *ScriptClient) PostScript(ctx context.Context, title, fileName string, file io.Reader) ([]byte, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeUploadForm(mw, title, fileName, file)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(scriptsPath), pr)
	if err != nil {
		pr.Close()
		return nil, smerrors.Classify(fmt.Errorf("building request: %w", err), c.service, "create_script")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var body []byte
	if err := c.do(ctx, "create_script", req, &body); err != nil {
		pr.Close()
		return nil, err
	}
	return body, nil
}

// CreateScript uploads a recording and decodes the created script.
func (c *ScriptClient) CreateScript(ctx context.Context, title, fileName string, file io.Reader) (*CreatedScript, error) {
	body, err := c.PostScript(ctx, title, fileName, file)
	if err != nil {
		return nil, err
	}

	var created CreatedScript
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, smerrors.NewDecodeError(c.service, "create_script", err)
	}
	created.Raw = body
	return &created, nil
}

func writeUploadForm(mw *multipart.Writer, title, fileName string, file io.Reader) error {
	if err := mw.WriteField("title", title); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}
