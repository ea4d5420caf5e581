package meeting

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Segment is one speaker turn of a transcript.
type Segment struct {
	Speaker string `json:"speaker" yaml:"speaker"`
	Text    string `json:"text" yaml:"text"`
}

// UnmarshalJSON accepts any JSON value for speaker and text. Strings are
// used as is, null or a missing key gives "", and anything else keeps its
// literal JSON text, so a numeric speaker id still renders.
func (s *Segment) UnmarshalJSON(data []byte) error {
	var raw struct {
		Speaker json.RawMessage `json:"speaker"`
		Text    json.RawMessage `json:"text"`
	}
	if !strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		*s = Segment{}
		return nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Speaker = looseString(raw.Speaker)
	s.Text = looseString(raw.Text)
	return nil
}

func looseString(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return trimmed
}

// Transcript is the segmented script of one meeting.
type Transcript struct {
	ScriptID        string    `json:"script_id,omitempty" yaml:"script_id,omitempty"`
	Title           string    `json:"title,omitempty" yaml:"title,omitempty"`
	Segments        []Segment `json:"segments" yaml:"segments"`
	FormattedScript string    `json:"formatted_script,omitempty" yaml:"formatted_script,omitempty"`
}

// FormatScript renders segments as "[speaker] text" blocks separated by a
// blank line.
func FormatScript(segments []Segment) string {
	lines := make([]string, len(segments))
	for i, s := range segments {
		lines[i] = fmt.Sprintf("[%s] %s", s.Speaker, s.Text)
	}
	return strings.Join(lines, "\n\n")
}

// DecorateScript adds formatted_script to a raw transcript body when it
// carries a segments array. Bodies without one are left untouched.
func DecorateScript(body map[string]json.RawMessage) error {
	raw, ok := body["segments"]
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "[") {
		return nil
	}

	var segments []Segment
	if err := json.Unmarshal(raw, &segments); err != nil {
		return fmt.Errorf("decoding segments: %w", err)
	}

	formatted, err := json.Marshal(FormatScript(segments))
	if err != nil {
		return err
	}
	body["formatted_script"] = formatted
	return nil
}
