// Package meeting holds the read-only meeting records served by the
// report-source and transcript services, and the derived views built on them.
package meeting

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Meeting is one summarized meeting as returned by the report-source service.
type Meeting struct {
	ScriptID         string   `json:"script_id" yaml:"script_id"`
	Title            string   `json:"title" yaml:"title"`
	CreatedAt        string   `json:"created_at" yaml:"created_at"`
	Speakers         string   `json:"speakers" yaml:"speakers"`
	Tags             []string `json:"tags" yaml:"tags"`
	ScriptSummaries  string   `json:"script_summaries" yaml:"script_summaries"`
	MeetingMinutes   string   `json:"meeting_minutes" yaml:"meeting_minutes"`
	OneLineSummaries string   `json:"one_line_summaries" yaml:"one_line_summaries"`

	// Extra keeps fields this package does not model so a decoded meeting
	// can be written back without losing anything.
	Extra map[string]json.RawMessage `json:"-" yaml:"-"`
}

var knownFields = map[string]bool{
	"script_id":          true,
	"title":              true,
	"created_at":         true,
	"speakers":           true,
	"tags":               true,
	"script_summaries":   true,
	"meeting_minutes":    true,
	"one_line_summaries": true,
}

// meetingFields breaks the UnmarshalJSON/MarshalJSON recursion.
type meetingFields Meeting

// UnmarshalJSON decodes a meeting and normalizes the minutes: when
// meeting_minutes is empty, the older "minutes" field is used instead.
func (m *Meeting) UnmarshalJSON(data []byte) error {
	var f meetingFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for k, v := range raw {
		if knownFields[k] {
			continue
		}
		if f.Extra == nil {
			f.Extra = make(map[string]json.RawMessage)
		}
		f.Extra[k] = v
	}

	if f.MeetingMinutes == "" {
		if alt, ok := raw["minutes"]; ok {
			var minutes string
			if err := json.Unmarshal(alt, &minutes); err == nil {
				f.MeetingMinutes = minutes
			}
		}
	}

	*m = Meeting(f)
	return nil
}

// MarshalJSON writes the modelled fields merged over Extra.
func (m Meeting) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(meetingFields(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return known, nil
	}

	out := make(map[string]json.RawMessage, len(m.Extra)+len(knownFields))
	for k, v := range m.Extra {
		out[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

// SpeakerList splits the comma-joined speakers field.
func SpeakerList(speakers string) []string {
	if strings.TrimSpace(speakers) == "" {
		return nil
	}
	parts := strings.Split(speakers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// ParticipantCount returns the number of comma-separated names in speakers.
// An empty field counts as zero.
func ParticipantCount(speakers string) int {
	if speakers == "" {
		return 0
	}
	return strings.Count(speakers, ",") + 1
}

// ParticipantCount is the participant count of m.
func (m *Meeting) ParticipantCount() int {
	return ParticipantCount(m.Speakers)
}

const descriptionLimit = 150

var (
	keyContentPattern = regexp.MustCompile(`\*\*주요 내용 및 핵심 메시지\*\*:\s*([^-\n]+)`)
	oneLinePrefix     = regexp.MustCompile(`^-\s*"?`)
	oneLineSuffix     = regexp.MustCompile(`"?$`)
)

// Description is the short text shown on a meeting card: the one-line
// summary when there is one, otherwise the key-content bullet of the summary,
// otherwise the first 150 characters of the summary.
func (m *Meeting) Description() string {
	if m.OneLineSummaries != "" {
		s := oneLinePrefix.ReplaceAllString(m.OneLineSummaries, "")
		return oneLineSuffix.ReplaceAllString(s, "")
	}
	return SummaryDescription(m.ScriptSummaries)
}

// SummaryDescription extracts a card description from a markdown summary.
func SummaryDescription(summaries string) string {
	if summaries == "" {
		return ""
	}
	if match := keyContentPattern.FindStringSubmatch(summaries); match != nil {
		return strings.TrimSpace(match[1])
	}
	if utf8.RuneCountInString(summaries) <= descriptionLimit {
		return summaries + "..."
	}
	return string([]rune(summaries)[:descriptionLimit]) + "..."
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseCreatedAt parses the created_at value in any of the layouts the
// report-source service has been seen to emit.
func ParseCreatedAt(s string) (time.Time, error) {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing created_at %q: unrecognized layout", s)
}

// Created returns the creation time, or the zero time when created_at is
// missing or unparseable.
func (m *Meeting) Created() time.Time {
	t, err := ParseCreatedAt(m.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DisplayDate formats the creation date as YYYY-MM-DD, falling back to the
// raw value.
func (m *Meeting) DisplayDate() string {
	t := m.Created()
	if t.IsZero() {
		return m.CreatedAt
	}
	return t.Format("2006-01-02")
}
