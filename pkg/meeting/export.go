package meeting

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	ruleWidth       = 50
	noSpeakers      = "(not recorded)"
	noSummary       = "No summary available."
	noMinutes       = "No minutes available."
	defaultFileBase = "meeting"
)

// RenderText renders the plain-text download of a meeting. The transcript
// section is included only when t has segments.
func RenderText(m *Meeting, t *Transcript, now time.Time) string {
	var b strings.Builder
	rule := strings.Repeat("-", ruleWidth)

	section := func(name, body string) {
		fmt.Fprintf(&b, "\n%s\n%s\n%s\n\n%s\n", rule, name, rule, body)
	}

	fmt.Fprintf(&b, "%s\n%s\n\n", m.Title, strings.Repeat("=", utf8.RuneCountInString(m.Title)))
	fmt.Fprintf(&b, "Meeting date: %s\n", m.DisplayDate())
	fmt.Fprintf(&b, "Participants: %s\n", orDefault(m.Speakers, noSpeakers))
	fmt.Fprintf(&b, "Participant count: %d\n", m.ParticipantCount())

	section("Summary", orDefault(m.ScriptSummaries, noSummary))
	section("Minutes", orDefault(m.MeetingMinutes, noMinutes))
	if t != nil && len(t.Segments) > 0 {
		section("Full transcript", FormatScript(t.Segments))
	}

	fmt.Fprintf(&b, "\n---\nDownloaded at: %s\n", now.Format("2006-01-02 15:04:05"))
	return b.String()
}

// RenderMarkdown renders the meeting minutes as a markdown document.
func RenderMarkdown(m *Meeting) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", m.Title)
	fmt.Fprintf(&b, "- Date: %s\n", m.DisplayDate())
	fmt.Fprintf(&b, "- Participants: %s\n", orDefault(m.Speakers, noSpeakers))
	if tags := UsableTags(m.Tags); len(tags) > 0 {
		fmt.Fprintf(&b, "- Tags: %s\n", strings.Join(tags, ", "))
	}
	fmt.Fprintf(&b, "\n## Summary\n\n%s\n", orDefault(m.ScriptSummaries, noSummary))
	fmt.Fprintf(&b, "\n## Minutes\n\n%s\n", orDefault(m.MeetingMinutes, noMinutes))
	return b.String()
}

var unsafeFileChars = regexp.MustCompile(`[^\w\s\-가-힣]`)

// ExportFileName builds "minutes_<title>_<YYYYMMDD>.<ext>" with characters
// outside word, space, dash and Hangul removed from the title.
func ExportFileName(m *Meeting, ext string) string {
	title := strings.TrimSpace(unsafeFileChars.ReplaceAllString(m.Title, ""))
	if title == "" {
		title = defaultFileBase
	}
	date := strings.ReplaceAll(m.DisplayDate(), "-", "")
	if date == "" {
		return fmt.Sprintf("minutes_%s.%s", title, ext)
	}
	return fmt.Sprintf("minutes_%s_%s.%s", title, date, ext)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
