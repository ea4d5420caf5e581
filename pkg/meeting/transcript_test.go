package meeting

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestFormatScript(t *testing.T) {
	segments := []Segment{
		{Speaker: "A", Text: "hello"},
		{Speaker: "B", Text: "hi there"},
	}

	want := "[A] hello\n\n[B] hi there"
	if got := FormatScript(segments); got != want {
		t.Errorf("FormatScript() = %q, want %q", got, want)
	}
	if got := FormatScript(nil); got != "" {
		t.Errorf("FormatScript(nil) = %q, want empty", got)
	}
}

func TestDecorateScript(t *testing.T) {
	body := map[string]json.RawMessage{
		"segments": json.RawMessage(`[{"speaker":"A","text":"one"},{"speaker":"B","text":"two"}]`),
		"language": json.RawMessage(`"ko"`),
	}

	if err := DecorateScript(body); err != nil {
		t.Fatalf("DecorateScript() error = %v", err)
	}

	var formatted string
	if err := json.Unmarshal(body["formatted_script"], &formatted); err != nil {
		t.Fatalf("formatted_script not a string: %v", err)
	}
	if formatted != "[A] one\n\n[B] two" {
		t.Errorf("formatted_script = %q", formatted)
	}
	if string(body["language"]) != `"ko"` {
		t.Errorf("language changed: %s", body["language"])
	}
}

func TestDecorateScript_NonStringFields(t *testing.T) {
	body := map[string]json.RawMessage{
		"segments": json.RawMessage(`[{"speaker":2,"text":"one"},{"speaker":null,"text":7.5},{"text":"three"},"noise"]`),
	}

	if err := DecorateScript(body); err != nil {
		t.Fatalf("DecorateScript() error = %v", err)
	}

	var formatted string
	if err := json.Unmarshal(body["formatted_script"], &formatted); err != nil {
		t.Fatalf("formatted_script not a string: %v", err)
	}
	want := "[2] one\n\n[] 7.5\n\n[] three\n\n[] "
	if formatted != want {
		t.Errorf("formatted_script = %q, want %q", formatted, want)
	}
}

func TestDecorateScript_NoSegments(t *testing.T) {
	body := map[string]json.RawMessage{"segments": json.RawMessage(`null`)}
	if err := DecorateScript(body); err != nil {
		t.Fatalf("DecorateScript() error = %v", err)
	}
	if _, ok := body["formatted_script"]; ok {
		t.Error("formatted_script should not be added without a segments array")
	}
}

func TestRenderText(t *testing.T) {
	m := &Meeting{
		Title:           "Budget",
		CreatedAt:       "2025-03-04T09:30:00Z",
		Speakers:        "Kim, Lee",
		ScriptSummaries: "summary body",
		MeetingMinutes:  "minutes body",
	}
	tr := &Transcript{Segments: []Segment{{Speaker: "Kim", Text: "let's start"}}}
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

	out := RenderText(m, tr, now)

	for _, want := range []string{
		"Budget\n======",
		"Meeting date: 2025-03-04",
		"Participant count: 2",
		"summary body",
		"minutes body",
		"Full transcript",
		"[Kim] let's start",
		"Downloaded at: 2025-03-05 10:00:00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderText() missing %q in:\n%s", want, out)
		}
	}

	if strings.Contains(RenderText(m, nil, now), "Full transcript") {
		t.Error("transcript section rendered without a transcript")
	}
}

func TestRenderMarkdown_SkipsPlaceholderTags(t *testing.T) {
	m := &Meeting{Title: "Hiring", Tags: []string{"채용", "내용 없음"}}
	out := RenderMarkdown(m)

	if !strings.HasPrefix(out, "# Hiring\n") {
		t.Errorf("markdown should start with title heading: %q", out)
	}
	if !strings.Contains(out, "- Tags: 채용\n") {
		t.Errorf("expected usable tags line in %q", out)
	}
	if !strings.Contains(out, noMinutes) {
		t.Errorf("expected minutes placeholder in %q", out)
	}
}

func TestExportFileName(t *testing.T) {
	tests := []struct {
		m    Meeting
		ext  string
		want string
	}{
		{Meeting{Title: "주간 회의!", CreatedAt: "2025-03-04T09:30:00Z"}, "txt", "minutes_주간 회의_20250304.txt"},
		{Meeting{Title: "***"}, "md", "minutes_meeting.md"},
	}

	for _, tt := range tests {
		if got := ExportFileName(&tt.m, tt.ext); got != tt.want {
			t.Errorf("ExportFileName(%q) = %q, want %q", tt.m.Title, got, tt.want)
		}
	}
}
