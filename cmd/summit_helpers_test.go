package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/summit/client"
	"github.com/otherjamesbrown/summit/config"
	"github.com/otherjamesbrown/summit/pkg/chat"
	"github.com/otherjamesbrown/summit/pkg/journal"
	"github.com/otherjamesbrown/summit/pkg/meeting"
	"github.com/otherjamesbrown/summit/pkg/upload"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Locale = "en"
	cfg.Upload.NavigateDelay = time.Hour
	cfg.Upload.ResetDelay = time.Hour
	return cfg
}

// execute runs cmd with args and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

type fakeReports struct {
	meetings []meeting.Meeting
	tags     []string
	err      error
}

func (f *fakeReports) GetMeetings(ctx context.Context) ([]meeting.Meeting, error) {
	return f.meetings, f.err
}

func (f *fakeReports) GetMeetingDetail(ctx context.Context, id string) (*meeting.Meeting, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.meetings {
		if f.meetings[i].ScriptID == id {
			m := f.meetings[i]
			return &m, nil
		}
	}
	return nil, fmt.Errorf("meeting %s not found", id)
}

func (f *fakeReports) GetTags(ctx context.Context) ([]string, error) {
	return f.tags, f.err
}

type fakeScripts struct {
	transcript *meeting.Transcript
	err        error
}

func (f *fakeScripts) GetMeetingScript(ctx context.Context, id string) (*meeting.Transcript, error) {
	return f.transcript, f.err
}

type fakeQuerier struct {
	answer  *client.ChatAnswer
	err     error
	calls   int
	lastIDs []string
}

func (f *fakeQuerier) SendChatQuery(ctx context.Context, question string, scriptIDs []string) (*client.ChatAnswer, error) {
	f.calls++
	f.lastIDs = scriptIDs
	return f.answer, f.err
}

var _ chat.Querier = (*fakeQuerier)(nil)

type fakeUploader struct {
	body []byte
	err  error
}

func (f *fakeUploader) PostScript(ctx context.Context, title, fileName string, file io.Reader) ([]byte, error) {
	return f.body, f.err
}

type fakeHistory struct {
	entries []journal.Entry
	opts    journal.HistoryOptions
	closed  bool
}

func (f *fakeHistory) History(ctx context.Context, opts journal.HistoryOptions) ([]journal.Entry, error) {
	f.opts = opts
	return f.entries, nil
}

func (f *fakeHistory) Close() error {
	f.closed = true
	return nil
}

func sampleMeetings() []meeting.Meeting {
	return []meeting.Meeting{
		{
			ScriptID:        "m-1",
			Title:           "Budget review",
			CreatedAt:       "2024-03-01T10:00:00Z",
			Speakers:        "Ana, Ben",
			Tags:            []string{"finance", "내용 없음"},
			ScriptSummaries: "Quarterly numbers.",
			MeetingMinutes:  "- Approved budget",
		},
		{
			ScriptID:  "m-2",
			Title:     "Hiring sync",
			CreatedAt: "2024-04-02T09:00:00Z",
			Speakers:  "Ana, Ben, Cho",
			Tags:      []string{"hiring"},
		},
		{
			ScriptID:  "m-3",
			Title:     "Architecture",
			CreatedAt: "not a date",
			Speakers:  "Dee",
			Tags:      []string{"platform"},
		},
	}
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func requireLineContaining(t *testing.T, out, substr string) string {
	t.Helper()
	for _, l := range lines(out) {
		if strings.Contains(l, substr) {
			return l
		}
	}
	require.Failf(t, "missing line", "no line contains %q in:\n%s", substr, out)
	return ""
}

var _ upload.Uploader = (*fakeUploader)(nil)
