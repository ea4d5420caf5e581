package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/otherjamesbrown/summit/pkg/upload"
)

func TestEntryFromState_Completed(t *testing.T) {
	started := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	s := upload.State{
		UploadID:  "u-1",
		FileName:  "standup.m4a",
		Title:     "Standup",
		Stage:     upload.StageCompleted,
		Result:    json.RawMessage(`{"script_id":"m-42"}`),
		StartedAt: started,
		UpdatedAt: started.Add(2500 * time.Millisecond),
	}

	e := EntryFromState(s, []string{"uploading", "stt", "analyzing", "completed"})

	if !e.Success {
		t.Error("completed upload should be a success")
	}
	if e.MeetingID != "m-42" {
		t.Errorf("MeetingID = %q, want m-42", e.MeetingID)
	}
	if e.DurationMs != 2500 {
		t.Errorf("DurationMs = %d, want 2500", e.DurationMs)
	}
	if len(e.Stages) != 4 {
		t.Errorf("Stages = %v", e.Stages)
	}
}

func TestEntryFromState_Failed(t *testing.T) {
	s := upload.State{UploadID: "u-2", Stage: upload.StageError, Error: "HTTP error! status: 500"}

	e := EntryFromState(s, nil)

	if e.Success {
		t.Error("failed upload should not be a success")
	}
	if e.Error != "HTTP error! status: 500" {
		t.Errorf("Error = %q", e.Error)
	}
	if e.Stages == nil {
		t.Error("Stages should be empty, not nil")
	}
	if e.FinishedAt.IsZero() {
		t.Error("FinishedAt should default to now")
	}
	if e.DurationMs != 0 {
		t.Errorf("DurationMs = %d, want 0 without a start time", e.DurationMs)
	}
}

func TestInsertQuery(t *testing.T) {
	e := Entry{
		UploadID:   "u-1",
		FileName:   "a.mp3",
		Title:      "Weekly",
		Stage:      "completed",
		Success:    true,
		Stages:     []string{"uploading", "completed"},
		FinishedAt: time.Now(),
	}

	query, args, err := insertQuery(DefaultTable, e)
	if err != nil {
		t.Fatalf("insertQuery() error = %v", err)
	}

	if !strings.HasPrefix(query, "INSERT INTO upload_journal") {
		t.Errorf("query = %s", query)
	}
	if !strings.Contains(query, "ON CONFLICT (upload_id) DO UPDATE") {
		t.Errorf("query should upsert on upload_id: %s", query)
	}
	if !strings.Contains(query, "$11") {
		t.Errorf("query should use dollar placeholders: %s", query)
	}
	if len(args) != len(columns) {
		t.Fatalf("got %d args, want %d", len(args), len(columns))
	}
	if args[5] != nil {
		t.Errorf("empty error_message should be NULL, got %v", args[5])
	}
	if args[8] != nil {
		t.Errorf("zero started_at should be NULL, got %v", args[8])
	}
	if _, ok := args[7].(pq.StringArray); !ok {
		t.Errorf("stages arg = %T, want pq.StringArray", args[7])
	}
}

func TestHistoryQuery(t *testing.T) {
	tests := []struct {
		name     string
		opts     HistoryOptions
		contains []string
		args     int
	}{
		{"default limit", HistoryOptions{}, []string{"FROM upload_journal", "ORDER BY finished_at DESC", "LIMIT 20"}, 0},
		{"explicit limit", HistoryOptions{Limit: 5}, []string{"LIMIT 5"}, 0},
		{"failed only", HistoryOptions{Limit: 3, FailedOnly: true}, []string{"WHERE success = $1", "LIMIT 3"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := historyQuery(DefaultTable, tt.opts)
			if err != nil {
				t.Fatalf("historyQuery() error = %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(query, want) {
					t.Errorf("query %q should contain %q", query, want)
				}
			}
			if len(args) != tt.args {
				t.Errorf("got %d args, want %d", len(args), tt.args)
			}
		})
	}
}

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements("uploads_test")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
	if !strings.Contains(stmts[0], "CREATE TABLE IF NOT EXISTS uploads_test") {
		t.Errorf("table statement = %s", stmts[0])
	}
	if !strings.Contains(stmts[0], "stages        TEXT[]") {
		t.Errorf("table statement should declare stages as text[]: %s", stmts[0])
	}
	if !strings.Contains(stmts[1], "uploads_test_finished_at_idx") {
		t.Errorf("index statement = %s", stmts[1])
	}
}

func TestOnTransition_TracksStages(t *testing.T) {
	db, err := sql.Open("postgres", "postgres://localhost/summit_test?sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	j := New(db, nil)

	uploading := upload.State{UploadID: "u-9", Stage: upload.StageUploading}
	stt := upload.State{UploadID: "u-9", Stage: upload.StageSTT}

	j.OnTransition(context.Background(), upload.IdleState(), uploading)
	j.OnTransition(context.Background(), uploading, stt)
	j.OnTransition(context.Background(), stt, stt)
	j.OnTransition(context.Background(), stt, upload.IdleState())

	j.mu.Lock()
	defer j.mu.Unlock()
	trail := j.trails["u-9"]
	if len(trail) != 2 || trail[0] != "uploading" || trail[1] != "stt" {
		t.Errorf("trail = %v, want [uploading stt]", trail)
	}
}
