// Package journal records finished uploads in Postgres so `summit uploads
// history` can list what was sent, when, and how it ended.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/otherjamesbrown/summit/pkg/logging"
	"github.com/otherjamesbrown/summit/pkg/upload"
)

// DefaultTable is the journal table name.
const DefaultTable = "upload_journal"

// DefaultHistoryLimit applies when History is called without a limit.
const DefaultHistoryLimit = 20

const recordTimeout = 5 * time.Second

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var columns = []string{
	"upload_id",
	"file_name",
	"title",
	"stage",
	"success",
	"error_message",
	"meeting_id",
	"stages",
	"started_at",
	"finished_at",
	"duration_ms",
}

// Entry is one finished upload.
type Entry struct {
	UploadID   string    `json:"upload_id" yaml:"upload_id"`
	FileName   string    `json:"file_name" yaml:"file_name"`
	Title      string    `json:"title" yaml:"title"`
	Stage      string    `json:"stage" yaml:"stage"`
	Success    bool      `json:"success" yaml:"success"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	MeetingID  string    `json:"meeting_id,omitempty" yaml:"meeting_id,omitempty"`
	Stages     []string  `json:"stages" yaml:"stages"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	DurationMs int64     `json:"duration_ms" yaml:"duration_ms"`
}

// EntryFromState builds an Entry from a terminal upload state.
func EntryFromState(s upload.State, stages []string) Entry {
	e := Entry{
		UploadID:   s.UploadID,
		FileName:   s.FileName,
		Title:      s.Title,
		Stage:      string(s.Stage),
		Success:    s.Stage == upload.StageCompleted,
		Error:      s.Error,
		Stages:     stages,
		StartedAt:  s.StartedAt,
		FinishedAt: s.UpdatedAt,
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now().UTC()
	}
	if !e.StartedAt.IsZero() {
		e.DurationMs = e.FinishedAt.Sub(e.StartedAt).Milliseconds()
	}
	if len(s.Result) > 0 {
		e.MeetingID = upload.ResultMeetingID(s.Result)
	}
	if e.Stages == nil {
		e.Stages = []string{}
	}
	return e
}

// HistoryOptions filters History.
type HistoryOptions struct {
	Limit      int
	FailedOnly bool
}

// Journal persists upload outcomes. It is an upload.Observer.
type Journal struct {
	db     *sql.DB
	table  string
	logger logging.Logger

	mu     sync.Mutex
	trails map[string][]string
}

// Open connects to Postgres with lib/pq and returns a Journal.
func Open(dsn string, logger logging.Logger) (*Journal, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return New(db, logger), nil
}

// New wraps an existing database handle.
func New(db *sql.DB, logger logging.Logger) *Journal {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Journal{
		db:     db,
		table:  DefaultTable,
		logger: logger.With(logging.F("component", "journal")),
		trails: make(map[string][]string),
	}
}

// DB returns the underlying handle.
func (j *Journal) DB() *sql.DB {
	return j.db
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// EnsureSchema creates the journal table if it does not exist.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(j.table) {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating journal schema: %w", err)
		}
	}
	return nil
}

func schemaStatements(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			upload_id     TEXT PRIMARY KEY,
			file_name     TEXT NOT NULL,
			title         TEXT NOT NULL,
			stage         TEXT NOT NULL,
			success       BOOLEAN NOT NULL,
			error_message TEXT,
			meeting_id    TEXT,
			stages        TEXT[] NOT NULL DEFAULT '{}',
			started_at    TIMESTAMPTZ,
			finished_at   TIMESTAMPTZ NOT NULL,
			duration_ms   BIGINT NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_finished_at_idx ON %s (finished_at DESC)`, table, table),
	}
}

// Record upserts an entry keyed by upload id.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	query, args, err := insertQuery(j.table, e)
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}

	if _, err := j.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("recording upload %s: %w", e.UploadID, err)
	}
	return nil
}

func insertQuery(table string, e Entry) (string, []interface{}, error) {
	var started interface{}
	if !e.StartedAt.IsZero() {
		started = e.StartedAt
	}

	return psql.Insert(table).
		Columns(columns...).
		Values(
			e.UploadID,
			e.FileName,
			e.Title,
			e.Stage,
			e.Success,
			nullIfEmpty(e.Error),
			nullIfEmpty(e.MeetingID),
			pq.StringArray(e.Stages),
			started,
			e.FinishedAt,
			e.DurationMs,
		).
		Suffix(`ON CONFLICT (upload_id) DO UPDATE
			SET stage = EXCLUDED.stage,
			    success = EXCLUDED.success,
			    error_message = EXCLUDED.error_message,
			    meeting_id = EXCLUDED.meeting_id,
			    stages = EXCLUDED.stages,
			    finished_at = EXCLUDED.finished_at,
			    duration_ms = EXCLUDED.duration_ms`).
		ToSql()
}

// History returns the most recent entries, newest first.
func (j *Journal) History(ctx context.Context, opts HistoryOptions) ([]Entry, error) {
	query, args, err := historyQuery(j.table, opts)
	if err != nil {
		return nil, fmt.Errorf("building history query: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			errorMsg  sql.NullString
			meetingID sql.NullString
			started   sql.NullTime
			stages    pq.StringArray
		)
		err := rows.Scan(
			&e.UploadID,
			&e.FileName,
			&e.Title,
			&e.Stage,
			&e.Success,
			&errorMsg,
			&meetingID,
			&stages,
			&started,
			&e.FinishedAt,
			&e.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		e.Error = errorMsg.String
		e.MeetingID = meetingID.String
		e.Stages = []string(stages)
		if started.Valid {
			e.StartedAt = started.Time
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return entries, nil
}

func historyQuery(table string, opts HistoryOptions) (string, []interface{}, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	q := psql.Select(columns...).
		From(table).
		OrderBy("finished_at DESC").
		Limit(uint64(limit))
	if opts.FailedOnly {
		q = q.Where(sq.Eq{"success": false})
	}
	return q.ToSql()
}

// OnTransition tracks the stages each upload passes through and records the
// upload once it completes or fails.
func (j *Journal) OnTransition(ctx context.Context, prev, next upload.State) {
	if next.UploadID == "" {
		return
	}

	j.mu.Lock()
	if next.Stage != prev.Stage || next.UploadID != prev.UploadID {
		j.trails[next.UploadID] = append(j.trails[next.UploadID], string(next.Stage))
	}
	if !next.Stage.Terminal() || prev.Stage == next.Stage {
		j.mu.Unlock()
		return
	}
	stages := j.trails[next.UploadID]
	delete(j.trails, next.UploadID)
	j.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	entry := EntryFromState(next, stages)
	if err := j.Record(ctx, entry); err != nil {
		j.logger.WithContext(ctx).Error("Failed to record upload",
			logging.Err(err),
			logging.F("upload_id", entry.UploadID))
		return
	}

	j.logger.Debug("Upload recorded",
		logging.F("upload_id", entry.UploadID),
		logging.F("stage", entry.Stage))
}

// nullIfEmpty returns nil if s is empty, otherwise returns s.
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
