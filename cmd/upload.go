package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/summit/client"
	"github.com/otherjamesbrown/summit/config"
	"github.com/otherjamesbrown/summit/pkg/events"
	"github.com/otherjamesbrown/summit/pkg/journal"
	"github.com/otherjamesbrown/summit/pkg/logging"
	"github.com/otherjamesbrown/summit/pkg/upload"
)

// HistoryStore lists finished uploads. *journal.Journal satisfies it.
type HistoryStore interface {
	History(ctx context.Context, opts journal.HistoryOptions) ([]journal.Entry, error)
	Close() error
}

// UploadCommandDeps holds dependencies for upload commands.
type UploadCommandDeps struct {
	Config      *config.Config
	LoadConfig  func() (*config.Config, error)
	NewUploader func(cfg *config.Config) upload.Uploader

	// NewObservers returns extra transition observers (event publisher,
	// journal) and a cleanup func.
	NewObservers func(ctx context.Context, cfg *config.Config) ([]upload.Observer, func(), error)

	OpenHistory func(cfg *config.Config) (HistoryStore, error)
}

// DefaultUploadDeps returns default dependencies for production use.
func DefaultUploadDeps() *UploadCommandDeps {
	return &UploadCommandDeps{
		LoadConfig: config.LoadConfig,
		NewUploader: func(cfg *config.Config) upload.Uploader {
			return client.NewScriptClient(cfg.TranscriptURL, clientOptions(cfg))
		},
		NewObservers: uploadSinks,
		OpenHistory: func(cfg *config.Config) (HistoryStore, error) {
			if !cfg.Journal.Enabled() {
				return nil, fmt.Errorf("upload journal is not configured (set journal.dsn or SUMMIT_JOURNAL_DSN)")
			}
			return journal.Open(cfg.Journal.DSN, logging.MustGlobal())
		},
	}
}

// uploadSinks connects the optional Redis publisher and Postgres journal.
func uploadSinks(ctx context.Context, cfg *config.Config) ([]upload.Observer, func(), error) {
	var (
		observers []upload.Observer
		closers   []func() error
	)
	cleanup := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	if cfg.Redis.Enabled() {
		pub, err := events.NewPublisherFromConfig(events.PublisherConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logging.MustGlobal())
		if err != nil {
			return nil, cleanup, err
		}
		observers = append(observers, pub)
		closers = append(closers, pub.Close)
	}

	if cfg.Journal.Enabled() {
		j, err := journal.Open(cfg.Journal.DSN, logging.MustGlobal())
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		if err := j.EnsureSchema(ctx); err != nil {
			_ = j.Close()
			cleanup()
			return nil, func() {}, err
		}
		observers = append(observers, j)
		closers = append(closers, j.Close)
	}

	return observers, cleanup, nil
}

func (d *UploadCommandDeps) load() (*config.Config, error) {
	if d.Config != nil {
		return d.Config, nil
	}
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	d.Config = cfg
	return cfg, nil
}

// NewUploadCommand creates the upload command.
func NewUploadCommand(deps *UploadCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultUploadDeps()
	}

	var (
		title  string
		output string
	)
	cmd := &cobra.Command{
		Use:   "upload <audio-file>",
		Short: "Upload a meeting recording",
		Long: `Upload an audio recording to be transcribed and summarized.

Progress is reported through five stages: uploading, speech-to-text,
script, analyzing and done. The title defaults to the file name.

Examples:
  summit upload standup.m4a --title "Daily standup"
  summit upload review.mp3 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd.Context(), cmd.OutOrStdout(), deps, args[0], title, output)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Meeting title (max 100 characters)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func runUpload(ctx context.Context, out io.Writer, deps *UploadCommandDeps, path, title, output string) error {
	cfg, err := deps.load()
	if err != nil {
		return err
	}
	format, err := resolveFormat(cfg, output)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()

	fileName := filepath.Base(path)
	if title == "" {
		title = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}

	opts := []upload.Option{upload.WithLogger(logging.MustGlobal())}
	if deps.NewObservers != nil {
		observers, cleanup, err := deps.NewObservers(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connecting upload sinks: %w", err)
		}
		defer cleanup()
		for _, o := range observers {
			opts = append(opts, upload.WithObserver(o))
		}
	}

	coord := upload.NewCoordinator(deps.NewUploader(cfg), upload.Config{
		NavigateDelay:  cfg.Upload.NavigateDelay,
		ResetDelay:     cfg.Upload.ResetDelay,
		MaxTitleLength: cfg.Upload.MaxTitleLength,
		NavigateRoute:  cfg.Upload.NavigateRoute,
	}, opts...)
	defer coord.Close()

	states, err := coord.Start(ctx, upload.Request{
		FileName: fileName,
		Title:    title,
		Body:     f,
	})
	if err != nil {
		return err
	}

	text := format == config.OutputFormatText
	var last upload.State
	for st := range states {
		last = st
		if text {
			fmt.Fprintf(out, "[%d/%d] %s\n", st.Progress, upload.MaxProgress, valueOrDefault(st.StageText, string(st.Stage)))
		}
		if st.Stage.Terminal() {
			break
		}
	}

	if !text {
		if err := writeStructured(out, format, last); err != nil {
			return err
		}
	}

	if last.Stage != upload.StageCompleted {
		msg := valueOrDefault(last.Error, "upload did not complete")
		return fmt.Errorf("upload failed: %s", msg)
	}

	if text {
		if id := upload.ResultMeetingID(last.Result); id != "" {
			fmt.Fprintf(out, "\nMeeting created: %s\n", id)
			fmt.Fprintf(out, "View it with: summit meetings show %s\n", id)
		}
	}
	return nil
}

// NewUploadsCommand creates the uploads command for past uploads.
func NewUploadsCommand(deps *UploadCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultUploadDeps()
	}

	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "Inspect past uploads",
	}

	var (
		limit      int
		failedOnly bool
		output     string
	)
	history := &cobra.Command{
		Use:   "history",
		Short: "List recent uploads from the journal",
		Long: `List recent uploads recorded in the Postgres journal, newest first.

Requires journal.dsn (or SUMMIT_JOURNAL_DSN).

Examples:
  summit uploads history
  summit uploads history --failed --limit 5 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.load()
			if err != nil {
				return err
			}
			format, err := resolveFormat(cfg, output)
			if err != nil {
				return err
			}

			store, err := deps.OpenHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.History(cmd.Context(), journal.HistoryOptions{Limit: limit, FailedOnly: failedOnly})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format != config.OutputFormatText {
				if entries == nil {
					entries = []journal.Entry{}
				}
				return writeStructured(out, format, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No uploads recorded.")
				return nil
			}
			fmt.Fprintf(out, "%-20s %-10s %s %-9s %s\n", "FINISHED", "STATUS", pad("TITLE", 30), "DURATION", "MEETING / ERROR")
			for _, e := range entries {
				status, detail := "ok", e.MeetingID
				if !e.Success {
					status, detail = "failed", e.Error
				}
				fmt.Fprintf(out, "%-20s %-10s %s %-9s %s\n",
					e.FinishedAt.Local().Format("2006-01-02 15:04:05"),
					status,
					pad(truncate(e.Title, 30), 30),
					fmt.Sprintf("%.1fs", float64(e.DurationMs)/1000),
					truncate(detail, 60))
			}
			return nil
		},
	}
	history.Flags().IntVarP(&limit, "limit", "l", journal.DefaultHistoryLimit, "Maximum number of uploads")
	history.Flags().BoolVar(&failedOnly, "failed", false, "Only failed uploads")
	history.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")

	cmd.AddCommand(history)
	return cmd
}
