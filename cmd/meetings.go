package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/summit/client"
	"github.com/otherjamesbrown/summit/config"
	"github.com/otherjamesbrown/summit/pkg/listing"
	"github.com/otherjamesbrown/summit/pkg/meeting"
)

// ReportAPI is the report-source surface used by meeting commands.
type ReportAPI interface {
	GetMeetings(ctx context.Context) ([]meeting.Meeting, error)
	GetMeetingDetail(ctx context.Context, id string) (*meeting.Meeting, error)
	GetTags(ctx context.Context) ([]string, error)
}

// ScriptAPI is the transcript surface used by meeting commands.
type ScriptAPI interface {
	GetMeetingScript(ctx context.Context, id string) (*meeting.Transcript, error)
}

// MeetingCommandDeps holds dependencies for meeting commands.
type MeetingCommandDeps struct {
	Config          *config.Config
	LoadConfig      func() (*config.Config, error)
	NewReportClient func(cfg *config.Config) ReportAPI
	NewScriptClient func(cfg *config.Config) ScriptAPI
	Now             func() time.Time
}

// DefaultMeetingDeps returns default dependencies for production use.
func DefaultMeetingDeps() *MeetingCommandDeps {
	return &MeetingCommandDeps{
		LoadConfig: config.LoadConfig,
		NewReportClient: func(cfg *config.Config) ReportAPI {
			return client.NewReportSourceClient(cfg.ReportSourceURL, clientOptions(cfg))
		},
		NewScriptClient: func(cfg *config.Config) ScriptAPI {
			return client.NewScriptClient(cfg.TranscriptURL, clientOptions(cfg))
		},
		Now: time.Now,
	}
}

func (d *MeetingCommandDeps) load() (*config.Config, error) {
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

// NewMeetingCommand creates the root meetings command with all subcommands.
func NewMeetingCommand(deps *MeetingCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultMeetingDeps()
	}

	cmd := &cobra.Command{
		Use:   "meetings",
		Short: "Browse summarized meetings",
		Long: `Browse the meetings held by the report-source service.

Examples:
  # List meetings, newest first
  summit meetings list

  # Search and sort by participant count
  summit meetings list -q roadmap --sort participants

  # Show a meeting with its minutes
  summit meetings show 7f3c2a

  # Download the minutes and transcript
  summit meetings export 7f3c2a`,
		Aliases: []string{"meeting"},
	}

	cmd.AddCommand(newMeetingListCommand(deps))
	cmd.AddCommand(newMeetingShowCommand(deps))
	cmd.AddCommand(newMeetingScriptCommand(deps))
	cmd.AddCommand(newMeetingTagsCommand(deps))
	cmd.AddCommand(newMeetingExportCommand(deps))

	return cmd
}

type meetingListOptions struct {
	query  string
	sort   string
	tags   []string
	limit  int
	output string
}

func newMeetingListCommand(deps *MeetingCommandDeps) *cobra.Command {
	opts := &meetingListOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meetings",
		Long: `List meetings with optional search, tag filter and sort.

The query matches title, summary, speakers and tags. Tags use OR semantics:
a meeting matches when it carries any selected tag.

Examples:
  summit meetings list
  summit meetings list --tag planning --tag hiring
  summit meetings list --sort title -o json`,
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeetingList(cmd.Context(), cmd.OutOrStdout(), deps, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "Search title, summary, speakers and tags")
	cmd.Flags().StringVarP(&opts.sort, "sort", "s", "recent", "Sort order: recent, title, participants")
	cmd.Flags().StringSliceVarP(&opts.tags, "tag", "t", nil, "Only meetings with any of these tags (repeatable)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "l", 0, "Maximum number of results (0 = all)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func runMeetingList(ctx context.Context, out io.Writer, deps *MeetingCommandDeps, opts *meetingListOptions) error {
	cfg, err := deps.load()
	if err != nil {
		return err
	}
	format, err := resolveFormat(cfg, opts.output)
	if err != nil {
		return err
	}
	sortKey, err := listing.ParseSortKey(opts.sort)
	if err != nil {
		return err
	}

	meetings, err := deps.NewReportClient(cfg).GetMeetings(ctx)
	if err != nil {
		return fmt.Errorf("listing meetings: %w", err)
	}

	filtered := listing.Apply(meetings, listing.Options{
		Query: opts.query,
		Sort:  sortKey,
		Tags:  opts.tags,
	}, listing.NewCollator(cfg.Locale))
	if opts.limit > 0 && len(filtered) > opts.limit {
		filtered = filtered[:opts.limit]
	}

	if format != config.OutputFormatText {
		return writeStructured(out, format, filtered)
	}

	if len(filtered) == 0 {
		fmt.Fprintln(out, "No meetings found.")
		return nil
	}

	fmt.Fprintf(out, "%s %s %s %s %s\n", pad("ID", 12), pad("DATE", 10), pad("TITLE", 40), pad("PEOPLE", 6), "TAGS")
	for i := range filtered {
		m := &filtered[i]
		fmt.Fprintf(out, "%s %s %s %-6d %s\n",
			pad(truncate(m.ScriptID, 12), 12),
			pad(m.DisplayDate(), 10),
			pad(truncate(m.Title, 40), 40),
			m.ParticipantCount(),
			strings.Join(meeting.UsableTags(m.Tags), ", "))
	}
	fmt.Fprintf(out, "\n%d of %d meetings\n", len(filtered), len(meetings))
	return nil
}

func newMeetingShowCommand(deps *MeetingCommandDeps) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a meeting's summary and minutes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.load()
			if err != nil {
				return err
			}
			format, err := resolveFormat(cfg, output)
			if err != nil {
				return err
			}

			m, err := deps.NewReportClient(cfg).GetMeetingDetail(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("getting meeting %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if format != config.OutputFormatText {
				return writeStructured(out, format, m)
			}
			printMeeting(out, m)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func printMeeting(out io.Writer, m *meeting.Meeting) {
	fmt.Fprintf(out, "%s\n", m.Title)
	fmt.Fprintf(out, "  ID:           %s\n", m.ScriptID)
	fmt.Fprintf(out, "  Date:         %s\n", valueOrDefault(m.DisplayDate(), "-"))
	fmt.Fprintf(out, "  Participants: %s (%d)\n", valueOrDefault(m.Speakers, "-"), m.ParticipantCount())
	if tags := meeting.UsableTags(m.Tags); len(tags) > 0 {
		fmt.Fprintf(out, "  Tags:         %s\n", strings.Join(tags, ", "))
	}
	if d := m.Description(); d != "" {
		fmt.Fprintf(out, "\n%s\n", d)
	}
	if m.MeetingMinutes != "" {
		fmt.Fprintf(out, "\nMinutes\n-------\n%s\n", m.MeetingMinutes)
	}
}

func newMeetingScriptCommand(deps *MeetingCommandDeps) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "script <id>",
		Short: "Print a meeting's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.load()
			if err != nil {
				return err
			}
			format, err := resolveFormat(cfg, output)
			if err != nil {
				return err
			}

			t, err := deps.NewScriptClient(cfg).GetMeetingScript(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("getting script %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if format != config.OutputFormatText {
				return writeStructured(out, format, t)
			}
			if len(t.Segments) == 0 {
				fmt.Fprintln(out, "No transcript available.")
				return nil
			}
			fmt.Fprintln(out, t.FormattedScript)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func newMeetingTagsCommand(deps *MeetingCommandDeps) *cobra.Command {
	var (
		output string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List the tags available for filtering",
		Long: `List the tags available for filtering.

Placeholder tags (empty, or marking missing content) are hidden unless --all is set.`,
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

			tags, err := deps.NewReportClient(cfg).GetTags(cmd.Context())
			if err != nil {
				return fmt.Errorf("getting tags: %w", err)
			}
			if !all {
				tags = meeting.UsableTags(tags)
			}

			out := cmd.OutOrStdout()
			if format != config.OutputFormatText {
				return writeStructured(out, format, tags)
			}
			for _, t := range tags {
				fmt.Fprintln(out, t)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	cmd.Flags().BoolVar(&all, "all", false, "Include placeholder tags")
	return cmd
}

func newMeetingExportCommand(deps *MeetingCommandDeps) *cobra.Command {
	var (
		format string
		dest   string
	)
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Download a meeting as text or markdown",
		Long: `Download a meeting's summary and minutes.

The text format also includes the full transcript when it can be fetched.
By default the file is written to the current directory as
minutes_<title>_<YYYYMMDD>.<ext>; use --out - to print instead.

Examples:
  summit meetings export 7f3c2a
  summit meetings export 7f3c2a --format markdown --out notes.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeetingExport(cmd, deps, args[0], format, dest)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Export format: text, markdown")
	cmd.Flags().StringVar(&dest, "out", "", "Output file, or - for stdout")
	return cmd
}

func runMeetingExport(cmd *cobra.Command, deps *MeetingCommandDeps, id, format, dest string) error {
	ctx := cmd.Context()
	cfg, err := deps.load()
	if err != nil {
		return err
	}

	m, err := deps.NewReportClient(cfg).GetMeetingDetail(ctx, id)
	if err != nil {
		return fmt.Errorf("getting meeting %s: %w", id, err)
	}

	var body, ext string
	switch strings.ToLower(format) {
	case "text", "txt":
		t, err := deps.NewScriptClient(cfg).GetMeetingScript(ctx, id)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: transcript unavailable: %v\n", err)
			t = nil
		}
		body, ext = meeting.RenderText(m, t, deps.Now()), "txt"
	case "markdown", "md":
		body, ext = meeting.RenderMarkdown(m), "md"
	default:
		return fmt.Errorf("invalid export format: %s (must be text or markdown)", format)
	}

	if dest == "-" {
		_, err := io.WriteString(cmd.OutOrStdout(), body)
		return err
	}
	if dest == "" {
		dest = meeting.ExportFileName(m, ext)
	}
	if err := os.WriteFile(dest, []byte(body), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", dest)
	return nil
}
