package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/summit/client"
	"github.com/otherjamesbrown/summit/config"
	"github.com/otherjamesbrown/summit/pkg/chat"
	smerrors "github.com/otherjamesbrown/summit/pkg/errors"
	"github.com/otherjamesbrown/summit/pkg/logging"
)

// ChatCommandDeps holds dependencies for chat commands.
type ChatCommandDeps struct {
	Config          *config.Config
	LoadConfig      func() (*config.Config, error)
	NewChatClient   func(cfg *config.Config) chat.Querier
	NewReportClient func(cfg *config.Config) chat.DetailFetcher
	In              io.Reader
	IsTerminal      func() bool
}

// DefaultChatDeps returns default dependencies for production use.
func DefaultChatDeps() *ChatCommandDeps {
	return &ChatCommandDeps{
		LoadConfig: config.LoadConfig,
		NewChatClient: func(cfg *config.Config) chat.Querier {
			return client.NewChatClient(cfg.ChatURL, clientOptions(cfg))
		},
		NewReportClient: func(cfg *config.Config) chat.DetailFetcher {
			return client.NewReportSourceClient(cfg.ReportSourceURL, clientOptions(cfg))
		},
		In: os.Stdin,
		IsTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

func (d *ChatCommandDeps) load() (*config.Config, error) {
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

// newSession resolves the scope title and starts a session.
func (d *ChatCommandDeps) newSession(ctx context.Context, cfg *config.Config, scope chat.Scope) *chat.Session {
	title := resolveScopeTitle(ctx, d.NewReportClient(cfg), scope)
	return chat.NewSession(d.NewChatClient(cfg), scope, title,
		chat.WithLogger(logging.MustGlobal()))
}

func resolveScopeTitle(ctx context.Context, fetcher chat.DetailFetcher, scope chat.Scope) string {
	if scope.All() {
		return ""
	}
	resolver := chat.NewTitleResolver(fetcher, 0, logging.MustGlobal())
	return resolver.Resolve(ctx, scope).Title
}

// NewChatCommand creates the chat command with its subcommands.
func NewChatCommand(deps *ChatCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultChatDeps()
	}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions about your meetings",
		Long: `Ask the meeting assistant questions, across all meetings or scoped to a few.

Examples:
  # Search every meeting
  summit chat ask "What did we decide about the launch date?"

  # Scope to two meetings
  summit chat ask "Who owns the follow-ups?" -m 7f3c2a -m 91be04

  # Interactive session
  summit chat repl -m 7f3c2a`,
	}

	cmd.AddCommand(newChatAskCommand(deps))
	cmd.AddCommand(newChatReplCommand(deps))
	return cmd
}

func newChatAskCommand(deps *ChatCommandDeps) *cobra.Command {
	var (
		meetings []string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.load()
			if err != nil {
				return err
			}
			format, err := resolveFormat(cfg, output)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			session := deps.newSession(ctx, cfg, chat.NewScope(meetings...))
			reply, err := session.Send(ctx, strings.Join(args, " "))
			if smerrors.IsValidation(err) {
				return err
			}

			out := cmd.OutOrStdout()
			if format != config.OutputFormatText {
				if werr := writeStructured(out, format, reply); werr != nil {
					return werr
				}
				return err
			}
			printReply(out, reply)
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&meetings, "meeting", "m", nil, "Meeting id to search (repeatable; none = all meetings)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func printReply(out io.Writer, m chat.Message) {
	if m.Role == chat.RoleError {
		fmt.Fprintf(out, "! %s\n", m.Content)
		return
	}

	fmt.Fprintln(out, m.Content)
	if m.Confidence != nil {
		fmt.Fprintf(out, "\nConfidence: %.0f%%\n", *m.Confidence*100)
	}

	sources := m.Sources
	if len(sources) > client.MaxDisplayedSources {
		sources = sources[:client.MaxDisplayedSources]
	}
	if len(sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for _, s := range sources {
			fmt.Fprintf(out, "  - %s\n", s)
		}
	}

	if len(m.EvidenceQuotes) > 0 {
		fmt.Fprintln(out, "\nEvidence:")
		for _, q := range m.EvidenceQuotes {
			speaker := valueOrDefault(q.Speaker, "unknown")
			fmt.Fprintf(out, "  %q (%s)", q.Quote, speaker)
			if link := q.Link(); link != "" {
				fmt.Fprintf(out, " %s", link)
			}
			fmt.Fprintln(out)
		}
	}
}

func newChatReplCommand(deps *ChatCommandDeps) *cobra.Command {
	var meetings []string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

Commands inside the session:
  /scope [id,id...]   Change the meetings searched (no ids = all meetings)
  /history            Print the conversation so far
  /exit               Leave the session`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.load()
			if err != nil {
				return err
			}
			return runChatRepl(cmd.Context(), cmd.OutOrStdout(), deps, cfg, chat.NewScope(meetings...))
		},
	}
	cmd.Flags().StringSliceVarP(&meetings, "meeting", "m", nil, "Meeting id to search (repeatable; none = all meetings)")
	return cmd
}

func runChatRepl(ctx context.Context, out io.Writer, deps *ChatCommandDeps, cfg *config.Config, scope chat.Scope) error {
	session := deps.newSession(ctx, cfg, scope)
	interactive := deps.IsTerminal != nil && deps.IsTerminal()

	fmt.Fprintln(out, session.Messages()[0].Content)
	fmt.Fprintf(out, "(%s)\n", session.Scope().Label())

	scanner := bufio.NewScanner(deps.In)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/exit" || line == "/quit":
			return nil
		case line == "/history":
			for _, m := range session.Messages()[1:] {
				fmt.Fprintf(out, "[%s] %s\n", m.Role, m.Content)
			}
			continue
		case strings.HasPrefix(line, "/scope"):
			ids := strings.FieldsFunc(strings.TrimPrefix(line, "/scope"), func(r rune) bool {
				return r == ',' || r == ' '
			})
			next := chat.NewScope(ids...)
			session.SetScope(next, resolveScopeTitle(ctx, deps.NewReportClient(cfg), next))
			fmt.Fprintln(out, session.Messages()[0].Content)
			continue
		}

		reply, err := session.Send(ctx, line)
		if err != nil && errors.Is(err, smerrors.ErrBusy) {
			fmt.Fprintln(out, "! still waiting for the previous answer")
			continue
		}
		printReply(out, reply)
		fmt.Fprintln(out)
	}
	return scanner.Err()
}
