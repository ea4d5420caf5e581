package chat

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/otherjamesbrown/summit/pkg/logging"
	"github.com/otherjamesbrown/summit/pkg/meeting"
)

// DefaultTitleConcurrency bounds parallel detail fetches.
const DefaultTitleConcurrency = 8

// DetailFetcher loads one meeting. *client.ReportSourceClient satisfies it.
type DetailFetcher interface {
	GetMeetingDetail(ctx context.Context, id string) (*meeting.Meeting, error)
}

// ScopeTitle is the display title of a scope and the meetings it was built from.
type ScopeTitle struct {
	Title    string            `json:"title"`
	Multiple bool              `json:"multiple"`
	Meetings []meeting.Meeting `json:"meetings,omitempty"`
	Failed   []string          `json:"failed,omitempty"`
}

// Resolved reports whether at least one meeting title was loaded.
func (t ScopeTitle) Resolved() bool { return len(t.Meetings) > 0 }

// TitleResolver turns a scope into a display title by fetching each
// meeting's detail in parallel.
type TitleResolver struct {
	fetcher     DetailFetcher
	concurrency int
	logger      logging.Logger
}

// NewTitleResolver creates a resolver. concurrency <= 0 uses DefaultTitleConcurrency.
func NewTitleResolver(fetcher DetailFetcher, concurrency int, logger logging.Logger) *TitleResolver {
	if concurrency <= 0 {
		concurrency = DefaultTitleConcurrency
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TitleResolver{
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      logger.With(logging.F("component", "title_resolver")),
	}
}

// Resolve fetches every meeting in scope. Individual failures are logged and
// skipped; titles that did load are joined with ", " in scope order. When
// nothing loads the title falls back to "{N} selected meetings".
func (r *TitleResolver) Resolve(ctx context.Context, scope Scope) ScopeTitle {
	if scope.All() {
		return ScopeTitle{}
	}

	results := make([]*meeting.Meeting, len(scope.IDs))
	failures := make([]error, len(scope.IDs))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, id := range scope.IDs {
		g.Go(func() error {
			m, err := r.fetcher.GetMeetingDetail(ctx, id)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = m
			return nil
		})
	}
	_ = g.Wait()

	out := ScopeTitle{Multiple: !scope.Single()}
	titles := make([]string, 0, len(scope.IDs))
	for i, m := range results {
		if m == nil {
			out.Failed = append(out.Failed, scope.IDs[i])
			r.logger.WithContext(ctx).Warn("Meeting title lookup failed",
				logging.F("script_id", scope.IDs[i]),
				logging.Err(failures[i]))
			continue
		}
		out.Meetings = append(out.Meetings, *m)
		titles = append(titles, m.Title)
	}

	switch {
	case len(titles) > 0:
		out.Title = strings.Join(titles, ", ")
	case scope.Single():
		out.Title = "selected meeting"
	default:
		out.Title = fmt.Sprintf("%d selected meetings", len(scope.IDs))
	}
	return out
}
