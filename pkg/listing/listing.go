// Package listing filters, sorts and selects meetings for the meeting list.
// Everything here runs over the full fetched list; there is no server-side
// search or paging.
package listing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/otherjamesbrown/summit/pkg/meeting"
)

// SortKey selects the meeting list order.
type SortKey string

const (
	// SortRecent orders by creation time, newest first.
	SortRecent SortKey = "recent"
	// SortTitle orders by title using locale collation.
	SortTitle SortKey = "title"
	// SortParticipants orders by participant count, largest first.
	SortParticipants SortKey = "participants"
)

// SortKeys lists the valid sort keys.
var SortKeys = []SortKey{SortRecent, SortTitle, SortParticipants}

// ParseSortKey validates s. An empty string selects SortRecent.
func ParseSortKey(s string) (SortKey, error) {
	if s == "" {
		return SortRecent, nil
	}
	for _, k := range SortKeys {
		if string(k) == strings.ToLower(s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("invalid sort key %q (valid: recent, title, participants)", s)
}

// Options are the three independent list controls.
type Options struct {
	Query string
	Sort  SortKey
	Tags  []string
}

// NewCollator returns a collator for a BCP 47 locale such as "ko" or "en-US".
func NewCollator(locale string) *collate.Collator {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Korean
	}
	return collate.New(tag)
}

// Matches reports whether query is a case-insensitive substring of the
// title, summary, speakers or any tag. A blank query matches everything.
func Matches(m *meeting.Meeting, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(m.Title), q) ||
		strings.Contains(strings.ToLower(m.ScriptSummaries), q) ||
		strings.Contains(strings.ToLower(m.Speakers), q) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// HasAnyTag reports whether m carries at least one of tags. No tags matches
// everything.
func HasAnyTag(m *meeting.Meeting, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		for _, have := range m.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Apply filters and sorts meetings into a new slice. col may be nil, in
// which case titles collate as Korean.
func Apply(meetings []meeting.Meeting, opts Options, col *collate.Collator) []meeting.Meeting {
	out := make([]meeting.Meeting, 0, len(meetings))
	for i := range meetings {
		if Matches(&meetings[i], opts.Query) && HasAnyTag(&meetings[i], opts.Tags) {
			out = append(out, meetings[i])
		}
	}
	Sort(out, opts.Sort, col)
	return out
}

// Sort orders meetings in place. The sort is stable so equal keys keep
// their fetched order.
func Sort(meetings []meeting.Meeting, key SortKey, col *collate.Collator) {
	switch key {
	case SortTitle:
		if col == nil {
			col = collate.New(language.Korean)
		}
		sort.SliceStable(meetings, func(i, j int) bool {
			return col.CompareString(meetings[i].Title, meetings[j].Title) < 0
		})
	case SortParticipants:
		sort.SliceStable(meetings, func(i, j int) bool {
			return meetings[i].ParticipantCount() > meetings[j].ParticipantCount()
		})
	default:
		sortByCreated(meetings)
	}
}

// sortByCreated orders newest first; missing or unparseable timestamps sort last.
func sortByCreated(meetings []meeting.Meeting) {
	type stamped struct {
		m  meeting.Meeting
		at time.Time
	}
	items := make([]stamped, len(meetings))
	for i := range meetings {
		items[i] = stamped{m: meetings[i], at: meetings[i].Created()}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].at, items[j].at
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.After(b)
	})
	for i := range items {
		meetings[i] = items[i].m
	}
}

// ToggleTag adds tag to selected, or removes it when already present.
func ToggleTag(selected []string, tag string) []string {
	out := make([]string, 0, len(selected)+1)
	found := false
	for _, t := range selected {
		if t == tag {
			found = true
			continue
		}
		out = append(out, t)
	}
	if !found {
		out = append(out, tag)
	}
	return out
}

// CollectTags returns the distinct usable tags of meetings in first-seen order.
func CollectTags(meetings []meeting.Meeting) []string {
	seen := make(map[string]bool)
	var out []string
	for i := range meetings {
		for _, tag := range meeting.UsableTags(meetings[i].Tags) {
			if !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
		}
	}
	return out
}
