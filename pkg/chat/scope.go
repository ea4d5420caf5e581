// Package chat runs question-and-answer sessions against the chat service,
// scoped to all meetings, one meeting or a selected set.
package chat

import (
	"fmt"
	"net/url"
	"strings"
)

// Scope is the set of meetings a chat searches. No ids means every meeting.
type Scope struct {
	IDs []string `json:"script_ids"`
}

// NewScope builds a scope from ids, dropping blanks and duplicates.
func NewScope(ids ...string) Scope {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return Scope{IDs: out}
}

// ParseScope reads the script_id / script_ids query parameters of the chat
// route. A single script_id wins over any script_ids.
func ParseScope(q url.Values) Scope {
	if id := strings.TrimSpace(q.Get("script_id")); id != "" {
		return NewScope(id)
	}
	var ids []string
	for _, v := range q["script_ids"] {
		ids = append(ids, strings.Split(v, ",")...)
	}
	return NewScope(ids...)
}

// All reports whether the scope covers every meeting.
func (s Scope) All() bool { return len(s.IDs) == 0 }

// Single reports whether the scope is exactly one meeting.
func (s Scope) Single() bool { return len(s.IDs) == 1 }

// Key identifies the scope; two scopes with the same ids in the same order
// share a key.
func (s Scope) Key() string {
	if s.All() {
		return "all"
	}
	return strings.Join(s.IDs, ",")
}

// Query encodes the scope as chat route query parameters.
func (s Scope) Query() url.Values {
	q := url.Values{}
	switch {
	case s.All():
	case s.Single():
		q.Set("script_id", s.IDs[0])
	default:
		q["script_ids"] = append([]string(nil), s.IDs...)
	}
	return q
}

// Route is the chat page path for this scope.
func (s Scope) Route() string {
	if s.All() {
		return "/chat"
	}
	return "/chat?" + s.Query().Encode()
}

// Label describes where questions will be searched.
func (s Scope) Label() string {
	switch {
	case s.All():
		return "Searching all meetings"
	case s.Single():
		return "Searching the selected meeting"
	default:
		return fmt.Sprintf("Searching in %d meetings", len(s.IDs))
	}
}
