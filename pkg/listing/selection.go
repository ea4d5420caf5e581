package listing

import (
	"github.com/otherjamesbrown/summit/pkg/chat"
	"github.com/otherjamesbrown/summit/pkg/meeting"
)

// Selection is the ordered set of meetings picked for a combined chat.
type Selection struct {
	ids []string
}

// Toggle selects id, or deselects it if already selected. It returns true
// when id ends up selected.
func (s *Selection) Toggle(id string) bool {
	for i, have := range s.ids {
		if have == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			return false
		}
	}
	s.ids = append(s.ids, id)
	return true
}

// Contains reports whether id is selected.
func (s *Selection) Contains(id string) bool {
	for _, have := range s.ids {
		if have == id {
			return true
		}
	}
	return false
}

// SelectAll selects every meeting not already selected.
func (s *Selection) SelectAll(meetings []meeting.Meeting) {
	for i := range meetings {
		if !s.Contains(meetings[i].ScriptID) {
			s.ids = append(s.ids, meetings[i].ScriptID)
		}
	}
}

// IDs returns the selected ids in selection order.
func (s *Selection) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Len is the number of selected meetings.
func (s *Selection) Len() int { return len(s.ids) }

// Clear deselects everything.
func (s *Selection) Clear() { s.ids = nil }

// AnalyzeScope is the chat scope for "analyze selected": exactly the
// selected ids.
func AnalyzeScope(s *Selection) chat.Scope {
	return chat.NewScope(s.ids...)
}
