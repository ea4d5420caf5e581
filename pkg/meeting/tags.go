package meeting

import "strings"

// Substrings the report generator writes into tags it could not fill in
// ("no content", "incomplete", "not provided").
var placeholderMarkers = []string{"내용 없음", "미완성", "미제공"}

// MaxTags caps the tag list requested from the report-source service.
const MaxTags = 20

// IsPlaceholderTag reports whether tag is empty or a placeholder that should
// not be offered as a filter.
func IsPlaceholderTag(tag string) bool {
	if strings.TrimSpace(tag) == "" {
		return true
	}
	for _, marker := range placeholderMarkers {
		if strings.Contains(tag, marker) {
			return true
		}
	}
	return false
}

// UsableTags drops empty and placeholder tags, keeping order.
func UsableTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if IsPlaceholderTag(tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}
