package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/summit/pkg/meeting"
)

func ids(meetings []meeting.Meeting) []string {
	out := make([]string, len(meetings))
	for i := range meetings {
		out[i] = meetings[i].ScriptID
	}
	return out
}

func sample() []meeting.Meeting {
	return []meeting.Meeting{
		{ScriptID: "a", Title: "Budget review", CreatedAt: "2025-01-10T09:00:00Z", Speakers: "Kim, Lee", Tags: []string{"finance"}, ScriptSummaries: "Quarterly numbers"},
		{ScriptID: "b", Title: "Hiring sync", CreatedAt: "2025-03-01T09:00:00Z", Speakers: "Park", Tags: []string{"hr", "hiring"}},
		{ScriptID: "c", Title: "All hands", CreatedAt: "2025-02-15T09:00:00Z", Speakers: "", Tags: nil},
		{ScriptID: "d", Title: "Design crit", CreatedAt: "", Speakers: "Choi, Jung, Kang", Tags: []string{"design"}},
	}
}

func TestMatches(t *testing.T) {
	m := sample()[0]

	tests := []struct {
		query string
		want  bool
	}{
		{"", true},
		{"budget", true},
		{"QUARTERLY", true},
		{"lee", true},
		{"fin", true},
		{"roadmap", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(&m, tt.query))
		})
	}
}

func TestApply_TagFilterIsOr(t *testing.T) {
	got := Apply(sample(), Options{Tags: []string{"finance", "design"}, Sort: SortRecent}, nil)
	assert.ElementsMatch(t, []string{"a", "d"}, ids(got))
}

func TestApply_QueryAndTagsCombine(t *testing.T) {
	got := Apply(sample(), Options{Query: "sync", Tags: []string{"hr"}}, nil)
	assert.Equal(t, []string{"b"}, ids(got))

	got = Apply(sample(), Options{Query: "sync", Tags: []string{"finance"}}, nil)
	assert.Empty(t, got)
}

func TestSort_Recent(t *testing.T) {
	got := Apply(sample(), Options{Sort: SortRecent}, nil)
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids(got))
}

func TestSort_ParticipantsStableDescending(t *testing.T) {
	meetings := []meeting.Meeting{
		{ScriptID: "one-a", Speakers: "Kim"},
		{ScriptID: "none", Speakers: ""},
		{ScriptID: "three", Speakers: "A,B,C"},
		{ScriptID: "one-b", Speakers: "Lee"},
		{ScriptID: "two", Speakers: "A, B"},
	}

	Sort(meetings, SortParticipants, nil)
	assert.Equal(t, []string{"three", "two", "one-a", "one-b", "none"}, ids(meetings))
}

func TestSort_TitleCollation(t *testing.T) {
	meetings := []meeting.Meeting{
		{ScriptID: "3", Title: "하반기 계획"},
		{ScriptID: "1", Title: "가을 워크숍"},
		{ScriptID: "2", Title: "나눔 행사"},
	}

	Sort(meetings, SortTitle, NewCollator("ko"))
	assert.Equal(t, []string{"1", "2", "3"}, ids(meetings))
}

func TestParseSortKey(t *testing.T) {
	k, err := ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortRecent, k)

	k, err = ParseSortKey("Participants")
	require.NoError(t, err)
	assert.Equal(t, SortParticipants, k)

	_, err = ParseSortKey("size")
	assert.Error(t, err)
}

func TestToggleTag(t *testing.T) {
	tags := ToggleTag(nil, "hr")
	assert.Equal(t, []string{"hr"}, tags)
	tags = ToggleTag(tags, "design")
	assert.Equal(t, []string{"hr", "design"}, tags)
	tags = ToggleTag(tags, "hr")
	assert.Equal(t, []string{"design"}, tags)
}

func TestCollectTags_SkipsPlaceholders(t *testing.T) {
	meetings := []meeting.Meeting{
		{Tags: []string{"hr", "내용 없음"}},
		{Tags: []string{"hr", "design", ""}},
	}
	assert.Equal(t, []string{"hr", "design"}, CollectTags(meetings))
}

func TestSelection_AnalyzeScope(t *testing.T) {
	var sel Selection
	assert.True(t, sel.Toggle("A"))
	assert.True(t, sel.Toggle("C"))
	assert.True(t, sel.Toggle("B"))
	assert.False(t, sel.Toggle("C"))

	scope := AnalyzeScope(&sel)
	assert.Equal(t, []string{"A", "B"}, scope.IDs)
	assert.Equal(t, 2, sel.Len())

	sel.SelectAll(sample())
	assert.Equal(t, []string{"A", "B", "a", "b", "c", "d"}, sel.IDs())

	sel.Clear()
	assert.True(t, AnalyzeScope(&sel).All())
}
