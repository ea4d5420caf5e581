package client

import (
	"context"
	"fmt"
	"strconv"
)

const chatQueryPath = "chat/query"

// MaxDisplayedSources is how many sources are shown under an answer.
const MaxDisplayedSources = 5

// ChatQuery is the request body of a chat query. An empty
// UserSelectedScriptIDs searches every meeting.
type ChatQuery struct {
	Question              string   `json:"question"`
	UserSelectedScriptIDs []string `json:"user_selected_script_ids"`
}

// Source is a meeting the answer drew on.
type Source struct {
	ScriptID       string  `json:"script_id"`
	MeetingTitle   string  `json:"meeting_title,omitempty"`
	MeetingDate    string  `json:"meeting_date,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
}

// EvidenceQuote is a transcript excerpt supporting an answer.
type EvidenceQuote struct {
	Quote          string  `json:"quote"`
	Speaker        string  `json:"speaker,omitempty"`
	ScriptID       string  `json:"script_id,omitempty"`
	MeetingTitle   string  `json:"meeting_title,omitempty"`
	MeetingDate    string  `json:"meeting_date,omitempty"`
	ChunkIndex     int     `json:"chunk_index"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
}

// Link is the meeting detail route that opens the quoted chunk, or "" when
// the quote names no meeting.
func (q EvidenceQuote) Link() string {
	if q.ScriptID == "" {
		return ""
	}
	return "/meetings/" + q.ScriptID + "?chunk=" + strconv.Itoa(q.ChunkIndex)
}

// ChatAnswer is a normalized chat service reply.
type ChatAnswer struct {
	Answer          string          `json:"answer"`
	Sources         []Source        `json:"sources"`
	UsedScriptIDs   []string        `json:"used_script_ids"`
	EvidenceQuotes  []EvidenceQuote `json:"evidence_quotes"`
	ConfidenceScore *float64        `json:"confidence_score,omitempty"`
}

// chatResponse is the wire form; older deployments answer in final_answer.
type chatResponse struct {
	Answer          *string         `json:"answer"`
	FinalAnswer     *string         `json:"final_answer"`
	Sources         []Source        `json:"sources"`
	UsedScriptIDs   []string        `json:"used_script_ids"`
	EvidenceQuotes  []EvidenceQuote `json:"evidence_quotes"`
	ConfidenceScore *float64        `json:"confidence_score"`
}

func (r *chatResponse) normalize() *ChatAnswer {
	a := &ChatAnswer{
		Sources:         r.Sources,
		UsedScriptIDs:   r.UsedScriptIDs,
		EvidenceQuotes:  r.EvidenceQuotes,
		ConfidenceScore: r.ConfidenceScore,
	}
	switch {
	case r.Answer != nil:
		a.Answer = *r.Answer
	case r.FinalAnswer != nil:
		a.Answer = *r.FinalAnswer
	}
	if a.Sources == nil {
		a.Sources = []Source{}
	}
	if a.UsedScriptIDs == nil {
		a.UsedScriptIDs = []string{}
	}
	if a.EvidenceQuotes == nil {
		a.EvidenceQuotes = []EvidenceQuote{}
	}
	return a
}

// ChatClient sends questions to the retrieval/answer service.
type ChatClient struct {
	baseClient
}

// NewChatClient creates a client for the chat service rooted at baseURL
// (the service's /api prefix).
func NewChatClient(baseURL string, opts *Options) *ChatClient {
	return &ChatClient{baseClient: newBaseClient(ServiceChat, baseURL, opts)}
}

// SendChatQuery asks question scoped to scriptIDs. A nil or empty scope
// searches all meetings.
func (c *ChatClient) SendChatQuery(ctx context.Context, question string, scriptIDs []string) (*ChatAnswer, error) {
	if scriptIDs == nil {
		scriptIDs = []string{}
	}

	var resp chatResponse
	query := ChatQuery{Question: question, UserSelectedScriptIDs: scriptIDs}
	if err := c.postJSON(ctx, "query", c.baseURL+"/"+chatQueryPath, query, &resp); err != nil {
		return nil, err
	}
	return resp.normalize(), nil
}

// String summarizes a source the way the answer footer lists it.
func (s Source) String() string {
	title := s.MeetingTitle
	if title == "" {
		title = "Meeting"
	}
	date := s.MeetingDate
	if date == "" {
		date = "unknown date"
	}
	return fmt.Sprintf("%s (%s) - script %s - relevance %.2f", title, date, s.ScriptID, s.RelevanceScore)
}
