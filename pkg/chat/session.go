package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/summit/client"
	smerrors "github.com/otherjamesbrown/summit/pkg/errors"
	"github.com/otherjamesbrown/summit/pkg/logging"
	"github.com/otherjamesbrown/summit/pkg/observability"
)

// Role is the kind of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// EmptyAnswer is shown when the service answers with no text.
const EmptyAnswer = "The response was empty."

// Message is one entry of a session transcript.
type Message struct {
	ID             string                 `json:"id"`
	Role           Role                   `json:"role"`
	Content        string                 `json:"content"`
	Sources        []client.Source        `json:"sources,omitempty"`
	EvidenceQuotes []client.EvidenceQuote `json:"evidence_quotes,omitempty"`
	UsedScriptIDs  []string               `json:"used_script_ids,omitempty"`
	Confidence     *float64               `json:"confidence_score,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Querier sends one chat query. *client.ChatClient satisfies it.
type Querier interface {
	SendChatQuery(ctx context.Context, question string, scriptIDs []string) (*client.ChatAnswer, error)
}

// SystemMessage is the greeting for a scope. title is the resolved scope
// title and may be empty.
func SystemMessage(scope Scope, title string) string {
	const greeting = "Hello! I'm Summit."
	switch {
	case scope.All():
		return greeting + " Ask me anything about your meetings and I'll search all of them."
	case scope.Single():
		if title == "" {
			return greeting + " Ask me anything about the selected meeting."
		}
		return fmt.Sprintf("%s Ask me anything about %q.", greeting, title)
	default:
		if title == "" {
			return fmt.Sprintf("%s Ask me anything about the %d selected meetings.", greeting, len(scope.IDs))
		}
		return fmt.Sprintf("%s Ask me anything about these %d meetings: %s.", greeting, len(scope.IDs), title)
	}
}

// Session is one in-memory chat. Messages only ever grow, except that a
// scope change rewrites the leading system message. It is safe for
// concurrent use; a second Send while one is outstanding fails with ErrBusy.
type Session struct {
	querier Querier
	logger  logging.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	now     func() time.Time

	mu       sync.Mutex
	scope    Scope
	title    string
	messages []Message
	loading  bool
	usedIDs  []string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(l logging.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithMetrics records query outcomes.
func WithMetrics(m *observability.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithClock overrides the message timestamp source.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession starts a session seeded with the system message for scope.
func NewSession(q Querier, scope Scope, title string, opts ...SessionOption) *Session {
	s := &Session{
		querier: q,
		logger:  logging.NewNopLogger(),
		tracer:  observability.NewTracer(),
		now:     time.Now,
		scope:   scope,
		title:   title,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logging.F("component", "chat_session"))
	s.messages = []Message{s.systemMessage()}
	return s
}

func (s *Session) systemMessage() Message {
	return Message{
		ID:        "sys-1",
		Role:      RoleSystem,
		Content:   SystemMessage(s.scope, s.title),
		CreatedAt: s.now(),
	}
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Scope returns the current scope.
func (s *Session) Scope() Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Loading reports whether a query is outstanding.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// UsedScriptIDs returns the ids the last answer actually drew on.
func (s *Session) UsedScriptIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.usedIDs...)
}

// SetScope changes the scope and rewrites only the first message; the rest
// of the history stays.
func (s *Session) SetScope(scope Scope, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scope = scope
	s.title = title
	s.messages[0] = s.systemMessage()
}

// Send asks text within the current scope and appends the user message plus
// either the assistant answer or an inline error message. The appended reply
// is returned; err is the query failure, if any, after it was recorded inline.
func (s *Session) Send(ctx context.Context, text string) (Message, error) {
	question := strings.TrimSpace(text)
	if question == "" {
		return Message{}, fmt.Errorf("empty question: %w", smerrors.ErrValidation)
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return Message{}, smerrors.ErrBusy
	}
	s.loading = true
	s.messages = append(s.messages, Message{
		ID:        "u-" + uuid.NewString(),
		Role:      RoleUser,
		Content:   question,
		CreatedAt: s.now(),
	})
	ids := append([]string{}, s.scope.IDs...)
	s.mu.Unlock()

	ctx, span := s.tracer.StartChatSpan(ctx, len(ids))
	defer span.End()
	helper := observability.NewSpanHelper(span)

	log := s.logger.WithContext(ctx)
	answer, err := s.querier.SendChatQuery(ctx, question, ids)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	if err != nil {
		helper.SetError(err, string(smerrors.CodeOf(err)))
		s.metrics.RecordChatQuery("error")
		log.Warn("Chat query failed", logging.F("scope_size", len(ids)), logging.Err(err))

		msg := Message{
			ID:        "e-" + uuid.NewString(),
			Role:      RoleError,
			Content:   "An error occurred: " + err.Error(),
			CreatedAt: s.now(),
		}
		s.messages = append(s.messages, msg)
		return msg, err
	}

	helper.SetSuccess()
	s.metrics.RecordChatQuery("ok")
	log.Debug("Chat query answered",
		logging.F("scope_size", len(ids)),
		logging.F("used_script_ids", answer.UsedScriptIDs))

	// A blank answer is treated like a missing one.
	content := answer.Answer
	if strings.TrimSpace(content) == "" {
		content = EmptyAnswer
	}
	msg := Message{
		ID:             "a-" + uuid.NewString(),
		Role:           RoleAssistant,
		Content:        content,
		Sources:        answer.Sources,
		EvidenceQuotes: answer.EvidenceQuotes,
		UsedScriptIDs:  answer.UsedScriptIDs,
		Confidence:     answer.ConfidenceScore,
		CreatedAt:      s.now(),
	}
	s.messages = append(s.messages, msg)
	s.usedIDs = answer.UsedScriptIDs
	return msg, nil
}
