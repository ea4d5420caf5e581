// Package events publishes upload lifecycle events to Redis so other
// processes can follow uploads without polling the server.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/summit/pkg/logging"
	"github.com/otherjamesbrown/summit/pkg/upload"
)

// Redis channels for upload events
const (
	ChannelUploadStage    = "events.upload.stage"
	ChannelUploadFinished = "events.upload.finished"
	ChannelUploadNavigate = "events.upload.navigate"
)

// publishTimeout bounds a single publish so a slow Redis cannot stall uploads.
const publishTimeout = 2 * time.Second

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID *string   `json:"request_id,omitempty"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates a BaseEvent with sensible defaults.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    "summit",
		Version:   "1.0",
	}
}

// UploadStageEvent is published on every stage an upload enters.
type UploadStageEvent struct {
	BaseEvent

	UploadID      string `json:"upload_id"`
	FileName      string `json:"file_name"`
	Title         string `json:"title"`
	Stage         string `json:"stage"`
	PreviousStage string `json:"previous_stage"`
	Progress      int    `json:"progress"`
}

// UploadFinishedEvent is published when an upload completes or fails.
type UploadFinishedEvent struct {
	BaseEvent

	UploadID  string `json:"upload_id"`
	FileName  string `json:"file_name"`
	Title     string `json:"title"`
	MeetingID string `json:"meeting_id,omitempty"`

	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds float64   `json:"duration_seconds"`

	Success    bool   `json:"success"`
	FinalStage string `json:"final_stage"`
	Error      string `json:"error,omitempty"`
}

// UploadNavigateEvent is published when a finished upload sends the user
// back to the meeting list.
type UploadNavigateEvent struct {
	BaseEvent

	UploadID string `json:"upload_id,omitempty"`
	Route    string `json:"route"`
}

// redisPublisher is the subset of *redis.Client the publisher uses.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Publisher publishes upload events to Redis. It is an upload.Observer and
// an upload.Navigator.
type Publisher struct {
	client redisPublisher
	logger logging.Logger

	mu         sync.Mutex
	lastUpload string
}

// PublisherConfig holds Redis connection configuration.
type PublisherConfig struct {
	Address  string
	Password string
	DB       int
}

// NewPublisher creates a new event publisher.
func NewPublisher(client *redis.Client, logger logging.Logger) *Publisher {
	return newPublisher(client, logger)
}

func newPublisher(client redisPublisher, logger logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Publisher{
		client: client,
		logger: logger.With(logging.F("component", "event_publisher")),
	}
}

// NewPublisherFromConfig creates a publisher with a new Redis connection.
func NewPublisherFromConfig(cfg PublisherConfig, logger logging.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return NewPublisher(client, logger), nil
}

// OnTransition publishes the stage event, plus the finished or navigate
// event when the transition warrants one. Publish failures are logged only.
func (p *Publisher) OnTransition(ctx context.Context, prev, next upload.State) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if next.Stage == upload.StageIdle {
		return
	}

	p.mu.Lock()
	p.lastUpload = next.UploadID
	p.mu.Unlock()

	if next.Navigated && !prev.Navigated {
		return
	}

	_ = p.PublishStage(ctx, prev, next)
	if next.Stage.Terminal() && prev.Stage != next.Stage {
		_ = p.PublishFinished(ctx, next)
	}
}

// Navigate publishes a navigate event for the most recent upload.
func (p *Publisher) Navigate(ctx context.Context, route string) error {
	p.mu.Lock()
	id := p.lastUpload
	p.mu.Unlock()

	return p.publish(ctx, ChannelUploadNavigate, UploadNavigateEvent{
		BaseEvent: p.base(ctx, "upload.navigate"),
		UploadID:  id,
		Route:     route,
	})
}

// PublishStage publishes the stage the upload just entered.
func (p *Publisher) PublishStage(ctx context.Context, prev, next upload.State) error {
	return p.publish(ctx, ChannelUploadStage, UploadStageEvent{
		BaseEvent:     p.base(ctx, "upload.stage"),
		UploadID:      next.UploadID,
		FileName:      next.FileName,
		Title:         next.Title,
		Stage:         string(next.Stage),
		PreviousStage: string(prev.Stage),
		Progress:      next.Progress,
	})
}

// PublishFinished publishes the outcome of a completed or failed upload.
func (p *Publisher) PublishFinished(ctx context.Context, s upload.State) error {
	event := UploadFinishedEvent{
		BaseEvent:   p.base(ctx, "upload.finished"),
		UploadID:    s.UploadID,
		FileName:    s.FileName,
		Title:       s.Title,
		StartedAt:   s.StartedAt,
		CompletedAt: s.UpdatedAt,
		Success:     s.Stage == upload.StageCompleted,
		FinalStage:  string(s.Stage),
		Error:       s.Error,
	}
	if !s.StartedAt.IsZero() && !s.UpdatedAt.IsZero() {
		event.DurationSeconds = s.UpdatedAt.Sub(s.StartedAt).Seconds()
	}
	if len(s.Result) > 0 {
		event.MeetingID = upload.ResultMeetingID(s.Result)
	}
	return p.publish(ctx, ChannelUploadFinished, event)
}

func (p *Publisher) base(ctx context.Context, eventType string) BaseEvent {
	b := NewBaseEvent(eventType)
	if id := logging.RequestIDFromContext(ctx); id != "" {
		b.RequestID = &id
	}
	return b
}

// publish serializes and publishes an event to Redis.
func (p *Publisher) publish(ctx context.Context, channel string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		p.logger.Error("Failed to publish event",
			logging.Err(err),
			logging.F("channel", channel))
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	p.logger.Debug("Event published",
		logging.F("channel", channel),
		logging.F("payload_size", len(data)))

	return nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
