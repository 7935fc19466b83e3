package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voiceiq/viq-cli/config"
	"github.com/voiceiq/viq-cli/pkg/logging"
)

// Event types published to the uploads channel.
const (
	EventUploadCompleted = "upload.completed"
	EventUploadFailed    = "upload.failed"
)

const publishTimeout = 5 * time.Second

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates a BaseEvent stamped with the current time.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    "viq",
		Version:   "1.0",
	}
}

// UploadEvent is published when an upload reaches Completed or Failed.
type UploadEvent struct {
	BaseEvent

	TaskID          string  `json:"task_id"`
	FileName        string  `json:"file_name"`
	SizeBytes       int64   `json:"size_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
}

// publishClient is the subset of *redis.Client the publisher needs.
type publishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher announces finished uploads on a Redis channel so downstream
// consumers can pick the files up. It implements Events; only completions
// and failures are published.
type RedisPublisher struct {
	EventFuncs

	client  publishClient
	channel string
	logger  logging.Logger
	dropped atomic.Int64
}

// NewRedisPublisher creates a publisher over an existing client.
func NewRedisPublisher(client publishClient, channel string, logger logging.Logger) *RedisPublisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger.With(logging.F("component", "upload_publisher")),
	}
}

// NewRedisPublisherFromConfig connects to Redis and verifies the connection.
func NewRedisPublisherFromConfig(cfg config.EventsConfig, logger logging.Logger) (*RedisPublisher, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisPublisher(client, cfg.GetChannel(), logger), client, nil
}

// OnComplete publishes an upload.completed event.
func (p *RedisPublisher) OnComplete(task Task) {
	event := newUploadEvent(EventUploadCompleted, task)
	p.publishFromHandler(event)
}

// OnFailed publishes an upload.failed event.
func (p *RedisPublisher) OnFailed(task Task, err error) {
	event := newUploadEvent(EventUploadFailed, task)
	if err != nil {
		event.Error = err.Error()
	}
	p.publishFromHandler(event)
}

func newUploadEvent(eventType string, task Task) UploadEvent {
	event := UploadEvent{
		BaseEvent: NewBaseEvent(eventType),
		TaskID:    task.ID,
		FileName:  task.Name(),
		SizeBytes: task.Size(),
	}
	if task.StartedAt != nil && task.FinishedAt != nil {
		event.DurationSeconds = task.FinishedAt.Sub(*task.StartedAt).Seconds()
	}
	return event
}

// publishFromHandler publishes synchronously from an event handler, which
// has no context of its own. It blocks event delivery for at most
// publishTimeout. Publish logs failures; they never affect the queue.
func (p *RedisPublisher) publishFromHandler(event UploadEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx, event); err != nil {
		p.dropped.Add(1)
	}
}

// Dropped returns how many handler publishes failed.
func (p *RedisPublisher) Dropped() int64 {
	return p.dropped.Load()
}

// Publish sends event to the configured channel.
func (p *RedisPublisher) Publish(ctx context.Context, event UploadEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event",
			logging.F("channel", p.channel),
			logging.Err(err),
		)
		return fmt.Errorf("marshaling event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.logger.Error("Failed to publish event",
			logging.F("channel", p.channel),
			logging.F("event_type", event.EventType),
			logging.Err(err),
		)
		return fmt.Errorf("publishing to %s: %w", p.channel, err)
	}

	p.logger.Debug("Published event",
		logging.F("channel", p.channel),
		logging.F("event_type", event.EventType),
		logging.F("task_id", event.TaskID),
	)
	return nil
}
