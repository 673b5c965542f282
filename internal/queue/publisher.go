package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"bookrecorder/internal/logger"
)

// Publisher defines the interface for publishing events to a stream.
type Publisher interface {
	// Publish adds an event to the specified stream.
	// Returns the message ID assigned by Redis.
	Publish(ctx context.Context, stream string, event ActivityEvent) (messageID string, err error)
}

// RedisPublisher implements Publisher using Redis Streams.
type RedisPublisher struct {
	client *redis.Client
	maxLen int64
	log    *logger.Logger
}

// NewPublisher creates a new Publisher backed by Redis Streams. Streams are
// trimmed to roughly maxLen entries; 0 disables trimming.
func NewPublisher(client *redis.Client, maxLen int64, log *logger.Logger) Publisher {
	return &RedisPublisher{client: client, maxLen: maxLen, log: log.With("component", "Publisher")}
}

// Publish adds an event to the stream using XADD with an auto-generated ID.
func (p *RedisPublisher) Publish(ctx context.Context, stream string, event ActivityEvent) (string, error) {
	values, err := event.ToMap()
	if err != nil {
		return "", fmt.Errorf("serialize event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	messageID, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	p.log.Debug("event published", "stream", stream, "type", event.Type, "message_id", messageID)
	return messageID, nil
}
