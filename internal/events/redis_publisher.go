package events

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// ChannelPublisher is the subset of the Redis handle used for mirroring.
type ChannelPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher mirrors dispatched events onto pub/sub channels named
// "<prefix>:<event type>" so other processes can follow CRM activity.
type RedisPublisher struct {
	client ChannelPublisher
	prefix string
	logger *zap.Logger
}

// NewRedisPublisher builds a publisher.
func NewRedisPublisher(client ChannelPublisher, prefix string, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, prefix: prefix, logger: logger}
}

// Channel returns the channel an event type is mirrored to.
func (p *RedisPublisher) Channel(eventType EventType) string {
	return fmt.Sprintf("%s:%s", p.prefix, eventType)
}

// Register subscribes the publisher to every known event type.
func (p *RedisPublisher) Register(dispatcher Dispatcher) {
	if dispatcher == nil || p.client == nil {
		return
	}
	for _, eventType := range AllEventTypes {
		dispatcher.Subscribe(eventType, p.handle)
	}
}

// handle never fails the dispatch; mirroring is best effort.
func (p *RedisPublisher) handle(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("encode event", zap.String("event_type", string(event.Type)), zap.Error(err))
		return nil
	}
	if err := p.client.Publish(ctx, p.Channel(event.Type), payload); err != nil {
		p.logger.Warn("mirror event to redis",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
	return nil
}
