package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

type envelope struct {
	Event   Kind `json:"event"`
	Payload any  `json:"payload"`
}

// RedisPublisher pushes events onto a Redis pub/sub channel consumed by the
// real-time notification transport. Delivery is best effort: a failed publish
// is logged and dropped so it can never stall the dispatch loop.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

func (p *RedisPublisher) Notify(ctx context.Context, kind Kind, payload any) {
	if p == nil || p.client == nil {
		return
	}

	body, err := json.Marshal(envelope{Event: kind, Payload: payload})
	if err != nil {
		p.logger.Error("failed to marshal event", zap.String("event", string(kind)), zap.Error(err))
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("event", string(kind)),
			zap.String("channel", p.channel),
			zap.Error(err),
		)
	}
}
