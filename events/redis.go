package events

import (
	"context"
	"encoding/json"

	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// RedisSink publishes events as JSON to a Redis channel, so external
// observers can subscribe without touching the service. Publish failures are
// logged and dropped.
type RedisSink struct {
	client  *redis.Client
	channel string
}

func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{
		client:  client,
		channel: channel,
	}
}

func (s *RedisSink) Emit(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING, "status", "marshal_event", "err", err.Error())
		return
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "publish_event",
			"channel", s.channel,
			"err", err.Error(),
		)
	}
}
