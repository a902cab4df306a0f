package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"code_duel/internal/platform/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisNotifier publishes envelopes so every instance's Hub can deliver them.
type RedisNotifier struct {
	rdb   *redis.Client
	topic string
}

func EventsTopic(prefix string) string { return prefix + "events" }

func NewRedisNotifier(rdb *redis.Client, prefix string) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, topic: EventsTopic(prefix)}
}

func (n *RedisNotifier) Send(ctx context.Context, channel string, payload any) error {
	env, err := NewEnvelope(channel, payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := n.rdb.Publish(ctx, n.topic, raw).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Relay forwards published envelopes to local until ctx ends.
func Relay(ctx context.Context, rdb *redis.Client, prefix string, local *Hub) error {
	sub := rdb.Subscribe(ctx, EventsTopic(prefix))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", EventsTopic(prefix), err)
	}
	logger.L().Info("notify_relay_started", zap.String("topic", EventsTopic(prefix)))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.L().Warn("notify_relay_bad_envelope", zap.Error(err))
				continue
			}
			local.deliver(env)
		}
	}
}
