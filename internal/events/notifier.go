package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/splits-network/messaging-service/internal/domain"
)

func ConversationChannel(conversationID string) string { return "conv:" + conversationID }
func UserChannel(userID string) string                 { return "user:" + userID }

// Notifier is the best-effort, at-most-once path to connected clients.
// Losing a notification is fine; clients resync from durable state.
type Notifier interface {
	Publish(ctx context.Context, channel string, n domain.Notification)
}

type RedisNotifier struct {
	cli *redis.Client
	log *zap.SugaredLogger
}

func NewRedisNotifier(cli *redis.Client, log *zap.SugaredLogger) *RedisNotifier {
	return &RedisNotifier{cli: cli, log: log}
}

// Publish logs and drops on failure; realtime UX must never hold the
// request path hostage to pub/sub availability.
func (n *RedisNotifier) Publish(ctx context.Context, channel string, notif domain.Notification) {
	b, err := json.Marshal(notif)
	if err != nil {
		n.log.Warnw("notification marshal", "channel", channel, "err", err)
		return
	}
	if err := n.cli.Publish(ctx, channel, b).Err(); err != nil {
		n.log.Warnw("notification publish dropped", "channel", channel, "type", notif.Type, "err", err)
	}
}
