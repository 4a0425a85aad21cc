package repo

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct{ C *redis.Client }

func NewRedis(addr string) *Redis {
	return &Redis{C: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) Ping(ctx context.Context) error { return r.C.Ping(ctx).Err() }
func (r *Redis) Close() error                   { return r.C.Close() }

// WebhookSeen reports whether a svix message id has already been fully
// processed. Read-only: a delivery is only recorded via MarkWebhook after
// it succeeded, so a 400'd delivery stays unseen and the provider's retry
// (same id) gets processed.
func (r *Redis) WebhookSeen(ctx context.Context, msgID string) (bool, error) {
	n, err := r.C.Exists(ctx, "webhook:"+msgID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkWebhook records a successfully processed message id. Svix delivers
// at-least-once; this trims duplicate work on redeliveries.
func (r *Redis) MarkWebhook(ctx context.Context, msgID string, ttl time.Duration) error {
	return r.C.SetNX(ctx, "webhook:"+msgID, 1, ttl).Err()
}
