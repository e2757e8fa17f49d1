package sessionspan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces session span handles in the shared Redis keyspace.
const keyPrefix = "session-span:"

// Redis is a Cache backed by a shared Redis instance. Expiry is enforced by
// Redis's native TTL, so no sweeper is needed and all relaydesk instances
// observe the same parent handle for a session.
type Redis struct {
	client redis.Cmdable
}

// NewRedis creates a Redis-backed cache around an existing client.
func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

// Get returns the handle for the session, or empty string when the key is
// absent or already expired.
func (r *Redis) Get(ctx context.Context, sessionID string) (string, error) {
	val, err := r.client.Get(ctx, keyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("reading session span %q: %w", sessionID, err)
	}
	return val, nil
}

// Set stores the handle with the given TTL, refreshing any existing expiry.
func (r *Redis) Set(ctx context.Context, sessionID, exported string, ttl time.Duration) error {
	if err := r.client.Set(ctx, keyPrefix+sessionID, exported, ttl).Err(); err != nil {
		return fmt.Errorf("storing session span %q: %w", sessionID, err)
	}
	return nil
}
