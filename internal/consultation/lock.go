package consultation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StepLock serializes steps per consultation with a redis SET NX key. The
// TTL bounds how long a crashed holder blocks the consultation; a normal
// release deletes the key immediately.
type StepLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStepLock(client *redis.Client, ttl time.Duration) *StepLock {
	if client == nil {
		panic("consultation: redis client required")
	}
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &StepLock{client: client, ttl: ttl}
}

func stepLockKey(id uuid.UUID) string {
	return "consultation:step:" + id.String()
}

// Acquire takes the per-consultation lock, returning ErrStepInProgress when
// another step holds it. The returned release func is safe to call once.
func (l *StepLock) Acquire(ctx context.Context, id uuid.UUID) (func(), error) {
	key := stepLockKey(id)
	ok, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("consultation: acquire step lock: %w", err)
	}
	if !ok {
		return nil, ErrStepInProgress
	}
	release := func() {
		// Release must survive request cancellation.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = l.client.Del(cleanupCtx, key).Err()
	}
	return release, nil
}
