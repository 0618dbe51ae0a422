package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// GuardStore provides one-shot guards in Redis. The broadcast guard makes a
// duplicate confirmation tap harmless: only the first confirm per order may
// trigger the fan-out.
type GuardStore struct {
	client *redis.Client
}

// NewGuardStore creates a new GuardStore.
func NewGuardStore(client *redis.Client) *GuardStore {
	return &GuardStore{client: client}
}

// AcquireBroadcastOnce marks the order as broadcast. Returns true only for
// the first caller; later callers for the same order get false.
func (s *GuardStore) AcquireBroadcastOnce(ctx context.Context, orderID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, guardKey(orderID), "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Release drops the broadcast marker. Called when the fan-out could not run
// after acquisition, so a retried confirm gets another shot.
func (s *GuardStore) Release(ctx context.Context, orderID string) error {
	return s.client.Del(ctx, guardKey(orderID)).Err()
}

func guardKey(orderID string) string {
	return fmt.Sprintf("broadcast:order:%s", orderID)
}
