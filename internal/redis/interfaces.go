package redis

import (
	"context"
	"time"
)

// SessionStoreInterface defines the interface for conversation context storage.
type SessionStoreInterface interface {
	Get(ctx context.Context, chatID int64) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, chatID int64) error
}

// GuardStoreInterface defines the interface for one-shot guards.
type GuardStoreInterface interface {
	AcquireBroadcastOnce(ctx context.Context, orderID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, orderID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ SessionStoreInterface = (*SessionStore)(nil)
	_ GuardStoreInterface   = (*GuardStore)(nil)
)
