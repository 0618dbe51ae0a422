package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionTTL bounds abandoned conversations. A rider mid-order has this long
// to finish before the workflow context expires.
const sessionTTL = 12 * time.Hour

const sessionKeyPrefix = "session:rider:"

// Session is the per-rider conversation context. It carries the workflow
// state and the explicit order ID from creation onward, so the active order
// is never re-derived by recency query mid-flow.
type Session struct {
	ChatID    int64     `json:"chat_id"`
	State     string    `json:"state"`
	OrderID   string    `json:"order_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore persists conversation contexts in Redis.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Get retrieves the session for a chat. Returns (nil, nil) on a miss.
func (s *SessionStore) Get(ctx context.Context, chatID int64) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(chatID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Save stores the session, refreshing its TTL.
func (s *SessionStore) Save(ctx context.Context, session *Session) error {
	session.UpdatedAt = time.Now()
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(session.ChatID), data, sessionTTL).Err()
}

// Delete removes the session. Called when the workflow reaches a terminal
// state.
func (s *SessionStore) Delete(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, sessionKey(chatID)).Err()
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("%s%d", sessionKeyPrefix, chatID)
}
