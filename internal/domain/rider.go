package domain

import "time"

// Rider represents a registered passenger chat.
type Rider struct {
	ChatID    int64
	FullName  string
	Phone     string
	CreatedAt time.Time
}
