package domain

import "time"

// GroupChannel is a group chat registered as a dispatch broadcast target.
type GroupChannel struct {
	ChatID    int64
	Title     string
	CreatedAt time.Time
}
