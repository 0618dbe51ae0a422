package repository

import (
	"context"

	"taxibot/internal/domain"
)

// GroupRepository defines the persistence operations for dispatch channels.
type GroupRepository interface {
	// Create registers a new group channel.
	Create(ctx context.Context, group *domain.GroupChannel) error

	// GetByChatID retrieves a group channel by chat ID.
	GetByChatID(ctx context.Context, chatID int64) (*domain.GroupChannel, error)

	// GetAll retrieves every registered group channel.
	GetAll(ctx context.Context) ([]*domain.GroupChannel, error)
}
