package repository

import (
	"context"

	"taxibot/internal/domain"
)

// RiderRepository defines the persistence operations for riders.
type RiderRepository interface {
	// Create persists a new rider.
	Create(ctx context.Context, rider *domain.Rider) error

	// GetByChatID retrieves a rider by chat ID.
	GetByChatID(ctx context.Context, chatID int64) (*domain.Rider, error)
}
