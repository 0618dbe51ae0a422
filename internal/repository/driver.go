package repository

import (
	"context"

	"taxibot/internal/domain"
)

// DriverRepository defines read access to drivers. Driver records are
// created out of band and are read-only here.
type DriverRepository interface {
	// GetByChatID retrieves a driver by chat ID.
	GetByChatID(ctx context.Context, chatID int64) (*domain.Driver, error)
}
