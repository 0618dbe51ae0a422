package repository

import (
	"context"

	"taxibot/internal/domain"
)

// OrderRepository defines the persistence operations for orders.
type OrderRepository interface {
	// Create persists a new order.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by ID.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// FindActiveOrder retrieves the rider's most recently created order.
	// Returns ErrNotFound when the rider has no orders.
	FindActiveOrder(ctx context.Context, riderChatID int64) (*domain.Order, error)

	// Update updates mutable order fields. It never touches the driver
	// assignment or the pickup link; those go through AtomicClaim and
	// SetPickupLocation.
	Update(ctx context.Context, order *domain.Order) error

	// SetPickupLocation sets the pickup link only if it is currently empty.
	// Returns false when the link was already set.
	SetPickupLocation(ctx context.Context, id, link string) (bool, error)

	// AtomicClaim assigns the driver to the order only if the order is in
	// BROADCAST state and has no driver yet, as a single indivisible
	// conditional update. Returns true when the caller won the assignment.
	AtomicClaim(ctx context.Context, id string, driverChatID int64) (bool, error)
}
