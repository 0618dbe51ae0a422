package service

import (
	"context"
	"errors"
	"log/slog"

	"taxibot/internal/domain"
	"taxibot/internal/repository"
)

// ClaimResult is the outcome of a driver's claim attempt.
type ClaimResult string

const (
	ClaimWon                 ClaimResult = "WON"
	ClaimLostAlreadyAssigned ClaimResult = "LOST_ALREADY_ASSIGNED"
	ClaimDriverUnregistered  ClaimResult = "DRIVER_UNREGISTERED"
)

// ClaimOutcome carries the result plus the records the notification router
// needs.
type ClaimOutcome struct {
	Result ClaimResult
	Order  *domain.Order
	Driver *domain.Driver
}

// AssignmentArbiter resolves concurrent claim attempts against one order.
// Any number of drivers may claim at the same instant; at most one ever
// wins. The guarantee comes entirely from the repository's atomic
// conditional claim, never from application-level locking.
type AssignmentArbiter struct {
	drivers repository.DriverRepository
	orders  repository.OrderRepository
	log     *slog.Logger
}

// NewAssignmentArbiter creates a new AssignmentArbiter.
func NewAssignmentArbiter(drivers repository.DriverRepository, orders repository.OrderRepository, log *slog.Logger) *AssignmentArbiter {
	return &AssignmentArbiter{drivers: drivers, orders: orders, log: log}
}

// Claim attempts to assign the order to the driver. The driver lookup runs
// before the claim attempt, so an unregistered-driver rejection never races
// ahead of a legitimate assignment.
func (a *AssignmentArbiter) Claim(ctx context.Context, orderID string, driverChatID int64) (*ClaimOutcome, error) {
	driver, err := a.drivers.GetByChatID(ctx, driverChatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			a.log.Info("claim from unregistered driver", "order_id", orderID, "driver_chat_id", driverChatID)
			return &ClaimOutcome{Result: ClaimDriverUnregistered}, nil
		}
		return nil, err
	}

	won, err := a.orders.AtomicClaim(ctx, orderID, driverChatID)
	if err != nil {
		return nil, err
	}

	order, err := a.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !won {
		a.log.Info("claim lost", "order_id", orderID, "driver_chat_id", driverChatID)
		return &ClaimOutcome{Result: ClaimLostAlreadyAssigned, Order: order, Driver: driver}, nil
	}

	a.log.Info("claim won", "order_id", orderID, "driver_chat_id", driverChatID)
	return &ClaimOutcome{Result: ClaimWon, Order: order, Driver: driver}, nil
}
