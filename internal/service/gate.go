package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"taxibot/internal/domain"
	"taxibot/internal/repository"
)

// SessionGate gates access to the order workflow until a rider has completed
// registration.
type SessionGate struct {
	riders repository.RiderRepository
	log    *slog.Logger
}

// NewSessionGate creates a new SessionGate.
func NewSessionGate(riders repository.RiderRepository, log *slog.Logger) *SessionGate {
	return &SessionGate{riders: riders, log: log}
}

// IsRegistered reports whether the chat belongs to a registered rider.
func (g *SessionGate) IsRegistered(ctx context.Context, chatID int64) (bool, error) {
	_, err := g.riders.GetByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Register creates the rider record for a chat. Idempotent at the boundary:
// if the chat is already registered the existing rider is returned and no
// duplicate is created. The phone number is normalized before storage.
func (g *SessionGate) Register(ctx context.Context, chatID int64, fullName, phone string) (*domain.Rider, error) {
	if fullName == "" || phone == "" {
		return nil, ErrRegistrationIncomplete
	}

	existing, err := g.riders.GetByChatID(ctx, chatID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	normalized, err := domain.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	rider := &domain.Rider{
		ChatID:    chatID,
		FullName:  fullName,
		Phone:     normalized,
		CreatedAt: time.Now(),
	}
	if err := g.riders.Create(ctx, rider); err != nil {
		return nil, err
	}

	g.log.Info("rider registered", "chat_id", chatID)
	return rider, nil
}
