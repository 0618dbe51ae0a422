package postgres

import (
	"context"
	"database/sql"
	"errors"

	"taxibot/internal/domain"
	"taxibot/internal/repository"
)

// RiderRepository is a PostgreSQL implementation of repository.RiderRepository.
type RiderRepository struct {
	db *sql.DB
}

// NewRiderRepository creates a new PostgreSQL rider repository.
func NewRiderRepository(db *sql.DB) *RiderRepository {
	return &RiderRepository{db: db}
}

// Create persists a new rider.
func (r *RiderRepository) Create(ctx context.Context, rider *domain.Rider) error {
	query := `INSERT INTO riders (chat_id, full_name, phone, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, rider.ChatID, rider.FullName, rider.Phone, rider.CreatedAt)
	return err
}

// GetByChatID retrieves a rider by chat ID.
func (r *RiderRepository) GetByChatID(ctx context.Context, chatID int64) (*domain.Rider, error) {
	query := `SELECT chat_id, full_name, phone, created_at FROM riders WHERE chat_id = $1`

	var rider domain.Rider
	err := r.db.QueryRowContext(ctx, query, chatID).Scan(
		&rider.ChatID,
		&rider.FullName,
		&rider.Phone,
		&rider.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &rider, nil
}
