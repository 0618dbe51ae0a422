package postgres

import (
	"context"
	"database/sql"
	"errors"

	"taxibot/internal/domain"
	"taxibot/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	db *sql.DB
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

// GetByChatID retrieves a driver by chat ID.
func (r *DriverRepository) GetByChatID(ctx context.Context, chatID int64) (*domain.Driver, error) {
	query := `SELECT chat_id, full_name, phone, car_info, created_at FROM drivers WHERE chat_id = $1`

	var driver domain.Driver
	var carInfo sql.NullString
	err := r.db.QueryRowContext(ctx, query, chatID).Scan(
		&driver.ChatID,
		&driver.FullName,
		&driver.Phone,
		&carInfo,
		&driver.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if carInfo.Valid {
		driver.CarInfo = carInfo.String
	}
	return &driver, nil
}
