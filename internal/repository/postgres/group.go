package postgres

import (
	"context"
	"database/sql"
	"errors"

	"taxibot/internal/domain"
	"taxibot/internal/repository"
)

// GroupRepository is a PostgreSQL implementation of repository.GroupRepository.
type GroupRepository struct {
	db *sql.DB
}

// NewGroupRepository creates a new PostgreSQL group repository.
func NewGroupRepository(db *sql.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create registers a new group channel.
func (r *GroupRepository) Create(ctx context.Context, group *domain.GroupChannel) error {
	query := `INSERT INTO group_channels (chat_id, title, created_at) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, group.ChatID, group.Title, group.CreatedAt)
	return err
}

// GetByChatID retrieves a group channel by chat ID.
func (r *GroupRepository) GetByChatID(ctx context.Context, chatID int64) (*domain.GroupChannel, error) {
	query := `SELECT chat_id, title, created_at FROM group_channels WHERE chat_id = $1`

	var group domain.GroupChannel
	err := r.db.QueryRowContext(ctx, query, chatID).Scan(&group.ChatID, &group.Title, &group.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &group, nil
}

// GetAll retrieves every registered group channel.
func (r *GroupRepository) GetAll(ctx context.Context) ([]*domain.GroupChannel, error) {
	query := `SELECT chat_id, title, created_at FROM group_channels ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*domain.GroupChannel
	for rows.Next() {
		var group domain.GroupChannel
		if err := rows.Scan(&group.ChatID, &group.Title, &group.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, &group)
	}
	return groups, rows.Err()
}
