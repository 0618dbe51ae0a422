package postgres

import (
	"context"
	"database/sql"
	"errors"

	"taxibot/internal/domain"
	"taxibot/internal/repository"
)

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	q Querier
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{q: db}
}

// NewOrderRepositoryWithTx creates an order repository using a transaction.
func NewOrderRepositoryWithTx(tx *sql.Tx) *OrderRepository {
	return &OrderRepository{q: tx}
}

const orderColumns = `id, rider_chat_id, direction, party_size, departure_time, description, pickup_link, driver_chat_id, assigned, status, created_at`

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.q.ExecContext(ctx, query,
		order.ID,
		order.RiderChatID,
		order.Direction,
		order.PartySize,
		nullString(order.DepartureTime),
		nullString(order.Description),
		nullString(order.PickupLink),
		nullInt64(order.DriverChatID),
		order.Assigned,
		order.Status,
		order.CreatedAt,
	)
	return err
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.scanOrder(r.q.QueryRowContext(ctx, query, id))
}

// FindActiveOrder retrieves the rider's most recently created order.
func (r *OrderRepository) FindActiveOrder(ctx context.Context, riderChatID int64) (*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + ` FROM orders
		WHERE rider_chat_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOrder(r.q.QueryRowContext(ctx, query, riderChatID))
}

// Update updates mutable order fields. Pickup link and driver assignment are
// deliberately excluded; they have their own conditional updates.
func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET direction = $1, party_size = $2, departure_time = $3, description = $4, status = $5
		WHERE id = $6
	`

	result, err := r.q.ExecContext(ctx, query,
		order.Direction,
		order.PartySize,
		nullString(order.DepartureTime),
		nullString(order.Description),
		order.Status,
		order.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetPickupLocation sets the pickup link only if it is currently empty.
func (r *OrderRepository) SetPickupLocation(ctx context.Context, id, link string) (bool, error) {
	query := `
		UPDATE orders
		SET pickup_link = $1
		WHERE id = $2 AND (pickup_link IS NULL OR pickup_link = '')
	`

	result, err := r.q.ExecContext(ctx, query, link, id)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// AtomicClaim assigns the driver to the order only if the order is still in
// BROADCAST state with no driver. The WHERE clause makes the check-then-set a
// single indivisible statement, so concurrent claims can never both win.
func (r *OrderRepository) AtomicClaim(ctx context.Context, id string, driverChatID int64) (bool, error) {
	query := `
		UPDATE orders
		SET driver_chat_id = $1, assigned = TRUE, status = $2
		WHERE id = $3 AND status = $4 AND driver_chat_id IS NULL
	`

	result, err := r.q.ExecContext(ctx, query, driverChatID, domain.OrderStatusAssigned, id, domain.OrderStatusBroadcast)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

func (r *OrderRepository) scanOrder(row *sql.Row) (*domain.Order, error) {
	var order domain.Order
	var departureTime, description, pickupLink sql.NullString
	var driverChatID sql.NullInt64

	err := row.Scan(
		&order.ID,
		&order.RiderChatID,
		&order.Direction,
		&order.PartySize,
		&departureTime,
		&description,
		&pickupLink,
		&driverChatID,
		&order.Assigned,
		&order.Status,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if departureTime.Valid {
		order.DepartureTime = departureTime.String
	}
	if description.Valid {
		order.Description = description.String
	}
	if pickupLink.Valid {
		order.PickupLink = pickupLink.String
	}
	if driverChatID.Valid {
		order.DriverChatID = driverChatID.Int64
	}
	return &order, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(n int64) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: n, Valid: true}
}
