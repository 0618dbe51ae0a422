package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"taxibot/internal/domain"
	redisstore "taxibot/internal/redis"
	"taxibot/internal/repository"
)

// State is the rider's position in the order conversation. Terminal
// positions are not stored; reaching one deletes the session.
type State string

const (
	StateAwaitingDirection      State = "AWAITING_DIRECTION"
	StateAwaitingPartySize      State = "AWAITING_PARTY_SIZE"
	StateAwaitingDepartureTime  State = "AWAITING_DEPARTURE_TIME"
	StateAwaitingPickupLocation State = "AWAITING_PICKUP_LOCATION"
	StateAwaitingConfirmation   State = "AWAITING_CONFIRMATION"
)

// broadcastOnceTTL covers the window in which a duplicate confirm tap could
// re-trigger the fan-out.
const broadcastOnceTTL = 24 * time.Hour

// BroadcasterInterface defines the fan-out contract. This interface allows
// for testing with mock implementations.
type BroadcasterInterface interface {
	Broadcast(ctx context.Context, order *domain.Order, rider *domain.Rider) ([]DeliveryOutcome, error)
}

// OrderWorkflow drives the per-rider order state machine. Inbound events are
// not guaranteed to arrive in sequence (duplicate taps, replayed messages);
// every transition re-checks the session state and fails with
// ErrWorkflowViolation instead of proceeding out of order.
type OrderWorkflow struct {
	riders      repository.RiderRepository
	orders      repository.OrderRepository
	sessions    redisstore.SessionStoreInterface
	guard       redisstore.GuardStoreInterface
	broadcaster BroadcasterInterface
	log         *slog.Logger
}

// NewOrderWorkflow creates a new OrderWorkflow.
func NewOrderWorkflow(
	riders repository.RiderRepository,
	orders repository.OrderRepository,
	sessions redisstore.SessionStoreInterface,
	guard redisstore.GuardStoreInterface,
	broadcaster BroadcasterInterface,
	log *slog.Logger,
) *OrderWorkflow {
	return &OrderWorkflow{
		riders:      riders,
		orders:      orders,
		sessions:    sessions,
		guard:       guard,
		broadcaster: broadcaster,
		log:         log,
	}
}

// Start opens a new order conversation for a registered rider. A rider with
// a non-terminal order may not start another one.
func (w *OrderWorkflow) Start(ctx context.Context, chatID int64) error {
	if _, err := w.riders.GetByChatID(ctx, chatID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRiderNotRegistered
		}
		return err
	}

	latest, err := w.orders.FindActiveOrder(ctx, chatID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if latest != nil && !latest.Status.Terminal() {
		recovered, err := w.recoverStaleDraft(ctx, chatID, latest)
		if err != nil {
			return err
		}
		if !recovered {
			return ErrOrderInFlight
		}
	}

	return w.sessions.Save(ctx, &redisstore.Session{
		ChatID: chatID,
		State:  string(StateAwaitingDirection),
	})
}

// recoverStaleDraft cancels a draft whose conversation context has expired.
// The session TTL is shorter than a draft's lifetime, so without this a
// rider who abandoned an order mid-flow could never start another one. A
// draft whose session is still live is an active conversation and is left
// alone.
func (w *OrderWorkflow) recoverStaleDraft(ctx context.Context, chatID int64, order *domain.Order) (bool, error) {
	if order.Status != domain.OrderStatusDraft {
		return false, nil
	}

	session, err := w.sessions.Get(ctx, chatID)
	if err != nil {
		return false, err
	}
	if session != nil && session.OrderID == order.ID {
		return false, nil
	}

	order.Status = domain.OrderStatusCancelled
	if err := w.orders.Update(ctx, order); err != nil {
		return false, err
	}
	w.log.Info("stale draft cancelled", "order_id", order.ID, "chat_id", chatID)
	return true, nil
}

// SelectDirection creates the order with the chosen route and advances to
// the party-size step.
func (w *OrderWorkflow) SelectDirection(ctx context.Context, chatID int64, direction domain.Direction) (*domain.Order, error) {
	if !direction.Valid() {
		return nil, ErrUnknownDirection
	}

	session, err := w.loadSession(ctx, chatID, StateAwaitingDirection)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:          uuid.New().String(),
		RiderChatID: chatID,
		Direction:   direction,
		Status:      domain.OrderStatusDraft,
		CreatedAt:   time.Now(),
	}
	if err := w.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	session.State = string(StateAwaitingPartySize)
	session.OrderID = order.ID
	if err := w.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return order, nil
}

// ChoosePartySize sets the seat count and advances to the departure-time
// step. Counts outside 1-4 are rejected without mutation.
func (w *OrderWorkflow) ChoosePartySize(ctx context.Context, chatID int64, size int) (*domain.Order, error) {
	session, err := w.loadSession(ctx, chatID, StateAwaitingPartySize)
	if err != nil {
		return nil, err
	}
	if size < domain.MinPartySize || size > domain.MaxPartySize {
		return nil, ErrInvalidPartySize
	}

	order, err := w.orders.GetByID(ctx, session.OrderID)
	if err != nil {
		return nil, err
	}
	order.PartySize = size
	if err := w.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	session.State = string(StateAwaitingDepartureTime)
	if err := w.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return order, nil
}

// TextResult is the outcome of a free-text message inside the workflow.
type TextResult struct {
	Order *domain.Order
	// Advanced is true when the text completed the departure-time step.
	// False means it was stored as the optional description.
	Advanced bool
}

// HandleText routes a free-text message by the current state: the
// departure-time step stores it verbatim and advances; while awaiting the
// pickup location it becomes the optional description. Anywhere else it is a
// sequence violation.
func (w *OrderWorkflow) HandleText(ctx context.Context, chatID int64, text string) (*TextResult, error) {
	session, err := w.sessions.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.OrderID == "" {
		return nil, ErrWorkflowViolation
	}

	order, err := w.orders.GetByID(ctx, session.OrderID)
	if err != nil {
		return nil, err
	}

	switch State(session.State) {
	case StateAwaitingDepartureTime:
		order.DepartureTime = text
		if err := w.orders.Update(ctx, order); err != nil {
			return nil, err
		}
		session.State = string(StateAwaitingPickupLocation)
		if err := w.sessions.Save(ctx, session); err != nil {
			return nil, err
		}
		return &TextResult{Order: order, Advanced: true}, nil

	case StateAwaitingPickupLocation:
		order.Description = text
		if err := w.orders.Update(ctx, order); err != nil {
			return nil, err
		}
		return &TextResult{Order: order, Advanced: false}, nil
	}
	return nil, ErrWorkflowViolation
}

// SetPickupLocation resolves the shared coordinates into the canonical map
// link. The link is write-once: a repeat submission is a no-op that returns
// the order unchanged.
func (w *OrderWorkflow) SetPickupLocation(ctx context.Context, chatID int64, lat, lng float64) (*domain.Order, error) {
	session, err := w.sessions.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.OrderID == "" {
		return nil, ErrWorkflowViolation
	}

	state := State(session.State)
	if state != StateAwaitingPickupLocation && state != StateAwaitingConfirmation {
		return nil, ErrWorkflowViolation
	}

	link := domain.PickupLink(lat, lng)
	set, err := w.orders.SetPickupLocation(ctx, session.OrderID, link)
	if err != nil {
		return nil, err
	}
	if !set {
		// Already present; the first value wins.
		w.log.Warn("pickup location already set", "order_id", session.OrderID, "chat_id", chatID)
		return w.orders.GetByID(ctx, session.OrderID)
	}

	if state == StateAwaitingPickupLocation {
		session.State = string(StateAwaitingConfirmation)
		if err := w.sessions.Save(ctx, session); err != nil {
			return nil, err
		}
	}
	return w.orders.GetByID(ctx, session.OrderID)
}

// ConfirmResult is the outcome of the confirmation step.
type ConfirmResult struct {
	Order     *domain.Order
	Cancelled bool
	// AlreadyBroadcast is true when a duplicate confirm tap arrived after
	// the fan-out had been triggered.
	AlreadyBroadcast bool
	Deliveries       []DeliveryOutcome
}

// Confirm resolves the confirmation step. Accepting hands the order to the
// broadcaster, exactly once per order; rejecting cancels it with no
// broadcast and no further notifications. Either way the session ends.
func (w *OrderWorkflow) Confirm(ctx context.Context, chatID int64, accepted bool) (*ConfirmResult, error) {
	session, err := w.loadSession(ctx, chatID, StateAwaitingConfirmation)
	if err != nil {
		return nil, err
	}

	order, err := w.orders.GetByID(ctx, session.OrderID)
	if err != nil {
		return nil, err
	}

	if !accepted {
		order.Status = domain.OrderStatusCancelled
		if err := w.orders.Update(ctx, order); err != nil {
			return nil, err
		}
		if err := w.sessions.Delete(ctx, chatID); err != nil {
			return nil, err
		}
		w.log.Info("order cancelled", "order_id", order.ID, "chat_id", chatID)
		return &ConfirmResult{Order: order, Cancelled: true}, nil
	}

	// Confirming with a missing upstream field means events arrived out of
	// order; refuse rather than broadcast an incomplete order.
	if !order.Direction.Valid() || order.PartySize == 0 || order.PickupLink == "" {
		return nil, ErrWorkflowViolation
	}

	rider, err := w.riders.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	acquired, err := w.guard.AcquireBroadcastOnce(ctx, order.ID, broadcastOnceTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return &ConfirmResult{Order: order, AlreadyBroadcast: true}, nil
	}

	order.Status = domain.OrderStatusBroadcast
	if err := w.orders.Update(ctx, order); err != nil {
		w.releaseGuard(ctx, order.ID)
		return nil, err
	}

	deliveries, err := w.broadcaster.Broadcast(ctx, order, rider)
	if err != nil {
		// Nothing went out. Put the order back and release the guard so a
		// retried confirm can run the fan-out.
		order.Status = domain.OrderStatusDraft
		if uerr := w.orders.Update(ctx, order); uerr != nil {
			w.log.Error("draft restore failed", "order_id", order.ID, "error", uerr)
		}
		w.releaseGuard(ctx, order.ID)
		return nil, err
	}

	// The fan-out is out; the session going stale is recoverable via its
	// TTL, so a cleanup failure must not fail the confirm.
	if err := w.sessions.Delete(ctx, chatID); err != nil {
		w.log.Warn("session cleanup failed", "chat_id", chatID, "error", err)
	}
	return &ConfirmResult{Order: order, Deliveries: deliveries}, nil
}

func (w *OrderWorkflow) releaseGuard(ctx context.Context, orderID string) {
	if err := w.guard.Release(ctx, orderID); err != nil {
		w.log.Error("broadcast guard release failed", "order_id", orderID, "error", err)
	}
}

// loadSession fetches the session and checks it is at the expected state.
func (w *OrderWorkflow) loadSession(ctx context.Context, chatID int64, want State) (*redisstore.Session, error) {
	session, err := w.sessions.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.State != string(want) {
		w.log.Warn("out-of-sequence event", "chat_id", chatID, "want_state", string(want))
		return nil, ErrWorkflowViolation
	}
	return session, nil
}
