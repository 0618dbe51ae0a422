package tests

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"taxibot/internal/domain"
	"taxibot/internal/service"
)

// newWorkflowFixture wires an OrderWorkflow against in-memory mocks.
func newWorkflowFixture() (*service.OrderWorkflow, *MockRiderRepository, *MockOrderRepository, *MockSessionStore, *MockGuardStore, *MockBroadcaster) {
	riderRepo := NewMockRiderRepository()
	orderRepo := NewMockOrderRepository()
	sessions := NewMockSessionStore()
	guard := NewMockGuardStore()
	broadcaster := NewMockBroadcaster()
	workflow := service.NewOrderWorkflow(riderRepo, orderRepo, sessions, guard, broadcaster, testLogger())
	return workflow, riderRepo, orderRepo, sessions, guard, broadcaster
}

func registeredRider(riderRepo *MockRiderRepository, chatID int64) *domain.Rider {
	rider := &domain.Rider{
		ChatID:    chatID,
		FullName:  "Test Rider",
		Phone:     "+998901234567",
		CreatedAt: time.Now(),
	}
	riderRepo.AddRider(rider)
	return rider
}

// driveToConfirmation walks the happy path up to the confirmation step.
func driveToConfirmation(t *testing.T, workflow *service.OrderWorkflow, chatID int64) *domain.Order {
	t.Helper()
	ctx := context.Background()

	if err := workflow.Start(ctx, chatID); err != nil {
		t.Fatalf("start: %v", err)
	}
	order, err := workflow.SelectDirection(ctx, chatID, domain.DirectionBeshariqToshkent)
	if err != nil {
		t.Fatalf("select direction: %v", err)
	}
	if _, err := workflow.ChoosePartySize(ctx, chatID, 2); err != nil {
		t.Fatalf("choose party size: %v", err)
	}
	if _, err := workflow.HandleText(ctx, chatID, "18:00"); err != nil {
		t.Fatalf("departure time: %v", err)
	}
	order, err = workflow.SetPickupLocation(ctx, chatID, 40.3894, 70.5630)
	if err != nil {
		t.Fatalf("pickup location: %v", err)
	}
	return order
}

func TestWorkflow_HappyPath(t *testing.T) {
	ctx := context.Background()
	workflow, riderRepo, _, sessions, _, broadcaster := newWorkflowFixture()
	registeredRider(riderRepo, 100)

	order := driveToConfirmation(t, workflow, 100)

	if order.Direction != domain.DirectionBeshariqToshkent {
		t.Errorf("expected direction %s, got %s", domain.DirectionBeshariqToshkent, order.Direction)
	}
	if order.PartySize != 2 {
		t.Errorf("expected party size 2, got %d", order.PartySize)
	}
	if order.DepartureTime != "18:00" {
		t.Errorf("expected departure time 18:00, got %q", order.DepartureTime)
	}
	if !strings.HasPrefix(order.PickupLink, "https://www.google.com/maps?q=") {
		t.Errorf("unexpected pickup link %q", order.PickupLink)
	}
	if order.Status != domain.OrderStatusDraft {
		t.Errorf("expected DRAFT before confirmation, got %s", order.Status)
	}

	result, err := workflow.Confirm(ctx, 100, true)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Cancelled || result.AlreadyBroadcast {
		t.Fatalf("unexpected confirm result: %+v", result)
	}
	if result.Order.Status != domain.OrderStatusBroadcast {
		t.Errorf("expected BROADCAST after confirm, got %s", result.Order.Status)
	}
	if got := atomic.LoadInt32(&broadcaster.CallCount); got != 1 {
		t.Errorf("expected 1 broadcast, got %d", got)
	}

	// The conversation is over; the session must be gone.
	session, err := sessions.Get(ctx, 100)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session != nil {
		t.Error("expected session deleted after confirmation")
	}
}

func TestWorkflow_UnregisteredRiderCannotStart(t *testing.T) {
	ctx := context.Background()
	workflow, _, orderRepo, sessions, _, _ := newWorkflowFixture()

	err := workflow.Start(ctx, 100)
	if !errors.Is(err, service.ErrRiderNotRegistered) {
		t.Fatalf("expected ErrRiderNotRegistered, got %v", err)
	}
	if got := atomic.LoadInt32(&orderRepo.CreateCallCount); got != 0 {
		t.Errorf("expected no order created, got %d", got)
	}
	if got := atomic.LoadInt32(&sessions.SaveCallCount); got != 0 {
		t.Errorf("expected no session saved, got %d", got)
	}
}

func TestWorkflow_SecondOrderBlockedWhileInFlight(t *testing.T) {
	ctx := context.Background()
	workflow, riderRepo, _, _, _, _ := newWorkflowFixture()
	registeredRider(riderRepo, 100)

	driveToConfirmation(t, workflow, 100)
	if _, err := workflow.Confirm(ctx, 100, true); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	err := workflow.Start(ctx, 100)
	if !errors.Is(err, service.ErrOrderInFlight) {
		t.Fatalf("expected ErrOrderInFlight, got %v", err)
	}
}

func TestWorkflow_NewOrderAllowedAfterCancellation(t *testing.T) {
	ctx := context.Background()
	workflow, riderRepo, _, _, _, _ := newWorkflowFixture()
	registeredRider(riderRepo, 100)

	driveToConfirmation(t, workflow, 100)
	result, err := workflow.Confirm(ctx, 100, false)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !result.Cancelled {
		t.Fatal("expected cancellation")
	}

	if err := workflow.Start(ctx, 100); err != nil {
		t.Fatalf("expected new order allowed after cancellation, got %v", err)
	}
}

func TestWorkflow_ExpiredSessionDraftRecovered(t *testing.T) {
	ctx := context.Background()
	workflow, riderRepo, orderRepo, sessions, _, _ := newWorkflowFixture()
	registeredRider(riderRepo, 100)

	if err := workflow.Start(ctx, 100); err != nil {
		t.Fatalf("start: %v", err)
	}
	stale, err := workflow.SelectDirection(ctx, 100, domain.DirectionBeshariqToshkent)
	if err != nil {
		t.Fatalf("select direction: %v", err)
	}

	// The session TTL lapses while the draft is abandoned mid-flow.
	if err := sessions.Delete(ctx, 100); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	if err := workflow.Start(ctx, 100); err != nil {
		t.Fatalf("expected restart after session expiry, got %v", err)
	}

	cancelled, err := orderRepo.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("get stale order: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Errorf("expected stale draft CANCELLED, got %s", cancelled.Status)
	}

	// The fresh conversation proceeds on a new order.
	fresh, err := workflow.SelectDirection(ctx, 100, domain.DirectionToshkentBeshariq)
	if err != nil {
		t.Fatalf("select direction on restart: %v", err)
	}
	if fresh.ID == stale.ID {
		t.Error("expected a new order, got the stale draft")
	}
}

func TestWorkflow_DraftWithLiveSessionStillBlocks(t *testing.T) {
	ctx := context.Background()
	workflow, riderRepo, orderRepo, _, _, _ := newWorkflowFixture()
	registeredRider(riderRepo, 100)

	if err := workflow.Start(ctx, 100); err != nil {
		t.Fatalf("start: %v", err)
	}
	order, err := workflow.SelectDirection(ctx, 100, domain.DirectionBeshariqToshkent)
	if err != nil {
		t.Fatalf("select direction: %v", err)
	}

	// Mid-conversation, a second start must not cancel the live draft.
	if err := workflow.Start(ctx, 100); !errors.Is(err, service.ErrOrderInFlight) {
		t.Fatalf("expected ErrOrderInFlight, got %v", err)
	}
	stored, err := orderRepo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Status != domain.OrderStatusDraft {
		t.Errorf("live draft mutated: %s", stored.Status)
	}
}

func TestWorkflow_OutOfSequenceEventsRejected(t *testing.T) {
	ctx := context.Background()
	workflow, riderRepo, orderRepo, _, _, _ := newWorkflowFixture()
	registeredRider(riderRepo, 100)

	// Party size before direction.
	if err := workflow.Start(ctx, 100); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := workflow.ChoosePartySize(ctx, 100, 2); !errors.Is(err, service.ErrWorkflowViolation) {
		t.Fatalf("expected ErrWorkflowViolation, got %v", err)
	}

	// Free text before the order exists.
	if _, err := workflow.HandleText(ctx, 100, "18:00"); !errors.Is(err, service.ErrWorkflowViolation) {
		t.Fatalf("expected ErrWorkflowViolation, got %v", err)
	}

	// Confirm straight after direction.
	if _, err := workflow.SelectDirection(ctx, 100, domain.DirectionToshkentBeshariq); err != nil {
		t.Fatalf("select direction: %v", err)
	}
	if _, err := workflow.Confirm(ctx, 100, true); !errors.Is(err, service.ErrWorkflowViolation) {
		t.Fatalf("expected ErrWorkflowViolation, got %v", err)
	}

	if got := atomic.LoadInt32(&orderRepo.UpdateCallCount); got != 0 {
		t.Errorf("expected no order mutation from rejected events, got %d updates", got)
	}
}

func TestWorkflow_InvalidPartySizeRejected(t *testing.T) {
	ctx := context.Background()
	workflow, riderRepo, orderRepo, _, _, _ := newWorkflowFixture()
	registeredRider(riderRepo, 100)

	if err := workflow.Start(ctx, 100); err != nil {
		t.Fatalf("start: %v", err)
	}
	order, err := workflow.SelectDirection(ctx, 100, domain.DirectionBeshariqToshkent)
	if err != nil {
		t.Fatalf("select direction: %v", err)
	}

	for _, size := range []int{0, -1, 5, 100} {
		if _, err := workflow.ChoosePartySize(ctx, 100, size); !errors.Is(err, service.ErrInvalidPartySize) {
			t.Errorf("size %d: expected ErrInvalidPartySize, got %v", size, err)
		}
	}

	stored, err := orderRepo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.PartySize != 0 {
		t.Errorf("expected party size untouched, got %d", stored.PartySize)
	}

	// A valid size still works afterwards.
	if _, err := workflow.ChoosePartySize(ctx, 100, 4); err != nil {
		t.Fatalf("valid size rejected: %v", err)
	}
}

func TestWorkflow_UnknownDirectionRejected(t *testing.T) {
	ctx := context.Background()
	workflow, riderRepo, orderRepo, _, _, _ := newWorkflowFixture()
	registeredRider(riderRepo, 100)

	if err := workflow.Start(ctx, 100); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := workflow.SelectDirection(ctx, 100, domain.Direction("ANDIJON_TOSHKENT")); !errors.Is(err, service.ErrUnknownDirection) {
		t.Fatalf("expected ErrUnknownDirection, got %v", err)
	}
	if got := atomic.LoadInt32(&orderRepo.CreateCallCount); got != 0 {
		t.Errorf("expected no order created, got %d", got)
	}
}

func TestWorkflow_PickupLocationWriteOnce(t *testing.T) {
	ctx := context.Background()
	workflow, riderRepo, _, _, _, _ := newWorkflowFixture()
	registeredRider(riderRepo, 100)

	order := driveToConfirmation(t, workflow, 100)
	first := order.PickupLink

	// A second location share must not overwrite the first.
	order, err := workflow.SetPickupLocation(ctx, 100, 41.2995, 69.2401)
	if err != nil {
		t.Fatalf("second pickup location: %v", err)
	}
	if order.PickupLink != first {
		t.Errorf("pickup link overwritten: %q -> %q", first, order.PickupLink)
	}
}

func TestWorkflow_DescriptionCapturedWithoutAdvancing(t *testing.T) {
	ctx := context.Background()
	workflow, riderRepo, _, _, _, _ := newWorkflowFixture()
	registeredRider(riderRepo, 100)

	if err := workflow.Start(ctx, 100); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := workflow.SelectDirection(ctx, 100, domain.DirectionBeshariqToshkent); err != nil {
		t.Fatalf("select direction: %v", err)
	}
	if _, err := workflow.ChoosePartySize(ctx, 100, 1); err != nil {
		t.Fatalf("choose party size: %v", err)
	}

	result, err := workflow.HandleText(ctx, 100, "18:00")
	if err != nil {
		t.Fatalf("departure time: %v", err)
	}
	if !result.Advanced {
		t.Fatal("expected departure-time text to advance")
	}

	// Free text while awaiting the location becomes the description.
	result, err = workflow.HandleText(ctx, 100, "Yunusobod tomonda kutaman")
	if err != nil {
		t.Fatalf("description text: %v", err)
	}
	if result.Advanced {
		t.Error("description must not advance the conversation")
	}
	if result.Order.Description != "Yunusobod tomonda kutaman" {
		t.Errorf("unexpected description %q", result.Order.Description)
	}
}

func TestWorkflow_CancellationSkipsBroadcast(t *testing.T) {
	ctx := context.Background()
	workflow, riderRepo, orderRepo, sessions, _, broadcaster := newWorkflowFixture()
	registeredRider(riderRepo, 100)

	order := driveToConfirmation(t, workflow, 100)

	result, err := workflow.Confirm(ctx, 100, false)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !result.Cancelled {
		t.Fatal("expected cancellation")
	}
	if got := atomic.LoadInt32(&broadcaster.CallCount); got != 0 {
		t.Errorf("cancelled order must never reach the broadcaster, got %d calls", got)
	}

	stored, err := orderRepo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Status != domain.OrderStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", stored.Status)
	}

	session, err := sessions.Get(ctx, 100)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session != nil {
		t.Error("expected session deleted after cancellation")
	}
}

func TestWorkflow_BroadcastFailureLeavesConfirmRetryable(t *testing.T) {
	ctx := context.Background()
	workflow, riderRepo, orderRepo, sessions, guard, broadcaster := newWorkflowFixture()
	registeredRider(riderRepo, 100)

	order := driveToConfirmation(t, workflow, 100)

	broadcaster.BroadcastError = errors.New("gateway down")
	if _, err := workflow.Confirm(ctx, 100, true); err == nil {
		t.Fatal("expected confirm to fail when the fan-out fails")
	}

	// Nothing went out, so the order is back to draft, the guard is free
	// and the session survives.
	stored, err := orderRepo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Status != domain.OrderStatusDraft {
		t.Errorf("expected DRAFT after failed fan-out, got %s", stored.Status)
	}
	if guard.Held(order.ID) {
		t.Error("expected broadcast guard released after failed fan-out")
	}
	session, err := sessions.Get(ctx, 100)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session == nil {
		t.Fatal("expected session kept after failed fan-out")
	}

	broadcaster.BroadcastError = nil
	result, err := workflow.Confirm(ctx, 100, true)
	if err != nil {
		t.Fatalf("retried confirm: %v", err)
	}
	if result.AlreadyBroadcast {
		t.Fatal("retried confirm wrongly treated as a duplicate")
	}
	if result.Order.Status != domain.OrderStatusBroadcast {
		t.Errorf("expected BROADCAST after retry, got %s", result.Order.Status)
	}
}

func TestWorkflow_StatusUpdateFailureReleasesGuard(t *testing.T) {
	ctx := context.Background()
	workflow, riderRepo, orderRepo, _, guard, _ := newWorkflowFixture()
	registeredRider(riderRepo, 100)

	order := driveToConfirmation(t, workflow, 100)

	orderRepo.UpdateError = errors.New("db down")
	if _, err := workflow.Confirm(ctx, 100, true); err == nil {
		t.Fatal("expected confirm to fail when the status update fails")
	}
	if guard.Held(order.ID) {
		t.Error("expected broadcast guard released after failed update")
	}

	orderRepo.UpdateError = nil
	result, err := workflow.Confirm(ctx, 100, true)
	if err != nil {
		t.Fatalf("retried confirm: %v", err)
	}
	if result.AlreadyBroadcast {
		t.Fatal("retried confirm wrongly treated as a duplicate")
	}
}

func TestWorkflow_DuplicateConfirmBroadcastsOnce(t *testing.T) {
	ctx := context.Background()
	workflow, riderRepo, _, sessions, _, broadcaster := newWorkflowFixture()
	registeredRider(riderRepo, 100)

	driveToConfirmation(t, workflow, 100)

	// Re-save the session to simulate the replayed confirm tap arriving
	// before the first one finished tearing the session down.
	session, _ := sessions.Get(ctx, 100)

	if _, err := workflow.Confirm(ctx, 100, true); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if err := sessions.Save(ctx, session); err != nil {
		t.Fatalf("re-save session: %v", err)
	}

	result, err := workflow.Confirm(ctx, 100, true)
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if !result.AlreadyBroadcast {
		t.Fatal("expected AlreadyBroadcast on duplicate confirm")
	}
	if got := atomic.LoadInt32(&broadcaster.CallCount); got != 1 {
		t.Errorf("expected exactly 1 broadcast, got %d", got)
	}
}
