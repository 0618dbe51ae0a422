package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"taxibot/internal/domain"
	"taxibot/internal/service"
)

func broadcastOrder(orderRepo *MockOrderRepository, id string) *domain.Order {
	order := &domain.Order{
		ID:            id,
		RiderChatID:   100,
		Direction:     domain.DirectionBeshariqToshkent,
		PartySize:     2,
		DepartureTime: "18:00",
		PickupLink:    "https://www.google.com/maps?q=40.389400,70.563000",
		Status:        domain.OrderStatusBroadcast,
		CreatedAt:     time.Now(),
	}
	orderRepo.AddOrder(order)
	return order
}

func TestArbiter_ConcurrentClaimsSingleWinner(t *testing.T) {
	ctx := context.Background()
	driverRepo := NewMockDriverRepository()
	orderRepo := NewMockOrderRepository()
	arbiter := service.NewAssignmentArbiter(driverRepo, orderRepo, testLogger())

	broadcastOrder(orderRepo, "order-1")

	const drivers = 16
	for i := 0; i < drivers; i++ {
		driverRepo.AddDriver(&domain.Driver{
			ChatID:   int64(1000 + i),
			FullName: "Driver",
			Phone:    "+998900000000",
		})
	}

	var wg sync.WaitGroup
	outcomes := make([]*service.ClaimOutcome, drivers)
	errs := make([]error, drivers)

	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = arbiter.Claim(ctx, "order-1", int64(1000+i))
		}(i)
	}
	wg.Wait()

	var won, lost int
	var winner int64
	for i := 0; i < drivers; i++ {
		if errs[i] != nil {
			t.Fatalf("claim %d: %v", i, errs[i])
		}
		switch outcomes[i].Result {
		case service.ClaimWon:
			won++
			winner = int64(1000 + i)
		case service.ClaimLostAlreadyAssigned:
			lost++
		default:
			t.Fatalf("claim %d: unexpected result %s", i, outcomes[i].Result)
		}
	}

	if won != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", won)
	}
	if lost != drivers-1 {
		t.Fatalf("expected %d losers, got %d", drivers-1, lost)
	}

	order, err := orderRepo.GetByID(ctx, "order-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.DriverChatID != winner {
		t.Errorf("expected driver %d assigned, got %d", winner, order.DriverChatID)
	}
	if order.Status != domain.OrderStatusAssigned {
		t.Errorf("expected ASSIGNED, got %s", order.Status)
	}
	if !order.Assigned {
		t.Error("expected assigned flag set")
	}
}

func TestArbiter_SecondClaimLoses(t *testing.T) {
	ctx := context.Background()
	driverRepo := NewMockDriverRepository()
	orderRepo := NewMockOrderRepository()
	arbiter := service.NewAssignmentArbiter(driverRepo, orderRepo, testLogger())

	broadcastOrder(orderRepo, "order-1")
	driverRepo.AddDriver(&domain.Driver{ChatID: 1000})
	driverRepo.AddDriver(&domain.Driver{ChatID: 1001})

	first, err := arbiter.Claim(ctx, "order-1", 1000)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if first.Result != service.ClaimWon {
		t.Fatalf("expected first claim to win, got %s", first.Result)
	}

	second, err := arbiter.Claim(ctx, "order-1", 1001)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second.Result != service.ClaimLostAlreadyAssigned {
		t.Fatalf("expected second claim to lose, got %s", second.Result)
	}

	// The loser's attempt must not disturb the winner's assignment.
	order, err := orderRepo.GetByID(ctx, "order-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.DriverChatID != 1000 {
		t.Errorf("expected driver 1000 to keep the order, got %d", order.DriverChatID)
	}
}

func TestArbiter_UnregisteredDriverRejected(t *testing.T) {
	ctx := context.Background()
	driverRepo := NewMockDriverRepository()
	orderRepo := NewMockOrderRepository()
	arbiter := service.NewAssignmentArbiter(driverRepo, orderRepo, testLogger())

	broadcastOrder(orderRepo, "order-1")

	outcome, err := arbiter.Claim(ctx, "order-1", 9999)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if outcome.Result != service.ClaimDriverUnregistered {
		t.Fatalf("expected DRIVER_UNREGISTERED, got %s", outcome.Result)
	}

	// The order must remain claimable by a registered driver.
	order, err := orderRepo.GetByID(ctx, "order-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.DriverChatID != 0 || order.Status != domain.OrderStatusBroadcast {
		t.Errorf("order mutated by unregistered claim: %+v", order)
	}

	driverRepo.AddDriver(&domain.Driver{ChatID: 1000})
	won, err := arbiter.Claim(ctx, "order-1", 1000)
	if err != nil {
		t.Fatalf("registered claim: %v", err)
	}
	if won.Result != service.ClaimWon {
		t.Errorf("expected registered driver to win, got %s", won.Result)
	}
}

func TestArbiter_CancelledOrderNotClaimable(t *testing.T) {
	ctx := context.Background()
	driverRepo := NewMockDriverRepository()
	orderRepo := NewMockOrderRepository()
	arbiter := service.NewAssignmentArbiter(driverRepo, orderRepo, testLogger())

	order := broadcastOrder(orderRepo, "order-1")
	order.Status = domain.OrderStatusCancelled
	orderRepo.AddOrder(order)
	driverRepo.AddDriver(&domain.Driver{ChatID: 1000})

	outcome, err := arbiter.Claim(ctx, "order-1", 1000)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if outcome.Result != service.ClaimLostAlreadyAssigned {
		t.Fatalf("expected cancelled order to be unclaimable, got %s", outcome.Result)
	}

	stored, err := orderRepo.GetByID(ctx, "order-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Status != domain.OrderStatusCancelled || stored.DriverChatID != 0 {
		t.Errorf("cancelled order mutated by claim: %+v", stored)
	}
}
