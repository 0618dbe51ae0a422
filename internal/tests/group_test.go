package tests

import (
	"context"
	"sync/atomic"
	"testing"

	"taxibot/internal/service"
)

func TestGroupActivate_RegistersChannel(t *testing.T) {
	ctx := context.Background()
	groupRepo := NewMockGroupRepository()
	svc := service.NewGroupService(groupRepo, testLogger())

	group, created, err := svc.Activate(ctx, -200, "Beshariq Taksi")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !created {
		t.Fatal("expected fresh activation")
	}
	if group.ChatID != -200 || group.Title != "Beshariq Taksi" {
		t.Errorf("unexpected group record: %+v", group)
	}

	groups, err := groupRepo.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(groups) != 1 {
		t.Errorf("expected 1 registered channel, got %d", len(groups))
	}
}

func TestGroupActivate_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	groupRepo := NewMockGroupRepository()
	svc := service.NewGroupService(groupRepo, testLogger())

	if _, _, err := svc.Activate(ctx, -200, "Beshariq Taksi"); err != nil {
		t.Fatalf("first activate: %v", err)
	}

	group, created, err := svc.Activate(ctx, -200, "Renamed Group")
	if err != nil {
		t.Fatalf("second activate: %v", err)
	}
	if created {
		t.Error("expected repeated activation reported as existing")
	}
	if group.Title != "Beshariq Taksi" {
		t.Errorf("expected original title kept, got %q", group.Title)
	}
	if got := atomic.LoadInt32(&groupRepo.CreateCallCount); got != 1 {
		t.Errorf("expected 1 create, got %d", got)
	}
}
