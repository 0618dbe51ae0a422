package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"taxibot/internal/domain"
	"taxibot/internal/repository"
)

// GroupService registers group chats as dispatch channels.
type GroupService struct {
	groups repository.GroupRepository
	log    *slog.Logger
}

// NewGroupService creates a new GroupService.
func NewGroupService(groups repository.GroupRepository, log *slog.Logger) *GroupService {
	return &GroupService{groups: groups, log: log}
}

// Activate registers the group chat as a broadcast target. Idempotent: a
// second activation returns the existing record with created=false.
func (s *GroupService) Activate(ctx context.Context, chatID int64, title string) (*domain.GroupChannel, bool, error) {
	existing, err := s.groups.GetByChatID(ctx, chatID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	group := &domain.GroupChannel{
		ChatID:    chatID,
		Title:     title,
		CreatedAt: time.Now(),
	}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, false, err
	}

	s.log.Info("group channel activated", "chat_id", chatID, "title", title)
	return group, true, nil
}
