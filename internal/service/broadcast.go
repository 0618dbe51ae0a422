package service

import (
	"context"
	"log/slog"

	"taxibot/internal/domain"
	"taxibot/internal/gateway"
	"taxibot/internal/repository"
)

// DeliveryOutcome records the result of one channel delivery during fan-out.
type DeliveryOutcome struct {
	ChatID    int64
	MessageID int64
	Err       error
}

// DispatchBroadcaster fans a confirmed order out to every registered group
// channel. Fan-out is best-effort and independently failing: one channel's
// delivery error is recorded and logged, and the remaining channels still
// receive the notice. Nothing is rolled back or retried.
type DispatchBroadcaster struct {
	groups    repository.GroupRepository
	messenger gateway.Messenger
	log       *slog.Logger
}

// NewDispatchBroadcaster creates a new DispatchBroadcaster.
func NewDispatchBroadcaster(groups repository.GroupRepository, messenger gateway.Messenger, log *slog.Logger) *DispatchBroadcaster {
	return &DispatchBroadcaster{groups: groups, messenger: messenger, log: log}
}

var _ BroadcasterInterface = (*DispatchBroadcaster)(nil)

// Broadcast sends the order notice, carrying the claim button, to all group
// channels. The returned error covers only the group lookup; per-channel
// failures live in the outcome list.
func (b *DispatchBroadcaster) Broadcast(ctx context.Context, order *domain.Order, rider *domain.Rider) ([]DeliveryOutcome, error) {
	groups, err := b.groups.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	notice := formatOrderNotice(order, rider)
	claimButton := gateway.Button{
		Label: "✅ Qabul qilish",
		Data:  gateway.ClaimData(order.ID),
	}

	outcomes := make([]DeliveryOutcome, 0, len(groups))
	for _, group := range groups {
		messageID, err := b.messenger.SendText(ctx, group.ChatID, notice, claimButton)
		if err != nil {
			b.log.Error("broadcast delivery failed",
				"order_id", order.ID,
				"group_chat_id", group.ChatID,
				"error", err,
			)
		}
		outcomes = append(outcomes, DeliveryOutcome{ChatID: group.ChatID, MessageID: messageID, Err: err})
	}

	b.log.Info("order broadcast", "order_id", order.ID, "channels", len(groups))
	return outcomes, nil
}
