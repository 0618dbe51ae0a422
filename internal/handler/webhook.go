package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taxibot/internal/domain"
	"taxibot/internal/gateway"
	"taxibot/internal/gateway/telegram"
	"taxibot/internal/service"
)

// WebhookHandler receives Telegram updates and dispatches them into the
// core: SessionGate, OrderWorkflow, AssignmentArbiter, NotificationRouter.
// Input rejections and sequence violations are absorbed here (the rider is
// re-prompted or the event is dropped); only infrastructure failures surface
// as HTTP errors so the transport retries the update.
type WebhookHandler struct {
	gate      *service.SessionGate
	workflow  *service.OrderWorkflow
	arbiter   *service.AssignmentArbiter
	notifier  *service.NotificationRouter
	groupSvc  *service.GroupService
	messenger gateway.Messenger
	log       *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(
	gate *service.SessionGate,
	workflow *service.OrderWorkflow,
	arbiter *service.AssignmentArbiter,
	notifier *service.NotificationRouter,
	groupSvc *service.GroupService,
	messenger gateway.Messenger,
	log *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		gate:      gate,
		workflow:  workflow,
		arbiter:   arbiter,
		notifier:  notifier,
		groupSvc:  groupSvc,
		messenger: messenger,
		log:       log,
	}
}

// Handle handles POST /telegram/webhook.
func (h *WebhookHandler) Handle(c *gin.Context) {
	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update body"})
		return
	}

	event, ok := telegram.DecodeEvent(update)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	ctx := c.Request.Context()
	var err error
	switch event.ChatType {
	case gateway.ChatTypePrivate:
		err = h.handlePrivate(ctx, event)
	case gateway.ChatTypeGroup:
		err = h.handleGroup(ctx, event)
	}
	if err != nil {
		h.log.Error("update processing failed",
			"update_id", update.UpdateID, "chat_id", event.ChatID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *WebhookHandler) handlePrivate(ctx context.Context, ev gateway.Event) error {
	switch ev.Kind {
	case gateway.EventText:
		if strings.HasPrefix(ev.Text, "/start") {
			return h.startCommand(ctx, ev)
		}
		return h.privateText(ctx, ev)

	case gateway.EventContact:
		return h.contactShared(ctx, ev)

	case gateway.EventLocation:
		order, err := h.workflow.SetPickupLocation(ctx, ev.ChatID, ev.Latitude, ev.Longitude)
		if err != nil {
			if errors.Is(err, service.ErrWorkflowViolation) {
				return nil
			}
			return err
		}
		return h.notifier.PromptConfirmation(ctx, order)

	case gateway.EventAction:
		return h.privateAction(ctx, ev)
	}
	return nil
}

func (h *WebhookHandler) startCommand(ctx context.Context, ev gateway.Event) error {
	registered, err := h.gate.IsRegistered(ctx, ev.ChatID)
	if err != nil {
		return err
	}
	if registered {
		return h.notifier.SendMainMenu(ctx, ev.ChatID)
	}
	return h.notifier.PromptPhone(ctx, ev.ChatID)
}

func (h *WebhookHandler) contactShared(ctx context.Context, ev gateway.Event) error {
	rider, err := h.gate.Register(ctx, ev.ChatID, ev.SenderName, ev.Phone)
	if err != nil {
		if errors.Is(err, service.ErrRegistrationIncomplete) || errors.Is(err, domain.ErrInvalidPhone) {
			return h.notifier.PromptPhone(ctx, ev.ChatID)
		}
		return err
	}
	if err := h.notifier.ConfirmRegistration(ctx, rider); err != nil {
		return err
	}
	return h.notifier.SendMainMenu(ctx, ev.ChatID)
}

func (h *WebhookHandler) privateText(ctx context.Context, ev gateway.Event) error {
	result, err := h.workflow.HandleText(ctx, ev.ChatID, ev.Text)
	if err != nil {
		if errors.Is(err, service.ErrWorkflowViolation) {
			// Stray text outside an active flow; nothing to do.
			return nil
		}
		return err
	}
	if !result.Advanced {
		// The text was stored as the optional description.
		return nil
	}
	if err := h.notifier.SendOrderProgress(ctx, ev.ChatID, result.Order); err != nil {
		return err
	}
	return h.notifier.PromptPickupLocation(ctx, ev.ChatID)
}

func (h *WebhookHandler) privateAction(ctx context.Context, ev gateway.Event) error {
	switch ev.Action.Kind {
	case gateway.ActionNewOrder:
		return h.newOrder(ctx, ev)

	case gateway.ActionSelectDirection:
		order, err := h.workflow.SelectDirection(ctx, ev.ChatID, ev.Action.Direction)
		if err != nil {
			return h.absorbRejection(ctx, ev, err)
		}
		h.ack(ctx, ev, "")
		h.retireKeyboard(ctx, ev)
		if err := h.notifier.SendOrderProgress(ctx, ev.ChatID, order); err != nil {
			return err
		}
		return h.notifier.PromptPartySize(ctx, ev.ChatID)

	case gateway.ActionChoosePartySize:
		order, err := h.workflow.ChoosePartySize(ctx, ev.ChatID, ev.Action.PartySize)
		if err != nil {
			return h.absorbRejection(ctx, ev, err)
		}
		h.ack(ctx, ev, "")
		h.retireKeyboard(ctx, ev)
		if err := h.notifier.SendOrderProgress(ctx, ev.ChatID, order); err != nil {
			return err
		}
		return h.notifier.PromptDepartureTime(ctx, ev.ChatID)

	case gateway.ActionConfirm:
		return h.confirm(ctx, ev)

	case gateway.ActionClaim:
		return h.claim(ctx, ev)
	}
	// Unrecognized payload; acknowledge so the button stops spinning.
	h.ack(ctx, ev, "")
	return nil
}

func (h *WebhookHandler) newOrder(ctx context.Context, ev gateway.Event) error {
	err := h.workflow.Start(ctx, ev.ChatID)
	h.ack(ctx, ev, "")
	switch {
	case errors.Is(err, service.ErrRiderNotRegistered):
		return h.notifier.PromptPhone(ctx, ev.ChatID)
	case errors.Is(err, service.ErrOrderInFlight):
		return h.notifier.NotifyOrderInFlight(ctx, ev.ChatID)
	case err != nil:
		return err
	}
	return h.notifier.PromptDirection(ctx, ev.ChatID)
}

func (h *WebhookHandler) confirm(ctx context.Context, ev gateway.Event) error {
	result, err := h.workflow.Confirm(ctx, ev.ChatID, ev.Action.Accepted)
	if err != nil {
		return h.absorbRejection(ctx, ev, err)
	}
	h.ack(ctx, ev, "")
	h.retireKeyboard(ctx, ev)

	switch {
	case result.Cancelled:
		if err := h.notifier.NotifyOrderCancelled(ctx, ev.ChatID); err != nil {
			return err
		}
		return h.notifier.SendMainMenu(ctx, ev.ChatID)
	case result.AlreadyBroadcast:
		return nil
	}
	return h.notifier.NotifyOrderQueued(ctx, ev.ChatID)
}

func (h *WebhookHandler) handleGroup(ctx context.Context, ev gateway.Event) error {
	switch ev.Kind {
	case gateway.EventText:
		if strings.HasPrefix(ev.Text, "/activate") {
			return h.activateGroup(ctx, ev)
		}
		return nil
	case gateway.EventAction:
		if ev.Action.Kind == gateway.ActionClaim {
			return h.claim(ctx, ev)
		}
		h.ack(ctx, ev, "")
		return nil
	}
	return nil
}

func (h *WebhookHandler) activateGroup(ctx context.Context, ev gateway.Event) error {
	group, created, err := h.groupSvc.Activate(ctx, ev.ChatID, ev.ChatTitle)
	if err != nil {
		return err
	}
	if created {
		return h.notifier.NotifyGroupActivated(ctx, group)
	}
	return h.notifier.NotifyGroupAlreadyActive(ctx, ev.ChatID, group)
}

func (h *WebhookHandler) claim(ctx context.Context, ev gateway.Event) error {
	outcome, err := h.arbiter.Claim(ctx, ev.Action.OrderID, ev.SenderID)
	if err != nil {
		return err
	}

	switch outcome.Result {
	case service.ClaimWon:
		h.ack(ctx, ev, "✅ Buyurtma qabul qilindi!")
		// Retire the claim button in the channel the winner pressed it in.
		h.retireKeyboard(ctx, ev)
	case service.ClaimLostAlreadyAssigned:
		h.ack(ctx, ev, "Buyurtma allaqachon band.")
	case service.ClaimDriverUnregistered:
		h.ack(ctx, ev, "")
	}

	return h.notifier.RouteClaim(ctx, outcome, ev.ChatID, ev.SenderName)
}

// absorbRejection swallows expected client-ordering rejections; everything
// else propagates.
func (h *WebhookHandler) absorbRejection(ctx context.Context, ev gateway.Event, err error) error {
	if errors.Is(err, service.ErrWorkflowViolation) ||
		errors.Is(err, service.ErrInvalidPartySize) ||
		errors.Is(err, service.ErrUnknownDirection) {
		h.ack(ctx, ev, "")
		return nil
	}
	return err
}

// ack acknowledges a button press; failures only get logged, an unanswered
// callback is cosmetic.
func (h *WebhookHandler) ack(ctx context.Context, ev gateway.Event, text string) {
	if ev.ActionID == "" {
		return
	}
	if err := h.messenger.AnswerAction(ctx, ev.ActionID, text); err != nil {
		h.log.Warn("callback ack failed", "chat_id", ev.ChatID, "error", err)
	}
}

// retireKeyboard deletes the message whose button was pressed.
func (h *WebhookHandler) retireKeyboard(ctx context.Context, ev gateway.Event) {
	if err := h.messenger.DeleteMessage(ctx, ev.ChatID, ev.MessageID); err != nil {
		h.log.Warn("keyboard cleanup failed", "chat_id", ev.ChatID, "message_id", ev.MessageID, "error", err)
	}
}
