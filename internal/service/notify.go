package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"taxibot/internal/domain"
	"taxibot/internal/gateway"
	"taxibot/internal/repository"
)

// NotificationRouter pushes workflow and arbitration outcomes to the right
// parties: the rider, the winning driver, the dispatch channels, and losing
// claimers. All user-facing text lives here.
type NotificationRouter struct {
	messenger gateway.Messenger
	riders    repository.RiderRepository
	groups    repository.GroupRepository
	log       *slog.Logger
}

// NewNotificationRouter creates a new NotificationRouter.
func NewNotificationRouter(
	messenger gateway.Messenger,
	riders repository.RiderRepository,
	groups repository.GroupRepository,
	log *slog.Logger,
) *NotificationRouter {
	return &NotificationRouter{messenger: messenger, riders: riders, groups: groups, log: log}
}

// PromptPhone asks an unregistered rider to share their contact.
func (r *NotificationRouter) PromptPhone(ctx context.Context, chatID int64) error {
	_, err := r.messenger.SendContactRequest(ctx, chatID,
		"<b>Assalomu alaykum!</b>\n\n📱 <i>Iltimos, raqamingizni yuboring:</i>")
	return err
}

// ConfirmRegistration acknowledges a completed registration.
func (r *NotificationRouter) ConfirmRegistration(ctx context.Context, rider *domain.Rider) error {
	body := fmt.Sprintf(
		"👤 <b>Ism familiyangiz:</b> %s\n📞 <b>Raqamingiz saqlandi:</b> %s",
		rider.FullName, rider.Phone,
	)
	_, err := r.messenger.SendText(ctx, rider.ChatID, body)
	return err
}

// SendMainMenu shows the order entry point.
func (r *NotificationRouter) SendMainMenu(ctx context.Context, chatID int64) error {
	_, err := r.messenger.SendText(ctx, chatID,
		"<b>Kerakli bo'limni tanlang:</b>",
		gateway.Button{Label: "🚕 Buyurtma berish 🚕", Data: gateway.NewOrderData()},
	)
	return err
}

// PromptDirection asks for the route.
func (r *NotificationRouter) PromptDirection(ctx context.Context, chatID int64) error {
	_, err := r.messenger.SendText(ctx, chatID,
		"🚖 <b>Yo'nalishni tanlang:</b>",
		gateway.Button{Label: "🚕 Beshariq → Toshkent", Data: gateway.DirectionData(domain.DirectionBeshariqToshkent)},
		gateway.Button{Label: "🚕 Toshkent → Beshariq", Data: gateway.DirectionData(domain.DirectionToshkentBeshariq)},
	)
	return err
}

// PromptPartySize asks for the seat count.
func (r *NotificationRouter) PromptPartySize(ctx context.Context, chatID int64) error {
	buttons := make([]gateway.Button, 0, domain.MaxPartySize)
	for n := domain.MinPartySize; n <= domain.MaxPartySize; n++ {
		buttons = append(buttons, gateway.Button{
			Label: fmt.Sprintf("%d", n),
			Data:  gateway.PartySizeData(n),
		})
	}
	_, err := r.messenger.SendText(ctx, chatID, "👥 <b>Nechta joy kerak:</b>", buttons...)
	return err
}

// PromptDepartureTime asks for the departure time.
func (r *NotificationRouter) PromptDepartureTime(ctx context.Context, chatID int64) error {
	_, err := r.messenger.SendText(ctx, chatID,
		"🕔 <b>Ketish vaqtini yozib yuboring</b> (masalan: <code>Vaqt: 18:00</code>):")
	return err
}

// PromptPickupLocation asks for the pickup point.
func (r *NotificationRouter) PromptPickupLocation(ctx context.Context, chatID int64) error {
	_, err := r.messenger.SendText(ctx, chatID, "📍 <b>Ketish joyini lokatsiyasini yuboring:</b>")
	return err
}

// PromptConfirmation shows the accumulated order and asks for the final
// choice.
func (r *NotificationRouter) PromptConfirmation(ctx context.Context, order *domain.Order) error {
	if err := r.SendOrderProgress(ctx, order.RiderChatID, order); err != nil {
		return err
	}
	_, err := r.messenger.SendText(ctx, order.RiderChatID,
		"✅ <b>Ma'lumotlarni tasdiqlaysizmi?</b>",
		gateway.Button{Label: "✅ Ha", Data: gateway.ConfirmData(true)},
		gateway.Button{Label: "❌ Yo'q", Data: gateway.ConfirmData(false)},
	)
	return err
}

// SendOrderProgress shows the order summary with placeholders for the fields
// not yet captured.
func (r *NotificationRouter) SendOrderProgress(ctx context.Context, chatID int64, order *domain.Order) error {
	_, err := r.messenger.SendText(ctx, chatID, formatOrderProgress(order))
	return err
}

// NotifyOrderQueued tells the rider the order went out to the dispatch pool.
func (r *NotificationRouter) NotifyOrderQueued(ctx context.Context, chatID int64) error {
	_, err := r.messenger.SendText(ctx, chatID,
		"✅ <b>Buyurtmangiz qabul qilindi.</b>\n⏳ <i>Tez orada sizga xabar beramiz...</i>")
	return err
}

// NotifyOrderCancelled tells the rider the order was dropped.
func (r *NotificationRouter) NotifyOrderCancelled(ctx context.Context, chatID int64) error {
	_, err := r.messenger.SendText(ctx, chatID,
		"❌ <b>Buyurtmangiz rad etildi.</b>\n🔄 <i>Yangi buyurtma berishingiz mumkin.</i>")
	return err
}

// NotifyOrderInFlight tells the rider an open order already exists.
func (r *NotificationRouter) NotifyOrderInFlight(ctx context.Context, chatID int64) error {
	_, err := r.messenger.SendText(ctx, chatID,
		"⚠️ <b>Sizda yakunlanmagan buyurtma mavjud.</b>\n<i>Avval uni yakunlang yoki bekor qiling.</i>")
	return err
}

// NotifyGroupActivated confirms a fresh channel activation.
func (r *NotificationRouter) NotifyGroupActivated(ctx context.Context, group *domain.GroupChannel) error {
	body := fmt.Sprintf(
		"✅ <b>Guruh muvaffaqiyatli aktivatsiya qilindi!</b>\n\n"+
			"📌 <b>Guruh nomi:</b> <i>%s</i>\n"+
			"🆔 <b>Guruh ID:</b> <code>%d</code>",
		group.Title, group.ChatID,
	)
	_, err := r.messenger.SendText(ctx, group.ChatID, body)
	return err
}

// NotifyGroupAlreadyActive reports a repeated activation.
func (r *NotificationRouter) NotifyGroupAlreadyActive(ctx context.Context, chatID int64, group *domain.GroupChannel) error {
	body := fmt.Sprintf(
		"⚠️ <b>Guruh allaqachon biriktirilgan!</b>\n\n"+
			"📌 <b>Guruh nomi:</b> <i>%s</i>\n"+
			"🆔 <b>Guruh ID:</b> <code>%d</code>",
		group.Title, group.ChatID,
	)
	_, err := r.messenger.SendText(ctx, chatID, body)
	return err
}

// RouteClaim delivers the arbitration outcome. The winner's details go to
// the rider and the driver; every dispatch channel gets the assigned notice.
// A losing or unregistered claimer without a private registration gets the
// notice in the originating channel instead of a direct message.
func (r *NotificationRouter) RouteClaim(ctx context.Context, outcome *ClaimOutcome, originChatID int64, claimerName string) error {
	switch outcome.Result {
	case ClaimDriverUnregistered:
		body := fmt.Sprintf(
			"❗️ %s, <b>buyurtmani qabul qilishingiz uchun avval botdan ro'yxatdan o'ting!</b>",
			claimerName,
		)
		_, err := r.messenger.SendText(ctx, originChatID, body)
		return err

	case ClaimLostAlreadyAssigned:
		body := "⚠️ <b>Bu buyurtma allaqachon qabul qilingan.</b>"
		if r.reachable(ctx, outcome.Driver.ChatID) {
			_, err := r.messenger.SendText(ctx, outcome.Driver.ChatID, body)
			return err
		}
		mention := mentionLink(outcome.Driver.ChatID, outcome.Driver.FullName)
		_, err := r.messenger.SendText(ctx, originChatID, mention+", "+body)
		return err

	case ClaimWon:
		return r.routeAssignment(ctx, outcome, originChatID)
	}
	return nil
}

// routeAssignment fans the assignment notices out. Each leg is delivered
// independently; one failing leg does not block the others.
func (r *NotificationRouter) routeAssignment(ctx context.Context, outcome *ClaimOutcome, originChatID int64) error {
	order, driver := outcome.Order, outcome.Driver

	rider, err := r.riders.GetByChatID(ctx, order.RiderChatID)
	if err != nil {
		return err
	}

	if _, err := r.messenger.SendText(ctx, rider.ChatID, formatDriverAssigned(order, driver)); err != nil {
		r.log.Error("rider assignment notice failed", "order_id", order.ID, "error", err)
	}

	driverNotice := formatOrderNotice(order, rider)
	if r.reachable(ctx, driver.ChatID) {
		if _, err := r.messenger.SendText(ctx, driver.ChatID, driverNotice); err != nil {
			r.log.Error("driver assignment notice failed", "order_id", order.ID, "error", err)
		}
	} else {
		// No private chat with this driver; the details go to the channel
		// the claim came from.
		body := mentionLink(driver.ChatID, driver.FullName) + ", buyurtma ma'lumotlari:\n\n" + driverNotice
		if _, err := r.messenger.SendText(ctx, originChatID, body); err != nil {
			r.log.Error("channel assignment notice failed", "order_id", order.ID, "error", err)
		}
	}

	groups, err := r.groups.GetAll(ctx)
	if err != nil {
		return err
	}
	groupNotice := formatGroupAssigned(order, driver)
	for _, group := range groups {
		if _, err := r.messenger.SendText(ctx, group.ChatID, groupNotice); err != nil {
			r.log.Error("group assignment notice failed",
				"order_id", order.ID, "group_chat_id", group.ChatID, "error", err)
		}
	}
	return nil
}

// reachable reports whether the chat has a private registration with the
// bot, meaning a direct message can be delivered.
func (r *NotificationRouter) reachable(ctx context.Context, chatID int64) bool {
	_, err := r.riders.GetByChatID(ctx, chatID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.log.Error("rider lookup failed", "chat_id", chatID, "error", err)
		}
		return false
	}
	return true
}

// ── formatting ──

func formatOrderProgress(order *domain.Order) string {
	direction := "------------"
	if order.Direction.Valid() {
		direction = order.Direction.Label()
	}
	partySize := "-------------"
	if order.PartySize > 0 {
		partySize = fmt.Sprintf("%d", order.PartySize)
	}
	pickup := "-------------------"
	if order.PickupLink != "" {
		pickup = fmt.Sprintf("<a href='%s'>Google Maps'da ko'rish</a>", order.PickupLink)
	}
	return fmt.Sprintf(
		"<b>Buyurtma ma'lumotlari:</b>\n\n"+
			"📍 <b>Yo'nalishingiz:</b> %s\n"+
			"👥 <b>Necha kishi:</b> %s\n"+
			"📍 <b>Ketish joyi:</b> %s",
		direction, partySize, pickup,
	)
}

func formatOrderNotice(order *domain.Order, rider *domain.Rider) string {
	notice := fmt.Sprintf(
		"<b>%s-raqamli buyurtma:</b>\n\n"+
			"👤 <b>F.I.O:</b> %s\n"+
			"📱 <b>Telefon raqami:</b> %s\n"+
			"📍 <b>Yo'nalish:</b> <i>%s</i>\n"+
			"👥 <b>Yo'lovchilar soni:</b> <i>%d</i>\n"+
			"🕔 <b>Ketish vaqti:</b> <i>%s</i>\n"+
			"📍 <b>Ketish joyi:</b> <i><a href='%s'>Google Maps'da ko'rish</a></i>",
		shortID(order.ID),
		mentionLink(rider.ChatID, rider.FullName),
		rider.Phone,
		order.Direction.Label(),
		order.PartySize,
		order.DepartureTime,
		order.PickupLink,
	)
	if order.Description != "" {
		notice += fmt.Sprintf("\n💬 <b>Izoh:</b> <i>%s</i>", order.Description)
	}
	return notice
}

func formatDriverAssigned(order *domain.Order, driver *domain.Driver) string {
	return fmt.Sprintf(
		"<b>%s-buyurtmangiz qabul qilindi</b>\n\n"+
			"<b>🚗 Haydovchi ma'lumotlari:</b>\n"+
			"<b>👤 F.I.O:</b> %s\n"+
			"<b>📞 Telefon raqami:</b> %s\n"+
			"<b>🚙 Mashina:</b> %s",
		shortID(order.ID),
		mentionLink(driver.ChatID, driver.FullName),
		driver.Phone,
		driver.CarInfo,
	)
}

func formatGroupAssigned(order *domain.Order, driver *domain.Driver) string {
	return fmt.Sprintf(
		"<b>%s-raqamli buyurtma qabul qilindi ✅</b>\n\n<b>Haydovchi:</b> %s",
		shortID(order.ID),
		driver.FullName,
	)
}

func mentionLink(chatID int64, name string) string {
	return fmt.Sprintf("<a href=\"tg://user?id=%d\">%s</a>", chatID, name)
}

// shortID trims a UUID to its first group for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
