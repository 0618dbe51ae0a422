package telegram

import (
	"strings"

	"taxibot/internal/gateway"
)

// Update is a Telegram Bot API update as delivered to the webhook.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

// Message is an inbound Telegram message.
type Message struct {
	MessageID int64     `json:"message_id"`
	From      *User     `json:"from"`
	Chat      Chat      `json:"chat"`
	Text      string    `json:"text"`
	Contact   *Contact  `json:"contact"`
	Location  *Location `json:"location"`
}

// Chat identifies the chat a message belongs to.
type Chat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"` // private, group, supergroup, channel
	Title     string `json:"title"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// User is a Telegram account.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Contact is a shared phone contact.
type Contact struct {
	PhoneNumber string `json:"phone_number"`
	UserID      int64  `json:"user_id"`
}

// Location is a shared geographic position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CallbackQuery is an inline button press.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Data    string   `json:"data"`
	Message *Message `json:"message"`
}

// departurePrefix is the fixed prefix the departure-time prompt asks riders
// to include. It is stripped here so the workflow stores the time verbatim.
const departurePrefix = "Vaqt:"

// DecodeEvent converts a raw update into the transport-neutral event model.
// Returns false for update shapes this service does not handle.
func DecodeEvent(u Update) (gateway.Event, bool) {
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		if cq.Message == nil {
			return gateway.Event{}, false
		}
		return gateway.Event{
			Kind:       gateway.EventAction,
			ChatID:     cq.Message.Chat.ID,
			SenderID:   cq.From.ID,
			SenderName: displayName(cq.From.FirstName, cq.From.LastName),
			ChatType:   chatType(cq.Message.Chat.Type),
			ChatTitle:  cq.Message.Chat.Title,
			MessageID:  cq.Message.MessageID,
			Action:     gateway.ParseAction(cq.Data),
			ActionID:   cq.ID,
		}, true

	case u.Message != nil:
		m := u.Message
		ev := gateway.Event{
			ChatID:    m.Chat.ID,
			ChatType:  chatType(m.Chat.Type),
			ChatTitle: m.Chat.Title,
			MessageID: m.MessageID,
		}
		if m.From != nil {
			ev.SenderID = m.From.ID
			ev.SenderName = displayName(m.From.FirstName, m.From.LastName)
		} else {
			ev.SenderID = m.Chat.ID
			ev.SenderName = displayName(m.Chat.FirstName, m.Chat.LastName)
		}

		switch {
		case m.Contact != nil:
			ev.Kind = gateway.EventContact
			ev.Phone = m.Contact.PhoneNumber
		case m.Location != nil:
			ev.Kind = gateway.EventLocation
			ev.Latitude = m.Location.Latitude
			ev.Longitude = m.Location.Longitude
		case m.Text != "":
			ev.Kind = gateway.EventText
			ev.Text = strings.TrimSpace(strings.TrimPrefix(m.Text, departurePrefix))
		default:
			return gateway.Event{}, false
		}
		return ev, true
	}
	return gateway.Event{}, false
}

func chatType(t string) gateway.ChatType {
	if t == "private" {
		return gateway.ChatTypePrivate
	}
	return gateway.ChatTypeGroup
}

func displayName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
