package gateway

import "context"

// ChatType distinguishes private rider chats from dispatch group chats.
type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
)

// Button is an inline action button attached to an outbound message. Data is
// an encoded Action payload (see EncodeAction / ParseAction).
type Button struct {
	Label string
	Data  string
}

// Messenger is the outbound side of the chat transport. The core never talks
// to the wire directly; everything goes through this interface.
type Messenger interface {
	// SendText delivers a message, optionally with inline action buttons.
	// Returns the delivered message ID.
	SendText(ctx context.Context, chatID int64, body string, buttons ...Button) (int64, error)

	// SendContactRequest prompts the user to share their phone number.
	SendContactRequest(ctx context.Context, chatID int64, body string) (int64, error)

	// DeleteMessage removes a previously sent message.
	DeleteMessage(ctx context.Context, chatID int64, messageID int64) error

	// AnswerAction acknowledges a pressed button, optionally with a short
	// notice shown to the presser.
	AnswerAction(ctx context.Context, actionID string, text string) error
}
