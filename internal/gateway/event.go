package gateway

// EventKind is the closed set of inbound event kinds.
type EventKind string

const (
	EventText     EventKind = "TEXT"
	EventContact  EventKind = "CONTACT"
	EventLocation EventKind = "LOCATION"
	EventAction   EventKind = "ACTION"
)

// Event is one inbound occurrence from the chat transport, already decoded
// into transport-neutral form.
type Event struct {
	Kind EventKind

	// ChatID is the chat the event occurred in; SenderID is the user who
	// produced it. They differ for button presses inside group chats.
	ChatID     int64
	SenderID   int64
	SenderName string
	ChatType   ChatType
	ChatTitle  string
	MessageID  int64

	// Text is set for EventText.
	Text string

	// Phone is set for EventContact.
	Phone string

	// Latitude and Longitude are set for EventLocation.
	Latitude  float64
	Longitude float64

	// Action and ActionID are set for EventAction.
	Action   Action
	ActionID string
}
