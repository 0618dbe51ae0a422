package gateway

import (
	"fmt"
	"strconv"
	"strings"

	"taxibot/internal/domain"
)

// ActionKind is the closed set of recognized button actions. Unrecognized
// payloads decode to ActionUnknown and are dropped by the dispatcher.
type ActionKind string

const (
	ActionUnknown         ActionKind = "UNKNOWN"
	ActionNewOrder        ActionKind = "NEW_ORDER"
	ActionSelectDirection ActionKind = "SELECT_DIRECTION"
	ActionChoosePartySize ActionKind = "CHOOSE_PARTY_SIZE"
	ActionConfirm         ActionKind = "CONFIRM"
	ActionClaim           ActionKind = "CLAIM"
)

// Action is a tagged variant over button payloads. Exactly the fields for
// the given Kind are meaningful.
type Action struct {
	Kind      ActionKind
	Direction domain.Direction // ActionSelectDirection
	PartySize int              // ActionChoosePartySize
	Accepted  bool             // ActionConfirm
	OrderID   string           // ActionClaim
}

// Wire prefixes for encoded action payloads.
const (
	newOrderData    = "order:new"
	directionPrefix = "direction:"
	seatsPrefix     = "seats:"
	confirmPrefix   = "confirm:"
	claimPrefix     = "claim:"
)

// NewOrderData encodes the start-order action payload.
func NewOrderData() string { return newOrderData }

// DirectionData encodes a direction selection payload.
func DirectionData(d domain.Direction) string { return directionPrefix + d.Code() }

// PartySizeData encodes a seat count payload.
func PartySizeData(n int) string { return fmt.Sprintf("%s%d", seatsPrefix, n) }

// ConfirmData encodes a confirmation choice payload.
func ConfirmData(accepted bool) string {
	if accepted {
		return confirmPrefix + "yes"
	}
	return confirmPrefix + "no"
}

// ClaimData encodes a claim payload carrying the explicit order ID, so the
// arbiter never has to parse it out of display text.
func ClaimData(orderID string) string { return claimPrefix + orderID }

// ParseAction decodes a button payload into its typed Action. Anything that
// does not match the closed set comes back as ActionUnknown.
func ParseAction(data string) Action {
	switch {
	case data == newOrderData:
		return Action{Kind: ActionNewOrder}

	case strings.HasPrefix(data, directionPrefix):
		d, ok := domain.ParseDirection(strings.TrimPrefix(data, directionPrefix))
		if !ok {
			return Action{Kind: ActionUnknown}
		}
		return Action{Kind: ActionSelectDirection, Direction: d}

	case strings.HasPrefix(data, seatsPrefix):
		n, err := strconv.Atoi(strings.TrimPrefix(data, seatsPrefix))
		if err != nil {
			return Action{Kind: ActionUnknown}
		}
		return Action{Kind: ActionChoosePartySize, PartySize: n}

	case strings.HasPrefix(data, confirmPrefix):
		switch strings.TrimPrefix(data, confirmPrefix) {
		case "yes":
			return Action{Kind: ActionConfirm, Accepted: true}
		case "no":
			return Action{Kind: ActionConfirm, Accepted: false}
		}
		return Action{Kind: ActionUnknown}

	case strings.HasPrefix(data, claimPrefix):
		orderID := strings.TrimPrefix(data, claimPrefix)
		if orderID == "" {
			return Action{Kind: ActionUnknown}
		}
		return Action{Kind: ActionClaim, OrderID: orderID}
	}
	return Action{Kind: ActionUnknown}
}
