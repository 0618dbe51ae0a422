package domain

import (
	"fmt"
	"time"
)

// OrderStatus represents the current status of an order.
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "DRAFT"
	OrderStatusBroadcast OrderStatus = "BROADCAST"
	OrderStatusAssigned  OrderStatus = "ASSIGNED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusAssigned || s == OrderStatusCancelled
}

// Order is one ride request and its accumulated state. Direction and
// PickupLink are write-once; DriverChatID is write-once and only ever set
// through the repository's atomic claim.
type Order struct {
	ID            string
	RiderChatID   int64
	Direction     Direction
	PartySize     int
	DepartureTime string
	Description   string
	PickupLink    string
	DriverChatID  int64 // 0 means unassigned
	Assigned      bool
	Status        OrderStatus
	CreatedAt     time.Time
}

// MinPartySize and MaxPartySize bound the seat selection buttons.
const (
	MinPartySize = 1
	MaxPartySize = 4
)

// PickupLink builds the canonical map link for a shared location.
func PickupLink(lat, lng float64) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%.6f,%.6f", lat, lng)
}
