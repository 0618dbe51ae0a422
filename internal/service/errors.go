package service

import "errors"

var (
	// ErrRiderNotRegistered is returned when an unregistered rider attempts
	// an order-initiating action.
	ErrRiderNotRegistered = errors.New("rider not registered")

	// ErrRegistrationIncomplete is returned when registration is missing a
	// display name or phone number.
	ErrRegistrationIncomplete = errors.New("registration requires name and phone")

	// ErrOrderInFlight is returned when a rider starts a new order while a
	// non-terminal one exists.
	ErrOrderInFlight = errors.New("rider already has an open order")

	// ErrWorkflowViolation is returned when an event does not fit the
	// rider's current workflow state. It signals a client-ordering anomaly
	// (duplicate tap, replayed message), never a server fault.
	ErrWorkflowViolation = errors.New("event out of workflow sequence")

	// ErrInvalidPartySize is returned for a seat count outside 1-4. Callers
	// re-prompt; nothing is mutated.
	ErrInvalidPartySize = errors.New("invalid party size")

	// ErrUnknownDirection is returned for a direction outside the closed
	// route set.
	ErrUnknownDirection = errors.New("unknown direction")
)
