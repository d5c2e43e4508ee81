package resource

import "errors"

var (
	// ErrUnknownResource is returned when a message or API call names a
	// resource_id the Manager has no record of.
	ErrUnknownResource = errors.New("resource: unknown resource id")
	// ErrTooLarge is returned when Send is offered a payload past the
	// ~16 MB theoretical ceiling this protocol enforces.
	ErrTooLarge = errors.New("resource: payload exceeds size ceiling")
	// ErrNotTransferring is returned when a part or ack message arrives for
	// a Transfer that is not in a state expecting it.
	ErrNotTransferring = errors.New("resource: transfer not in progress")
	// ErrMalformed is returned when a wire message is too short or
	// otherwise structurally invalid.
	ErrMalformed = errors.New("resource: malformed message")
)
