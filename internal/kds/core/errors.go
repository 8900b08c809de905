package core

import "errors"

// Store errors.
var (
	// ErrNotFound is returned when an order id does not exist.
	ErrNotFound = errors.New("order not found")

	// ErrDuplicateID means two creates minted the same id. It is an invariant
	// violation, never a recoverable condition.
	ErrDuplicateID = errors.New("duplicate order id")
)

// Command validation errors.
var (
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrInvalidCommand    = errors.New("invalid command")
)

// Frame acquisition errors. These never reach a client.
var (
	// ErrNoFrame means neither a buffered frame nor the fallback image is available.
	ErrNoFrame = errors.New("no frame available")

	// ErrSourceUnavailable means a frame source could not produce a frame right now.
	ErrSourceUnavailable = errors.New("frame source unavailable")

	// ErrInvalidFrame means a frame was produced but rejected as black or empty.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrSourceExhausted means every tier of a fallback chain failed.
	ErrSourceExhausted = errors.New("all frame sources exhausted")
)
