package model

import (
	"fmt"
	"time"
)

// Status is the kitchen progress of an order.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusCooking    Status = "COOKING"
	StatusAlmostDone Status = "ALMOST_DONE"
	StatusReady      Status = "READY"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusNew, StatusCooking, StatusAlmostDone, StatusReady}

// IsValid reports whether s is one of the defined statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusCooking, StatusAlmostDone, StatusReady:
		return true
	}
	return false
}

const (
	// IDPrefix is prepended to the zero-padded sequence number.
	IDPrefix = "KDS-"

	// StartedAtLayout formats Order.StartedAt.
	StartedAtLayout = "15:04"

	// DefaultInitialDuration is the cooking budget, in seconds, of new and requeued orders.
	DefaultInitialDuration = 900
)

// Order is a kitchen ticket.
//
// The JSON form is the client payload. CreatedAt and CompletedAt are kept for
// reports only and are never sent to stations.
type Order struct {
	ID              string `json:"id"`
	Table           int    `json:"table"`
	StartedAt       string `json:"startedAt"`
	Status          Status `json:"status"`
	InitialDuration int    `json:"initialDuration"`

	// Image is a data URL of the PNG snapshot. Never empty for a persisted order.
	Image string `json:"image"`

	CreatedAt   time.Time  `json:"-"`
	CompletedAt *time.Time `json:"-"`
}

// FormatID mints the id for sequence number seq, e.g. 3 -> "KDS-003".
func FormatID(seq int) string {
	return fmt.Sprintf("%s%03d", IDPrefix, seq)
}

// Clone returns a deep copy of o.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
