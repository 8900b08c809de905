package model

import "time"

// CommandType names an inbound station command.
type CommandType string

const (
	CommandUpdateStatus CommandType = "update_order_status"
	CommandRemoveOrder  CommandType = "remove_order"
	CommandCapture      CommandType = "capture_order"
)

// UpdateStatusCommand is the payload of update_order_status.
type UpdateStatusCommand struct {
	OrderID string `json:"order_id"`
	Status  Status `json:"status"`

	// InitialDuration, in seconds, replaces the cooking budget when set.
	InitialDuration *int `json:"initial_duration,omitempty"`
}

// RemoveOrderCommand is the payload of remove_order.
type RemoveOrderCommand struct {
	ID string `json:"id"`
}

// Mutation is a field-level change applied by OrderStore.Update.
type Mutation func(o *Order)

// DailySummary aggregates the orders created on one calendar day.
type DailySummary struct {
	Date         string         `json:"date"`
	TotalOrders  int            `json:"total_orders"`
	StatusCounts map[Status]int `json:"status_counts"`

	// AvgCompletionSeconds averages CompletedAt-CreatedAt over READY orders. Zero when none.
	AvgCompletionSeconds float64 `json:"avg_completion_time"`

	Orders []*Order `json:"orders"`
}

// CaptureOrigin labels what requested a capture.
type CaptureOrigin string

const (
	OriginWebSocket CaptureOrigin = "websocket"
	OriginTimer     CaptureOrigin = "timer"
	OriginConsole   CaptureOrigin = "console"
	OriginSignal    CaptureOrigin = "signal"
	OriginMQTT      CaptureOrigin = "mqtt"
	OriginHTTP      CaptureOrigin = "http"
)

// CaptureResult describes a finished capture. Order is nil when the capture was aborted.
type CaptureResult struct {
	Order    *Order
	Origin   CaptureOrigin
	Fallback bool
	Duration time.Duration
}
