package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every KDS metric. It is served on /metrics together with
// the Go runtime and process collectors.
var Registry = prometheus.NewRegistry()

var (
	// OrdersCapturedTotal counts orders that were persisted and broadcast.
	OrdersCapturedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kds_orders_captured_total",
			Help: "Total number of orders created from a captured ticket image.",
		},
		[]string{"origin"}, // origin: websocket/timer/console/signal/mqtt/http
	)

	// CaptureAbortedTotal counts captures that ended without an order.
	CaptureAbortedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kds_capture_aborted_total",
			Help: "Total number of captures aborted before an order was created.",
		},
		[]string{"reason"}, // reason: no_frame/encode/persist/duplicate/canceled
	)

	CaptureDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kds_capture_duration_seconds",
			Help:    "Latency from capture trigger to broadcast.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// FramesRejectedTotal counts frames discarded by the refresh loop.
	FramesRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kds_frames_rejected_total",
			Help: "Total number of frames discarded by the refresh loop.",
		},
		[]string{"reason"}, // reason: black/invalid
	)

	FrameSourceErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kds_frame_source_errors_total",
			Help: "Total number of failed frame reads.",
		},
	)

	// FrameSourceTier reports which source tier currently feeds the buffer (0 = primary).
	FrameSourceTier = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kds_frame_source_tier",
			Help: "Index of the frame source tier currently in use (0=primary, -1=none).",
		},
	)

	ConnectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kds_connected_clients",
			Help: "Number of kitchen stations currently connected.",
		},
	)

	EventsBroadcastTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kds_events_broadcast_total",
			Help: "Total number of events fanned out to stations.",
		},
		[]string{"event"},
	)

	// CommandsTotal counts inbound station commands by outcome.
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kds_commands_total",
			Help: "Total number of station commands handled.",
		},
		[]string{"command", "result"}, // result: ok/rejected/ignored
	)

	ClientsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kds_clients_dropped_total",
			Help: "Total number of stations disconnected because they could not keep up.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		OrdersCapturedTotal,
		CaptureAbortedTotal,
		CaptureDuration,
		FramesRejectedTotal,
		FrameSourceErrorsTotal,
		FrameSourceTier,
		ConnectedClients,
		EventsBroadcastTotal,
		CommandsTotal,
		ClientsDroppedTotal,
	)
}
