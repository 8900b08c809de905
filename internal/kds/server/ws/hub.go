// Package ws is the kitchen-station broadcaster: it replays the order set to
// every new connection and fans lifecycle events out to all stations.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
	"github.com/kdsgrill/kdsgrill/internal/kds/server/command"
	"github.com/kdsgrill/kdsgrill/internal/pkg/metrics"
	"github.com/kdsgrill/kdsgrill/pkg/log"
	"github.com/kdsgrill/kdsgrill/pkg/options"
)

var _ core.EventNotifier = (*Hub)(nil)

// OrderLister supplies the replay snapshot.
type OrderLister interface {
	List(ctx context.Context) ([]*model.Order, error)
}

// Hub owns the set of connected stations. Registration, replay and event
// delivery all happen under mu, so a station that registers while an event is
// in flight sees the order either in its replay or live, never neither.
type Hub struct {
	opts       *options.BroadcastOptions
	orders     OrderLister
	dispatcher *command.Dispatcher
	upgrader   websocket.Upgrader
	logger     log.Logger

	// baseCtx outlives single connections so a capture_order survives its sender.
	baseCtx context.Context

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a hub that replays from orders. Inbound commands are
// dropped until SetDispatcher is called.
func NewHub(opts *options.BroadcastOptions, orders OrderLister) *Hub {
	h := &Hub{
		opts:    opts,
		orders:  orders,
		logger:  log.WithName("broadcaster"),
		baseCtx: context.Background(),
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// SetDispatcher wires inbound commands. The service that executes them also
// notifies this hub, so the two are connected after both exist.
func (h *Hub) SetDispatcher(d *command.Dispatcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dispatcher = d
}

// Start disconnects every station once ctx is done.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	h.baseCtx = ctx
	h.mu.Unlock()

	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.logger.Info("Broadcaster stopped")
	return nil
}

// Clients returns the number of connected stations.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Notify delivers event to every connected station without waiting for any
// of them. A station whose queue is full is disconnected; it will reconnect
// and replay.
func (h *Hub) Notify(_ context.Context, event *model.Event) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if !c.enqueue(msg) {
			h.logger.Warn("Station too slow, disconnecting", "client", c.id)
			metrics.ClientsDroppedTotal.Inc()
			h.removeLocked(c)
		}
	}
	metrics.EventsBroadcastTotal.WithLabelValues(string(event.Type)).Inc()
	return nil
}

// ServeHTTP upgrades the request and serves one station until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "reason", err.Error())
		return
	}

	c, err := h.register(r.Context(), conn)
	if err != nil {
		h.logger.Error(err, "Failed to register station", "remote", r.RemoteAddr)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "replay failed"))
		_ = conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
}

// register snapshots the order set and adds the station under one lock.
func (h *Hub) register(ctx context.Context, conn *websocket.Conn) (*client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	orders, err := h.orders.List(ctx)
	if err != nil {
		return nil, err
	}

	c := &client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, len(orders)+h.opts.SendBuffer),
	}
	for _, o := range orders {
		msg, err := json.Marshal(model.NewOrderEvent(o))
		if err != nil {
			return nil, fmt.Errorf("marshal replay of %s: %w", o.ID, err)
		}
		c.send <- msg
	}

	h.clients[c] = struct{}{}
	metrics.ConnectedClients.Inc()
	h.logger.Info("Station connected", "client", c.id, "remote", conn.RemoteAddr().String(), "replayed", len(orders))
	return c, nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.ConnectedClients.Dec()
	h.logger.Info("Station disconnected", "client", c.id)
}

// reply sends msg to c alone, if c is still connected.
func (h *Hub) reply(c *client, event *model.Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		h.logger.Error(err, "Failed to marshal reply", "event", string(event.Type))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	if !c.enqueue(msg) {
		metrics.ClientsDroppedTotal.Inc()
		h.removeLocked(c)
	}
}

func (h *Hub) commands() (context.Context, *command.Dispatcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.baseCtx, h.dispatcher
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(h.opts.AllowedOrigins, origin)
}
