package ws

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/service"
	"github.com/kdsgrill/kdsgrill/internal/kds/frame"
	"github.com/kdsgrill/kdsgrill/internal/kds/server/command"
	"github.com/kdsgrill/kdsgrill/internal/kds/store/memory"
	"github.com/kdsgrill/kdsgrill/pkg/options"
)

type noFallback struct{}

func (noFallback) Frame() (*frame.Frame, error) { return nil, core.ErrNoFrame }

type fixture struct {
	hub    *Hub
	svc    *service.Service
	store  *memory.Store
	buffer *frame.Buffer
	server *httptest.Server
}

func newFixture(t *testing.T, opts *options.BroadcastOptions) *fixture {
	t.Helper()
	if opts == nil {
		opts = options.NewBroadcastOptions()
	}

	store := memory.New()
	buffer := frame.NewBuffer(1000)
	hub := NewHub(opts, store)
	svc := service.New(store, hub, buffer, noFallback{}, service.WithLocation(time.UTC))
	hub.SetDispatcher(command.NewDispatcher(svc))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Start(ctx) }()

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		srv.Close()
		svc.Wait()
	})

	return &fixture{hub: hub, svc: svc, store: store, buffer: buffer, server: srv}
}

func (fx *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(fx.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (fx *fixture) waitClients(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return fx.hub.Clients() == n }, 2*time.Second, 5*time.Millisecond)
}

func (fx *fixture) publishFrame() {
	img := image.NewRGBA(image.Rect(0, 0, 42, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 42; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	_ = fx.buffer.Publish(frame.New(img, time.Now()))
}

func (fx *fixture) seed(t *testing.T, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, fx.store.Create(context.Background(), &model.Order{
			ID: model.FormatID(i), Table: i, StartedAt: "12:00", Status: model.StatusNew,
			InitialDuration: 900, Image: "data:image/png;base64,AA",
		}))
	}
}

type received struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readEvent(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev received
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func readOrder(t *testing.T, conn *websocket.Conn, event model.EventType) model.Order {
	t.Helper()
	ev := readEvent(t, conn)
	require.Equal(t, string(event), ev.Event)
	var o model.Order
	require.NoError(t, json.Unmarshal(ev.Data, &o))
	return o
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

func TestReplayOnConnect(t *testing.T) {
	fx := newFixture(t, nil)
	fx.seed(t, 3)

	conn := fx.dial(t)
	for i := 1; i <= 3; i++ {
		o := readOrder(t, conn, model.EventNewOrder)
		assert.Equal(t, model.FormatID(i), o.ID)
		assert.Equal(t, i, o.Table)
	}
	expectSilence(t, conn)
}

func TestCaptureIsBroadcastToEveryStation(t *testing.T) {
	fx := newFixture(t, nil)
	a, b := fx.dial(t), fx.dial(t)
	fx.waitClients(t, 2)

	fx.publishFrame()
	res, err := fx.svc.Capture(context.Background(), model.OriginTimer)
	require.NoError(t, err)
	require.NotNil(t, res.Order)

	for _, conn := range []*websocket.Conn{a, b} {
		o := readOrder(t, conn, model.EventNewOrder)
		assert.Equal(t, res.Order.ID, o.ID)
		assert.True(t, strings.HasPrefix(o.Image, frame.DataURLPrefix))
	}
}

func TestStatusCommandFromStation(t *testing.T) {
	fx := newFixture(t, nil)
	fx.seed(t, 1)

	a := fx.dial(t)
	readOrder(t, a, model.EventNewOrder)
	b := fx.dial(t)
	readOrder(t, b, model.EventNewOrder)
	fx.waitClients(t, 2)

	send(t, a, "update_order_status", map[string]any{"order_id": "KDS-001", "status": "COOKING", "initial_duration": 600})

	for _, conn := range []*websocket.Conn{a, b} {
		o := readOrder(t, conn, model.EventOrderUpdated)
		assert.Equal(t, model.StatusCooking, o.Status)
		assert.Equal(t, 600, o.InitialDuration)
	}

	stored, err := fx.store.Get(context.Background(), "KDS-001")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCooking, stored.Status)

	send(t, b, "remove_order", map[string]any{"id": "KDS-001"})
	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		assert.Equal(t, "order_removed", ev.Event)
		assert.JSONEq(t, `{"id":"KDS-001"}`, string(ev.Data))
	}
}

func TestRejectionGoesOnlyToSender(t *testing.T) {
	fx := newFixture(t, nil)
	a, b := fx.dial(t), fx.dial(t)
	fx.waitClients(t, 2)

	send(t, a, "update_order_status", map[string]any{"order_id": "KDS-404", "status": "READY"})

	ev := readEvent(t, a)
	assert.Equal(t, "command_rejected", ev.Event)
	var rejected model.CommandRejected
	require.NoError(t, json.Unmarshal(ev.Data, &rejected))
	assert.Equal(t, "update_order_status", rejected.Command)

	expectSilence(t, b)
}

func TestMalformedFramesAreIgnored(t *testing.T) {
	fx := newFixture(t, nil)
	fx.seed(t, 1)
	conn := fx.dial(t)
	readOrder(t, conn, model.EventNewOrder)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	send(t, conn, "update_order_status", "wrong shape")
	send(t, conn, "dance", nil)

	// Frames are handled in order, so the next event proves the junk produced none.
	send(t, conn, "update_order_status", map[string]any{"order_id": "KDS-001", "status": "READY"})
	o := readOrder(t, conn, model.EventOrderUpdated)
	assert.Equal(t, model.StatusReady, o.Status)
}

func TestCaptureCommandTriggersPipeline(t *testing.T) {
	fx := newFixture(t, nil)
	fx.publishFrame()
	conn := fx.dial(t)
	fx.waitClients(t, 1)

	send(t, conn, "capture_order", nil)

	o := readOrder(t, conn, model.EventNewOrder)
	assert.Equal(t, "KDS-001", o.ID)
	assert.Equal(t, model.StatusNew, o.Status)
}

func TestSlowStationIsDisconnected(t *testing.T) {
	hub := NewHub(options.NewBroadcastOptions(), memory.New())
	slow := &client{id: "slow", hub: hub, send: make(chan []byte, 1)}
	hub.clients[slow] = struct{}{}

	require.NoError(t, hub.Notify(context.Background(), model.OrderRemovedEvent("a")))
	assert.Equal(t, 1, hub.Clients())

	require.NoError(t, hub.Notify(context.Background(), model.OrderRemovedEvent("b")))
	assert.Equal(t, 0, hub.Clients())

	// The queued event is still delivered before the close.
	msg, ok := <-slow.send
	assert.True(t, ok)
	assert.Contains(t, string(msg), `"a"`)
	_, ok = <-slow.send
	assert.False(t, ok)
}

func TestOriginCheck(t *testing.T) {
	opts := options.NewBroadcastOptions()
	opts.AllowedOrigins = []string{"http://kitchen.local"}
	fx := newFixture(t, opts)
	url := "ws" + strings.TrimPrefix(fx.server.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://kitchen.local"}})
	require.NoError(t, err)
	_ = conn.Close()
}

func TestDisconnectUnregisters(t *testing.T) {
	fx := newFixture(t, nil)
	conn := fx.dial(t)
	fx.waitClients(t, 1)

	require.NoError(t, conn.Close())
	fx.waitClients(t, 0)
}
