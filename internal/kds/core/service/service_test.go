package service

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
	"github.com/kdsgrill/kdsgrill/internal/kds/frame"
	"github.com/kdsgrill/kdsgrill/internal/kds/store/memory"
)

var t0 = time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)

func solidFrame(c color.RGBA) *frame.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 42, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 42; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return frame.New(img, t0)
}

type fakeFallback struct {
	f   *frame.Frame
	err error
}

func (f *fakeFallback) Frame() (*frame.Frame, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.f.Clone(), nil
}

// recorder is an EventNotifier that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []*model.Event
}

func (r *recorder) Notify(_ context.Context, e *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) all() []*model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.Event(nil), r.events...)
}

// failingStore wraps a store and fails Create on demand.
type failingStore struct {
	core.OrderStore
	createErr error
}

func (s *failingStore) Create(ctx context.Context, o *model.Order) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.OrderStore.Create(ctx, o)
}

type fixture struct {
	svc      *Service
	store    core.OrderStore
	buffer   *frame.Buffer
	fallback *fakeFallback
	events   *recorder
	clock    *clocktesting.FakeClock
	halted   []error
}

func newFixture(t *testing.T, store core.OrderStore, opts ...Option) *fixture {
	t.Helper()
	fx := &fixture{
		store:    store,
		buffer:   frame.NewBuffer(1000),
		fallback: &fakeFallback{err: core.ErrNoFrame},
		events:   &recorder{},
		clock:    clocktesting.NewFakeClock(t0),
	}
	base := []Option{
		WithClock(fx.clock),
		WithLocation(time.UTC),
		WithHaltFunc(func(err error) { fx.halted = append(fx.halted, err) }),
	}
	fx.svc = New(store, fx.events, fx.buffer, fx.fallback, append(base, opts...)...)
	return fx
}

func seed(t *testing.T, s core.OrderStore, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, s.Create(context.Background(), &model.Order{
			ID: model.FormatID(i), Table: i, StartedAt: "12:00", Status: model.StatusNew,
			InitialDuration: 900, Image: "data:image/png;base64,AA", CreatedAt: t0,
		}))
	}
}

func TestCaptureWithBufferedFrame(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, memory.New())
	seed(t, fx.store, 2)
	require.NoError(t, fx.buffer.Publish(solidFrame(color.RGBA{R: 200, A: 255})))

	res, err := fx.svc.Capture(ctx, model.OriginWebSocket)
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.False(t, res.Fallback)

	o := res.Order
	assert.Equal(t, "KDS-003", o.ID)
	assert.Equal(t, 3, o.Table)
	assert.Equal(t, model.StatusNew, o.Status)
	assert.Equal(t, 900, o.InitialDuration)
	assert.Equal(t, "12:30", o.StartedAt)
	assert.True(t, strings.HasPrefix(o.Image, frame.DataURLPrefix))

	stored, err := fx.store.Get(ctx, "KDS-003")
	require.NoError(t, err)
	assert.Equal(t, o.Image, stored.Image)

	events := fx.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventNewOrder, events[0].Type)
	assert.Equal(t, stored, events[0].Data)
}

func TestCaptureFallsBackToStaticImage(t *testing.T) {
	fx := newFixture(t, memory.New())
	static := solidFrame(color.RGBA{G: 200, A: 255})
	fx.fallback.f, fx.fallback.err = static, nil

	res, err := fx.svc.Capture(context.Background(), model.OriginTimer)
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.True(t, res.Fallback)

	png, err := frame.EncodePNG(static)
	require.NoError(t, err)
	assert.Equal(t, frame.DataURL(png), res.Order.Image)
	assert.Equal(t, "KDS-001", res.Order.ID)
}

func TestCaptureAbortsSilentlyWithoutFrame(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, memory.New())

	res, err := fx.svc.Capture(ctx, model.OriginConsole)
	require.NoError(t, err)
	assert.Nil(t, res.Order)

	n, _ := fx.store.Count(ctx)
	assert.Zero(t, n)
	assert.Empty(t, fx.events.all())
}

func TestCapturePersistenceFailureIsNotBroadcast(t *testing.T) {
	store := &failingStore{OrderStore: memory.New(), createErr: errors.New("disk full")}
	fx := newFixture(t, store)
	require.NoError(t, fx.buffer.Publish(solidFrame(color.RGBA{R: 200, A: 255})))

	_, err := fx.svc.Capture(context.Background(), model.OriginTimer)
	require.Error(t, err)
	assert.Empty(t, fx.events.all())
	assert.Empty(t, fx.halted)
}

func TestCaptureDuplicateIDHalts(t *testing.T) {
	store := &failingStore{OrderStore: memory.New(), createErr: core.ErrDuplicateID}
	fx := newFixture(t, store)
	require.NoError(t, fx.buffer.Publish(solidFrame(color.RGBA{R: 200, A: 255})))

	_, err := fx.svc.Capture(context.Background(), model.OriginTimer)
	require.ErrorIs(t, err, core.ErrDuplicateID)
	require.Len(t, fx.halted, 1)
	assert.Empty(t, fx.events.all())
}

func TestConcurrentCapturesMintUniqueIDs(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, memory.New())
	require.NoError(t, fx.buffer.Publish(solidFrame(color.RGBA{R: 200, A: 255})))

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.svc.Capture(ctx, model.OriginWebSocket)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := fx.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, n)
	seen := map[string]bool{}
	for _, o := range all {
		assert.False(t, seen[o.ID], "duplicate %s", o.ID)
		seen[o.ID] = true
	}
	assert.Empty(t, fx.halted)

	// Events are emitted in sequence order.
	events := fx.events.all()
	for i, e := range events {
		assert.Equal(t, model.FormatID(i+1), e.Data.(*model.Order).ID)
	}
}

func TestSequenceDoesNotReuseDeletedIDs(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, memory.New())
	require.NoError(t, fx.buffer.Publish(solidFrame(color.RGBA{R: 200, A: 255})))

	for i := 0; i < 3; i++ {
		_, err := fx.svc.Capture(ctx, model.OriginTimer)
		require.NoError(t, err)
	}
	require.NoError(t, fx.svc.Remove(ctx, "KDS-002"))

	res, err := fx.svc.Capture(ctx, model.OriginTimer)
	require.NoError(t, err)
	assert.Equal(t, "KDS-004", res.Order.ID)
}

func TestTriggerQueuesBeyondCap(t *testing.T) {
	fx := newFixture(t, memory.New(), WithMaxConcurrentCaptures(1))
	require.NoError(t, fx.buffer.Publish(solidFrame(color.RGBA{R: 200, A: 255})))

	// Occupy the only slot; triggers must wait rather than drop.
	require.True(t, fx.svc.inflight.TryAcquire(1))
	for i := 0; i < 3; i++ {
		assert.True(t, fx.svc.Trigger(context.Background(), model.OriginConsole))
	}
	assert.Never(t, func() bool {
		n, _ := fx.store.Count(context.Background())
		return n > 0
	}, 50*time.Millisecond, 5*time.Millisecond)

	fx.svc.inflight.Release(1)
	fx.svc.Wait()

	n, err := fx.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, fx.events.all(), 3)
}

func TestTriggerCanceledWhileQueued(t *testing.T) {
	fx := newFixture(t, memory.New(), WithMaxConcurrentCaptures(1))
	require.NoError(t, fx.buffer.Publish(solidFrame(color.RGBA{R: 200, A: 255})))

	require.True(t, fx.svc.inflight.TryAcquire(1))
	ctx, cancel := context.WithCancel(context.Background())
	assert.True(t, fx.svc.Trigger(ctx, model.OriginSignal))
	cancel()
	fx.svc.Wait()
	fx.svc.inflight.Release(1)

	n, _ := fx.store.Count(context.Background())
	assert.Zero(t, n)
	assert.Empty(t, fx.events.all())

	assert.False(t, fx.svc.Trigger(ctx, model.OriginSignal), "done context")
}

// racingStore runs afterCreate once a Create has succeeded, before the
// caller regains control.
type racingStore struct {
	core.OrderStore
	afterCreate func(id string)
}

func (s *racingStore) Create(ctx context.Context, o *model.Order) error {
	if err := s.OrderStore.Create(ctx, o); err != nil {
		return err
	}
	if s.afterCreate != nil {
		s.afterCreate(o.ID)
	}
	return nil
}

func TestCommandDuringCaptureIsAnnouncedAfterNewOrder(t *testing.T) {
	tests := []struct {
		name    string
		command func(svc *Service, id string) error
		last    model.EventType
	}{
		{
			name: "remove",
			command: func(svc *Service, id string) error {
				return svc.Remove(context.Background(), id)
			},
			last: model.EventOrderRemoved,
		},
		{
			name: "update",
			command: func(svc *Service, id string) error {
				_, err := svc.UpdateStatus(context.Background(), &model.UpdateStatusCommand{OrderID: id, Status: model.StatusCooking})
				return err
			},
			last: model.EventOrderUpdated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &racingStore{OrderStore: memory.New()}
			fx := newFixture(t, store)
			require.NoError(t, fx.buffer.Publish(solidFrame(color.RGBA{B: 200, A: 255})))

			done := make(chan error, 1)
			store.afterCreate = func(id string) {
				started := make(chan struct{})
				go func() {
					close(started)
					done <- tt.command(fx.svc, id)
				}()
				<-started
				// Give the command every chance to slip in before new_order.
				time.Sleep(20 * time.Millisecond)
			}

			res, err := fx.svc.Capture(context.Background(), model.OriginWebSocket)
			require.NoError(t, err)
			require.NotNil(t, res.Order)
			require.NoError(t, <-done)

			events := fx.events.all()
			require.Len(t, events, 2)
			assert.Equal(t, model.EventNewOrder, events[0].Type)
			assert.Equal(t, tt.last, events[1].Type)

			if tt.last == model.EventOrderRemoved {
				_, err := fx.store.Get(context.Background(), res.Order.ID)
				assert.ErrorIs(t, err, core.ErrNotFound)
			}
		})
	}
}

func TestUpdateStatusIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, memory.New())
	seed(t, fx.store, 1)

	cmd := &model.UpdateStatusCommand{OrderID: "KDS-001", Status: model.StatusReady}
	first, err := fx.svc.UpdateStatus(ctx, cmd)
	require.NoError(t, err)
	require.NotNil(t, first.CompletedAt)

	fx.clock.Step(time.Minute)
	second, err := fx.svc.UpdateStatus(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	events := fx.events.all()
	require.Len(t, events, 2)
	assert.Equal(t, model.EventOrderUpdated, events[1].Type)
}

func TestUpdateStatusDuration(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, memory.New())
	seed(t, fx.store, 1)

	d := 300
	o, err := fx.svc.UpdateStatus(ctx, &model.UpdateStatusCommand{OrderID: "KDS-001", Status: model.StatusCooking, InitialDuration: &d})
	require.NoError(t, err)
	assert.Equal(t, 300, o.InitialDuration)
	assert.Equal(t, model.StatusCooking, o.Status)
}

func TestUpdateStatusRejections(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, memory.New())
	seed(t, fx.store, 1)

	_, err := fx.svc.UpdateStatus(ctx, &model.UpdateStatusCommand{OrderID: "KDS-404", Status: model.StatusReady})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = fx.svc.UpdateStatus(ctx, &model.UpdateStatusCommand{OrderID: "KDS-001", Status: "BURNT"})
	assert.ErrorIs(t, err, core.ErrInvalidStatus)

	_, err = fx.svc.UpdateStatus(ctx, &model.UpdateStatusCommand{Status: model.StatusReady})
	assert.ErrorIs(t, err, core.ErrInvalidCommand)

	assert.Empty(t, fx.events.all(), "rejected commands emit nothing")
}

func TestPermissivePolicyAcceptsAnyJump(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, memory.New())
	seed(t, fx.store, 1)

	_, err := fx.svc.UpdateStatus(ctx, &model.UpdateStatusCommand{OrderID: "KDS-001", Status: model.StatusReady})
	require.NoError(t, err)
	o, err := fx.svc.UpdateStatus(ctx, &model.UpdateStatusCommand{OrderID: "KDS-001", Status: model.StatusNew})
	require.NoError(t, err)
	assert.Nil(t, o.CompletedAt)
}

func TestStrictPolicy(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, memory.New(), WithStatusPolicy(StrictPolicy()))
	seed(t, fx.store, 1)

	_, err := fx.svc.UpdateStatus(ctx, &model.UpdateStatusCommand{OrderID: "KDS-001", Status: model.StatusReady})
	assert.ErrorIs(t, err, core.ErrIllegalTransition)

	for _, st := range []model.Status{model.StatusCooking, model.StatusAlmostDone, model.StatusReady, model.StatusReady, model.StatusCooking} {
		_, err := fx.svc.UpdateStatus(ctx, &model.UpdateStatusCommand{OrderID: "KDS-001", Status: st})
		require.NoError(t, err, "to %s", st)
	}

	p := StrictPolicy()
	assert.ErrorIs(t, p.Check(ctx, model.StatusCooking, model.StatusNew), core.ErrIllegalTransition)
	assert.ErrorIs(t, p.Check(ctx, model.StatusCooking, "RAW"), core.ErrInvalidStatus)
	assert.NoError(t, p.Check(ctx, model.StatusNew, model.StatusNew))
}

func TestRemoveIsFinal(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, memory.New())
	seed(t, fx.store, 2)

	require.NoError(t, fx.svc.Remove(ctx, "KDS-001"))
	_, err := fx.svc.Get(ctx, "KDS-001")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, fx.svc.Remove(ctx, "KDS-001"), core.ErrNotFound)

	_, err = fx.svc.UpdateStatus(ctx, &model.UpdateStatusCommand{OrderID: "KDS-001", Status: model.StatusCooking})
	assert.ErrorIs(t, err, core.ErrNotFound, "no resurrection")

	events := fx.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventOrderRemoved, events[0].Type)
	assert.Equal(t, &model.OrderRemoved{ID: "KDS-001"}, events[0].Data)
}

func TestRequeueResetsTimer(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, memory.New(), WithStatusPolicy(StrictPolicy()))
	seed(t, fx.store, 1)
	_, err := fx.store.Update(ctx, "KDS-001", func(o *model.Order) {
		o.Status = model.StatusReady
		o.InitialDuration = 120
		done := t0
		o.CompletedAt = &done
	})
	require.NoError(t, err)

	fx.clock.SetTime(t0.Add(95 * time.Minute))
	o, err := fx.svc.Requeue(ctx, "KDS-001")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCooking, o.Status)
	assert.Equal(t, 900, o.InitialDuration)
	assert.Equal(t, "14:05", o.StartedAt)
	assert.Nil(t, o.CompletedAt)

	events := fx.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventNewOrder, events[0].Type)

	_, err = fx.svc.Requeue(ctx, "KDS-404")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDailySummary(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, memory.New())
	store := fx.store

	mk := func(seq int, created time.Time, st model.Status, took time.Duration) {
		o := &model.Order{ID: model.FormatID(seq), Table: seq, Status: st, Image: "x", CreatedAt: created, InitialDuration: 900}
		if st == model.StatusReady {
			done := created.Add(took)
			o.CompletedAt = &done
		}
		require.NoError(t, store.Create(ctx, o))
	}
	mk(1, t0.Add(-24*time.Hour), model.StatusReady, time.Minute)
	mk(2, t0, model.StatusReady, 10*time.Minute)
	mk(3, t0.Add(time.Hour), model.StatusReady, 20*time.Minute)
	mk(4, t0.Add(2*time.Hour), model.StatusCooking, 0)

	sum, err := fx.svc.Today(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", sum.Date)
	assert.Equal(t, 3, sum.TotalOrders)
	assert.Equal(t, 2, sum.StatusCounts[model.StatusReady])
	assert.Equal(t, 1, sum.StatusCounts[model.StatusCooking])
	assert.Equal(t, 0, sum.StatusCounts[model.StatusNew])
	assert.InDelta(t, 900.0, sum.AvgCompletionSeconds, 0.001)
}

type fakeArchive struct {
	mu   sync.Mutex
	puts map[string][]byte
	at   map[string]time.Time
	err  error
}

func (a *fakeArchive) Put(_ context.Context, id string, at time.Time, png []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	if a.puts == nil {
		a.puts = map[string][]byte{}
		a.at = map[string]time.Time{}
	}
	a.puts[id] = png
	a.at[id] = at
	return nil
}

func TestCaptureArchivesSnapshot(t *testing.T) {
	archive := &fakeArchive{}
	fx := newFixture(t, memory.New(), WithArchive(archive))
	require.NoError(t, fx.buffer.Publish(solidFrame(color.RGBA{G: 200, A: 255})))

	res, err := fx.svc.Capture(context.Background(), model.OriginTimer)
	require.NoError(t, err)
	require.NotNil(t, res.Order)

	png, ok := archive.puts["KDS-001"]
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(string(png), "\x89PNG"))
	assert.Equal(t, res.Order.CreatedAt, archive.at["KDS-001"])
}

func TestCaptureArchiveFailureStillBroadcasts(t *testing.T) {
	archive := &fakeArchive{err: errors.New("bucket unreachable")}
	fx := newFixture(t, memory.New(), WithArchive(archive))
	require.NoError(t, fx.buffer.Publish(solidFrame(color.RGBA{G: 200, A: 255})))

	res, err := fx.svc.Capture(context.Background(), model.OriginTimer)
	require.NoError(t, err)
	require.NotNil(t, res.Order)

	events := fx.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventNewOrder, events[0].Type)
}
