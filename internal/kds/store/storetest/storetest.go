// Package storetest holds the behaviour every core.OrderStore must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
)

// Factory returns an empty store. The store is closed by the suite.
type Factory func(t *testing.T) core.OrderStore

// NewOrder builds a valid order for sequence seq.
func NewOrder(seq int) *model.Order {
	return &model.Order{
		ID:              model.FormatID(seq),
		Table:           seq,
		StartedAt:       "12:30",
		Status:          model.StatusNew,
		InitialDuration: model.DefaultInitialDuration,
		Image:           "data:image/png;base64,AAAA",
		CreatedAt:       time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC),
	}
}

// Run executes the shared suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s core.OrderStore)
	}{
		{"CreateGetList", testCreateGetList},
		{"DuplicateID", testDuplicateID},
		{"UpdateAndNotFound", testUpdate},
		{"DeleteIsFinal", testDelete},
		{"LastSequenceSurvivesDelete", testLastSequence},
		{"ReturnsCopies", testReturnsCopies},
		{"ConcurrentCreates", testConcurrentCreates},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			tc.fn(t, s)
		})
	}
}

func testCreateGetList(t *testing.T, s core.OrderStore) {
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Create(ctx, NewOrder(i)))
	}

	got, err := s.Get(ctx, "KDS-002")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Table)
	assert.Equal(t, model.StatusNew, got.Status)
	assert.Equal(t, "data:image/png;base64,AAAA", got.Image)
	assert.True(t, got.CreatedAt.Equal(NewOrder(2).CreatedAt))
	assert.Nil(t, got.CompletedAt)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, o := range all {
		assert.Equal(t, model.FormatID(i+1), o.ID, "insertion order")
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func testDuplicateID(t *testing.T, s core.OrderStore) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, NewOrder(1)))
	assert.ErrorIs(t, s.Create(ctx, NewOrder(1)), core.ErrDuplicateID)

	n, _ := s.Count(ctx)
	assert.Equal(t, 1, n)
}

func testUpdate(t *testing.T, s core.OrderStore) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, NewOrder(1)))

	done := time.Date(2026, 10, 19, 12, 45, 0, 0, time.UTC)
	updated, err := s.Update(ctx, "KDS-001", func(o *model.Order) {
		o.Status = model.StatusReady
		o.InitialDuration = 600
		o.CompletedAt = &done
		o.ID = "KDS-999"
	})
	require.NoError(t, err)
	assert.Equal(t, "KDS-001", updated.ID, "id is immutable")
	assert.Equal(t, model.StatusReady, updated.Status)

	got, err := s.Get(ctx, "KDS-001")
	require.NoError(t, err)
	assert.Equal(t, 600, got.InitialDuration)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(done))

	_, err = s.Update(ctx, "KDS-404", func(o *model.Order) {})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.Get(ctx, "KDS-404")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testDelete(t *testing.T, s core.OrderStore) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, NewOrder(1)))
	require.NoError(t, s.Create(ctx, NewOrder(2)))

	require.NoError(t, s.Delete(ctx, "KDS-001"))
	_, err := s.Get(ctx, "KDS-001")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "KDS-001"), core.ErrNotFound)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "KDS-002", all[0].ID)
}

func testLastSequence(t *testing.T, s core.OrderStore) {
	ctx := context.Background()
	seq, err := s.LastSequence(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Create(ctx, NewOrder(i)))
	}
	require.NoError(t, s.Delete(ctx, "KDS-003"))
	require.NoError(t, s.Delete(ctx, "KDS-001"))

	seq, err = s.LastSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, seq)

	n, _ := s.Count(ctx)
	assert.Equal(t, 1, n)
}

func testReturnsCopies(t *testing.T, s core.OrderStore) {
	ctx := context.Background()
	o := NewOrder(1)
	require.NoError(t, s.Create(ctx, o))
	o.Status = model.StatusReady

	got, _ := s.Get(ctx, "KDS-001")
	assert.Equal(t, model.StatusNew, got.Status)

	got.Status = model.StatusCooking
	again, _ := s.Get(ctx, "KDS-001")
	assert.Equal(t, model.StatusNew, again.Status)
}

func testConcurrentCreates(t *testing.T, s core.OrderStore) {
	ctx := context.Background()
	const n = 20

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			if err := s.Create(ctx, NewOrder(seq)); err != nil {
				errs <- fmt.Errorf("create %d: %w", seq, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, count)

	seq, err := s.LastSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, seq)
}
