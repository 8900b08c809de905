package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
)

type fakeService struct {
	updates  []*model.UpdateStatusCommand
	removed  []string
	triggers []model.CaptureOrigin
	err      error
}

func (f *fakeService) UpdateStatus(_ context.Context, cmd *model.UpdateStatusCommand) (*model.Order, error) {
	f.updates = append(f.updates, cmd)
	return &model.Order{ID: cmd.OrderID, Status: cmd.Status}, f.err
}

func (f *fakeService) Remove(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	return f.err
}

func (f *fakeService) Trigger(_ context.Context, origin model.CaptureOrigin) bool {
	f.triggers = append(f.triggers, origin)
	return true
}

func TestDispatchUpdateStatus(t *testing.T) {
	svc := &fakeService{}
	d := NewDispatcher(svc)

	ev := d.Dispatch(context.Background(), model.OriginWebSocket, "update_order_status",
		[]byte(`{"order_id":"KDS-001","status":"READY","initial_duration":600}`))
	assert.Nil(t, ev)
	require.Len(t, svc.updates, 1)
	assert.Equal(t, "KDS-001", svc.updates[0].OrderID)
	assert.Equal(t, model.StatusReady, svc.updates[0].Status)
	require.NotNil(t, svc.updates[0].InitialDuration)
	assert.Equal(t, 600, *svc.updates[0].InitialDuration)
}

func TestDispatchRemoveAndCapture(t *testing.T) {
	svc := &fakeService{}
	d := NewDispatcher(svc)

	assert.Nil(t, d.Dispatch(context.Background(), model.OriginMQTT, "remove_order", []byte(`{"id":"KDS-002"}`)))
	assert.Nil(t, d.Dispatch(context.Background(), model.OriginMQTT, "capture_order", nil))

	assert.Equal(t, []string{"KDS-002"}, svc.removed)
	assert.Equal(t, []model.CaptureOrigin{model.OriginMQTT}, svc.triggers)
}

func TestDispatchRejectsUnknownOrder(t *testing.T) {
	svc := &fakeService{err: core.ErrNotFound}
	d := NewDispatcher(svc)

	ev := d.Dispatch(context.Background(), model.OriginWebSocket, "remove_order", []byte(`{"id":"KDS-009"}`))
	require.NotNil(t, ev)
	assert.Equal(t, model.EventCommandRejected, ev.Type)
	rejected := ev.Data.(*model.CommandRejected)
	assert.Equal(t, "remove_order", rejected.Command)
	assert.Contains(t, rejected.Reason, "not found")
}

func TestDispatchIgnoresMalformed(t *testing.T) {
	svc := &fakeService{}
	d := NewDispatcher(svc)

	for _, tc := range []struct {
		name, command string
		payload       []byte
	}{
		{"bad json", "update_order_status", []byte(`{"order_id":`)},
		{"empty payload", "remove_order", nil},
		{"unknown command", "flip_burger", []byte(`{}`)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Nil(t, d.Dispatch(context.Background(), model.OriginWebSocket, tc.command, tc.payload))
		})
	}
	assert.Empty(t, svc.updates)
	assert.Empty(t, svc.removed)
}
