package service

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
	fsmutil "github.com/kdsgrill/kdsgrill/internal/pkg/util/fsm"
)

// StatusPolicy decides whether an order may move from one status to another.
// Staying in the same status is always allowed.
type StatusPolicy interface {
	Check(ctx context.Context, from, to model.Status) error
}

type permissivePolicy struct{}

// PermissivePolicy accepts any transition between defined statuses.
func PermissivePolicy() StatusPolicy { return permissivePolicy{} }

func (permissivePolicy) Check(_ context.Context, _, to model.Status) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidStatus, to)
	}
	return nil
}

const (
	// EventStart puts a new ticket on the grill.
	EventStart = "start"
	// EventAlmostDone flags a ticket about to be plated.
	EventAlmostDone = "almost_done"
	// EventFinish marks a ticket ready for pickup.
	EventFinish = "finish"
	// EventRequeue sends a ready ticket back to cooking.
	EventRequeue = "requeue"
)

var lifecycleEvents = fsm.Events{
	{Name: EventStart, Src: []string{string(model.StatusNew)}, Dst: string(model.StatusCooking)},
	{Name: EventAlmostDone, Src: []string{string(model.StatusCooking)}, Dst: string(model.StatusAlmostDone)},
	{Name: EventFinish, Src: []string{string(model.StatusAlmostDone)}, Dst: string(model.StatusReady)},
	{Name: EventRequeue, Src: []string{string(model.StatusReady)}, Dst: string(model.StatusCooking)},
}

type strictPolicy struct{}

// StrictPolicy only accepts NEW -> COOKING -> ALMOST_DONE -> READY and the
// READY -> COOKING requeue.
func StrictPolicy() StatusPolicy { return strictPolicy{} }

func (strictPolicy) Check(ctx context.Context, from, to model.Status) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidStatus, to)
	}
	if from == to {
		return nil
	}

	event, ok := fsmutil.EventBetween(lifecycleEvents, string(from), string(to))
	if !ok {
		return fmt.Errorf("%w: %s -> %s", core.ErrIllegalTransition, from, to)
	}

	f := fsm.NewFSM(string(from), lifecycleEvents, fsm.Callbacks{
		"before_event": fsmutil.WrapEvent(guardKnownStatus),
	})
	if err := fsmutil.Fire(ctx, f, event); err != nil {
		return fmt.Errorf("%w: %s -> %s: %v", core.ErrIllegalTransition, from, to, err)
	}
	return nil
}

// guardKnownStatus cancels transitions out of a status that is not defined,
// e.g. a row written by an older build.
func guardKnownStatus(_ context.Context, e *fsm.Event) error {
	if !model.Status(e.Src).IsValid() {
		e.Cancel(fmt.Errorf("unknown source status %q", e.Src))
	}
	return nil
}
