// Package fsm holds small helpers around github.com/looplab/fsm.
package fsm

import (
	"context"
	"errors"
	"slices"

	"github.com/looplab/fsm"
)

// WrapEvent adapts an error-returning callback to fsm.Callback. A non-nil
// error cancels the event; FSM.Event then returns it wrapped in
// fsm.CanceledError.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Cancel(err)
		}
	}
}

// EventBetween returns the name of the first event in events that moves
// src to dst.
func EventBetween(events fsm.Events, src, dst string) (string, bool) {
	for _, e := range events {
		if e.Dst == dst && slices.Contains(e.Src, src) {
			return e.Name, true
		}
	}
	return "", false
}

// Fire triggers event on f. A transition to the current state is not an error.
func Fire(ctx context.Context, f *fsm.FSM, event string) error {
	err := f.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}
