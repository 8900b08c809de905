package core

import (
	"context"

	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
)

// EventNotifier delivers lifecycle events to subscribers. Implementations
// must not block on slow subscribers.
type EventNotifier interface {
	Notify(ctx context.Context, event *model.Event) error
}

// NotifierFunc adapts a function to EventNotifier.
type NotifierFunc func(ctx context.Context, event *model.Event) error

func (f NotifierFunc) Notify(ctx context.Context, event *model.Event) error {
	return f(ctx, event)
}
