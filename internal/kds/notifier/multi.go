// Package notifier fans lifecycle events out to more than one subscriber.
package notifier

import (
	"context"
	"errors"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
)

// Multi delivers every event to each notifier in order. A failing notifier
// does not stop delivery to the rest.
type Multi []core.EventNotifier

func (m Multi) Notify(ctx context.Context, event *model.Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
