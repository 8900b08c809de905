//go:build !windows

package capture

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
)

// Signal requests a capture on every SIGUSR1.
type Signal struct {
	capturer Capturer
}

func NewSignal(c Capturer) *Signal {
	return &Signal{capturer: c}
}

func (s *Signal) Start(ctx context.Context) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			s.capturer.Trigger(ctx, model.OriginSignal)
		}
	}
}
