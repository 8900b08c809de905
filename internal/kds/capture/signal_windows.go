//go:build windows

package capture

import (
	"context"

	"github.com/kdsgrill/kdsgrill/pkg/log"
)

// Signal is a no-op on Windows, which has no SIGUSR1.
type Signal struct{}

func NewSignal(Capturer) *Signal { return &Signal{} }

func (s *Signal) Start(ctx context.Context) error {
	log.Warn("Signal capture trigger is not supported on Windows")
	<-ctx.Done()
	return nil
}
