package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/frame"
	"github.com/kdsgrill/kdsgrill/internal/pkg/metrics"
	"github.com/kdsgrill/kdsgrill/pkg/log"
)

// DefaultProbeInterval is how often a degraded chain retries its better tiers.
const DefaultProbeInterval = 10 * time.Second

// Chain tries its tiers in order and sticks with the first one producing a
// valid frame. A black or empty frame counts as a failure of that tier.
// While degraded, the better tiers are probed again every probeInterval.
type Chain struct {
	tiers         []Source
	threshold     uint64
	probeInterval time.Duration
	clock         clock.PassiveClock
	logger        log.Logger

	active    int
	lastProbe time.Time
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

func WithProbeInterval(d time.Duration) ChainOption {
	return func(c *Chain) { c.probeInterval = d }
}

func WithClock(clk clock.PassiveClock) ChainOption {
	return func(c *Chain) { c.clock = clk }
}

// NewChain builds a chain over tiers, best first.
func NewChain(tiers []Source, threshold uint64, opts ...ChainOption) *Chain {
	c := &Chain{
		tiers:         tiers,
		threshold:     threshold,
		probeInterval: DefaultProbeInterval,
		clock:         clock.RealClock{},
		logger:        log.WithName("source-chain"),
	}
	for _, o := range opts {
		o(c)
	}
	c.lastProbe = c.clock.Now()
	metrics.FrameSourceTier.Set(-1)
	return c
}

func (c *Chain) Name() string { return "chain" }

// Active returns the index of the tier that produced the last frame.
func (c *Chain) Active() int { return c.active }

func (c *Chain) Next(ctx context.Context) (*frame.Frame, error) {
	if len(c.tiers) == 0 {
		return nil, core.ErrSourceExhausted
	}

	start := c.active
	if start > 0 && c.clock.Since(c.lastProbe) >= c.probeInterval {
		start = 0
		c.lastProbe = c.clock.Now()
	}

	var errs []error
	for i := start; i < len(c.tiers); i++ {
		tier := c.tiers[i]
		f, err := tier.Next(ctx)
		if err == nil && !frame.IsValid(f, c.threshold) {
			err = fmt.Errorf("%s: %w", tier.Name(), core.ErrInvalidFrame)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if i != c.active {
			c.logger.Info("Frame source switched", "from", c.tierName(c.active), "to", tier.Name())
			c.active = i
			if i > 0 {
				c.lastProbe = c.clock.Now()
			}
		}
		metrics.FrameSourceTier.Set(float64(i))
		return f, nil
	}

	// Everything from start down failed; begin at the top next time.
	c.active = 0
	metrics.FrameSourceTier.Set(-1)
	return nil, fmt.Errorf("%w: %w", core.ErrSourceExhausted, errors.Join(errs...))
}

func (c *Chain) tierName(i int) string {
	if i < 0 || i >= len(c.tiers) {
		return ""
	}
	return c.tiers[i].Name()
}

// Close closes every tier and returns their errors joined.
func (c *Chain) Close() error {
	var errs []error
	for _, t := range c.tiers {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		}
	}
	return errors.Join(errs...)
}
