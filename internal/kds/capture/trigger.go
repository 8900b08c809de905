package capture

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
	"github.com/kdsgrill/kdsgrill/pkg/log"
)

// Capturer starts a capture without waiting for it.
type Capturer interface {
	Trigger(ctx context.Context, origin model.CaptureOrigin) bool
}

// Interval requests a capture every period.
type Interval struct {
	period   time.Duration
	capturer Capturer
}

func NewInterval(period time.Duration, c Capturer) *Interval {
	return &Interval{period: period, capturer: c}
}

func (t *Interval) Start(ctx context.Context) error {
	log.Info("Interval capture enabled", "every", t.period)
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.capturer.Trigger(ctx, model.OriginTimer)
		}
	}
}

// Console reads operator keystrokes line by line: "s" captures, "q" quits.
type Console struct {
	in       io.Reader
	capturer Capturer
	quit     func()
	logger   log.Logger
}

// NewConsole reads from in; a nil in means os.Stdin. quit is called on "q".
func NewConsole(in io.Reader, c Capturer, quit func()) *Console {
	if in == nil {
		in = os.Stdin
	}
	return &Console{in: in, capturer: c, quit: quit, logger: log.WithName("console")}
}

func (c *Console) Start(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	c.logger.Info("Operator console ready: 's' + Enter captures a ticket, 'q' + Enter quits")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// stdin closed, e.g. running detached; keep serving.
				<-ctx.Done()
				return nil
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "s":
				c.capturer.Trigger(ctx, model.OriginConsole)
			case "q":
				c.logger.Info("Quit requested from console")
				if c.quit != nil {
					c.quit()
				}
				return nil
			case "":
			default:
				c.logger.Debug("Unknown console input", "input", line)
			}
		}
	}
}
