// Package capture keeps the frame buffer fresh and turns operator input,
// timers and signals into capture requests.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/frame"
	"github.com/kdsgrill/kdsgrill/internal/kds/source"
	"github.com/kdsgrill/kdsgrill/internal/pkg/metrics"
	"github.com/kdsgrill/kdsgrill/pkg/log"
)

// ErrAlreadyStarted is returned by a second call to RefreshLoop.Start.
var ErrAlreadyStarted = errors.New("refresh loop already started")

// RefreshConfig tunes the refresh loop.
type RefreshConfig struct {
	Geometry      frame.Geometry
	PollInterval  time.Duration
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	StartupDelay  time.Duration
}

// RefreshLoop owns the frame source and is its only user. It reads frames,
// normalizes them and publishes them to the buffer until its context ends.
type RefreshLoop struct {
	cfg     RefreshConfig
	source  source.Source
	buffer  *frame.Buffer
	logger  log.Logger
	started atomic.Bool
}

func NewRefreshLoop(src source.Source, buffer *frame.Buffer, cfg RefreshConfig) *RefreshLoop {
	return &RefreshLoop{
		cfg:    cfg,
		source: src,
		buffer: buffer,
		logger: log.WithName("refresh-loop"),
	}
}

// Start blocks until ctx is done or the source fails in a way that retrying
// cannot fix. The source is closed on every exit path. Start may be called
// only once per loop.
func (l *RefreshLoop) Start(ctx context.Context) (err error) {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	defer func() {
		if cerr := l.source.Close(); cerr != nil {
			l.logger.Error(cerr, "Failed to release frame source")
		}
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh loop panic: %v", r)
		}
		if err != nil {
			// A dead loop must not leave a stale frame behind.
			l.buffer.Reset()
		}
		l.logger.Info("Refresh loop stopped")
	}()

	l.logger.Info("Refresh loop starting", "source", l.source.Name(), "warmup", l.cfg.StartupDelay)
	if !sleep(ctx, l.cfg.StartupDelay) {
		return nil
	}

	retry := l.newBackOff()
	failing := false
	for {
		wait, err := l.step(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if !recoverable(err) {
				l.logger.Error(err, "Frame source failed permanently")
				return err
			}
			metrics.FrameSourceErrorsTotal.Inc()
			wait = retry.NextBackOff()
			if !failing {
				l.logger.Warn("Frame read failed, retrying", "reason", err.Error(), "delay", wait)
				failing = true
			}
		} else {
			retry.Reset()
			if failing {
				l.logger.Info("Frame source recovered")
				failing = false
			}
		}

		if !sleep(ctx, wait) {
			return nil
		}
	}
}

// step reads and publishes one frame and returns the delay before the next read.
func (l *RefreshLoop) step(ctx context.Context) (time.Duration, error) {
	raw, err := l.source.Next(ctx)
	if err != nil {
		return 0, err
	}

	normalized := frame.Normalize(raw, l.cfg.Geometry)
	if err := l.buffer.Publish(normalized); err != nil {
		// A black frame does not count as a read failure: the source is up.
		metrics.FramesRejectedTotal.WithLabelValues("black").Inc()
	}
	return l.cfg.PollInterval, nil
}

// newBackOff grows the retry delay exponentially up to MaxRetryDelay and never gives up.
func (l *RefreshLoop) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.cfg.RetryDelay
	b.MaxInterval = l.cfg.MaxRetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func recoverable(err error) bool {
	return errors.Is(err, core.ErrSourceUnavailable) ||
		errors.Is(err, core.ErrSourceExhausted) ||
		errors.Is(err, core.ErrInvalidFrame) ||
		errors.Is(err, context.DeadlineExceeded)
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
