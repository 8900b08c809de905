package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
	"github.com/kdsgrill/kdsgrill/internal/kds/frame"
	"github.com/kdsgrill/kdsgrill/internal/pkg/metrics"
)

const archiveTimeout = 30 * time.Second

// Capture turns the current frame into a persisted, broadcast order.
//
// The buffered frame is preferred, then the static fallback image. When
// neither exists the capture is abandoned silently: the result carries a nil
// Order and the error is nil. Store errors are returned; ErrDuplicateID also
// invokes the halt handler.
func (s *Service) Capture(ctx context.Context, origin model.CaptureOrigin) (*model.CaptureResult, error) {
	start := s.clock.Now()
	result := &model.CaptureResult{Origin: origin}
	logger := s.logger.WithValues("origin", string(origin))

	f, ok := s.frames.Read()
	if !ok {
		var err error
		if f, err = s.fallback.Frame(); err != nil {
			metrics.CaptureAbortedTotal.WithLabelValues("no_frame").Inc()
			logger.Warn("Capture skipped, no frame available", "reason", err.Error())
			return result, nil
		}
		result.Fallback = true
	}

	png, err := frame.EncodePNG(f)
	if err != nil {
		metrics.CaptureAbortedTotal.WithLabelValues("encode").Inc()
		return result, fmt.Errorf("capture: %w", err)
	}

	order, err := s.persistAndAnnounce(ctx, frame.DataURL(png))
	if err != nil {
		if errors.Is(err, core.ErrDuplicateID) {
			metrics.CaptureAbortedTotal.WithLabelValues("duplicate").Inc()
			s.halt(err)
		} else {
			metrics.CaptureAbortedTotal.WithLabelValues("persist").Inc()
		}
		return result, err
	}

	result.Order = order
	result.Duration = s.clock.Since(start)
	metrics.OrdersCapturedTotal.WithLabelValues(string(origin)).Inc()
	metrics.CaptureDuration.Observe(result.Duration.Seconds())
	logger.Info("Order captured", "id", order.ID, "fallback", result.Fallback, "duration", result.Duration)

	if s.archive != nil {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()
		if err := s.archive.Put(actx, order.ID, order.CreatedAt, png); err != nil {
			logger.Error(err, "Snapshot archive failed", "id", order.ID)
		}
	}

	return result, nil
}

// persistAndAnnounce allocates the next sequence, creates the order and
// emits new_order as one critical section. It shares s.mu with the order
// commands: a remove or status change of the new id cannot be announced
// before its new_order.
func (s *Service) persistAndAnnounce(ctx context.Context, image string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: count orders: %w", err)
	}
	last, err := s.store.LastSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: last sequence: %w", err)
	}
	seq := max(count, last) + 1

	now := s.now()
	order := &model.Order{
		ID:              model.FormatID(seq),
		Table:           seq,
		StartedAt:       now.Format(model.StartedAtLayout),
		Status:          model.StatusNew,
		InitialDuration: s.defaultDuration,
		Image:           image,
		CreatedAt:       now,
	}

	if err := s.store.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("capture: persist %s: %w", order.ID, err)
	}

	s.notify(ctx, model.NewOrderEvent(order.Clone()))
	return order, nil
}

// Trigger starts a capture in the background and returns immediately.
// Captures beyond the concurrency cap wait for a slot instead of being
// dropped. It returns false only when ctx is already done.
func (s *Service) Trigger(ctx context.Context, origin model.CaptureOrigin) bool {
	if ctx.Err() != nil {
		metrics.CaptureAbortedTotal.WithLabelValues("canceled").Inc()
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if !s.inflight.TryAcquire(1) {
			s.logger.Debug("Capture queued, too many in flight", "origin", string(origin))
			if err := s.inflight.Acquire(ctx, 1); err != nil {
				metrics.CaptureAbortedTotal.WithLabelValues("canceled").Inc()
				s.logger.Warn("Queued capture canceled", "origin", string(origin), "reason", err.Error())
				return
			}
		}
		defer s.inflight.Release(1)

		if _, err := s.Capture(ctx, origin); err != nil {
			s.logger.Error(err, "Capture failed", "origin", string(origin))
		}
	}()
	return true
}

// Wait blocks until every capture started by Trigger has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// notify delivers event and logs failures. Delivery never fails a command
// whose state change is already durable.
func (s *Service) notify(ctx context.Context, event *model.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Error(err, "Event delivery failed", "event", string(event.Type))
	}
}
