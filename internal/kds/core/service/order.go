package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
)

// List returns every order in insertion order.
func (s *Service) List(ctx context.Context) ([]*model.Order, error) {
	return s.store.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*model.Order, error) {
	return s.store.Get(ctx, id)
}

// UpdateStatus applies a station's status change and broadcasts order_updated.
// Applying the same status twice leaves the order unchanged.
func (s *Service) UpdateStatus(ctx context.Context, cmd *model.UpdateStatusCommand) (*model.Order, error) {
	if cmd == nil || cmd.OrderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", core.ErrInvalidCommand)
	}
	if !cmd.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidStatus, cmd.Status)
	}
	if cmd.InitialDuration != nil && *cmd.InitialDuration < 0 {
		return nil, fmt.Errorf("%w: initial_duration must not be negative", core.ErrInvalidCommand)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Check(ctx, current.Status, cmd.Status); err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := s.store.Update(ctx, cmd.OrderID, func(o *model.Order) {
		o.Status = cmd.Status
		if cmd.InitialDuration != nil {
			o.InitialDuration = *cmd.InitialDuration
		}
		switch {
		case cmd.Status != model.StatusReady:
			o.CompletedAt = nil
		case o.CompletedAt == nil:
			o.CompletedAt = &now
		}
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, model.OrderUpdatedEvent(updated.Clone()))
	return updated, nil
}

// Remove deletes an order permanently and broadcasts order_removed.
func (s *Service) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", core.ErrInvalidCommand)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.notify(ctx, model.OrderRemovedEvent(id))
	return nil
}

// Requeue sends an order back to the grill: status COOKING, a fresh cooking
// budget and a new start time. It is an administrative override and ignores
// the status policy. Stations receive new_order so a card that was already
// cleared reappears.
func (s *Service) Requeue(ctx context.Context, id string) (*model.Order, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", core.ErrInvalidCommand)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	updated, err := s.store.Update(ctx, id, func(o *model.Order) {
		o.Status = model.StatusCooking
		o.InitialDuration = s.defaultDuration
		o.StartedAt = now.Format(model.StartedAtLayout)
		o.CompletedAt = nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order requeued", "id", id)
	s.notify(ctx, model.NewOrderEvent(updated.Clone()))
	return updated, nil
}

// DailySummary reports on the orders created on day's calendar date.
func (s *Service) DailySummary(ctx context.Context, day time.Time) (*model.DailySummary, error) {
	orders, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	day = day.In(s.location)
	y, m, d := day.Date()

	summary := &model.DailySummary{
		Date:         day.Format(time.DateOnly),
		StatusCounts: make(map[model.Status]int, len(model.Statuses)),
		Orders:       []*model.Order{},
	}
	for _, st := range model.Statuses {
		summary.StatusCounts[st] = 0
	}

	var total time.Duration
	var completed int
	for _, o := range orders {
		oy, om, od := o.CreatedAt.In(s.location).Date()
		if oy != y || om != m || od != d {
			continue
		}
		summary.Orders = append(summary.Orders, o)
		summary.StatusCounts[o.Status]++
		if o.Status == model.StatusReady && o.CompletedAt != nil {
			total += o.CompletedAt.Sub(o.CreatedAt)
			completed++
		}
	}

	summary.TotalOrders = len(summary.Orders)
	if completed > 0 {
		summary.AvgCompletionSeconds = total.Seconds() / float64(completed)
	}
	return summary, nil
}

// Today is DailySummary for the current date.
func (s *Service) Today(ctx context.Context) (*model.DailySummary, error) {
	return s.DailySummary(ctx, s.now())
}
