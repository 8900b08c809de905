// Package memory is a process-local OrderStore, used for demos and tests.
// Its contents do not survive a restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
)

var _ core.OrderStore = (*Store)(nil)

type Store struct {
	mu sync.RWMutex
	// orders indexed by id
	orders map[string]*model.Order
	// ids in insertion order
	ids     []string
	lastSeq int
}

func New() *Store {
	return &Store{orders: make(map[string]*model.Order)}
}

func (s *Store) Create(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("create %s: %w", o.ID, core.ErrDuplicateID)
	}
	s.orders[o.ID] = o.Clone()
	s.ids = append(s.ids, o.ID)
	if o.Table > s.lastSeq {
		s.lastSeq = o.Table
	}
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, core.ErrNotFound)
	}
	return o.Clone(), nil
}

func (s *Store) List(_ context.Context) ([]*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Order, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.orders[id].Clone())
	}
	return out, nil
}

func (s *Store) Update(_ context.Context, id string, mutate model.Mutation) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("update %s: %w", id, core.ErrNotFound)
	}

	next := o.Clone()
	mutate(next)
	// id and sequence are immutable
	next.ID, next.Table = o.ID, o.Table
	s.orders[id] = next
	return next.Clone(), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, core.ErrNotFound)
	}
	delete(s.orders, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders), nil
}

func (s *Store) LastSequence(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq, nil
}

func (s *Store) Close() error { return nil }
