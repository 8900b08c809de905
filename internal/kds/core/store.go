package core

import (
	"context"

	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
)

// OrderStore persists orders keyed by id. Every method is atomic with
// respect to the others and returned orders are copies.
type OrderStore interface {
	// Create inserts o. It returns ErrDuplicateID if o.ID exists, and records
	// o.Table as the new sequence high-water mark when it is larger.
	Create(ctx context.Context, o *model.Order) error

	// Get returns the order or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Order, error)

	// List returns every order in insertion order.
	List(ctx context.Context) ([]*model.Order, error)

	// Update applies mutate to the stored order and returns the result, or ErrNotFound.
	Update(ctx context.Context, id string, mutate model.Mutation) (*model.Order, error)

	// Delete removes the order permanently, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored orders.
	Count(ctx context.Context) (int, error)

	// LastSequence returns the highest sequence number ever created, including deleted orders.
	LastSequence(ctx context.Context) (int, error)

	// Close releases the underlying resources.
	Close() error
}
