package core

import (
	"context"
	"time"
)

// SnapshotArchive keeps a copy of every captured ticket image outside the order store.
type SnapshotArchive interface {
	// Put stores the PNG for order id captured at at.
	Put(ctx context.Context, id string, at time.Time, png []byte) error
}
