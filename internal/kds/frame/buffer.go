package frame

import (
	"sync"

	"github.com/kdsgrill/kdsgrill/internal/kds/core"
)

// Buffer is a single-slot holder of the most recent valid frame.
// Publish and Read copy, so a reader never sees a torn or shared frame.
type Buffer struct {
	mu        sync.Mutex
	slot      *Frame
	threshold uint64
}

// NewBuffer returns an empty buffer that rejects frames at or below threshold.
func NewBuffer(threshold uint64) *Buffer {
	return &Buffer{threshold: threshold}
}

// Publish replaces the slot with a copy of f. Invalid frames are rejected
// with core.ErrInvalidFrame and leave the slot untouched.
func (b *Buffer) Publish(f *Frame) error {
	if !IsValid(f, b.threshold) {
		return core.ErrInvalidFrame
	}
	c := f.Clone()

	b.mu.Lock()
	b.slot = c
	b.mu.Unlock()
	return nil
}

// Read returns a copy of the current frame. ok is false until the first Publish.
func (b *Buffer) Read() (f *Frame, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.slot == nil {
		return nil, false
	}
	return b.slot.Clone(), true
}

// Reset empties the slot.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.slot = nil
	b.mu.Unlock()
}
