// Package replay holds the bounded experience buffer sampled during learning.
package replay

import (
	"fmt"
	"math/rand"

	"github.com/aristath/orium/internal/domain"
)

// Buffer is a fixed-capacity ring of transitions. Once full, each push
// overwrites the oldest entry. It is not safe for concurrent use.
type Buffer struct {
	items []domain.Transition
	next  int
	size  int
	rng   *rand.Rand
}

// NewBuffer allocates a buffer holding up to capacity transitions.
// rng drives sampling; pass a seeded source for reproducible runs.
func NewBuffer(capacity int, rng *rand.Rand) (*Buffer, error) {
	if capacity <= 0 {
		return nil, domain.ValidationErrors{{Field: "memory_size", Message: "must be greater than 0"}}
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", domain.ErrInvalidConfig)
	}

	return &Buffer{
		items: make([]domain.Transition, capacity),
		rng:   rng,
	}, nil
}

// Push appends t, evicting the oldest transition when full.
func (b *Buffer) Push(t domain.Transition) {
	b.items[b.next] = t
	b.next = (b.next + 1) % len(b.items)
	if b.size < len(b.items) {
		b.size++
	}
}

// Sample draws batchSize transitions uniformly with replacement.
func (b *Buffer) Sample(batchSize int) ([]domain.Transition, error) {
	if batchSize <= 0 {
		return nil, domain.ValidationErrors{{Field: "batch_size", Message: "must be greater than 0"}}
	}
	if b.size == 0 || batchSize > b.size {
		return nil, fmt.Errorf("%w: requested %d transitions, buffer holds %d", domain.ErrSampleUnderflow, batchSize, b.size)
	}

	batch := make([]domain.Transition, batchSize)
	for i := range batch {
		batch[i] = b.items[b.index(b.rng.Intn(b.size))]
	}
	return batch, nil
}

// Len returns the number of stored transitions
func (b *Buffer) Len() int { return b.size }

// Cap returns the maximum number of stored transitions
func (b *Buffer) Cap() int { return len(b.items) }

// Snapshot returns the stored transitions from oldest to newest.
func (b *Buffer) Snapshot() []domain.Transition {
	out := make([]domain.Transition, b.size)
	for i := range out {
		out[i] = b.items[b.index(i)]
	}
	return out
}

// index maps a logical position (0 = oldest) to a slot in items.
func (b *Buffer) index(i int) int {
	if b.size < len(b.items) {
		return i
	}
	return (b.next + i) % len(b.items)
}
