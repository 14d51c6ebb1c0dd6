package reconcile

import (
	"github.com/plansync/plansync/internal/types"
)

// Allocator hands out sequence numbers for newly materialized items.
// Numbers are per (iteration, kind): the allocator is seeded from the
// Ledger's existing items once per run and then bumps a max counter, so
// successive calls within a run never collide even before the new items
// land in the Ledger.
//
// An Allocator is not safe for concurrent use. Runs for the same scope
// are serialized by ScopeLock, which is the only caller context.
type Allocator struct {
	iteration int
	max       map[types.ItemKind]int
}

// NewAllocator seeds an allocator from the Ledger's current items.
// When iteration is positive, only items from that iteration count
// toward the observed maximum. Items with a sequence below 1 carry no
// allocation information and are ignored.
func NewAllocator(iteration int, items []*types.SyncItem) *Allocator {
	a := &Allocator{
		iteration: iteration,
		max:       make(map[types.ItemKind]int, len(types.AllKinds)),
	}
	for _, it := range items {
		if it == nil || it.Sequence < 1 {
			continue
		}
		if a.iteration > 0 && it.Iteration != a.iteration {
			continue
		}
		if it.Sequence > a.max[it.Kind] {
			a.max[it.Kind] = it.Sequence
		}
	}
	return a
}

// Next returns the next free sequence number for kind and reserves it.
func (a *Allocator) Next(kind types.ItemKind) int {
	n := a.max[kind] + 1
	a.max[kind] = n
	return n
}

// NextSequence is the stateless form: the highest observed sequence for
// kind within iteration, plus one. Useful for one-shot allocation when
// no allocator is being carried across items.
func NextSequence(kind types.ItemKind, iteration int, items []*types.SyncItem) int {
	return NewAllocator(iteration, items).Next(kind)
}
