package reconcile

import (
	"fmt"
	"strings"

	"github.com/plansync/plansync/internal/types"
)

// CompositeKey is the cross-store identity of an item: two SyncItems with
// the same key are the same real-world item regardless of which store
// produced them. The string form is "kind::sequence::label" with the label
// lower-cased and trimmed for comparison only; original casing stays on
// the SyncItem.
type CompositeKey string

func (k CompositeKey) String() string { return string(k) }

// NormalizeKey builds the composite key for an item. It returns ok=false
// when the item has no recognized kind, or when allowed is non-nil and
// does not contain the item's kind (strict allow-list mode, used when a
// target store supports only a subset of kinds).
func NormalizeKey(it *types.SyncItem, allowed []types.ItemKind) (CompositeKey, bool) {
	if !it.Tagged() {
		return "", false
	}
	if allowed != nil && !kindAllowed(it.Kind, allowed) {
		return "", false
	}

	label := strings.ToLower(strings.TrimSpace(it.Label))
	return CompositeKey(fmt.Sprintf("%s::%d::%s", it.Kind, it.Sequence, label)), true
}

func kindAllowed(kind types.ItemKind, allowed []types.ItemKind) bool {
	for _, k := range allowed {
		if k == kind {
			return true
		}
	}
	return false
}

// keyIndex maps every normalizable item in the collection to its key.
// Items that fail to normalize are dropped. When two items collide on a
// key the first one wins; within one store that means duplicate tags,
// which the Ledger's numbering discipline is supposed to prevent.
func keyIndex(items []*types.SyncItem, allowed []types.ItemKind) map[CompositeKey]*types.SyncItem {
	idx := make(map[CompositeKey]*types.SyncItem, len(items))
	for _, it := range items {
		key, ok := NormalizeKey(it, allowed)
		if !ok {
			continue
		}
		if _, dup := idx[key]; dup {
			continue
		}
		idx[key] = it
	}
	return idx
}
