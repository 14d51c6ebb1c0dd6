package reconcile

import (
	"github.com/plansync/plansync/internal/types"
)

// Action classifies what a diff record asks the orchestrator to do.
type Action string

const (
	// ActionCreate: the external store is missing an item the Ledger has.
	ActionCreate Action = "create"
	// ActionNotPresent: the external store has an item the Ledger does not
	// know about yet; the orchestrator materializes it in the Ledger.
	ActionNotPresent Action = "not_present"
	// ActionNoOp: both sides know the item. Content is not compared once
	// identity matches; the Ledger is authoritative.
	ActionNoOp Action = "noop"
)

// Record is one unit of diff output. Records are created fresh per run,
// never persisted, and consumed by the orchestrator within the same run.
type Record struct {
	Action Action
	Key    CompositeKey
	Item   *types.SyncItem
}

// Diff compares the Ledger's items against one external store's items and
// returns one record per distinct composite key across both inputs. Items
// that fail key normalization (no tag, or kind outside the allow-list) are
// silently dropped from both sides before comparison.
//
// When epic is non-nil, items emitted as ActionCreate are stamped with the
// epic's manual id so the external store can render an epic-qualified tag.
// Record order is not significant.
func Diff(ledger, external []*types.SyncItem, allowed []types.ItemKind, epic *types.Epic) []Record {
	ledgerIdx := keyIndex(ledger, allowed)
	externalIdx := keyIndex(external, allowed)

	records := make([]Record, 0, len(ledgerIdx)+len(externalIdx))

	for key, it := range ledgerIdx {
		if _, ok := externalIdx[key]; ok {
			records = append(records, Record{Action: ActionNoOp, Key: key, Item: it})
			continue
		}
		out := it
		if epic != nil && out.EpicRef == "" {
			out = out.Clone()
			out.EpicRef = epic.ManualID
		}
		records = append(records, Record{Action: ActionCreate, Key: key, Item: out})
	}

	for key, it := range externalIdx {
		if _, ok := ledgerIdx[key]; ok {
			continue // already emitted as NoOp
		}
		records = append(records, Record{Action: ActionNotPresent, Key: key, Item: it})
	}

	return records
}

// DiffSummary counts records by action, for reporting.
type DiffSummary struct {
	Create     int `json:"create"`
	NotPresent int `json:"not_present"`
	NoOp       int `json:"noop"`
}

// Summarize tallies a diff result.
func Summarize(records []Record) DiffSummary {
	var s DiffSummary
	for _, r := range records {
		switch r.Action {
		case ActionCreate:
			s.Create++
		case ActionNotPresent:
			s.NotPresent++
		case ActionNoOp:
			s.NoOp++
		}
	}
	return s
}
