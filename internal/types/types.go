// Package types defines core data structures for the plansync reconciliation engine.
package types

import (
	"fmt"
	"time"
)

// ItemKind classifies a planning item. The kind determines which Ledger
// table, Board card shape, and Tracker label an item maps to. Kinds are a
// closed enum; free-form strings are never used as kinds.
type ItemKind string

const (
	KindFeature    ItemKind = "feature"
	KindRisk       ItemKind = "risk"
	KindDependency ItemKind = "dependency"
	KindObjective  ItemKind = "objective"
	KindIssue      ItemKind = "issue"
)

// AllKinds lists every recognized kind in a stable order.
var AllKinds = []ItemKind{KindFeature, KindRisk, KindDependency, KindObjective, KindIssue}

// Valid reports whether the kind is one of the recognized values.
func (k ItemKind) Valid() bool {
	switch k {
	case KindFeature, KindRisk, KindDependency, KindObjective, KindIssue:
		return true
	}
	return false
}

func (k ItemKind) String() string { return string(k) }

// ParseKind converts a string to an ItemKind.
func ParseKind(s string) (ItemKind, error) {
	k := ItemKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown item kind %q", s)
	}
	return k, nil
}

// Commitment distinguishes committed from uncommitted objectives. It is
// meaningful only for KindObjective; all other kinds carry CommitmentNone.
type Commitment string

const (
	CommitmentNone        Commitment = ""
	CommitmentCommitted   Commitment = "committed"
	CommitmentUncommitted Commitment = "uncommitted"
)

// StoreRole identifies which of the three stores an item instance was read
// from. The Ledger is authoritative for numbering and content; Board and
// Tracker are participants whose native identifiers are never canonical.
type StoreRole string

const (
	RoleLedger  StoreRole = "ledger"
	RoleBoard   StoreRole = "board"
	RoleTracker StoreRole = "tracker"
)

// SyncItem is the canonical unit being reconciled across stores.
type SyncItem struct {
	Kind      ItemKind `json:"kind"`
	Iteration int      `json:"iteration"` // 0 means unscoped / filter inactive
	Sequence  int      `json:"sequence"`  // unique within (kind, iteration, epic); 0 when unassigned

	// EpicRef is the parent grouping's user-facing manual identifier
	// (e.g. "E07"), empty when the item has no epic linkage.
	EpicRef string `json:"epic_ref,omitempty"`

	// Label is the display text with any bracketed tag stripped.
	Label string `json:"label"`

	Description        string     `json:"description,omitempty"`
	Hypotheses         string     `json:"hypotheses,omitempty"`
	AcceptanceCriteria string     `json:"acceptance_criteria,omitempty"`
	Commitment         Commitment `json:"commitment,omitempty"`

	// SourceStore records which store this instance was read from.
	SourceStore StoreRole `json:"source_store,omitempty"`

	// SourceNativeID is the store-native identifier (row id, card id,
	// issue node id). Used only for write-back, never for key comparison.
	SourceNativeID string `json:"source_native_id,omitempty"`

	LastModified *time.Time `json:"last_modified,omitempty"`
}

// Tagged reports whether the item carries a parsed identity (a recognized
// kind). Untagged items never participate in reconciliation.
func (it *SyncItem) Tagged() bool {
	return it != nil && it.Kind.Valid()
}

// Clone returns a shallow copy of the item. Diff and engine code copy
// before stamping epic references so fetch results stay unmodified.
func (it *SyncItem) Clone() *SyncItem {
	if it == nil {
		return nil
	}
	cp := *it
	return &cp
}

// Epic is the parent grouping entity, owned by the Ledger and read-only
// from the engine's perspective.
type Epic struct {
	// InternalID is the Ledger-native record identifier.
	InternalID string `json:"internal_id"`
	// ManualID is the user-facing identifier embedded in tags (e.g. "E07").
	ManualID string `json:"manual_id"`
	Name     string `json:"name,omitempty"`
}

// Scope bounds one reconciliation run to an (iteration, epic) pair.
// Iteration 0 disables the iteration filter; an empty EpicID disables the
// epic filter.
type Scope struct {
	Iteration int    `json:"iteration"`
	EpicID    string `json:"epic_id,omitempty"` // epic manual identifier
}

func (s Scope) String() string {
	if s.EpicID == "" {
		return fmt.Sprintf("iteration %d", s.Iteration)
	}
	return fmt.Sprintf("iteration %d, epic %s", s.Iteration, s.EpicID)
}

// ItemFailure records a per-item, non-fatal failure during a run.
type ItemFailure struct {
	Key   string    `json:"key"`
	Store StoreRole `json:"store"`
	Error string    `json:"error"`
}

// RunStats accumulates per-run counters.
type RunStats struct {
	LedgerItems    int `json:"ledger_items"`
	BoardItems     int `json:"board_items"`
	TrackerItems   int `json:"tracker_items"`
	LedgerCreated  int `json:"ledger_created"`
	BoardCreated   int `json:"board_created"`
	TrackerCreated int `json:"tracker_created"`
	Retagged       int `json:"retagged"`
	NoOps          int `json:"noops"`
}

// Result is the structured outcome of one reconciliation run. Partial
// per-item failures never surface as a bare error; callers always receive
// a Result for a run that reached the write phases.
type Result struct {
	LedgerSynced  bool          `json:"ledger_synced"`
	BoardSynced   bool          `json:"board_synced"`
	TrackerSynced bool          `json:"tracker_synced"`
	CreatedCount  int           `json:"created_count"`
	Stats         RunStats      `json:"stats"`
	Failures      []ItemFailure `json:"failures,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
}

// Failed reports whether any per-item failure was recorded.
func (r *Result) Failed() bool { return len(r.Failures) > 0 }
