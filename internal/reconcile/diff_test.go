package reconcile

import (
	"testing"

	"github.com/plansync/plansync/internal/types"
)

func item(kind types.ItemKind, seq int, label string) *types.SyncItem {
	return &types.SyncItem{Kind: kind, Iteration: 3, Sequence: seq, Label: label}
}

func TestNormalizeKey(t *testing.T) {
	it := item(types.KindFeature, 12, "  Improve Search ")
	key, ok := NormalizeKey(it, nil)
	if !ok {
		t.Fatal("expected normalizable item")
	}
	if key != "feature::12::improve search" {
		t.Errorf("key = %q", key)
	}
}

func TestNormalizeKeyUntagged(t *testing.T) {
	if _, ok := NormalizeKey(&types.SyncItem{Label: "no tag"}, nil); ok {
		t.Error("untagged item should not normalize")
	}
	if _, ok := NormalizeKey(nil, nil); ok {
		t.Error("nil item should not normalize")
	}
}

func TestNormalizeKeyAllowList(t *testing.T) {
	risk := item(types.KindRisk, 1, "flaky vendor")
	if _, ok := NormalizeKey(risk, []types.ItemKind{types.KindFeature, types.KindIssue}); ok {
		t.Error("risk should be excluded by allow-list")
	}
	if _, ok := NormalizeKey(risk, nil); !ok {
		t.Error("nil allow-list should admit all kinds")
	}
}

func TestNormalizeKeyCaseInsensitive(t *testing.T) {
	a, _ := NormalizeKey(item(types.KindFeature, 5, "Dark Mode"), nil)
	b, _ := NormalizeKey(item(types.KindFeature, 5, "dark mode"), nil)
	if a != b {
		t.Errorf("case variants produced different keys: %q vs %q", a, b)
	}
}

func TestDiffScenario(t *testing.T) {
	ledger := []*types.SyncItem{item(types.KindFeature, 12, "search")}
	board := []*types.SyncItem{
		item(types.KindFeature, 12, "search"),
		item(types.KindFeature, 13, "filters"),
	}

	records := Diff(ledger, board, nil, nil)
	s := Summarize(records)
	if s.NoOp != 1 || s.NotPresent != 1 || s.Create != 0 {
		t.Errorf("summary = %+v, want 1 noop, 1 not_present", s)
	}
}

func TestDiffIdempotent(t *testing.T) {
	items := []*types.SyncItem{
		item(types.KindFeature, 1, "a"),
		item(types.KindRisk, 2, "b"),
		item(types.KindIssue, 3, "c"),
	}
	records := Diff(items, items, nil, nil)
	for _, r := range records {
		if r.Action != ActionNoOp {
			t.Errorf("diff of identical sets produced %s for %s", r.Action, r.Key)
		}
	}
	if len(records) != 3 {
		t.Errorf("got %d records, want 3", len(records))
	}
}

// Every key present on either side must appear in exactly one record.
func TestDiffCoversUnion(t *testing.T) {
	ledger := []*types.SyncItem{
		item(types.KindFeature, 1, "shared"),
		item(types.KindFeature, 2, "ledger only"),
	}
	board := []*types.SyncItem{
		item(types.KindFeature, 1, "shared"),
		item(types.KindFeature, 3, "board only"),
		{Label: "untagged, dropped"},
	}

	records := Diff(ledger, board, nil, nil)
	seen := make(map[CompositeKey]Action)
	for _, r := range records {
		if prev, dup := seen[r.Key]; dup {
			t.Errorf("key %s emitted twice: %s and %s", r.Key, prev, r.Action)
		}
		seen[r.Key] = r.Action
	}
	if len(seen) != 3 {
		t.Errorf("got %d distinct keys, want 3", len(seen))
	}
	s := Summarize(records)
	if s.Create != 1 || s.NotPresent != 1 || s.NoOp != 1 {
		t.Errorf("summary = %+v", s)
	}
}

func TestDiffStampsEpicOnCreate(t *testing.T) {
	ledger := []*types.SyncItem{item(types.KindDependency, 2, "vendor api")}
	epic := &types.Epic{InternalID: "41", ManualID: "E07", Name: "Checkout"}

	records := Diff(ledger, nil, nil, epic)
	if len(records) != 1 || records[0].Action != ActionCreate {
		t.Fatalf("records = %+v", records)
	}
	if records[0].Item.EpicRef != "E07" {
		t.Errorf("EpicRef = %q, want E07", records[0].Item.EpicRef)
	}
	// Stamping must not mutate the caller's item.
	if ledger[0].EpicRef != "" {
		t.Error("input item was mutated")
	}
}

func TestDiffRespectsAllowList(t *testing.T) {
	ledger := []*types.SyncItem{
		item(types.KindFeature, 1, "feat"),
		item(types.KindRisk, 1, "risk"),
	}
	records := Diff(ledger, nil, []types.ItemKind{types.KindFeature, types.KindIssue}, nil)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (risk filtered)", len(records))
	}
	if records[0].Item.Kind != types.KindFeature {
		t.Errorf("kind = %s", records[0].Item.Kind)
	}
}

func TestDiffDuplicateKeysFirstWins(t *testing.T) {
	ledger := []*types.SyncItem{
		{Kind: types.KindFeature, Sequence: 1, Label: "dup", Description: "first"},
		{Kind: types.KindFeature, Sequence: 1, Label: "dup", Description: "second"},
	}
	records := Diff(ledger, nil, nil, nil)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Item.Description != "first" {
		t.Errorf("Description = %q, want first occurrence kept", records[0].Item.Description)
	}
}
