package types

import (
	"testing"
	"time"
)

func TestParseKind(t *testing.T) {
	for _, k := range AllKinds {
		got, err := ParseKind(string(k))
		if err != nil {
			t.Errorf("ParseKind(%q) error: %v", k, err)
		}
		if got != k {
			t.Errorf("ParseKind(%q) = %q", k, got)
		}
	}

	if _, err := ParseKind("epic"); err == nil {
		t.Error("ParseKind(\"epic\") expected error, got nil")
	}
	if _, err := ParseKind(""); err == nil {
		t.Error("ParseKind(\"\") expected error, got nil")
	}
}

func TestTagged(t *testing.T) {
	var nilItem *SyncItem
	if nilItem.Tagged() {
		t.Error("nil item reported as tagged")
	}
	if (&SyncItem{Label: "no tag"}).Tagged() {
		t.Error("kindless item reported as tagged")
	}
	if !(&SyncItem{Kind: KindRisk, Label: "supplier delay"}).Tagged() {
		t.Error("risk item not reported as tagged")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	now := time.Now()
	orig := &SyncItem{Kind: KindFeature, Sequence: 12, Label: "Improve search", LastModified: &now}
	cp := orig.Clone()
	cp.EpicRef = "E07"
	cp.Sequence = 99

	if orig.EpicRef != "" || orig.Sequence != 12 {
		t.Errorf("mutating clone changed original: %+v", orig)
	}
}

func TestScopeString(t *testing.T) {
	if got := (Scope{Iteration: 4}).String(); got != "iteration 4" {
		t.Errorf("Scope.String() = %q", got)
	}
	if got := (Scope{Iteration: 4, EpicID: "E07"}).String(); got != "iteration 4, epic E07" {
		t.Errorf("Scope.String() = %q", got)
	}
}
