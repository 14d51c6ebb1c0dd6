package iobeya

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/plansync/plansync/internal/types"
)

func testStore(t *testing.T, handler http.Handler) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := &Store{}
	s.SetClient(NewClient(srv.URL, "test-token"), "board-1")
	return s
}

func TestFetchItemsFiltersNonCards(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/s/j/boards/board-1/details", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"@class":"com.iobeya.dto.BoardCardDTO","id":"c1","entityType":"FeatureCard",
			 "props":{"title":"[FP3-12] : search","description":"notes"},
			 "checklist":[
				{"@class":"com.iobeya.dto.ChecklistItemDTO","kind":"hypothesis","label":"faster results","checked":false},
				{"@class":"com.iobeya.dto.ChecklistItemDTO","kind":"hypothesis","label":"fewer clicks","checked":true},
				{"@class":"com.iobeya.dto.ChecklistItemDTO","kind":"acceptance","label":"p95 under 200ms","checked":false}
			 ]},
			{"@class":"com.iobeya.dto.BoardZoneDTO","id":"z1","props":{"title":"[FP3-99] not a card"}},
			{"@class":"com.iobeya.dto.BoardCardDTO","id":"c2","entityType":"FreeNote",
			 "props":{"title":"[FP3-98] wrong template"}},
			{"@class":"com.iobeya.dto.BoardCardDTO","id":"c3","entityType":"FeatureCard",
			 "props":{"title":"scratch note"}}
		]`))
	})

	s := testStore(t, mux)
	items, err := s.FetchItems(context.Background(), types.Scope{Iteration: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	it := items[0]
	if it.Kind != types.KindFeature || it.Sequence != 12 || it.Label != "search" {
		t.Errorf("item = %+v", it)
	}
	if it.Description != "notes" {
		t.Errorf("Description = %q", it.Description)
	}
	if it.Hypotheses != "faster results\nfewer clicks" {
		t.Errorf("Hypotheses = %q", it.Hypotheses)
	}
	if it.AcceptanceCriteria != "p95 under 200ms" {
		t.Errorf("AcceptanceCriteria = %q", it.AcceptanceCriteria)
	}
	if it.SourceNativeID != "c1" {
		t.Errorf("SourceNativeID = %q", it.SourceNativeID)
	}
}

// Cards tagged without an iteration must stay visible to scoped runs, or
// newly added cards could never be adopted into the scope.
func TestFetchItemsKeepsBareTagsInScopedRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/s/j/boards/board-1/details", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"@class":"com.iobeya.dto.BoardCardDTO","id":"c1","entityType":"FeatureCard",
			 "props":{"title":"[Feat] new importer"}},
			{"@class":"com.iobeya.dto.BoardCardDTO","id":"c2","entityType":"FeatureCard",
			 "props":{"title":"[FP2-1] : other iteration"}}
		]`))
	})

	s := testStore(t, mux)
	items, err := s.FetchItems(context.Background(), types.Scope{Iteration: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want only the bare-tagged card", len(items))
	}
	if items[0].SourceNativeID != "c1" || items[0].Iteration != 0 {
		t.Errorf("item = %+v", items[0])
	}
}

func TestCreateItemPayload(t *testing.T) {
	var created CardDTO
	mux := http.NewServeMux()
	mux.HandleFunc("/s/j/elements", func(w http.ResponseWriter, r *http.Request) {
		var batch []CardDTO
		json.NewDecoder(r.Body).Decode(&batch)
		if len(batch) != 1 {
			t.Fatalf("batch size = %d, want 1", len(batch))
		}
		created = batch[0]
		created.ID = "new-card"
		// Some servers answer with the element, not the batch.
		json.NewEncoder(w).Encode(created)
	})

	s := testStore(t, mux)
	id, err := s.CreateItem(context.Background(), &types.SyncItem{
		Kind: types.KindRisk, Iteration: 2, Sequence: 1, Label: "vendor risk",
		Hypotheses: "single supplier",
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != "new-card" {
		t.Errorf("id = %q", id)
	}
	if created.Class != "com.iobeya.dto.BoardCardDTO" || created.EntityType != "RiskCard" {
		t.Errorf("class = %q, entityType = %q", created.Class, created.EntityType)
	}
	if created.Props.Title != "[RP2-1] : vendor risk" || created.Name != created.Props.Title {
		t.Errorf("title prop = %q, name = %q", created.Props.Title, created.Name)
	}
	if created.Props.WSJF == nil {
		t.Error("wsjf block missing from props")
	}
	if created.Container == nil || created.Container.Type != "BlankBoardElementContainer" ||
		created.Container.ID != "board-1" {
		t.Errorf("container = %+v", created.Container)
	}
	if len(created.Checklist) != 1 || created.Checklist[0].Kind != "hypothesis" ||
		created.Checklist[0].Label != "single supplier" {
		t.Errorf("checklist = %+v", created.Checklist)
	}
	if created.Checklist[0].Class != "com.iobeya.dto.ChecklistItemDTO" {
		t.Errorf("checklist item class = %q", created.Checklist[0].Class)
	}
}

func TestCreateItemPlacesCardsInGrid(t *testing.T) {
	var cards []CardDTO
	mux := http.NewServeMux()
	mux.HandleFunc("/s/j/elements", func(w http.ResponseWriter, r *http.Request) {
		var batch []CardDTO
		json.NewDecoder(r.Body).Decode(&batch)
		cards = append(cards, batch...)
		batch[0].ID = "new-card"
		json.NewEncoder(w).Encode(batch)
	})

	s := testStore(t, mux)
	for i := 0; i < 15; i++ {
		if _, err := s.CreateItem(context.Background(), &types.SyncItem{
			Kind: types.KindRisk, Iteration: 2, Sequence: i + 1, Label: "vendor risk",
		}); err != nil {
			t.Fatal(err)
		}
	}

	if len(cards) != 15 {
		t.Fatalf("got %d cards", len(cards))
	}
	if cards[0].X != placeStartX || cards[0].Y != placeStartY {
		t.Errorf("first card at (%v, %v)", cards[0].X, cards[0].Y)
	}
	if cards[1].X != cards[0].X+placeStepX || cards[1].Y != cards[0].Y {
		t.Errorf("second card at (%v, %v)", cards[1].X, cards[1].Y)
	}
	// The walk wraps to a new row before running off the workspace edge.
	last := cards[len(cards)-1]
	if last.X != placeStartX || last.Y != placeStartY+placeStepY {
		t.Errorf("card 15 at (%v, %v), want start of row two", last.X, last.Y)
	}
	for _, c := range cards {
		if c.X+cardWidth > workspaceWidth {
			t.Errorf("card at X %v overflows the workspace", c.X)
		}
	}
}

func TestUpdateTitle(t *testing.T) {
	var updated CardDTO
	mux := http.NewServeMux()
	mux.HandleFunc("/s/j/elements", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		var batch []CardDTO
		json.NewDecoder(r.Body).Decode(&batch)
		if len(batch) == 1 {
			updated = batch[0]
		}
		w.Write([]byte(`[]`))
	})

	s := testStore(t, mux)
	if err := s.UpdateTitle(context.Background(), "c9", "[IssueP2-E07-R1] : login crash"); err != nil {
		t.Fatal(err)
	}
	if updated.ID != "c9" || updated.Props.Title != "[IssueP2-E07-R1] : login crash" {
		t.Errorf("updated = %+v", updated)
	}
}

func TestFetchItemsTransportError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})

	s := testStore(t, mux)
	_, err := s.FetchItems(context.Background(), types.Scope{})
	if err == nil {
		t.Fatal("expected error")
	}
}
