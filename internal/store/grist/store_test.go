package grist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/plansync/plansync/internal/types"
)

func testStore(t *testing.T, handler http.Handler) (*Store, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := &Store{}
	s.SetClient(NewClient("test-key", "doc123").WithBaseURL(srv.URL))
	return s, srv
}

func recordsJSON(records ...map[string]interface{}) string {
	b, _ := json.Marshal(map[string]interface{}{"records": records})
	return string(b)
}

func TestFetchItemsParsesTags(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/docs/doc123/tables/Features/records", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(recordsJSON(
			map[string]interface{}{"id": 1, "fields": map[string]interface{}{
				"Title":       "[FP3-012] Improve search",
				"Description": "Faster indexing",
			}},
			map[string]interface{}{"id": 2, "fields": map[string]interface{}{
				"Title": "no tag here",
			}},
		)))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"records":[]}`))
	})

	s, _ := testStore(t, mux)
	items, err := s.FetchItems(context.Background(), types.Scope{Iteration: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (untagged row skipped)", len(items))
	}
	it := items[0]
	if it.Kind != types.KindFeature || it.Iteration != 3 || it.Sequence != 12 {
		t.Errorf("item = %+v", it)
	}
	if it.Label != "Improve search" {
		t.Errorf("Label = %q", it.Label)
	}
	if it.SourceNativeID != "Features:1" {
		t.Errorf("SourceNativeID = %q", it.SourceNativeID)
	}
}

func TestFetchItemsFiltersIteration(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/docs/doc123/tables/Features/records", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(recordsJSON(
			map[string]interface{}{"id": 1, "fields": map[string]interface{}{"Title": "[FP2-1] old"}},
			map[string]interface{}{"id": 2, "fields": map[string]interface{}{"Title": "[FP3-1] current"}},
		)))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"records":[]}`))
	})

	s, _ := testStore(t, mux)
	items, err := s.FetchItems(context.Background(), types.Scope{Iteration: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Label != "current" {
		t.Errorf("items = %+v", items)
	}
}

func TestCreateItem(t *testing.T) {
	var captured map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/docs/doc123/tables/Dependencies/records", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var env struct {
			Records []struct {
				Fields map[string]interface{} `json:"fields"`
			} `json:"records"`
		}
		json.NewDecoder(r.Body).Decode(&env)
		if len(env.Records) == 1 {
			captured = env.Records[0].Fields
		}
		w.Write([]byte(`{"records":[{"id":42}]}`))
	})

	s, _ := testStore(t, mux)
	id, err := s.CreateItem(context.Background(), &types.SyncItem{
		Kind: types.KindDependency, Iteration: 4, Sequence: 3,
		Label: "tax api", EpicRef: "E07",
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != "Dependencies:42" {
		t.Errorf("id = %q", id)
	}
	if captured["Title"] != "[DP4-E07-R3] : tax api" {
		t.Errorf("Title = %v", captured["Title"])
	}
	if captured["Epic"] != "E07" {
		t.Errorf("Epic = %v", captured["Epic"])
	}
	// JSON numbers decode as float64.
	if captured["Sequence"] != float64(3) || captured["Iteration"] != float64(4) {
		t.Errorf("Sequence = %v, Iteration = %v", captured["Sequence"], captured["Iteration"])
	}
}

func TestCreateObjectiveWritesCommitment(t *testing.T) {
	var captured map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/docs/doc123/tables/Objectives/records", func(w http.ResponseWriter, r *http.Request) {
		var env struct {
			Records []struct {
				Fields map[string]interface{} `json:"fields"`
			} `json:"records"`
		}
		json.NewDecoder(r.Body).Decode(&env)
		if len(env.Records) == 1 {
			captured = env.Records[0].Fields
		}
		w.Write([]byte(`{"records":[{"id":5}]}`))
	})

	s, _ := testStore(t, mux)
	if _, err := s.CreateItem(context.Background(), &types.SyncItem{
		Kind: types.KindObjective, Iteration: 1, Sequence: 2,
		Label: "Ship the beta", Commitment: types.CommitmentCommitted,
	}); err != nil {
		t.Fatal(err)
	}
	if captured["Commitment"] != "committed" {
		t.Errorf("Commitment = %v", captured["Commitment"])
	}
}

// Epic-scoped fetches keep only rows linked to that epic; rows without an
// epic link stay out of the run.
func TestFetchItemsFiltersEpic(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/docs/doc123/tables/Features/records", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(recordsJSON(
			map[string]interface{}{"id": 1, "fields": map[string]interface{}{
				"Title": "[FP3-1] linked", "Epic": "E07",
			}},
			map[string]interface{}{"id": 2, "fields": map[string]interface{}{
				"Title": "[FP3-2] other epic", "Epic": "E08",
			}},
			map[string]interface{}{"id": 3, "fields": map[string]interface{}{
				"Title": "[FP3-3] unlinked",
			}},
		)))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"records":[]}`))
	})

	s, _ := testStore(t, mux)
	items, err := s.FetchItems(context.Background(), types.Scope{Iteration: 3, EpicID: "e07"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Label != "linked" {
		t.Errorf("items = %+v", items)
	}
}

func TestUpdateTitle(t *testing.T) {
	var patched bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api/docs/doc123/tables/Features/records", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		var env struct {
			Records []struct {
				ID     int                    `json:"id"`
				Fields map[string]interface{} `json:"fields"`
			} `json:"records"`
		}
		json.NewDecoder(r.Body).Decode(&env)
		if len(env.Records) == 1 && env.Records[0].ID == 7 &&
			env.Records[0].Fields["Title"] == "[FP3-13] : filters" {
			patched = true
		}
		w.Write([]byte(`{"records":[{"id":7}]}`))
	})

	s, _ := testStore(t, mux)
	if err := s.UpdateTitle(context.Background(), "Features:7", "[FP3-13] : filters"); err != nil {
		t.Fatal(err)
	}
	if !patched {
		t.Error("expected PATCH with new title for record 7")
	}
}

func TestFetchEpic(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/docs/doc123/tables/Epics/records", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(recordsJSON(
			map[string]interface{}{"id": 41, "fields": map[string]interface{}{
				"Manual_ID": "E07", "Name": "Checkout",
			}},
		)))
	})

	s, _ := testStore(t, mux)
	epic, err := s.FetchEpic(context.Background(), "e07")
	if err != nil {
		t.Fatal(err)
	}
	if epic == nil || epic.InternalID != "41" || epic.Name != "Checkout" {
		t.Errorf("epic = %+v", epic)
	}

	missing, err := s.FetchEpic(context.Background(), "E99")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("unknown epic should be nil, got %+v", missing)
	}
}

func TestClientPermanentErrorNotRetried(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	s, _ := testStore(t, mux)
	_, err := s.FetchItems(context.Background(), types.Scope{})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("403 was retried %d times", calls)
	}
}

func TestNativeIDRoundTrip(t *testing.T) {
	table, id, err := parseNativeID(nativeID("Risks", 9))
	if err != nil || table != "Risks" || id != 9 {
		t.Errorf("got (%q, %d, %v)", table, id, err)
	}
	if _, _, err := parseNativeID("garbage"); err == nil {
		t.Error("expected error for malformed id")
	}
}
