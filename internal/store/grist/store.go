package grist

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/plansync/plansync/internal/debug"
	"github.com/plansync/plansync/internal/store"
	"github.com/plansync/plansync/internal/tag"
	"github.com/plansync/plansync/internal/types"
)

// Column ids in the planning document. One table per item kind plus an
// Epics table; all item tables share the same layout.
const (
	colTitle       = "Title"
	colDescription = "Description"
	colHypotheses  = "Hypotheses"
	colAcceptance  = "Acceptance_Criteria"
	colIteration   = "Iteration"
	colSequence    = "Sequence"
	colCommitment  = "Commitment"
	colEpic        = "Epic"

	epicsTable    = "Epics"
	colEpicManual = "Manual_ID"
	colEpicName   = "Name"
)

// itemTables maps each kind to its Grist table.
var itemTables = map[types.ItemKind]string{
	types.KindFeature:    "Features",
	types.KindRisk:       "Risks",
	types.KindDependency: "Dependencies",
	types.KindObjective:  "Objectives",
	types.KindIssue:      "Issues",
}

// Store is the Grist-backed Ledger. The tabular document is the
// authoritative record of planning items.
type Store struct {
	client *Client
}

var _ store.Ledger = (*Store)(nil)

func init() {
	store.Register("grist", func() store.Store { return &Store{} })
}

func (s *Store) Name() string          { return "grist" }
func (s *Store) DisplayName() string   { return "Grist" }
func (s *Store) Role() types.StoreRole { return types.RoleLedger }
func (s *Store) Close() error          { return nil }

func (s *Store) Init(ctx context.Context, cfg *store.Config) error {
	apiKey, err := cfg.GetRequired("api_key")
	if err != nil {
		return err
	}
	docID, err := cfg.GetRequired("doc_id")
	if err != nil {
		return err
	}
	s.client = NewClient(apiKey, docID)
	if base := cfg.Get("base_url"); base != "" {
		s.client = s.client.WithBaseURL(base)
	}
	return nil
}

func (s *Store) Validate() error {
	if s.client == nil {
		return &store.ErrNotInitialized{Store: s.Name()}
	}
	return nil
}

// SetClient injects a preconfigured client, bypassing Init. Used by tests.
func (s *Store) SetClient(c *Client) { s.client = c }

func (s *Store) FetchItems(ctx context.Context, scope types.Scope) ([]*types.SyncItem, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var items []*types.SyncItem
	for _, kind := range types.AllKinds {
		table := itemTables[kind]
		records, err := s.client.ListRecords(ctx, table)
		if err != nil {
			return nil, &store.TransportError{Store: s.Name(), Op: "list " + table, Err: err}
		}
		for _, rec := range records {
			it := s.itemFromRecord(kind, table, rec)
			if it == nil {
				continue
			}
			if scope.Iteration > 0 && it.Iteration != scope.Iteration {
				continue
			}
			// Epic-scoped runs keep only rows linked to that epic; rows
			// with an empty Epic column are out of scope.
			if scope.EpicID != "" && !strings.EqualFold(it.EpicRef, scope.EpicID) {
				continue
			}
			items = append(items, it)
		}
	}
	return items, nil
}

// itemFromRecord converts one row into a SyncItem. Rows whose title does
// not carry a recognizable tag are skipped; the reconciler only manages
// tagged items.
func (s *Store) itemFromRecord(kind types.ItemKind, table string, rec record) *types.SyncItem {
	title := stringField(rec.Fields, colTitle)
	parsed := tag.Parse(title)
	if parsed.Kind == "" {
		debug.Logf("grist: skipping untagged row %d in %s: %q", rec.ID, table, title)
		return nil
	}
	if parsed.Kind != kind {
		debug.Logf("grist: row %d in %s tagged as %s, skipping", rec.ID, table, parsed.Kind)
		return nil
	}
	it := &types.SyncItem{
		Kind:               parsed.Kind,
		Iteration:          parsed.Iteration,
		Sequence:           parsed.Sequence,
		Label:              parsed.Label,
		Commitment:         parsed.Commitment,
		Description:        stringField(rec.Fields, colDescription),
		Hypotheses:         stringField(rec.Fields, colHypotheses),
		AcceptanceCriteria: stringField(rec.Fields, colAcceptance),
		EpicRef:            stringField(rec.Fields, colEpic),
		SourceStore:        types.RoleLedger,
		SourceNativeID:     nativeID(table, rec.ID),
	}
	if it.Iteration == 0 {
		it.Iteration = intField(rec.Fields, colIteration)
	}
	if it.Sequence == 0 {
		it.Sequence = intField(rec.Fields, colSequence)
	}
	return it
}

func (s *Store) CreateItem(ctx context.Context, item *types.SyncItem) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	table, ok := itemTables[item.Kind]
	if !ok {
		return "", fmt.Errorf("no grist table for kind %q", item.Kind)
	}
	fields := map[string]interface{}{
		colTitle:       tag.Title(tag.ForItem(item), item.Label),
		colDescription: item.Description,
		colIteration:   item.Iteration,
		colSequence:    item.Sequence,
	}
	if item.EpicRef != "" {
		fields[colEpic] = item.EpicRef
	}
	if item.Kind == types.KindObjective && item.Commitment != "" {
		fields[colCommitment] = string(item.Commitment)
	}
	if item.Hypotheses != "" {
		fields[colHypotheses] = item.Hypotheses
	}
	if item.AcceptanceCriteria != "" {
		fields[colAcceptance] = item.AcceptanceCriteria
	}
	id, err := s.client.AddRecord(ctx, table, fields)
	if err != nil {
		return "", &store.TransportError{Store: s.Name(), Op: "insert " + table, Err: err}
	}
	return nativeID(table, id), nil
}

func (s *Store) UpdateTitle(ctx context.Context, native, newTitle string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	table, id, err := parseNativeID(native)
	if err != nil {
		return err
	}
	if err := s.client.UpdateRecord(ctx, table, id, map[string]interface{}{colTitle: newTitle}); err != nil {
		return &store.TransportError{Store: s.Name(), Op: "update " + table, Err: err}
	}
	return nil
}

func (s *Store) FetchEpic(ctx context.Context, manualID string) (*types.Epic, error) {
	epics, err := s.FetchEpics(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range epics {
		if strings.EqualFold(e.ManualID, manualID) {
			return e, nil
		}
	}
	return nil, nil
}

func (s *Store) FetchEpics(ctx context.Context) ([]*types.Epic, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	records, err := s.client.ListRecords(ctx, epicsTable)
	if err != nil {
		return nil, &store.TransportError{Store: s.Name(), Op: "list " + epicsTable, Err: err}
	}
	epics := make([]*types.Epic, 0, len(records))
	for _, rec := range records {
		epics = append(epics, &types.Epic{
			InternalID: strconv.Itoa(rec.ID),
			ManualID:   stringField(rec.Fields, colEpicManual),
			Name:       stringField(rec.Fields, colEpicName),
		})
	}
	return epics, nil
}

func nativeID(table string, id int) string {
	return table + ":" + strconv.Itoa(id)
}

func parseNativeID(native string) (table string, id int, err error) {
	table, idStr, ok := strings.Cut(native, ":")
	if !ok {
		return "", 0, fmt.Errorf("malformed grist record id %q", native)
	}
	id, err = strconv.Atoi(idStr)
	if err != nil {
		return "", 0, fmt.Errorf("malformed grist record id %q", native)
	}
	return table, id, nil
}

func stringField(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func intField(fields map[string]interface{}, key string) int {
	switch v := fields[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}
