// Package memory provides an in-memory Store and Ledger for tests.
// Behavior mirrors the real adapters closely enough for engine tests:
// fetches return seeded items, creates append and assign native ids,
// and any operation can be made to fail by setting the matching error.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/plansync/plansync/internal/store"
	"github.com/plansync/plansync/internal/types"
)

type Store struct {
	mu sync.Mutex

	name string
	role types.StoreRole

	Items  []*types.SyncItem
	Epics  []*types.Epic
	nextID int

	// Created and Retitled capture writes in call order.
	Created  []*types.SyncItem
	Retitled map[string]string

	FetchErr     error
	CreateErr    error
	UpdateErr    error
	FetchEpicErr error
}

var _ store.Ledger = (*Store)(nil)

func New(name string, role types.StoreRole) *Store {
	return &Store{name: name, role: role, Retitled: make(map[string]string)}
}

func (s *Store) Name() string          { return s.name }
func (s *Store) DisplayName() string   { return s.name }
func (s *Store) Role() types.StoreRole { return s.role }
func (s *Store) Validate() error       { return nil }
func (s *Store) Close() error          { return nil }

func (s *Store) Init(ctx context.Context, cfg *store.Config) error { return nil }

func (s *Store) FetchItems(ctx context.Context, scope types.Scope) ([]*types.SyncItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	out := make([]*types.SyncItem, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.Clone()
	}
	return out, nil
}

func (s *Store) CreateItem(ctx context.Context, item *types.SyncItem) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return "", s.CreateErr
	}
	s.nextID++
	id := fmt.Sprintf("%s-%d", s.name, s.nextID)
	clone := item.Clone()
	s.Items = append(s.Items, clone)
	s.Created = append(s.Created, clone)
	return id, nil
}

func (s *Store) UpdateTitle(ctx context.Context, nativeID, newTitle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	s.Retitled[nativeID] = newTitle
	return nil
}

func (s *Store) FetchEpic(ctx context.Context, manualID string) (*types.Epic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FetchEpicErr != nil {
		return nil, s.FetchEpicErr
	}
	for _, e := range s.Epics {
		if e.ManualID == manualID {
			return e, nil
		}
	}
	return nil, nil
}

func (s *Store) FetchEpics(ctx context.Context) ([]*types.Epic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FetchEpicErr != nil {
		return nil, s.FetchEpicErr
	}
	return append([]*types.Epic(nil), s.Epics...), nil
}
