// Package store defines the adapter interface that connects the
// reconciliation engine to the three record stores, plus the registry and
// configuration plumbing shared by all adapters.
//
// Each external system (Grist, iObeya, GitHub) provides an adapter
// implementing Store; the Ledger adapter additionally implements Ledger.
// Adapters own transport concerns end to end: pagination, retry policy,
// and tag parsing of raw titles. The engine never sees a raw record.
package store

import (
	"context"

	"github.com/plansync/plansync/internal/types"
)

// Store is the plugin interface all store adapters implement.
type Store interface {
	// Name returns the lowercase identifier for this adapter (e.g. "grist").
	Name() string

	// DisplayName returns the human-readable name (e.g. "Grist").
	DisplayName() string

	// Role returns which reconciliation role this store plays.
	Role() types.StoreRole

	// Init initializes the adapter from configuration. Called once before
	// any other operation.
	Init(ctx context.Context, cfg *Config) error

	// Validate checks that the adapter is properly configured.
	Validate() error

	// Close releases any resources held by the adapter.
	Close() error

	// FetchItems reads all items visible to the given scope filter. Items
	// are returned with their titles already passed through the tag
	// grammar: Label is tag-stripped and Kind/Iteration/Sequence are
	// populated when a tag was present.
	FetchItems(ctx context.Context, scope types.Scope) ([]*types.SyncItem, error)

	// CreateItem creates a native record representing the item, rendering
	// the canonical tag into the native title. Returns the store-native id.
	CreateItem(ctx context.Context, item *types.SyncItem) (string, error)

	// UpdateTitle rewrites the display title of an existing native record,
	// used to back-propagate a canonical tag.
	UpdateTitle(ctx context.Context, nativeID, newTitle string) error
}

// Ledger is the authoritative store. It additionally resolves epics.
type Ledger interface {
	Store

	// FetchEpic resolves a user-facing epic manual identifier to the full
	// epic. Returns nil, nil when no epic matches.
	FetchEpic(ctx context.Context, manualID string) (*types.Epic, error)

	// FetchEpics lists all epics.
	FetchEpics(ctx context.Context) ([]*types.Epic, error)
}
