package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/plansync/plansync/internal/debug"
	"github.com/plansync/plansync/internal/store"
	"github.com/plansync/plansync/internal/tag"
	"github.com/plansync/plansync/internal/types"
)

// Engine drives one reconciliation run across the three stores. The
// Ledger is authoritative: items discovered only in the Board or Tracker
// are materialized into the Ledger, items missing from an external store
// are created there, and externally-discovered items get their source
// title rewritten to carry the canonical tag.
//
// An Engine is cheap to construct and single-use per run is fine, but it
// is also safe to reuse: all per-run state lives on the stack of Run.
type Engine struct {
	Ledger  store.Ledger
	Board   store.Store
	Tracker store.Store

	// BoardKinds and TrackerKinds restrict which item kinds each external
	// store participates in. A nil slice means all kinds.
	BoardKinds   []types.ItemKind
	TrackerKinds []types.ItemKind

	// DryRun reports what would change without writing to any store.
	DryRun bool

	// OnMessage receives progress lines; OnWarning receives recoverable
	// per-item problems. Both may be nil.
	OnMessage func(string)
	OnWarning func(string)
}

// DefaultTrackerKinds is the allow-list for issue trackers: they carry
// work items and defects, not risks, dependencies, or objectives.
var DefaultTrackerKinds = []types.ItemKind{types.KindFeature, types.KindIssue}

func (e *Engine) message(format string, args ...interface{}) {
	if e.OnMessage != nil {
		e.OnMessage(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) warning(format string, args ...interface{}) {
	if e.OnWarning != nil {
		e.OnWarning(fmt.Sprintf(format, args...))
	}
}

// Run executes a full reconciliation for the given scope. The returned
// Result is non-nil even on partial failure; a nil error with a non-empty
// Result.Failures means some per-item writes failed but the run completed.
// A non-nil error means the run aborted: scope resolution failed, a store
// fetch failed, or a Ledger write failed.
func (e *Engine) Run(ctx context.Context, scope types.Scope) (*types.Result, error) {
	result := &types.Result{StartedAt: time.Now()}
	defer func() { result.FinishedAt = time.Now() }()

	epic, err := e.resolveEpic(ctx, scope)
	if err != nil {
		return result, err
	}

	ledgerItems, boardItems, trackerItems, err := e.fetchAll(ctx, scope, result)
	if err != nil {
		return result, err
	}

	boardDiff := Diff(ledgerItems, boardItems, e.boardKinds(), epic)
	trackerDiff := Diff(ledgerItems, trackerItems, e.trackerKinds(), epic)

	debug.Logf("reconcile: board diff %+v tracker diff %+v",
		Summarize(boardDiff), Summarize(trackerDiff))

	missing := e.mergeNotPresent(boardDiff, trackerDiff)

	materialized, err := e.createInLedger(ctx, scope, epic, ledgerItems, missing, result)
	if err != nil {
		return result, err
	}

	e.createInExternal(ctx, boardDiff, trackerDiff, materialized, boardItems, trackerItems, result)
	e.backPropagateTags(ctx, materialized, result)

	result.LedgerSynced = true
	result.BoardSynced = true
	result.TrackerSynced = true
	return result, nil
}

func (e *Engine) resolveEpic(ctx context.Context, scope types.Scope) (*types.Epic, error) {
	if scope.EpicID == "" {
		return nil, nil
	}
	epic, err := e.Ledger.FetchEpic(ctx, scope.EpicID)
	if err != nil {
		return nil, &ScopeError{EpicID: scope.EpicID, Err: err}
	}
	if epic == nil {
		return nil, &ScopeError{EpicID: scope.EpicID}
	}
	e.message("Scope: iteration %d, epic %s (%s)", scope.Iteration, epic.ManualID, epic.Name)
	return epic, nil
}

func (e *Engine) fetchAll(ctx context.Context, scope types.Scope, result *types.Result) (ledger, board, tracker []*types.SyncItem, err error) {
	ledger, err = e.Ledger.FetchItems(ctx, scope)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fetching ledger items: %w", err)
	}
	result.Stats.LedgerItems = len(ledger)
	e.message("Fetched %d items from %s", len(ledger), e.Ledger.DisplayName())

	board, err = e.Board.FetchItems(ctx, scope)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fetching board items: %w", err)
	}
	result.Stats.BoardItems = len(board)
	e.message("Fetched %d items from %s", len(board), e.Board.DisplayName())

	tracker, err = e.Tracker.FetchItems(ctx, scope)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fetching tracker items: %w", err)
	}
	result.Stats.TrackerItems = len(tracker)
	e.message("Fetched %d items from %s", len(tracker), e.Tracker.DisplayName())
	return ledger, board, tracker, nil
}

func (e *Engine) boardKinds() []types.ItemKind {
	if e.BoardKinds != nil {
		return e.BoardKinds
	}
	return types.AllKinds
}

func (e *Engine) trackerKinds() []types.ItemKind {
	if e.TrackerKinds != nil {
		return e.TrackerKinds
	}
	return DefaultTrackerKinds
}

// mergeNotPresent collects externally-discovered items from both diffs,
// deduplicating by composite key. When the same key surfaces in both
// external stores the Board copy wins; the Tracker copy describes the
// same item and carries no extra fields the Ledger needs.
func (e *Engine) mergeNotPresent(boardDiff, trackerDiff []Record) []*types.SyncItem {
	seen := make(map[CompositeKey]bool)
	var out []*types.SyncItem

	collect := func(records []Record, role types.StoreRole) {
		for _, r := range records {
			if r.Action != ActionNotPresent || seen[r.Key] {
				continue
			}
			seen[r.Key] = true
			it := r.Item.Clone()
			it.SourceStore = role
			out = append(out, it)
		}
	}
	collect(boardDiff, types.RoleBoard)
	collect(trackerDiff, types.RoleTracker)
	return out
}

// createInLedger materializes externally-discovered items into the Ledger,
// allocating a fresh sequence number for each so the canonical tag is
// unique within the scope. A Ledger write failure aborts the run: leaving
// the authoritative store partially updated while continuing to push to
// external stores would widen the divergence being repaired.
func (e *Engine) createInLedger(ctx context.Context, scope types.Scope, epic *types.Epic, ledgerItems, missing []*types.SyncItem, result *types.Result) ([]*types.SyncItem, error) {
	if len(missing) == 0 {
		return nil, nil
	}

	alloc := NewAllocator(scope.Iteration, ledgerItems)
	materialized := make([]*types.SyncItem, 0, len(missing))

	for _, it := range missing {
		item := it.Clone()
		item.Iteration = scope.Iteration
		item.Sequence = alloc.Next(item.Kind)
		if epic != nil && item.EpicRef == "" {
			item.EpicRef = epic.ManualID
		}
		canonical := tag.ForItem(item)

		if e.DryRun {
			e.message("[dry-run] Would create %s %q in %s as [%s]",
				item.Kind, item.Label, e.Ledger.DisplayName(), canonical)
			materialized = append(materialized, item)
			result.Stats.LedgerCreated++
			continue
		}

		if _, err := e.Ledger.CreateItem(ctx, item); err != nil {
			return materialized, fmt.Errorf("creating %q in ledger: %w", item.Label, err)
		}
		e.message("Created [%s] %s in %s", canonical, item.Label, e.Ledger.DisplayName())
		materialized = append(materialized, item)
		result.Stats.LedgerCreated++
	}
	result.CreatedCount = result.Stats.LedgerCreated
	return materialized, nil
}

// createInExternal pushes Ledger items missing from an external store into
// that store, and mirrors newly materialized items into the external store
// they did not come from. External write failures are per-item: recorded
// and skipped, never fatal.
func (e *Engine) createInExternal(ctx context.Context, boardDiff, trackerDiff []Record, materialized, boardItems, trackerItems []*types.SyncItem, result *types.Result) {
	boardHas := keyIndex(boardItems, e.boardKinds())
	trackerHas := keyIndex(trackerItems, e.trackerKinds())

	push := func(target store.Store, role types.StoreRole, allowed []types.ItemKind, it *types.SyncItem) {
		key, ok := NormalizeKey(it, allowed)
		if !ok {
			return
		}
		if e.DryRun {
			e.message("[dry-run] Would create [%s] %s in %s", tag.ForItem(it), it.Label, target.DisplayName())
			e.countExternal(role, result)
			return
		}
		if _, err := target.CreateItem(ctx, it); err != nil {
			e.warning("Failed to create %q in %s: %v", it.Label, target.DisplayName(), err)
			result.Failures = append(result.Failures, types.ItemFailure{
				Key: string(key), Store: role, Error: err.Error(),
			})
			return
		}
		e.message("Created [%s] %s in %s", tag.ForItem(it), it.Label, target.DisplayName())
		e.countExternal(role, result)
	}

	for _, r := range boardDiff {
		if r.Action == ActionCreate {
			push(e.Board, types.RoleBoard, e.boardKinds(), r.Item)
		} else if r.Action == ActionNoOp {
			result.Stats.NoOps++
		}
	}
	for _, r := range trackerDiff {
		if r.Action == ActionCreate {
			push(e.Tracker, types.RoleTracker, e.trackerKinds(), r.Item)
		} else if r.Action == ActionNoOp {
			result.Stats.NoOps++
		}
	}

	// Items discovered in one external store are mirrored into the other,
	// now that the Ledger holds their canonical identity. Presence is
	// checked by label rather than full key because materialization may
	// have reallocated the sequence number.
	for _, it := range materialized {
		switch it.SourceStore {
		case types.RoleBoard:
			if !hasLabel(trackerHas, it) {
				push(e.Tracker, types.RoleTracker, e.trackerKinds(), it)
			}
		case types.RoleTracker:
			if !hasLabel(boardHas, it) {
				push(e.Board, types.RoleBoard, e.boardKinds(), it)
			}
		}
	}
}

func hasLabel(idx map[CompositeKey]*types.SyncItem, it *types.SyncItem) bool {
	for _, existing := range idx {
		if existing.Kind == it.Kind && strings.EqualFold(existing.Label, it.Label) {
			return true
		}
	}
	return false
}

func (e *Engine) countExternal(role types.StoreRole, result *types.Result) {
	switch role {
	case types.RoleBoard:
		result.Stats.BoardCreated++
	case types.RoleTracker:
		result.Stats.TrackerCreated++
	}
}

// backPropagateTags rewrites the source title of each newly materialized
// item so the originating store shows the canonical tag. Failures here are
// cosmetic: the item is already reconciled, only its display name lags.
func (e *Engine) backPropagateTags(ctx context.Context, materialized []*types.SyncItem, result *types.Result) {
	for _, it := range materialized {
		if it.SourceNativeID == "" {
			continue
		}
		src := e.storeForRole(it.SourceStore)
		if src == nil {
			continue
		}
		title := tag.Title(tag.ForItem(it), it.Label)
		if e.DryRun {
			e.message("[dry-run] Would retitle %s item %s to %q", src.DisplayName(), it.SourceNativeID, title)
			result.Stats.Retagged++
			continue
		}
		if err := src.UpdateTitle(ctx, it.SourceNativeID, title); err != nil {
			e.warning("Failed to retitle %s item %s: %v", src.DisplayName(), it.SourceNativeID, err)
			key, _ := NormalizeKey(it, nil)
			result.Failures = append(result.Failures, types.ItemFailure{
				Key: string(key), Store: it.SourceStore, Error: err.Error(),
			})
			continue
		}
		result.Stats.Retagged++
	}
}

func (e *Engine) storeForRole(role types.StoreRole) store.Store {
	switch role {
	case types.RoleBoard:
		return e.Board
	case types.RoleTracker:
		return e.Tracker
	case types.RoleLedger:
		return e.Ledger
	}
	return nil
}
