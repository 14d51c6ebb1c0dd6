package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/plansync/plansync/internal/reconcile"
	"github.com/plansync/plansync/internal/types"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Report divergence between stores without changing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(cmd.Context())
	},
}

func init() {
	addScopeFlags(verifyCmd)
}

func runVerify(ctx context.Context) error {
	ledger, board, tracker, err := openStores(ctx)
	if err != nil {
		return err
	}
	scope := types.Scope{Iteration: iteration, EpicID: epicID}

	var epic *types.Epic
	if scope.EpicID != "" {
		epic, err = ledger.FetchEpic(ctx, scope.EpicID)
		if err != nil {
			return err
		}
		if epic == nil {
			return fmt.Errorf("epic %q not found in %s", scope.EpicID, ledger.DisplayName())
		}
	}

	var ledgerItems, boardItems, trackerItems []*types.SyncItem
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ledgerItems, err = ledger.FetchItems(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		boardItems, err = board.FetchItems(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		trackerItems, err = tracker.FetchItems(gctx, scope)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Println(boldStyle.Render(fmt.Sprintf("Scope %s", scope)))
	fmt.Printf("  %s: %d items, %s: %d items, %s: %d items\n",
		ledger.DisplayName(), len(ledgerItems),
		board.DisplayName(), len(boardItems),
		tracker.DisplayName(), len(trackerItems))

	boardSummary := reconcile.Summarize(reconcile.Diff(ledgerItems, boardItems, nil, epic))
	trackerSummary := reconcile.Summarize(reconcile.Diff(ledgerItems, trackerItems, reconcile.DefaultTrackerKinds, epic))

	printSummary(board.DisplayName(), boardSummary)
	printSummary(tracker.DisplayName(), trackerSummary)

	needsReview := boardSummary.Create + boardSummary.NotPresent +
		trackerSummary.Create + trackerSummary.NotPresent
	if needsReview == 0 {
		fmt.Println(okStyle.Render("All stores agree."))
		return nil
	}
	fmt.Println(warnStyle.Render(fmt.Sprintf("%d items need review. Run 'plansync sync' to reconcile.", needsReview)))
	return nil
}

func printSummary(name string, s reconcile.DiffSummary) {
	line := fmt.Sprintf("  %s: %d agree", name, s.NoOp)
	if s.Create > 0 {
		line += warnStyle.Render(fmt.Sprintf(", %d missing there", s.Create))
	}
	if s.NotPresent > 0 {
		line += warnStyle.Render(fmt.Sprintf(", %d unknown to ledger", s.NotPresent))
	}
	fmt.Println(line)
}
