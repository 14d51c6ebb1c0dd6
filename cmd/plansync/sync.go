package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plansync/plansync/internal/config"
	"github.com/plansync/plansync/internal/journal"
	"github.com/plansync/plansync/internal/reconcile"
	"github.com/plansync/plansync/internal/types"
)

var dryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the ledger, board, and tracker",
	Long: `Reconcile the three stores for the selected scope.

The ledger is authoritative. Items found only on the board or in the
tracker are materialized into the ledger under a freshly allocated tag,
the originating card or issue is retitled to carry that tag, and ledger
items missing from an external store are created there.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context())
	},
}

func init() {
	addScopeFlags(syncCmd)
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
}

func runSync(ctx context.Context) error {
	ledger, board, tracker, err := openStores(ctx)
	if err != nil {
		return err
	}
	scope := types.Scope{Iteration: iteration, EpicID: epicID}

	engine := &reconcile.Engine{
		Ledger:    ledger,
		Board:     board,
		Tracker:   tracker,
		DryRun:    dryRun,
		OnMessage: func(m string) { fmt.Println(mutedStyle.Render(m)) },
		OnWarning: func(m string) { fmt.Println(warnStyle.Render("Warning: " + m)) },
	}

	result, err := engine.Run(ctx, scope)
	if err != nil {
		return err
	}

	if !dryRun {
		if jnl, jerr := journal.Open(config.JournalPath()); jerr == nil {
			if _, rerr := jnl.Record(ctx, scope, result, dryRun); rerr != nil {
				fmt.Println(warnStyle.Render("Warning: could not record run: " + rerr.Error()))
			}
			jnl.Close()
		} else {
			fmt.Println(warnStyle.Render("Warning: could not open journal: " + jerr.Error()))
		}
	}

	fmt.Println()
	fmt.Println(boldStyle.Render("Summary"))
	fmt.Printf("  Materialized in ledger: %d\n", result.Stats.LedgerCreated)
	fmt.Printf("  Created on board:       %d\n", result.Stats.BoardCreated)
	fmt.Printf("  Created in tracker:     %d\n", result.Stats.TrackerCreated)
	fmt.Printf("  Titles rewritten:       %d\n", result.Stats.Retagged)

	if result.Failed() {
		fmt.Println(failStyle.Render(fmt.Sprintf("%d items failed:", len(result.Failures))))
		for _, f := range result.Failures {
			fmt.Printf("  %s (%s): %s\n", f.Key, f.Store, f.Error)
		}
		return fmt.Errorf("run completed with %d failures", len(result.Failures))
	}
	fmt.Println(okStyle.Render("Done."))
	return nil
}
