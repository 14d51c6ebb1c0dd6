package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/plansync/plansync/internal/config"
	"github.com/plansync/plansync/internal/journal"
	"github.com/plansync/plansync/internal/timeparsing"
)

var sinceExpr string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past reconciliation runs",
	Long: `Show past reconciliation runs from the local journal.

The --since filter accepts compact durations (-1d, -2w), absolute dates
(2026-08-01), and natural language (yesterday, last monday).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var since time.Time
		if sinceExpr != "" {
			var err error
			since, err = timeparsing.ParseTimeExpression(sinceExpr, time.Now())
			if err != nil {
				return err
			}
		}

		jnl, err := journal.Open(config.JournalPath())
		if err != nil {
			return err
		}
		defer jnl.Close()

		runs, err := jnl.List(cmd.Context(), since)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println(mutedStyle.Render("No runs recorded."))
			return nil
		}

		for _, r := range runs {
			scope := fmt.Sprintf("iteration %d", r.Iteration)
			if r.EpicID != "" {
				scope += " epic " + r.EpicID
			}
			line := fmt.Sprintf("%s  %s  created %d, retagged %d",
				r.StartedAt.Local().Format("2006-01-02 15:04"),
				scope, r.CreatedCount, r.Retagged)
			if r.DryRun {
				line += mutedStyle.Render("  (dry run)")
			}
			if r.FailureCount > 0 {
				line += failStyle.Render(fmt.Sprintf("  %d failures", r.FailureCount))
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&sinceExpr, "since", "", "Only show runs after this time (e.g. -1w, 2026-08-01, yesterday)")
}
