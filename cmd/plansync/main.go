// Package main provides the plansync CLI for reconciling planning items
// across the ledger, board, and tracker stores.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/plansync/plansync/internal/config"
	"github.com/plansync/plansync/internal/debug"
	"github.com/plansync/plansync/internal/store"

	// Store plugins register themselves on import.
	_ "github.com/plansync/plansync/internal/store/github"
	_ "github.com/plansync/plansync/internal/store/grist"
	_ "github.com/plansync/plansync/internal/store/iobeya"
)

// Global flags
var (
	verbose    bool
	forceColor bool
	iteration  int
	epicID     string
)

// Styles for output
var (
	okStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	})
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	})
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	})
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	})
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	})
	boldStyle = lipgloss.NewStyle().Bold(true)
)

var rootCmd = &cobra.Command{
	Use:   "plansync",
	Short: "Keep planning items agreed across Grist, iObeya, and GitHub",
	Long: `plansync reconciles a catalog of planning items across three stores:
the Grist ledger (authoritative), the iObeya board, and the GitHub tracker.

Items are matched by the bracketed tag in their title, e.g. [FP3-012].
Items found only in an external store are materialized into the ledger
with a freshly allocated tag, then mirrored everywhere they belong.

Examples:
  plansync verify --iteration 3           # Report divergence, change nothing
  plansync sync --iteration 3 --epic E07  # Reconcile one epic's scope
  plansync sync --iteration 3 --dry-run   # Show what a run would do
  plansync history --since -1w            # Recent run history`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return err
		}
		debug.SetVerbose(verbose)
		if forceColor {
			lipgloss.SetColorProfile(termenv.TrueColor)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&forceColor, "color", false, "Force color output")

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(epicsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// addScopeFlags attaches the scope selection flags shared by verify and sync.
func addScopeFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&iteration, "iteration", 0, "Iteration to reconcile (0 = all)")
	cmd.Flags().StringVar(&epicID, "epic", "", "Epic manual id to scope to (e.g. E07)")
}

// openStores initializes the three configured store plugins.
func openStores(ctx context.Context) (store.Ledger, store.Store, store.Store, error) {
	ledgerName, boardName, trackerName := config.StoreNames()

	open := func(name string) (store.Store, error) {
		s, err := store.New(name)
		if err != nil {
			return nil, err
		}
		if err := s.Init(ctx, config.StoreConfig(name)); err != nil {
			return nil, fmt.Errorf("initializing %s: %w", name, err)
		}
		return s, nil
	}

	ledgerStore, err := open(ledgerName)
	if err != nil {
		return nil, nil, nil, err
	}
	ledger, ok := ledgerStore.(store.Ledger)
	if !ok {
		return nil, nil, nil, fmt.Errorf("store %q cannot serve as the ledger", ledgerName)
	}
	board, err := open(boardName)
	if err != nil {
		return nil, nil, nil, err
	}
	tracker, err := open(trackerName)
	if err != nil {
		return nil, nil, nil, err
	}
	return ledger, board, tracker, nil
}
