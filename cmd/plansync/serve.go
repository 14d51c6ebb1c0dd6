package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plansync/plansync/internal/config"
	"github.com/plansync/plansync/internal/journal"
	"github.com/plansync/plansync/internal/web"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reconciliation API over HTTP",
	Long: `Serve a JSON API for dashboards and scheduled runners.

Endpoints:
  GET  /health         liveness probe
  GET  /api/epics      epics defined in the ledger
  POST /api/verify     divergence report, no writes
  POST /api/reconcile  full reconciliation run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ledger, board, tracker, err := openStores(ctx)
		if err != nil {
			return err
		}

		jnl, err := journal.Open(config.JournalPath())
		if err != nil {
			return err
		}
		defer jnl.Close()

		addr := listenAddr
		if addr == "" {
			addr = config.ListenAddr()
		}
		server := web.NewServer(ledger, board, tracker, jnl, addr)
		fmt.Println(accentStyle.Render("Listening on " + addr))
		return server.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Bind address (default from config, "+config.DefaultListenAddr+")")
}
