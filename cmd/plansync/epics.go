package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var epicsCmd = &cobra.Command{
	Use:   "epics",
	Short: "List the epics defined in the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ledger, _, _, err := openStores(ctx)
		if err != nil {
			return err
		}
		epics, err := ledger.FetchEpics(ctx)
		if err != nil {
			return err
		}
		if len(epics) == 0 {
			fmt.Println(mutedStyle.Render("No epics defined."))
			return nil
		}
		for _, e := range epics {
			fmt.Printf("%s  %s\n", accentStyle.Render(e.ManualID), e.Name)
		}
		return nil
	},
}
