package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-alert-service/internal/alert"
)

var ledgerCmd = &cobra.Command{
	Use:     "ledger",
	Short:   "Inspect or reset the record of alerted earthquakes",
	GroupID: "alerts",
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List alerted earthquake ids, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := state.Load()
		if err != nil {
			return err
		}
		if jsonOutput {
			ids := st.Ledger
			if ids == nil {
				ids = []string{}
			}
			return printJSON(cmd.OutOrStdout(), ids)
		}
		for _, id := range st.Ledger {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d entries\n", len(st.Ledger), alert.DefaultLedgerCapacity)
		return nil
	},
}

var ledgerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every alerted earthquake",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := state.ResetLedger(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Ledger cleared.")
		return nil
	},
}

func init() {
	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerResetCmd)
}
