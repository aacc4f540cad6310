// =============================================================================
// Tax Transaction Manager - History Command
// =============================================================================
//
// This file defines the 'history' command, which lists past processing runs
// recorded in the history database.
//
// COMMAND USAGE:
//   taxcalc history [--limit N]
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/ginjaninja78/tax-transaction-manager/internal/history"
	"github.com/spf13/cobra"
)

// historyLimit caps the number of runs shown. Zero shows all.
var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past processing runs",
	Long: `The history command lists the runs recorded in the history database,
most recent first. History is kept only when history_db is configured.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistory(cmd)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to show (0 for all)")
}

func runHistory(cmd *cobra.Command) error {
	if mainConfig.HistoryDB == "" {
		return errors.New("history is disabled: set history_db in the config or TAXCALC_HISTORY_DB")
	}

	store, err := history.Open(mainConfig.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROCESSED AT\tFILE\tTOTAL\tVALID\tINVALID\tSKIPPED\tDELETED\tRATE\tTAX\tID")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.2f\t%.2f\t%s\n",
			run.ProcessedAt.Local().Format("2006-01-02 15:04:05"),
			filepath.Base(run.SourceFile),
			run.Total,
			run.Valid,
			run.Invalid,
			run.Skipped,
			run.Deleted,
			run.TaxRate,
			run.FinalTax,
			run.ID,
		)
	}
	return w.Flush()
}
