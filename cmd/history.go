package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"eth-shift/pkg/journal"
)

var historyUnresolved bool

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded conversion runs",
	Long: `List the runs recorded in the journal, or show the legs of one run.
A run id may be shortened to any unique prefix.

Runs with a pending leg were interrupted between broadcasting a transaction
and seeing it confirmed. Check those transactions with 'eth-shift status'.

Examples:
  eth-shift history
  eth-shift history --unresolved
  eth-shift history 3f2a9c1e`,
	Args: cobra.MaximumNArgs(1),
	Run:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().BoolVarP(&historyUnresolved, "unresolved", "u", false, "Only show runs with unconfirmed transactions")
}

func runHistory(cmd *cobra.Command, args []string) {
	a := loadApp(cmd)

	j, err := a.journal()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if len(args) == 1 {
		run, err := j.GetRun(args[0])
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if a.json {
			printJSON(run)
			return
		}
		displayRun(run)
		return
	}

	runs := j.ListRuns()
	if historyUnresolved {
		runs = j.Unresolved()
	}

	if a.json {
		printJSON(runs)
		return
	}

	if len(runs) == 0 {
		color.Yellow("No runs recorded in %s\n", j.Path())
		fmt.Println("\nStart one with:")
		color.Cyan("  eth-shift convert --symbol EOS\n")
		return
	}
	displayRuns(runs)
}

func displayRuns(runs []*journal.Run) {
	fmt.Println("\n" + strings.Repeat("=", 100))
	color.Green("                                         RUNS")
	fmt.Println(strings.Repeat("=", 100))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nID\tSTARTED\tSYMBOL\tLEGS\tSTATUS\tERROR")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, run := range runs {
		legs := fmt.Sprintf("%d", len(run.Legs))
		if pending := len(run.PendingLegs()); pending > 0 {
			legs += color.RedString(" (%d pending)", pending)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID[:8],
			run.Started.Format("2006-01-02 15:04"),
			run.Symbol,
			legs,
			getColoredStatus(string(run.Status)),
			truncateString(run.Error, 40))
	}

	w.Flush()
	fmt.Println("\n" + strings.Repeat("=", 100) + "\n")
}

func displayRun(run *journal.Run) {
	fmt.Println("\n" + strings.Repeat("=", 100))
	color.Green("                                  RUN %s", run.ID)
	fmt.Println(strings.Repeat("=", 100))

	fmt.Printf("\n  Symbol:    %s\n", color.CyanString(run.Symbol))
	fmt.Printf("  Account:   %s\n", run.Account)
	fmt.Printf("  Status:    %s\n", getColoredStatus(string(run.Status)))
	fmt.Printf("  Started:   %s\n", run.Started.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Updated:   %s\n", run.Updated.Format("2006-01-02 15:04:05"))
	if run.Error != "" {
		fmt.Printf("  Error:     %s\n", color.RedString(run.Error))
	}

	if len(run.Legs) == 0 {
		fmt.Println("\n" + strings.Repeat("=", 100) + "\n")
		return
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PAIR\tAMOUNT\tNONCE\tTX\tBLOCK\tCONFS\tEXCHANGE\tSTATUS")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, leg := range run.Legs {
		pair := leg.Pair
		if pair == "" {
			pair = leg.Asset + " transfer"
		}
		fmt.Fprintf(w, "%s\t%s %s\t%d\t%s\t%d\t%d\t%s\t%s\n",
			pair,
			leg.Amount, leg.Asset,
			leg.Nonce,
			leg.TxHash,
			leg.BlockNumber,
			leg.Confirmations,
			leg.ExchangeStatus,
			getColoredStatus(string(leg.Status)))
		if leg.Error != "" {
			fmt.Fprintf(w, "\t%s\t\t\t\t\t\t\n", color.RedString(leg.Error))
		}
	}

	w.Flush()

	if pending := run.PendingLegs(); len(pending) > 0 {
		fmt.Println()
		color.Yellow("  %d transaction(s) were broadcast but never confirmed:", len(pending))
		for _, leg := range pending {
			fmt.Printf("    eth-shift status %s\n", leg.TxHash)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 100) + "\n")
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
