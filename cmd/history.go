package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"reef-swap/pkg/history"
)

var historyStatusFilter string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded swaps",
	Long: `List the swaps recorded in the local journal, newest first.

Examples:
  reef-swap history
  reef-swap history --status failed
  reef-swap history delete <swap-id>`,
	Run: runHistoryList,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <swap-id>",
	Short: "Delete a finished swap from the journal",
	Args:  cobra.ExactArgs(1),
	Run:   runHistoryDelete,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyDeleteCmd)

	historyCmd.Flags().StringVar(&historyStatusFilter, "status", "", "Filter by status (pending, approved, submitted, in_block, finalized, failed)")
}

func openJournal(cmd *cobra.Command) *history.Journal {
	cfg := loadConfig(cmd)
	journal, err := history.NewJournal(cfg.HistoryPath, nil)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	return journal
}

func runHistoryList(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	journal := openJournal(cmd)

	var records []*history.Record
	if historyStatusFilter != "" {
		records = journal.ListSwapsByStatus(history.SwapStatus(historyStatusFilter))
	} else {
		records = journal.ListSwaps()
	}

	if jsonOutput {
		summaries := make([]*history.Summary, len(records))
		for i, r := range records {
			summaries[i] = r.ToSummary()
		}
		printJSON(summaries)
		return
	}

	if len(records) == 0 {
		color.Yellow("No swaps recorded yet.\n")
		fmt.Println("\nStart a swap with:")
		color.Cyan("  reef-swap swap <amount> <token> to <token>\n")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 100))
	color.Green("                                         SWAP HISTORY")
	fmt.Println(strings.Repeat("=", 100))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nID\tSELL\tBUY\tMODE\tSTATUS\tCREATED")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range records {
		mode := "sequential"
		if r.Batch {
			mode = "batch"
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s %s\t%s\t%s\t%s\n",
			truncateString(r.ID, 8),
			r.SellAmount, r.SellToken,
			r.BuyAmount, r.BuyToken,
			mode,
			getSwapStatusColor(r.Status),
			r.Created.Format("2006-01-02 15:04:05"))
	}

	w.Flush()
	fmt.Println("\n" + strings.Repeat("=", 100) + "\n")
}

func runHistoryDelete(cmd *cobra.Command, args []string) {
	journal := openJournal(cmd)
	if err := journal.DeleteSwap(args[0]); err != nil {
		printError(err)
		os.Exit(1)
	}
	color.Green("\n✓ Swap '%s' has been deleted.\n", args[0])
}

func getSwapStatusColor(status history.SwapStatus) string {
	switch status {
	case history.StatusFinalized:
		return color.GreenString(string(status))
	case history.StatusInBlock, history.StatusSubmitted, history.StatusApproved:
		return color.CyanString(string(status))
	case history.StatusPending:
		return color.YellowString(string(status))
	case history.StatusFailed:
		return color.RedString(string(status))
	default:
		return string(status)
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
