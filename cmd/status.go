package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"reef-swap/pkg/history"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <swap-id>",
	Short: "Show the status of a recorded swap",
	Long: `Show a recorded swap with its transactions and lifecycle events.
A unique prefix of the swap id is enough.

Examples:
  reef-swap status 3f2a9c1e
  reef-swap status 3f2a9c1e --watch
  reef-swap status 3f2a9c1e --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch until the swap is finalized or failed")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	swapID := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if watchStatus {
		if jsonOutput {
			fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
			os.Exit(1)
		}
		watchSwapStatus(cmd, swapID)
		return
	}

	record, err := openJournal(cmd).GetSwap(swapID)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if jsonOutput {
		printJSON(record)
		return
	}
	displayStatus(record)
}

// watchSwapStatus reopens the journal on every tick, since another process
// is writing it.
func watchSwapStatus(cmd *cobra.Command, swapID string) {
	fmt.Printf("\nWatching swap %s\n", color.CyanString(swapID))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		record, err := openJournal(cmd).GetSwap(swapID)
		if err != nil {
			color.Red("Error: %v", err)
		} else {
			displayStatus(record)
			if record.IsTerminal() {
				return
			}
		}
		<-ticker.C
	}
}

func displayStatus(r *history.Record) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Swap ID:         %s\n", color.CyanString(r.ID))
	fmt.Printf("  Status:          %s\n", getSwapStatusColor(r.Status))
	fmt.Printf("  Sell:            %s %s\n", r.SellAmount, color.YellowString(r.SellToken))
	fmt.Printf("  Buy:             ~%s %s\n", r.BuyAmount, color.YellowString(r.BuyToken))
	fmt.Printf("  Slippage:        %v%%\n", r.Slippage)
	if r.Batch {
		fmt.Printf("  Mode:            batch\n")
	} else {
		fmt.Printf("  Mode:            sequential\n")
	}
	fmt.Printf("  Account:         %s\n", r.EVMAddress)
	fmt.Printf("  Last Updated:    %s\n", r.LastUpdated.Format("2006-01-02 15:04:05"))

	if r.ApprovalTx != "" {
		fmt.Printf("  Approval Tx:     %s\n", color.HiBlackString(r.ApprovalTx))
	}
	if r.TradeTx != "" {
		fmt.Printf("  Trade Tx:        %s\n", color.HiBlackString(r.TradeTx))
	}
	if r.ErrorMessage != "" {
		fmt.Printf("  Error:           %s\n", color.RedString(r.ErrorMessage))
	}

	if len(r.Events) > 0 {
		fmt.Println("\n  Events:")
		for _, ev := range r.Events {
			line := fmt.Sprintf("    %s  %s", ev.Time.Format("15:04:05"), ev.Kind)
			if ev.TxHash != "" {
				line += "  " + color.HiBlackString(ev.TxHash)
			}
			if ev.Error != "" {
				line += "  " + color.RedString(ev.Error)
			}
			fmt.Println(line)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
