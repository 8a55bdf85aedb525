package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reef-swap/config"
)

var rootCmd = &cobra.Command{
	Use:   "reef-swap",
	Short: "A CLI for token swaps on the Reef chain DEX",
	Long: `reef-swap is a command-line tool that swaps tokens through the Reef DEX
router. It reads live pool reserves from the DEX indexer, validates the trade
against your balances and slippage, then approves and trades on-chain.

Examples:
  reef-swap swap 100 REEF to USDC
  reef-swap swap 100 REEF to USDC --slippage 1.5 --deadline 3
  reef-swap pools --token REEF
  reef-swap list-tokens
  reef-swap send 5 REEF to 0x...
  reef-swap history
  reef-swap status <swap-id>`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		setupLogging(verbose)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringP("network", "n", "", "Network to use (mainnet, testnet)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default $HOME/.reef-swap.yaml)")
}

func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func loadConfig(cmd *cobra.Command) *config.Config {
	configFile, _ := cmd.Flags().GetString("config")
	network, _ := cmd.Flags().GetString("network")

	cfg, err := config.Load(configFile, network)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	return cfg
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}
