package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"reef-swap/pkg/market"
	"reef-swap/pkg/quantity"
	"reef-swap/pkg/types"
)

var (
	filterSymbol string
	pairedWith   string
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List tokens traded on the DEX",
	Long: `List every token that appears in a DEX pool. When a private key is
configured the account balance of each token is shown as well.

Examples:
  reef-swap list-tokens
  reef-swap list-tokens --symbol USD
  reef-swap list-tokens --paired-with REEF`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
	tokensCmd.Flags().StringVar(&pairedWith, "paired-with", "", "Only tokens that share a pool with this token")
}

// tokenRow is one listed token
type tokenRow struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Address  string  `json:"address"`
	Decimals int32   `json:"decimals"`
	Balance  string  `json:"balance,omitempty"`
	Price    float64 `json:"price_usd,omitempty"`
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := loadConfig(cmd)
	ctx := context.Background()

	withBalances := cfg.PrivateKey != ""
	sess, err := newSession(ctx, cfg, withBalances)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer sess.close()

	var snap market.Snapshot
	err = withSpinner(jsonOutput, "Fetching tokens...", func() error {
		snap, err = sess.load(ctx)
		return err
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	tokens := snap.Tokens
	if pairedWith != "" {
		base, ok := market.ResolveToken(tokens, pairedWith)
		if !ok {
			printError(fmt.Errorf("unknown token %s", pairedWith))
			os.Exit(1)
		}
		tokens = tokensForPair(base, tokens, snap.Pools)
	}
	if filterSymbol != "" {
		var temp []types.Token
		for _, token := range tokens {
			if strings.Contains(strings.ToUpper(token.Symbol), strings.ToUpper(filterSymbol)) {
				temp = append(temp, token)
			}
		}
		tokens = temp
	}

	rows := make([]tokenRow, 0, len(tokens))
	for _, t := range tokens {
		row := tokenRow{
			Symbol:   t.Symbol,
			Name:     t.Name,
			Address:  t.Address,
			Decimals: t.Decimals,
			Price:    snap.Prices[strings.ToLower(t.Address)],
		}
		if withBalances {
			row.Balance = quantity.FormatAmount(t.BalanceOrZero(), t.Decimals)
		}
		rows = append(rows, row)
	}

	if jsonOutput {
		printJSON(rows)
	} else {
		displayTokens(rows, withBalances)
	}
}

func displayTokens(tokens []tokenRow, withBalances bool) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                              DEX TOKENS")
	fmt.Println(strings.Repeat("=", 90) + "\n")

	for _, token := range tokens {
		line := fmt.Sprintf("  %-10s  %2d decimals  %s",
			color.YellowString(token.Symbol),
			token.Decimals,
			color.HiBlackString(token.Address))
		if withBalances {
			line += fmt.Sprintf("  %s", color.CyanString(token.Balance))
		}
		if token.Price > 0 {
			line += fmt.Sprintf("  $%.6g", token.Price)
		}
		fmt.Println(line)
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens\n\n", len(tokens))
}
