package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"reef-swap/pkg/market"
	"reef-swap/pkg/pool"
	"reef-swap/pkg/quantity"
	"reef-swap/pkg/types"
)

var poolToken string

var poolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "List DEX pools with reserves and rates",
	Long: `List the DEX liquidity pools with their reserves and the current rate.

Examples:
  reef-swap pools
  reef-swap pools --token REEF`,
	Run: runPools,
}

func init() {
	rootCmd.AddCommand(poolsCmd)

	poolsCmd.Flags().StringVar(&poolToken, "token", "", "Only pools containing this token (symbol or address)")
}

// poolRow is one listed pool
type poolRow struct {
	Address  string `json:"address"`
	Token1   string `json:"token1"`
	Token2   string `json:"token2"`
	Reserve1 string `json:"reserve1"`
	Reserve2 string `json:"reserve2"`
	Rate     string `json:"rate"`
}

func runPools(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := loadConfig(cmd)
	ctx := context.Background()

	sess, err := newSession(ctx, cfg, false)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer sess.close()

	var snap market.Snapshot
	err = withSpinner(jsonOutput, "Fetching pools...", func() error {
		snap, err = sess.load(ctx)
		return err
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	sellSide := ""
	if poolToken != "" {
		t, ok := market.ResolveToken(snap.Tokens, poolToken)
		if !ok {
			printError(fmt.Errorf("unknown token %s", poolToken))
			os.Exit(1)
		}
		sellSide = t.Address
	}

	rows := make([]poolRow, 0, len(snap.Pools))
	for _, p := range snap.Pools {
		from := p.Token1.Address
		if sellSide != "" {
			if !strings.EqualFold(sellSide, p.Token1.Address) && !strings.EqualFold(sellSide, p.Token2.Address) {
				continue
			}
			from = sellSide
		}
		r1, r2 := p.Reserves()
		rows = append(rows, poolRow{
			Address:  p.PoolAddress,
			Token1:   p.Token1.Symbol,
			Token2:   p.Token2.Symbol,
			Reserve1: quantity.FormatAmount(r1, p.Token1.Decimals),
			Reserve2: quantity.FormatAmount(r2, p.Token2.Decimals),
			Rate:     pool.CalculateRate(from, p),
		})
	}

	if jsonOutput {
		printJSON(rows)
		return
	}
	displayPools(rows)
}

func displayPools(rows []poolRow) {
	if len(rows) == 0 {
		fmt.Println("\nNo pools found.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                               DEX POOLS")
	fmt.Println(strings.Repeat("=", 90))

	for _, r := range rows {
		fmt.Printf("\n  %s / %s  %s\n",
			color.YellowString(r.Token1),
			color.YellowString(r.Token2),
			color.HiBlackString(r.Address))
		fmt.Printf("    Reserves: %s %s, %s %s\n", r.Reserve1, r.Token1, r.Reserve2, r.Token2)
		if r.Rate == pool.NoLiquidity {
			fmt.Printf("    Rate:     %s\n", color.RedString(r.Rate))
		} else {
			fmt.Printf("    Rate:     %s\n", r.Rate)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d pools\n\n", len(rows))
}

// tokensForPair lists tokens sharing a pool with base
func tokensForPair(base types.Token, tokens []types.Token, pools []types.Pool) []types.Token {
	return pool.TokensForPair(base.Address, tokens, pools)
}
