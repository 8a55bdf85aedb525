package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"reef-swap/pkg/chain"
	"reef-swap/pkg/executor"
	"reef-swap/pkg/history"
	"reef-swap/pkg/market"
	"reef-swap/pkg/parser"
	"reef-swap/pkg/pool"
	"reef-swap/pkg/quantity"
	"reef-swap/pkg/reporter"
	"reef-swap/pkg/swap"
	"reef-swap/pkg/types"
)

var (
	slippage   float64
	deadline   int
	noConfirm  bool
	noFinality bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <sell-token> to <buy-token>",
	Short: "Swap tokens through the DEX router",
	Long: `Swap tokens through the Reef DEX router.

The sell token is approved for the router and then traded for at least the
quoted buy amount minus slippage. Networks with batch_txs enabled would send
both steps as one atomic batch, but the JSON-RPC chain client cannot build
batches, so approval and trade always run one after another.
Tokens can be given by symbol or by contract address.

Examples:
  reef-swap swap 100 REEF to USDC
  reef-swap swap 100 REEF to USDC --slippage 1.5 --deadline 3
  reef-swap swap 2.5 0x7922d8785d93e692bb584e659b607fa821e6a91a to REEF --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().Float64Var(&slippage, "slippage", -1, "Slippage tolerance in percent (default from config)")
	swapCmd.Flags().IntVar(&deadline, "deadline", 0, "Transaction deadline in minutes (default from config)")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().BoolVar(&noFinality, "no-wait", false, "Return once the trade is in a block instead of waiting for finalization")
}

// swapQuote is the reviewed trade shown before submission
type swapQuote struct {
	SellAmount string  `json:"sell_amount"`
	SellToken  string  `json:"sell_token"`
	BuyAmount  string  `json:"buy_amount"`
	BuyToken   string  `json:"buy_token"`
	MinReceive string  `json:"min_receive"`
	Rate       string  `json:"rate"`
	Slippage   float64 `json:"slippage"`
	Deadline   int     `json:"deadline_minutes"`
	Batch      bool    `json:"batch"`
	Status     string  `json:"status"`
}

func runSwap(cmd *cobra.Command, args []string) {
	swapReq, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err == nil {
		err = parser.ValidateSwapRequest(swapReq)
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := loadConfig(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess, err := newSession(ctx, cfg, true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer sess.close()

	settings := cfg.TradeSettings()
	if slippage >= 0 {
		settings.Percentage = slippage
	}
	if deadline > 0 {
		settings.Deadline = deadline
	}
	if settings.Percentage > cfg.Swap.MaxSlippage {
		printError(fmt.Errorf("slippage %v exceeds the maximum of %v", settings.Percentage, cfg.Swap.MaxSlippage))
		os.Exit(1)
	}

	machine := swap.NewMachine(swap.Options{
		Pools:    sess.resolver,
		Settings: &settings,
		Logger:   sess.logger,
	})
	machine.SetEvmClaimed(sess.signer.IsEvmClaimed())

	// reload pools, prices and balances into the machine
	refresh := func(ctx context.Context) error {
		machine.SetPoolLoading(true)
		defer machine.SetPoolLoading(false)
		snap, err := sess.load(ctx)
		if err != nil {
			return err
		}
		machine.SetTokens(snap.Tokens)
		machine.SetPrices(snap.Prices)
		machine.RefreshPool()
		return nil
	}

	var snap market.Snapshot
	err = withSpinner(jsonOutput, "Loading pools and balances...", func() error {
		if err := refresh(ctx); err != nil {
			return err
		}
		snap, _ = sess.poller.Latest()
		return nil
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	sellToken, ok := market.ResolveToken(snap.Tokens, swapReq.SellToken)
	if !ok {
		printError(fmt.Errorf("unknown token %s (try: reef-swap list-tokens)", swapReq.SellToken))
		os.Exit(1)
	}
	buyToken, ok := market.ResolveToken(snap.Tokens, swapReq.BuyToken)
	if !ok {
		printError(fmt.Errorf("unknown token %s (try: reef-swap list-tokens)", swapReq.BuyToken))
		os.Exit(1)
	}

	machine.SelectSell(sellToken.Address)
	machine.SelectBuy(buyToken.Address)
	machine.SetSellAmount(swapReq.Amount)

	batch := cfg.Network.BatchTxs
	if batch {
		if _, err := sess.chain.BatchAll(nil); errors.Is(err, chain.ErrBatchUnsupported) {
			sess.logger.Warn("chain client cannot batch, approval and trade will be sent one after another")
			batch = false
		}
	}

	state := machine.Snapshot()
	quote := buildQuote(state, batch)
	if jsonOutput {
		if !state.IsValid {
			printJSON(map[string]interface{}{"quote": quote, "error": state.Status})
			os.Exit(1)
		}
	} else {
		displayQuote(quote)
		if !state.IsValid {
			printError(errors.New(state.Status))
			os.Exit(1)
		}
	}

	if !noConfirm && !jsonOutput {
		if !confirm("Proceed with swap?") {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	journal, err := history.NewJournal(cfg.HistoryPath, sess.logger)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	recorder := reporter.NewAsync(journal, reporter.DefaultAsyncBuffer, sess.logger)

	var (
		swapID   string
		idOnce   sync.Once
		txHashes []string
		mu       sync.Mutex
	)
	capture := reporter.ObserverFunc(func(ev types.LifecycleEvent) {
		idOnce.Do(func() { swapID = ev.SwapID })
		// hashes are known once the status stream reports inclusion
		if ev.TxHash != "" && (ev.Kind == types.EventApprovalInBlock || ev.Kind == types.EventTradeInBlock) {
			mu.Lock()
			txHashes = append(txHashes, ev.TxHash)
			mu.Unlock()
		}
	})

	observers := []reporter.Observer{capture, reporter.NewTelemetry(sess.logger), recorder}
	var progress *reporter.Progress
	if !jsonOutput {
		progress = reporter.NewProgress(os.Stdout)
		observers = append(observers, progress)
	}

	finalized := make(chan struct{})
	var finalizeOnce sync.Once
	exec := executor.New(executor.Options{
		Config: executor.Config{
			RouterAddress:         common.HexToAddress(cfg.Network.RouterAddress),
			ChainID:               cfg.Network.ChainID,
			Batch:                 batch,
			BatchTradeGas:         cfg.Swap.BatchTradeGas,
			BatchTradeStorage:     cfg.Swap.BatchTradeStorage,
			BatchSafetyMultiplier: cfg.Swap.BatchSafetyMultiplier,
		},
		Client:      sess.chain,
		Signer:      sess.signer,
		Notifier:    swapNotifier(jsonOutput),
		Observer:    reporter.NewFanout(sess.logger, observers...),
		Refresh:     refresh,
		OnFinalized: func() { finalizeOnce.Do(func() { close(finalized) }) },
		Logger:      sess.logger,
	})

	execErr := exec.Execute(ctx, machine)
	if !noFinality {
		exec.Wait()
	}
	if progress != nil {
		progress.Stop()
	}
	recorder.Close()

	if execErr == nil && swapID == "" {
		execErr = errors.New("swap was not submitted, the trade is no longer valid")
	}
	select {
	case <-finalized:
	default:
		if execErr == nil && !noFinality {
			execErr = ctx.Err()
		}
	}

	if jsonOutput {
		output := map[string]interface{}{
			"swap_id":   swapID,
			"quote":     quote,
			"tx_hashes": txHashes,
			"status":    "completed",
		}
		if execErr != nil {
			output["status"] = "failed"
			output["error"] = errorMessage(execErr)
		}
		printJSON(output)
		if execErr != nil {
			os.Exit(1)
		}
		return
	}

	if execErr != nil {
		var txErr *chain.TxError
		if !errors.As(execErr, &txErr) {
			printError(execErr)
		}
		os.Exit(1)
	}
	fmt.Println("\nYou can review the swap using:")
	color.Cyan("  reef-swap status %s\n", swapID)
}

func buildQuote(st swap.State, batch bool) swapQuote {
	q := swapQuote{
		SellAmount: st.Token1.Amount,
		SellToken:  st.Token1.Symbol,
		BuyAmount:  st.Token2.Amount,
		BuyToken:   st.Token2.Symbol,
		Slippage:   st.Settings.Percentage,
		Deadline:   st.Settings.Deadline,
		Batch:      batch,
		Status:     st.Status,
		Rate:       pool.NoLiquidity,
	}
	if st.Pool != nil {
		q.Rate = pool.CalculateRate(st.Token1.Address, *st.Pool)
	}
	if minimum, err := quantity.CalculateAmountWithPercentage(st.Token2, st.Settings.Percentage); err == nil {
		q.MinReceive = quantity.FormatAmount(minimum, st.Token2.Decimals)
	}
	return q
}

func displayQuote(q swapQuote) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Sell:              %s %s\n", q.SellAmount, color.YellowString(q.SellToken))
	fmt.Printf("  Buy:               ~%s %s\n", q.BuyAmount, color.YellowString(q.BuyToken))
	if q.MinReceive != "" {
		fmt.Printf("  Minimum Received:  %s %s\n", q.MinReceive, q.BuyToken)
	}
	fmt.Printf("  Rate:              %s\n", q.Rate)
	fmt.Printf("  Slippage:          %v%%\n", q.Slippage)
	fmt.Printf("  Deadline:          %d min\n", q.Deadline)
	mode := "sequential (approve, then trade)"
	if q.Batch {
		mode = "batched (approve and trade in one transaction)"
	}
	fmt.Printf("  Mode:              %s\n", mode)

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func swapNotifier(jsonOutput bool) executor.Notifier {
	if jsonOutput {
		return reporter.NewConsole(os.Stderr)
	}
	return reporter.NewConsole(os.Stdout)
}

func errorMessage(err error) string {
	var txErr *chain.TxError
	if errors.As(err, &txErr) {
		return txErr.Message
	}
	return err.Error()
}

func printJSON(v interface{}) {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(jsonData))
}
