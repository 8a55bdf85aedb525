package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"reef-swap/pkg/chain"
	"reef-swap/pkg/market"
	"reef-swap/pkg/parser"
	"reef-swap/pkg/transfer"
	"reef-swap/pkg/types"
)

var sendYes bool

var sendCmd = &cobra.Command{
	Use:   "send <amount> <token> to <address>",
	Short: "Send REEF or a token to another account",
	Long: `Send native REEF or an ERC20 token to another account. The command
waits until the transfer is included in a block.

Examples:
  reef-swap send 5 REEF to 0x641e34931C03751BFED14C4087bA395303bEC0d9
  reef-swap send 10 USDC to 0x641e34931C03751BFED14C4087bA395303bEC0d9 --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().BoolVarP(&sendYes, "yes", "y", false, "Skip confirmation prompt")
}

func runSend(cmd *cobra.Command, args []string) {
	req, err := parser.ParseSendCommand(strings.Join(args, " "))
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

	var snap market.Snapshot
	err = withSpinner(jsonOutput, "Loading balances...", func() error {
		snap, err = sess.load(ctx)
		return err
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	token, ok := market.ResolveToken(snap.Tokens, req.Token)
	if !ok {
		printError(fmt.Errorf("unknown token %s (try: reef-swap list-tokens)", req.Token))
		os.Exit(1)
	}
	nativeBalance, err := sess.chain.NativeBalance(ctx, sess.signer.EVMAddress())
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	amount := types.TokenWithAmount{Token: token, Amount: req.Amount}
	if valid, status := transfer.SendStatus(req.Address, amount, sess.signer, nativeBalance, cfg.Existential); !valid {
		printError(errors.New(status))
		os.Exit(1)
	}

	if !jsonOutput {
		fmt.Printf("\n  Send:  %s %s\n", req.Amount, color.YellowString(token.Symbol))
		fmt.Printf("  To:    %s\n", color.CyanString(req.Address))
		if !sendYes && !confirm("Proceed with transfer?") {
			fmt.Println("\nTransfer cancelled.")
			os.Exit(0)
		}
	}

	sender := transfer.NewSender(sess.chain, sess.signer, sess.logger)
	var hash string
	err = withSpinner(jsonOutput, "Sending transfer...", func() error {
		hash, err = sender.Send(ctx, req.Address, amount)
		return err
	})

	if jsonOutput {
		output := map[string]interface{}{
			"token":   token.Symbol,
			"amount":  req.Amount,
			"to":      req.Address,
			"tx_hash": hash,
			"status":  "in_block",
		}
		if err != nil {
			output["status"] = "failed"
			output["error"] = errorMessage(err)
		}
		printJSON(output)
		if err != nil {
			os.Exit(1)
		}
		return
	}

	if err != nil {
		var txErr *chain.TxError
		if errors.As(err, &txErr) {
			color.Red("\nTransfer failed: %s\n", txErr.Message)
		} else {
			printError(err)
		}
		os.Exit(1)
	}
	color.Green("\nTransfer included in a block")
	fmt.Printf("  Transaction: %s\n\n", color.CyanString(hash))
}
