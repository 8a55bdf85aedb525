// Package evm implements the chain client over a plain Ethereum JSON-RPC
// endpoint. Each call is sent as its own transaction; atomic batches are not
// available.
package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/sync/errgroup"

	"reef-swap/pkg/chain"
	"reef-swap/pkg/types"
)

const (
	DefaultPollInterval  = 2 * time.Second
	DefaultGasBufferPct  = 20
	DefaultBalanceFanout = 8
)

// backend is the subset of ethclient.Client the adapter uses
type backend interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Options configures a Client
type Options struct {
	ChainID int64
	// GasPrice overrides the node's suggested gas price
	GasPrice *big.Int
	// PollInterval is the delay between receipt and finality checks
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Client submits calls to an EVM JSON-RPC node
type Client struct {
	backend      backend
	chainID      *big.Int
	gasPrice     *big.Int
	pollInterval time.Duration
	logger       *slog.Logger
}

// Dial connects to the RPC endpoint
func Dial(ctx context.Context, rpcURL string, opts Options) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL not configured")
	}
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	return newClient(ethclient.NewClient(rpcClient), opts), nil
}

func newClient(b backend, opts Options) *Client {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		backend:      b,
		chainID:      big.NewInt(opts.ChainID),
		gasPrice:     opts.GasPrice,
		pollInterval: interval,
		logger:       logger.With("component", "evm"),
	}
}

// EstimateResources estimates gas with a safety buffer. Plain EVM nodes
// charge no storage deposit, so storage is always zero.
func (c *Client) EstimateResources(ctx context.Context, req chain.CallRequest) (chain.Resources, error) {
	to := req.To
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  req.From,
		To:    &to,
		Data:  req.Data,
		Value: req.Value,
	})
	if err != nil {
		return chain.Resources{}, fmt.Errorf("failed to estimate gas: %w", err)
	}
	buffered := gas * (100 + DefaultGasBufferPct) / 100
	return chain.Resources{
		Gas:     new(big.Int).SetUint64(buffered),
		Storage: new(big.Int),
	}, nil
}

// BuildCall attaches resource limits to a call
func (c *Client) BuildCall(to common.Address, data []byte, value, gas, storage *big.Int) (*chain.Call, error) {
	if gas == nil || gas.Sign() <= 0 || !gas.IsUint64() {
		return nil, fmt.Errorf("invalid gas limit %v", gas)
	}
	if value == nil {
		value = new(big.Int)
	}
	if storage == nil {
		storage = new(big.Int)
	}
	return &chain.Call{To: to, Data: data, Value: value, Gas: gas, Storage: storage}, nil
}

// BatchAll is not available on a plain EVM node
func (c *Client) BatchAll(calls []*chain.Call) (chain.Extrinsic, error) {
	return nil, chain.ErrBatchUnsupported
}

// Submit signs and sends a single call, then reports inclusion and
// finality on the returned channel.
func (c *Client) Submit(ctx context.Context, ext chain.Extrinsic, signer chain.Signer) (<-chan chain.StatusUpdate, error) {
	calls := ext.Calls()
	if len(calls) != 1 {
		return nil, chain.ErrBatchUnsupported
	}
	call := calls[0]

	from := signer.EVMAddress()
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := c.getGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	to := call.To
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    call.Value,
		Gas:      call.Gas.Uint64(),
		GasPrice: gasPrice,
		Data:     call.Data,
	})
	signedTx, err := signer.SignTx(tx, c.chainID)
	if err != nil {
		return nil, err
	}
	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	hash := signedTx.Hash()
	c.logger.Debug("transaction sent", "tx", hash.Hex(), "nonce", nonce, "to", to.Hex())

	updates := make(chan chain.StatusUpdate, 2)
	go c.track(ctx, hash, updates)
	return updates, nil
}

// track polls for the receipt and then for the finalized head
func (c *Client) track(ctx context.Context, hash common.Hash, updates chan<- chain.StatusUpdate) {
	defer close(updates)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var receipt *ethtypes.Receipt
	for receipt == nil {
		r, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			receipt = r
			continue
		case !errors.Is(err, ethereum.NotFound):
			c.logger.Debug("receipt lookup failed", "tx", hash.Hex(), "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		updates <- chain.StatusUpdate{
			TxHash:        hash.Hex(),
			DispatchError: "EVM execution reverted",
			Status:        chain.Status{IsInBlock: true},
		}
		return
	}
	updates <- chain.StatusUpdate{TxHash: hash.Hex(), Status: chain.Status{IsInBlock: true}}

	finalized := big.NewInt(int64(rpc.FinalizedBlockNumber))
	for {
		head, err := c.backend.HeaderByNumber(ctx, finalized)
		if err == nil && head.Number.Cmp(receipt.BlockNumber) >= 0 {
			updates <- chain.StatusUpdate{TxHash: hash.Hex(), Status: chain.Status{IsInBlock: true, IsFinalized: true}}
			return
		}
		if err != nil {
			c.logger.Debug("finalized head lookup failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// getGasPrice returns the gas price to use for transactions
func (c *Client) getGasPrice(ctx context.Context) (*big.Int, error) {
	if c.gasPrice != nil {
		return new(big.Int).Set(c.gasPrice), nil
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

// NativeBalance returns the native REEF balance of an account
func (c *Client) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// TokenBalance returns the ERC20 balance of an account
func (c *Client) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	data, err := chain.PackBalanceOf(account)
	if err != nil {
		return nil, err
	}
	result, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}
	return chain.UnpackBalanceOf(result)
}

// TokenBalances returns tokens with their balances for account filled in.
// Lookups run concurrently; the first failure cancels the rest.
func (c *Client) TokenBalances(ctx context.Context, account common.Address, tokens []types.Token) ([]types.Token, error) {
	out := make([]types.Token, len(tokens))
	copy(out, tokens)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultBalanceFanout)
	for i := range out {
		i := i
		g.Go(func() error {
			var (
				balance *big.Int
				err     error
			)
			if out[i].IsNative() {
				balance, err = c.NativeBalance(gctx, account)
			} else {
				balance, err = c.TokenBalance(gctx, common.HexToAddress(out[i].Address), account)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", out[i].Symbol, err)
			}
			out[i].Balance = balance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the client connection
func (c *Client) Close() {
	if c.backend != nil {
		c.backend.Close()
	}
}
