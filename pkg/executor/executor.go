// Package executor submits a validated swap to the chain: an ERC20 approval
// of the router followed by the router trade, either as one atomic batch or
// as two sequential transactions.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"reef-swap/pkg/chain"
	"reef-swap/pkg/quantity"
	"reef-swap/pkg/swap"
	"reef-swap/pkg/types"
)

// Store is the single writer owning the swap state
type Store interface {
	// Claim atomically marks a valid, idle state as loading
	Claim() (swap.State, bool)
	Dispatch(a swap.Action)
}

// Notifier delivers user-facing messages
type Notifier interface {
	Notify(level types.Level, message string)
}

// Observer receives swap lifecycle events
type Observer interface {
	OnEvent(ev types.LifecycleEvent)
}

// Default resources of the trade call inside a batch
const (
	DefaultBatchTradeGas         = 582938
	DefaultBatchTradeStorage     = 64
	DefaultBatchSafetyMultiplier = 2
)

// Config is the network routing and execution policy
type Config struct {
	RouterAddress common.Address
	ChainID       int64
	// Batch submits approval and trade as one atomic extrinsic
	Batch bool
	// Fixed trade resources used in batch mode, multiplied by
	// BatchSafetyMultiplier. Zero selects the default.
	BatchTradeGas         uint64
	BatchTradeStorage     uint64
	BatchSafetyMultiplier uint64
}

// Options configures an Executor
type Options struct {
	Config   Config
	Client   chain.Client
	Signer   chain.Signer
	Notifier Notifier
	Observer Observer
	// Refresh reloads token balances once a swap ends, successful or not
	Refresh func(ctx context.Context) error
	// OnSuccess runs once the trade is in a block
	OnSuccess func()
	// OnFinalized runs once the trade's block is finalized
	OnFinalized func()
	Logger      *slog.Logger
	Now         func() time.Time
}

// Executor runs swaps. It is safe for concurrent use; a swap already in
// flight makes further Execute calls on the same store no-ops.
type Executor struct {
	cfg         Config
	client      chain.Client
	signer      chain.Signer
	notifier    Notifier
	observer    Observer
	refresh     func(ctx context.Context) error
	onSuccess   func()
	onFinalized func()
	logger      *slog.Logger
	now         func() time.Time

	wg sync.WaitGroup
}

// New creates an executor
func New(opts Options) *Executor {
	cfg := opts.Config
	if cfg.BatchTradeGas == 0 {
		cfg.BatchTradeGas = DefaultBatchTradeGas
	}
	if cfg.BatchTradeStorage == 0 {
		cfg.BatchTradeStorage = DefaultBatchTradeStorage
	}
	if cfg.BatchSafetyMultiplier == 0 {
		cfg.BatchSafetyMultiplier = DefaultBatchSafetyMultiplier
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Executor{
		cfg:         cfg,
		client:      opts.Client,
		signer:      opts.Signer,
		notifier:    opts.Notifier,
		observer:    opts.Observer,
		refresh:     opts.Refresh,
		onSuccess:   opts.OnSuccess,
		onFinalized: opts.OnFinalized,
		logger:      logger.With("component", "executor"),
		now:         now,
	}
}

// run carries the per-swap values through the flow
type run struct {
	id      string
	batch   bool
	details types.TradeDetails
}

// Execute submits the store's current swap. It returns once the trade is in
// a block or the flow failed, after the store has been reset; finalization
// is awaited in the background (see Wait). Execute is a no-op returning nil
// when the signer or router is missing or the state cannot be claimed. A
// failed swap returns a *chain.TxError.
func (e *Executor) Execute(ctx context.Context, store Store) error {
	if e.client == nil || e.signer == nil || e.cfg.RouterAddress == (common.Address{}) {
		e.logger.Debug("swap skipped, signer or network missing")
		return nil
	}
	st, ok := store.Claim()
	if !ok {
		e.logger.Debug("swap skipped, state invalid or already loading")
		return nil
	}

	r := &run{
		id:      uuid.New().String(),
		batch:   e.cfg.Batch,
		details: e.describe(st),
	}
	defer e.cleanup(ctx, store)

	e.emit(r, types.EventInitiated, "", nil)
	e.logger.Info("swap initiated",
		"id", r.id,
		"sell", st.Token1.Symbol,
		"buy", st.Token2.Symbol,
		"amount", st.Token1.Amount,
		"batch", r.batch,
	)

	trade, err := e.execute(ctx, r, st)
	if err != nil {
		txErr := chain.ClassifyError(err)
		e.emit(r, types.EventFailed, "", txErr)
		e.logger.Error("swap failed", "id", r.id, "code", txErr.Code.String(), "error", err)
		e.notify(types.LevelDanger, fmt.Sprintf("An error occurred while trying to complete your trade: %s", txErr.Message))
		return txErr
	}

	e.emit(r, types.EventCompleted, "", nil)
	e.logger.Info("swap completed", "id", r.id)
	e.safely("on success", e.onSuccess)
	e.notify(types.LevelSuccess, "Trade complete.\nBalances will reload after blocks are finalized")
	e.watchFinalization(ctx, r, trade)
	return nil
}

// Wait blocks until every background finalization watcher has returned
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) execute(ctx context.Context, r *run, st swap.State) (*tracker, error) {
	if !common.IsHexAddress(st.Token1.Address) || !common.IsHexAddress(st.Token2.Address) {
		return nil, fmt.Errorf("invalid token address %q or %q", st.Token1.Address, st.Token2.Address)
	}
	sellAmount, err := quantity.CalculateAmount(st.Token1)
	if err != nil {
		return nil, fmt.Errorf("sell amount: %w", err)
	}
	minBuyAmount, err := quantity.CalculateAmountWithPercentage(st.Token2, st.Settings.Percentage)
	if err != nil {
		return nil, fmt.Errorf("minimum buy amount: %w", err)
	}
	deadline := quantity.CalculateDeadline(e.now(), st.Settings.Deadline)

	sellToken := common.HexToAddress(st.Token1.Address)
	buyToken := common.HexToAddress(st.Token2.Address)

	approveData, err := chain.PackApprove(e.cfg.RouterAddress, sellAmount)
	if err != nil {
		return nil, err
	}
	tradeData, err := chain.PackSwap(
		sellAmount,
		minBuyAmount,
		[]common.Address{sellToken, buyToken},
		e.signer.EVMAddress(),
		deadline,
	)
	if err != nil {
		return nil, err
	}

	e.emit(r, types.EventApprovalStarted, "", nil)
	approveRes, err := e.client.EstimateResources(ctx, chain.CallRequest{
		From:  e.signer.EVMAddress(),
		To:    sellToken,
		Data:  approveData,
		Value: new(big.Int),
	})
	if err != nil {
		return nil, e.fail(r, types.EventApprovalError, fmt.Errorf("failed to estimate approval: %w", err))
	}
	approveRes = approveRes.Clamped()

	approveCall, err := e.client.BuildCall(sellToken, approveData, new(big.Int), approveRes.Gas, approveRes.Storage)
	if err != nil {
		return nil, e.fail(r, types.EventApprovalError, fmt.Errorf("failed to build approval: %w", err))
	}

	if r.batch {
		return e.executeBatch(ctx, r, approveCall, tradeData)
	}
	return e.executeSequential(ctx, r, approveCall, tradeData)
}

func (e *Executor) executeBatch(ctx context.Context, r *run, approveCall *chain.Call, tradeData []byte) (*tracker, error) {
	e.emit(r, types.EventTradeStarted, "", nil)

	gas := new(big.Int).SetUint64(e.cfg.BatchTradeGas * e.cfg.BatchSafetyMultiplier)
	storage := new(big.Int).SetUint64(e.cfg.BatchTradeStorage * e.cfg.BatchSafetyMultiplier)
	tradeCall, err := e.client.BuildCall(e.cfg.RouterAddress, tradeData, new(big.Int), gas, storage)
	if err != nil {
		return nil, e.fail(r, types.EventTradeError, fmt.Errorf("failed to build trade: %w", err))
	}
	batch, err := e.client.BatchAll([]*chain.Call{approveCall, tradeCall})
	if err != nil {
		return nil, e.fail(r, types.EventTradeError, fmt.Errorf("failed to build batch: %w", err))
	}

	t, err := e.submit(ctx, r, batch, types.EventTradeSignedAndSent)
	if err != nil {
		return nil, e.fail(r, types.EventTradeError, err)
	}
	if err := t.untilInBlock(ctx); err != nil {
		return nil, e.fail(r, types.EventTradeError, err)
	}
	e.emit(r, types.EventTradeInBlock, t.txHash, nil)
	return t, nil
}

func (e *Executor) executeSequential(ctx context.Context, r *run, approveCall *chain.Call, tradeData []byte) (*tracker, error) {
	approval, err := e.submit(ctx, r, approveCall, types.EventApprovalSignedAndSent)
	if err != nil {
		return nil, e.fail(r, types.EventApprovalError, err)
	}
	// the trade only needs the allowance to be readable, not final
	if err := approval.untilInBlock(ctx); err != nil {
		return nil, e.fail(r, types.EventApprovalError, err)
	}
	e.emit(r, types.EventApprovalInBlock, approval.txHash, nil)

	e.emit(r, types.EventTradeStarted, "", nil)
	tradeRes, err := e.client.EstimateResources(ctx, chain.CallRequest{
		From:  e.signer.EVMAddress(),
		To:    e.cfg.RouterAddress,
		Data:  tradeData,
		Value: new(big.Int),
	})
	if err != nil {
		return nil, e.fail(r, types.EventTradeError, fmt.Errorf("failed to estimate trade: %w", err))
	}
	tradeRes = tradeRes.Clamped()

	tradeCall, err := e.client.BuildCall(e.cfg.RouterAddress, tradeData, new(big.Int), tradeRes.Gas, tradeRes.Storage)
	if err != nil {
		return nil, e.fail(r, types.EventTradeError, fmt.Errorf("failed to build trade: %w", err))
	}
	t, err := e.submit(ctx, r, tradeCall, types.EventTradeSignedAndSent)
	if err != nil {
		return nil, e.fail(r, types.EventTradeError, err)
	}
	if err := t.untilInBlock(ctx); err != nil {
		return nil, e.fail(r, types.EventTradeError, err)
	}
	e.emit(r, types.EventTradeInBlock, t.txHash, nil)
	return t, nil
}

func (e *Executor) submit(ctx context.Context, r *run, ext chain.Extrinsic, sent types.EventKind) (*tracker, error) {
	updates, err := e.client.Submit(ctx, ext, e.signer)
	if err != nil {
		return nil, fmt.Errorf("failed to submit: %w", err)
	}
	e.emit(r, sent, "", nil)
	return newTracker(updates), nil
}

// watchFinalization waits for the trade's block to finalize without holding
// up the caller.
func (e *Executor) watchFinalization(ctx context.Context, r *run, t *tracker) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := t.untilFinalized(ctx); err != nil {
			e.logger.Warn("finalization not observed", "id", r.id, "tx", t.txHash, "error", err)
			return
		}
		e.emit(r, types.EventTradeFinalized, t.txHash, nil)
		e.logger.Info("trade finalized", "id", r.id, "tx", t.txHash)
		e.notify(types.LevelSuccess, "Blocks have been finalized")
		e.safely("on finalized", e.onFinalized)
	}()
}

// cleanup always runs last: balances are refreshed, the loading latch is
// released and the amounts are cleared, even when the refresh fails.
func (e *Executor) cleanup(ctx context.Context, store Store) {
	if e.refresh != nil {
		if err := e.callRefresh(context.WithoutCancel(ctx)); err != nil {
			e.logger.Warn("balance refresh failed", "error", err)
			e.notify(types.LevelWarning, "Please reload to update token balances")
		}
	}
	store.Dispatch(swap.SetLoading{Value: false})
	store.Dispatch(swap.ClearTokenAmounts{})
}

func (e *Executor) callRefresh(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("refresh panicked: %v", p)
		}
	}()
	return e.refresh(ctx)
}

func (e *Executor) fail(r *run, kind types.EventKind, err error) error {
	e.emit(r, kind, "", err)
	return err
}

func (e *Executor) describe(st swap.State) types.TradeDetails {
	return types.TradeDetails{
		SellAddress: st.Token1.Address,
		SellSymbol:  st.Token1.Symbol,
		SellAmount:  st.Token1.Amount,
		SellPrice:   st.Token1.Price,
		BuyAddress:  st.Token2.Address,
		BuySymbol:   st.Token2.Symbol,
		BuyAmount:   st.Token2.Amount,
		BuyPrice:    st.Token2.Price,
		Slippage:    st.Settings.Percentage,
		Deadline:    st.Settings.Deadline,
		EVMAddress:  e.signer.EVMAddress().Hex(),
		ChainID:     e.cfg.ChainID,
	}
}

func (e *Executor) emit(r *run, kind types.EventKind, txHash string, err error) {
	if e.observer == nil {
		return
	}
	ev := types.LifecycleEvent{
		SwapID: r.id,
		Kind:   kind,
		Batch:  r.batch,
		Time:   e.now(),
		TxHash: txHash,
		Trade:  r.details,
	}
	if err != nil {
		ev.Err = err.Error()
		var txErr *chain.TxError
		if errors.As(err, &txErr) {
			ev.Err = txErr.Message
		}
	}
	e.safely("observer", func() { e.observer.OnEvent(ev) })
}

func (e *Executor) notify(level types.Level, message string) {
	if e.notifier == nil {
		return
	}
	e.safely("notifier", func() { e.notifier.Notify(level, message) })
}

// safely runs a collaborator callback; a panic is logged and swallowed
func (e *Executor) safely(name string, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("callback panicked", "callback", name, "panic", p)
		}
	}()
	fn()
}
