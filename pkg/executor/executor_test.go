package executor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reef-swap/pkg/chain"
	"reef-swap/pkg/pool"
	"reef-swap/pkg/quantity"
	"reef-swap/pkg/swap"
	"reef-swap/pkg/types"
)

const (
	reefAddr = types.NativeTokenAddress
	usdcAddr = "0x7922d8785d93e692bb584e659b607fa821e6a91a"
)

var (
	routerAddr = common.HexToAddress("0x641e34931c03751bfed14c4087ba395303bec0d9")
	evmAddr    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	fixedNow   = time.Unix(1_700_000_000, 0)
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type fakeSigner struct{}

func (fakeSigner) Address() string            { return "5F3sa2TJAWMqDhXG6jhV4N8ko9SxwGy8TpaNS1repo5EYjQX" }
func (fakeSigner) EVMAddress() common.Address { return evmAddr }
func (fakeSigner) IsEvmClaimed() bool         { return true }
func (fakeSigner) SignTx(tx *ethtypes.Transaction, _ *big.Int) (*ethtypes.Transaction, error) {
	return tx, nil
}

type fakeClient struct {
	mu sync.Mutex

	resources   chain.Resources
	estimateErr error
	gate        chan struct{}

	scripts [][]chain.StatusUpdate

	estimates []chain.CallRequest
	built     []*chain.Call
	batches   int
	submitted []chain.Extrinsic
}

func (f *fakeClient) EstimateResources(_ context.Context, req chain.CallRequest) (chain.Resources, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimates = append(f.estimates, req)
	if f.estimateErr != nil {
		return chain.Resources{}, f.estimateErr
	}
	return f.resources, nil
}

func (f *fakeClient) BuildCall(to common.Address, data []byte, value, gas, storage *big.Int) (*chain.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &chain.Call{To: to, Data: data, Value: value, Gas: gas, Storage: storage}
	f.built = append(f.built, c)
	return c, nil
}

func (f *fakeClient) BatchAll(calls []*chain.Call) (chain.Extrinsic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	return &chain.Batch{Items: calls}, nil
}

func (f *fakeClient) Submit(_ context.Context, ext chain.Extrinsic, _ chain.Signer) (<-chan chain.StatusUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.submitted)
	f.submitted = append(f.submitted, ext)
	if idx >= len(f.scripts) {
		return nil, errors.New("unexpected submission")
	}
	ch := make(chan chain.StatusUpdate, len(f.scripts[idx]))
	for _, u := range f.scripts[idx] {
		ch <- u
	}
	close(ch)
	return ch, nil
}

type recorder struct {
	mu       sync.Mutex
	events   []types.LifecycleEvent
	messages []string
	levels   []types.Level
}

func (r *recorder) OnEvent(ev types.LifecycleEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Notify(level types.Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = append(r.levels, level)
	r.messages = append(r.messages, message)
}

func (r *recorder) kinds() []types.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) count(kind types.EventKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

type panicker struct{}

func (panicker) OnEvent(types.LifecycleEvent) { panic("observer down") }
func (panicker) Notify(types.Level, string)   { panic("notifier down") }

func inBlock(hash string) chain.StatusUpdate {
	return chain.StatusUpdate{TxHash: hash, Status: chain.Status{IsInBlock: true}}
}

func finalized(hash string) chain.StatusUpdate {
	return chain.StatusUpdate{TxHash: hash, Status: chain.Status{IsFinalized: true}}
}

func readyMachine(t *testing.T) *swap.Machine {
	t.Helper()
	resolver := pool.NewResolver([]types.Pool{{
		Token1:      types.Token{Address: reefAddr, Symbol: "REEF", Decimals: 18},
		Token2:      types.Token{Address: usdcAddr, Symbol: "USDC", Decimals: 18},
		Reserve1:    ether(1_000_000).String(),
		Reserve2:    ether(500).String(),
		PoolAddress: "0xpool",
	}})
	m := swap.NewMachine(swap.Options{Pools: resolver})
	m.SetTokens([]types.Token{
		{Address: reefAddr, Symbol: "REEF", Decimals: 18, Balance: ether(1000)},
		{Address: usdcAddr, Symbol: "USDC", Decimals: 18, Balance: ether(50)},
	})
	m.SetEvmClaimed(true)
	m.SelectSell(reefAddr)
	m.SelectBuy(usdcAddr)
	m.SetSellAmount("10")
	require.True(t, m.Snapshot().IsValid, m.Snapshot().Status)
	return m
}

type hooks struct {
	mu        sync.Mutex
	success   int
	finalized int
}

func (h *hooks) onSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.success++
}

func (h *hooks) onFinalized() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finalized++
}

func newExecutor(client *fakeClient, rec *recorder, h *hooks, batch bool) *Executor {
	return New(Options{
		Config:      Config{RouterAddress: routerAddr, ChainID: 13939, Batch: batch},
		Client:      client,
		Signer:      fakeSigner{},
		Notifier:    rec,
		Observer:    rec,
		OnSuccess:   h.onSuccess,
		OnFinalized: h.onFinalized,
		Now:         func() time.Time { return fixedNow },
	})
}

func assertReset(t *testing.T, m *swap.Machine) {
	t.Helper()
	s := m.Snapshot()
	assert.False(t, s.IsLoading)
	assert.Empty(t, s.Token1.Amount)
	assert.Empty(t, s.Token2.Amount)
}

func TestExecuteBatch(t *testing.T) {
	m := readyMachine(t)
	client := &fakeClient{
		resources: chain.Resources{Gas: big.NewInt(50_000), Storage: big.NewInt(10)},
		scripts: [][]chain.StatusUpdate{{
			inBlock("0xbatch"), inBlock("0xbatch"), finalized("0xbatch"), finalized("0xbatch"),
		}},
	}
	rec := &recorder{}
	h := &hooks{}
	ex := newExecutor(client, rec, h, true)

	require.NoError(t, ex.Execute(context.Background(), m))
	ex.Wait()

	assert.Equal(t, 1, rec.count(types.EventTradeInBlock))
	assert.Equal(t, 1, rec.count(types.EventTradeFinalized))
	assert.Zero(t, rec.count(types.EventApprovalInBlock))
	assert.Equal(t, 1, client.batches)
	assert.Len(t, client.submitted, 1)
	assert.Len(t, client.estimates, 1, "only the approval is estimated in batch mode")

	require.Len(t, client.built, 2)
	trade := client.built[1]
	assert.Equal(t, routerAddr, trade.To)
	assert.Equal(t, int64(DefaultBatchTradeGas*DefaultBatchSafetyMultiplier), trade.Gas.Int64())
	assert.Equal(t, int64(DefaultBatchTradeStorage*DefaultBatchSafetyMultiplier), trade.Storage.Int64())

	for _, ev := range rec.events {
		assert.True(t, ev.Batch)
		assert.Equal(t, rec.events[0].SwapID, ev.SwapID)
	}
	assert.Equal(t, 1, h.success)
	assert.Equal(t, 1, h.finalized)
	assert.Contains(t, rec.messages, "Blocks have been finalized")
	assertReset(t, m)
}

func TestExecuteSequential(t *testing.T) {
	m := readyMachine(t)
	snap := m.Snapshot()
	client := &fakeClient{
		resources: chain.Resources{Gas: big.NewInt(50_000), Storage: big.NewInt(10)},
		scripts: [][]chain.StatusUpdate{
			{inBlock("0xapprove")},
			{inBlock("0xtrade"), finalized("0xtrade")},
		},
	}
	rec := &recorder{}
	h := &hooks{}
	ex := newExecutor(client, rec, h, false)

	require.NoError(t, ex.Execute(context.Background(), m))
	ex.Wait()

	assert.Equal(t, []types.EventKind{
		types.EventInitiated,
		types.EventApprovalStarted,
		types.EventApprovalSignedAndSent,
		types.EventApprovalInBlock,
		types.EventTradeStarted,
		types.EventTradeSignedAndSent,
		types.EventTradeInBlock,
		types.EventCompleted,
		types.EventTradeFinalized,
	}, rec.kinds())
	assert.Zero(t, client.batches)
	assert.Len(t, client.submitted, 2)
	assert.Len(t, client.estimates, 2)

	require.Len(t, client.built, 2)
	sellAmount, err := quantity.CalculateAmount(snap.Token1)
	require.NoError(t, err)
	minBuy, err := quantity.CalculateAmountWithPercentage(snap.Token2, snap.Settings.Percentage)
	require.NoError(t, err)
	want, err := chain.PackSwap(
		sellAmount,
		minBuy,
		[]common.Address{common.HexToAddress(reefAddr), common.HexToAddress(usdcAddr)},
		evmAddr,
		big.NewInt(fixedNow.Add(time.Minute).Unix()),
	)
	require.NoError(t, err)
	assert.Equal(t, want, client.built[1].Data)

	approve, err := chain.PackApprove(routerAddr, sellAmount)
	require.NoError(t, err)
	assert.Equal(t, approve, client.built[0].Data)
	assert.Equal(t, common.HexToAddress(reefAddr), client.built[0].To)

	assert.Equal(t, "0xtrade", rec.events[len(rec.events)-1].TxHash)
	assert.Equal(t, 1, h.finalized)
	assertReset(t, m)
}

func txHashes(r *recorder, kinds ...types.EventKind) map[types.EventKind]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[types.EventKind]string)
	for _, ev := range r.events {
		for _, k := range kinds {
			if ev.Kind == k {
				out[k] = ev.TxHash
			}
		}
	}
	return out
}

func TestExecuteInBlockEventsCarryHashes(t *testing.T) {
	client := &fakeClient{
		resources: chain.Resources{Gas: big.NewInt(50_000)},
		scripts: [][]chain.StatusUpdate{
			{inBlock("0xapprove")},
			{inBlock("0xtrade"), finalized("0xtrade")},
		},
	}
	rec := &recorder{}
	ex := newExecutor(client, rec, &hooks{}, false)

	require.NoError(t, ex.Execute(context.Background(), readyMachine(t)))
	ex.Wait()

	assert.Equal(t, map[types.EventKind]string{
		types.EventApprovalInBlock: "0xapprove",
		types.EventTradeInBlock:    "0xtrade",
		types.EventTradeFinalized:  "0xtrade",
	}, txHashes(rec, types.EventApprovalInBlock, types.EventTradeInBlock, types.EventTradeFinalized))

	batchClient := &fakeClient{
		resources: chain.Resources{Gas: big.NewInt(50_000)},
		scripts:   [][]chain.StatusUpdate{{inBlock("0xbatch"), finalized("0xbatch")}},
	}
	batchRec := &recorder{}
	batchEx := newExecutor(batchClient, batchRec, &hooks{}, true)

	require.NoError(t, batchEx.Execute(context.Background(), readyMachine(t)))
	batchEx.Wait()

	assert.Equal(t, map[types.EventKind]string{
		types.EventTradeInBlock: "0xbatch",
	}, txHashes(batchRec, types.EventApprovalInBlock, types.EventTradeInBlock))
}

func TestExecuteApprovalDispatchError(t *testing.T) {
	m := readyMachine(t)
	client := &fakeClient{
		resources: chain.Resources{Gas: big.NewInt(50_000), Storage: big.NewInt(10)},
		scripts: [][]chain.StatusUpdate{
			{{DispatchError: "1010: Invalid Transaction: Inability to pay some fees"}},
			{inBlock("0xtrade"), finalized("0xtrade")},
		},
	}
	rec := &recorder{}
	h := &hooks{}
	ex := newExecutor(client, rec, h, false)

	err := ex.Execute(context.Background(), m)
	ex.Wait()

	var txErr *chain.TxError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, chain.ErrorBalanceTooLow, txErr.Code)

	assert.Len(t, client.built, 1, "trade call must not be built")
	assert.Len(t, client.submitted, 1, "trade must not be submitted")
	assert.Zero(t, rec.count(types.EventTradeStarted))
	assert.Equal(t, 1, rec.count(types.EventApprovalError))
	assert.Equal(t, 1, rec.count(types.EventFailed))
	assert.Zero(t, h.finalized)
	assert.Zero(t, h.success)
	assert.Contains(t, rec.messages, "An error occurred while trying to complete your trade: Balance too low.")
	assertReset(t, m)
}

func TestExecuteTradeEventFailure(t *testing.T) {
	m := readyMachine(t)
	client := &fakeClient{
		resources: chain.Resources{Gas: big.NewInt(50_000), Storage: big.NewInt(10)},
		scripts: [][]chain.StatusUpdate{
			{inBlock("0xapprove")},
			{{Events: []chain.Event{{Section: "evm", Method: "ExecutedFailed", Data: []string{"Reverted"}}}}},
		},
	}
	rec := &recorder{}
	h := &hooks{}
	ex := newExecutor(client, rec, h, false)

	err := ex.Execute(context.Background(), m)
	ex.Wait()

	require.Error(t, err)
	assert.Equal(t, 1, rec.count(types.EventApprovalInBlock))
	assert.Equal(t, 1, rec.count(types.EventTradeError))
	assert.Zero(t, rec.count(types.EventTradeInBlock))
	assert.Zero(t, h.finalized)
	assertReset(t, m)
}

func TestExecuteClampsNegativeStorage(t *testing.T) {
	m := readyMachine(t)
	client := &fakeClient{
		resources: chain.Resources{Gas: big.NewInt(50_000), Storage: big.NewInt(-320)},
		scripts: [][]chain.StatusUpdate{
			{inBlock("0xapprove")},
			{inBlock("0xtrade"), finalized("0xtrade")},
		},
	}
	ex := newExecutor(client, &recorder{}, &hooks{}, false)

	require.NoError(t, ex.Execute(context.Background(), m))
	ex.Wait()

	require.Len(t, client.built, 2)
	for _, c := range client.built {
		assert.Zero(t, c.Storage.Sign())
		assert.Equal(t, int64(50_000), c.Gas.Int64())
	}
}

func TestExecuteEstimateError(t *testing.T) {
	m := readyMachine(t)
	client := &fakeClient{estimateErr: errors.New("-32603: execution revert: 0x")}
	rec := &recorder{}
	ex := newExecutor(client, rec, &hooks{}, true)

	err := ex.Execute(context.Background(), m)

	var txErr *chain.TxError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, chain.ErrorMinBalanceAfterTx, txErr.Code)
	assert.Empty(t, client.built)
	assert.Empty(t, client.submitted)
	assert.Equal(t, 1, rec.count(types.EventApprovalError))
	assertReset(t, m)
}

func TestExecuteStreamClosedBeforeInclusion(t *testing.T) {
	m := readyMachine(t)
	client := &fakeClient{
		resources: chain.Resources{Gas: big.NewInt(1), Storage: big.NewInt(1)},
		scripts:   [][]chain.StatusUpdate{{}},
	}
	ex := newExecutor(client, &recorder{}, &hooks{}, true)

	err := ex.Execute(context.Background(), m)
	require.Error(t, err)
	assert.ErrorIs(t, err, chain.ErrStreamClosed)
	assertReset(t, m)
}

func TestExecuteConcurrentCallIsNoop(t *testing.T) {
	m := readyMachine(t)
	gate := make(chan struct{})
	client := &fakeClient{
		gate:      gate,
		resources: chain.Resources{Gas: big.NewInt(1), Storage: big.NewInt(1)},
		scripts:   [][]chain.StatusUpdate{{inBlock("0xbatch"), finalized("0xbatch")}},
	}
	rec := &recorder{}
	ex := newExecutor(client, rec, &hooks{}, true)

	done := make(chan error, 1)
	go func() { done <- ex.Execute(context.Background(), m) }()

	require.Eventually(t, func() bool { return m.Snapshot().IsLoading }, time.Second, time.Millisecond)
	require.NoError(t, ex.Execute(context.Background(), m))

	close(gate)
	require.NoError(t, <-done)
	ex.Wait()

	assert.Len(t, client.submitted, 1)
	assert.Equal(t, 1, rec.count(types.EventInitiated))
}

func TestExecuteSkipsWithoutPreconditions(t *testing.T) {
	m := readyMachine(t)
	client := &fakeClient{}

	ex := New(Options{Config: Config{RouterAddress: routerAddr}, Client: client})
	require.NoError(t, ex.Execute(context.Background(), m))

	ex = New(Options{Client: client, Signer: fakeSigner{}})
	require.NoError(t, ex.Execute(context.Background(), m))

	assert.Empty(t, client.estimates)
	s := m.Snapshot()
	assert.False(t, s.IsLoading)
	assert.Equal(t, "10", s.Token1.Amount)

	invalid := swap.NewMachine(swap.Options{})
	ex = newExecutor(client, &recorder{}, &hooks{}, true)
	require.NoError(t, ex.Execute(context.Background(), invalid))
	assert.Empty(t, client.estimates)
}

func TestExecuteRefreshFailureStillResets(t *testing.T) {
	m := readyMachine(t)
	client := &fakeClient{
		resources: chain.Resources{Gas: big.NewInt(1), Storage: big.NewInt(1)},
		scripts:   [][]chain.StatusUpdate{{inBlock("0xbatch"), finalized("0xbatch")}},
	}
	rec := &recorder{}
	ex := New(Options{
		Config:   Config{RouterAddress: routerAddr, Batch: true},
		Client:   client,
		Signer:   fakeSigner{},
		Notifier: rec,
		Refresh:  func(context.Context) error { return errors.New("indexer unavailable") },
	})

	require.NoError(t, ex.Execute(context.Background(), m))
	ex.Wait()

	assert.Contains(t, rec.messages, "Please reload to update token balances")
	assertReset(t, m)
}

func TestExecuteSurvivesPanickingReporters(t *testing.T) {
	m := readyMachine(t)
	client := &fakeClient{
		resources: chain.Resources{Gas: big.NewInt(1), Storage: big.NewInt(1)},
		scripts:   [][]chain.StatusUpdate{{inBlock("0xbatch"), finalized("0xbatch")}},
	}
	h := &hooks{}
	ex := New(Options{
		Config:      Config{RouterAddress: routerAddr, Batch: true},
		Client:      client,
		Signer:      fakeSigner{},
		Notifier:    panicker{},
		Observer:    panicker{},
		OnFinalized: h.onFinalized,
		Refresh:     func(context.Context) error { panic("refresh down") },
	})

	require.NoError(t, ex.Execute(context.Background(), m))
	ex.Wait()

	assert.Equal(t, 1, h.finalized)
	assertReset(t, m)
}
