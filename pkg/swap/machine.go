package swap

import (
	"log/slog"
	"strings"
	"sync"

	"reef-swap/pkg/types"
)

// PoolLookup resolves the pool of a token pair
type PoolLookup interface {
	FindPool(addressA, addressB string) (*types.Pool, bool)
}

// Options configures a Machine
type Options struct {
	// Pools resolves the pool whenever the pair changes. When nil the pool
	// must be pushed with SetPool.
	Pools PoolLookup
	// Settings overrides the default trade settings
	Settings *types.TradeSettings
	// OnChange observes every committed state
	OnChange func(State)
	Logger   *slog.Logger
}

// slot remembers what a trade slot was last resolved from
type slot struct {
	set     bool
	found   bool
	address string
	balance string
	price   float64
}

// deps are the inputs validity is derived from
type deps struct {
	sellToken   string
	buyToken    string
	sellBalance string
	sellAmount  string
	buyAmount   string
	claimed     bool
	pool        string
	poolLoading bool
}

// Machine is the single writer of a swap State. External inputs (token list,
// prices, pool snapshots, account binding) and user intents are delivered
// through its methods; derived fields are recomputed after each change.
type Machine struct {
	mu sync.Mutex

	state  State
	pools  PoolLookup
	notify func(State)
	logger *slog.Logger

	tokens      []types.Token
	prices      types.Prices
	address1    string
	address2    string
	evmClaimed  bool
	poolLoading bool
	executing   bool

	sellSlot slot
	buySlot  slot
	lastDeps *deps
}

// NewMachine creates a machine holding the initial state
func NewMachine(opts Options) *Machine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	st := InitialState()
	if opts.Settings != nil {
		st.Settings = types.ResolveSettings(*opts.Settings)
	}
	m := &Machine{
		state:  st,
		pools:  opts.Pools,
		notify: opts.OnChange,
		logger: logger.With("component", "swap"),
		prices: types.Prices{},
	}
	m.mu.Lock()
	m.revalidate()
	m.mu.Unlock()
	return m
}

// Snapshot returns a copy of the current state
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Dispatch applies an action and recomputes derived state
func (m *Machine) Dispatch(a Action) {
	m.update(func() { m.apply(a) })
}

// Claim marks a valid, idle state as loading and returns the snapshot taken
// at that moment. It reports false, changing nothing, when the state is
// invalid or already loading.
func (m *Machine) Claim() (State, bool) {
	m.mu.Lock()
	if !m.state.IsValid || m.state.IsLoading {
		m.mu.Unlock()
		return State{}, false
	}
	m.executing = true
	m.state.IsLoading = true
	snap := m.state.clone()
	m.mu.Unlock()

	m.emit(snap)
	return snap, true
}

// SetTokens delivers a fresh token list with balances
func (m *Machine) SetTokens(tokens []types.Token) {
	m.update(func() {
		m.tokens = append([]types.Token(nil), tokens...)
		m.syncTokens()
	})
}

// SetPrices delivers fresh USD prices
func (m *Machine) SetPrices(prices types.Prices) {
	m.update(func() {
		m.prices = make(types.Prices, len(prices))
		for k, v := range prices {
			m.prices[strings.ToLower(k)] = v
		}
		m.syncTokens()
		m.apply(SetTokenPrices{Prices: m.prices})
	})
}

// SetEvmClaimed delivers the account's EVM binding status
func (m *Machine) SetEvmClaimed(claimed bool) {
	m.update(func() { m.evmClaimed = claimed })
}

// SetPoolLoading flags an in-flight pool fetch
func (m *Machine) SetPoolLoading(loading bool) {
	m.update(func() { m.poolLoading = loading })
}

// SelectSell selects the token to sell by address
func (m *Machine) SelectSell(address string) {
	m.update(func() {
		m.address1 = address
		m.syncTokens()
		m.resolvePool()
	})
}

// SelectBuy selects the token to buy by address
func (m *Machine) SelectBuy(address string) {
	m.update(func() {
		m.address2 = address
		m.syncTokens()
		m.resolvePool()
	})
}

// RefreshPool re-resolves the pool after the lookup's snapshot changed
func (m *Machine) RefreshPool() {
	m.update(m.resolvePool)
}

// SetPool pushes a pool snapshot directly
func (m *Machine) SetPool(p *types.Pool) { m.Dispatch(SetPool{Pool: p}) }

// SetSellAmount sets the amount to sell
func (m *Machine) SetSellAmount(amount string) { m.Dispatch(SetToken1Amount{Amount: amount}) }

// SetBuyAmount sets the amount to buy
func (m *Machine) SetBuyAmount(amount string) { m.Dispatch(SetToken2Amount{Amount: amount}) }

// SetPercentage sells a share of the sell-token balance
func (m *Machine) SetPercentage(pct float64) { m.Dispatch(SetPercentage{Value: pct}) }

// SetSlippage sets the slippage tolerance in percent
func (m *Machine) SetSlippage(pct float64) { m.Dispatch(SetSlippage{Value: pct}) }

// SetDeadline sets the deadline in minutes
func (m *Machine) SetDeadline(minutes int) { m.Dispatch(SetDeadline{Minutes: minutes}) }

// Switch swaps the sell and buy sides
func (m *Machine) Switch() {
	m.update(func() {
		m.address1, m.address2 = m.address2, m.address1
		m.sellSlot, m.buySlot = m.buySlot, m.sellSlot
		m.apply(SwitchTokens{})
	})
}

// Reset clears selections and amounts
func (m *Machine) Reset() {
	m.update(func() {
		m.address1, m.address2 = "", ""
		m.sellSlot, m.buySlot = slot{}, slot{}
		m.executing = false
		m.lastDeps = nil
		m.apply(Reset{})
	})
}

func (m *Machine) update(fn func()) {
	m.mu.Lock()
	fn()
	m.revalidate()
	snap := m.state.clone()
	m.mu.Unlock()

	m.emit(snap)
}

func (m *Machine) emit(s State) {
	if m.notify != nil {
		m.notify(s)
	}
}

func (m *Machine) apply(a Action) {
	if l, ok := a.(SetLoading); ok {
		m.executing = l.Value
	}
	m.state = Reduce(m.state, a)
}

// syncTokens re-resolves both slots from the token list. A slot is replaced
// only when its address, presence in the list, balance or price changed; the
// typed amount is kept.
func (m *Machine) syncTokens() {
	if next, changed := m.resolveSlot(&m.buySlot, m.address2, m.state.Token2); changed {
		m.apply(SetToken2{Token: next})
	}
	if next, changed := m.resolveSlot(&m.sellSlot, m.address1, m.state.Token1); changed {
		m.apply(SetToken1{Token: next})
	}
}

func (m *Machine) resolveSlot(s *slot, address string, current types.TokenWithAmount) (types.TokenWithAmount, bool) {
	found, ok := findToken(address, m.tokens)
	price, _ := lookupPrice(m.prices, address)
	balance := found.BalanceOrZero().String()

	if s.set && s.found == ok && s.address == address && s.balance == balance && s.price == price {
		return current, false
	}
	*s = slot{set: true, found: ok, address: address, balance: balance, price: price}

	if !ok {
		return types.EmptyTokenWithAmount(), true
	}
	return types.TokenWithAmount{
		Token:  found,
		Amount: current.Amount,
		Price:  price,
	}, true
}

func (m *Machine) resolvePool() {
	if m.pools == nil || m.address1 == "" || m.address2 == "" {
		return
	}
	p, ok := m.pools.FindPool(m.address1, m.address2)
	if !ok {
		m.logger.Debug("no pool for pair", "sell", m.address1, "buy", m.address2)
		p = nil
	}
	m.apply(SetPool{Pool: p})
}

// revalidate recomputes status, validity and loading when one of their
// inputs changed since the last evaluation.
func (m *Machine) revalidate() {
	d := deps{
		sellToken:   m.state.Token1.Address,
		buyToken:    m.state.Token2.Address,
		sellBalance: m.state.Token1.BalanceOrZero().String(),
		sellAmount:  m.state.Token1.Amount,
		buyAmount:   m.state.Token2.Amount,
		claimed:     m.evmClaimed,
		pool:        poolIdentity(m.state.Pool),
		poolLoading: m.poolLoading,
	}
	if m.lastDeps != nil && *m.lastDeps == d {
		return
	}
	m.lastDeps = &d

	if m.poolLoading {
		m.state = Reduce(m.state, SetCompleteStatus{Status: StatusLoadingPool, IsValid: false, IsLoading: true})
		return
	}
	valid, status := Evaluate(m.state.Token1, m.state.Token2, m.evmClaimed, m.state.Pool)
	m.state = Reduce(m.state, SetCompleteStatus{Status: status, IsValid: valid, IsLoading: m.executing})
}

func poolIdentity(p *types.Pool) string {
	if p == nil {
		return ""
	}
	return strings.Join([]string{p.PoolAddress, p.Token1.Address, p.Token2.Address, p.Reserve1, p.Reserve2}, "|")
}

func findToken(address string, tokens []types.Token) (types.Token, bool) {
	if address == "" || address == "0x" {
		return types.Token{}, false
	}
	for _, t := range tokens {
		if sameAddress(t.Address, address) {
			return t, true
		}
	}
	return types.Token{}, false
}

func lookupPrice(prices types.Prices, address string) (float64, bool) {
	if address == "" {
		return 0, false
	}
	if p, ok := prices[address]; ok {
		return p, true
	}
	p, ok := prices[strings.ToLower(address)]
	return p, ok
}

func sameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
