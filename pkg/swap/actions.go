package swap

import (
	"reef-swap/pkg/quantity"
	"reef-swap/pkg/types"
)

// Action is a named state transition
type Action interface {
	apply(s *State)
}

// Reduce returns the state after applying the action
func Reduce(s State, a Action) State {
	next := s.clone()
	a.apply(&next)
	return next
}

// SetToken1 places a token into the sell slot
type SetToken1 struct{ Token types.TokenWithAmount }

func (a SetToken1) apply(s *State) { s.Token1 = a.Token }

// SetToken2 places a token into the buy slot
type SetToken2 struct{ Token types.TokenWithAmount }

func (a SetToken2) apply(s *State) { s.Token2 = a.Token }

// SetToken1Amount sets the sell amount and derives the buy amount
type SetToken1Amount struct{ Amount string }

func (a SetToken1Amount) apply(s *State) {
	s.Focus = FocusSell
	s.Token1.Amount = a.Amount
	s.Token2.Amount = deriveBuyAmount(s.Token1, s.Token2, s.Pool)
}

// SetToken2Amount sets the buy amount and derives the sell amount
type SetToken2Amount struct{ Amount string }

func (a SetToken2Amount) apply(s *State) {
	s.Focus = FocusBuy
	s.Token2.Amount = a.Amount
	s.Token1.Amount = deriveSellAmount(s.Token1, s.Token2, s.Pool)
}

// SetPercentage sells the given share of the sell-token balance
type SetPercentage struct{ Value float64 }

func (a SetPercentage) apply(s *State) {
	s.Percentage = a.Value
	if s.Token1.IsEmpty {
		return
	}
	SetToken1Amount{Amount: quantity.PercentageOf(s.Token1.BalanceOrZero(), s.Token1.Decimals, a.Value)}.apply(s)
}

// SwitchTokens swaps the sell and buy slots and clears the amounts
type SwitchTokens struct{}

func (SwitchTokens) apply(s *State) {
	s.Token1, s.Token2 = s.Token2, s.Token1
	if s.Focus == FocusSell {
		s.Focus = FocusBuy
	} else {
		s.Focus = FocusSell
	}
	s.Percentage = 0
	s.Token1.Amount = ""
	s.Token2.Amount = ""
}

// SetSlippage sets the slippage tolerance in percent
type SetSlippage struct{ Value float64 }

func (a SetSlippage) apply(s *State) { s.Settings.Percentage = a.Value }

// SetDeadline sets the transaction deadline in minutes
type SetDeadline struct{ Minutes int }

func (a SetDeadline) apply(s *State) { s.Settings.Deadline = a.Minutes }

// SetPool replaces the pool snapshot; nil clears it
type SetPool struct{ Pool *types.Pool }

func (a SetPool) apply(s *State) {
	if a.Pool == nil {
		s.Pool = nil
		return
	}
	p := *a.Pool
	s.Pool = &p
}

// SetLoading sets the loading latch
type SetLoading struct{ Value bool }

func (a SetLoading) apply(s *State) { s.IsLoading = a.Value }

// SetStatus sets the status text
type SetStatus struct{ Value string }

func (a SetStatus) apply(s *State) { s.Status = a.Value }

// SetCompleteStatus sets status, validity and loading together
type SetCompleteStatus struct {
	Status    string
	IsValid   bool
	IsLoading bool
}

func (a SetCompleteStatus) apply(s *State) {
	s.Status = a.Status
	s.IsValid = a.IsValid
	s.IsLoading = a.IsLoading
}

// ClearTokenAmounts empties both amount fields
type ClearTokenAmounts struct{}

func (ClearTokenAmounts) apply(s *State) {
	s.Token1.Amount = ""
	s.Token2.Amount = ""
	s.Percentage = 0
}

// SetTokenPrices refreshes the USD price of both slots
type SetTokenPrices struct{ Prices types.Prices }

func (a SetTokenPrices) apply(s *State) {
	if p, ok := lookupPrice(a.Prices, s.Token1.Address); ok {
		s.Token1.Price = p
	}
	if p, ok := lookupPrice(a.Prices, s.Token2.Address); ok {
		s.Token2.Price = p
	}
}

// Reset returns the form to its initial state, keeping the settings
type Reset struct{}

func (Reset) apply(s *State) {
	settings := s.Settings
	*s = InitialState()
	s.Settings = settings
}
