// Package swap holds the swap form state and keeps its derived fields
// (validity, status, derived amounts) consistent with user input and
// externally delivered token, price and pool snapshots.
package swap

import (
	"reef-swap/pkg/types"
)

// Focus is the side the user last edited
type Focus string

const (
	FocusSell Focus = "sell"
	FocusBuy  Focus = "buy"
)

// StatusTrade is the status of a valid, submittable swap
const StatusTrade = "Trade"

// StatusLoadingPool is the status while the pool for the pair is loading
const StatusLoadingPool = "Loading pool"

// State is the swap form. Token1 is sold, Token2 is bought.
type State struct {
	Token1     types.TokenWithAmount `json:"token1"`
	Token2     types.TokenWithAmount `json:"token2"`
	Percentage float64               `json:"percentage"` // share of the sell balance, 0-100
	Focus      Focus                 `json:"focus"`
	IsLoading  bool                  `json:"is_loading"`
	IsValid    bool                  `json:"is_valid"`
	Pool       *types.Pool           `json:"pool,omitempty"`
	Settings   types.TradeSettings   `json:"settings"`
	Status     string                `json:"status"`
}

// InitialState returns an empty form with default settings
func InitialState() State {
	return State{
		Token1:   types.EmptyTokenWithAmount(),
		Token2:   types.EmptyTokenWithAmount(),
		Focus:    FocusSell,
		Settings: types.DefaultTradeSettings(),
		Status:   StatusTrade,
	}
}

func (s State) clone() State {
	if s.Pool != nil {
		p := *s.Pool
		s.Pool = &p
	}
	return s
}
