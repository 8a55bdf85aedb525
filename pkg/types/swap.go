package types

import (
	"math"
	"math/big"
	"strings"
)

// NativeTokenAddress is the EVM address of the native REEF token.
const NativeTokenAddress = "0x0000000000000000000000000000000001000000"

// Token is a fungible token known to the account
type Token struct {
	Address  string   `json:"address"`
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	Decimals int32    `json:"decimals"`
	IconURL  string   `json:"icon_url,omitempty"`
	Balance  *big.Int `json:"balance"` // smallest units
}

// BalanceOrZero returns the token balance, treating a missing balance as zero
func (t Token) BalanceOrZero() *big.Int {
	if t.Balance == nil {
		return new(big.Int)
	}
	return t.Balance
}

// IsNative reports whether the token is the chain's native asset
func (t Token) IsNative() bool {
	return strings.EqualFold(t.Address, NativeTokenAddress)
}

// TokenWithAmount is a token placed into a trade slot
type TokenWithAmount struct {
	Token
	Amount  string  `json:"amount"` // human units, may be empty
	Price   float64 `json:"price"`  // USD per unit
	IsEmpty bool    `json:"is_empty"`
}

// EmptyTokenWithAmount returns an unselected trade slot
func EmptyTokenWithAmount() TokenWithAmount {
	return TokenWithAmount{
		Token:   Token{Balance: new(big.Int)},
		IsEmpty: true,
	}
}

// Pool is a point-in-time snapshot of a liquidity pool.
// Token1.Address sorts before Token2.Address.
type Pool struct {
	Token1          Token  `json:"token1"`
	Token2          Token  `json:"token2"`
	Reserve1        string `json:"reserve1"`
	Reserve2        string `json:"reserve2"`
	Decimals        int32  `json:"decimals"`
	TotalSupply     string `json:"total_supply"`
	PoolAddress     string `json:"pool_address"`
	UserPoolBalance string `json:"user_pool_balance"`
}

// Reserves returns both reserves as integers; unparsable values read as zero
func (p Pool) Reserves() (*big.Int, *big.Int) {
	return parseUint(p.Reserve1), parseUint(p.Reserve2)
}

// ReserveOf returns the reserve held for the given token address
func (p Pool) ReserveOf(address string) (*big.Int, bool) {
	r1, r2 := p.Reserves()
	switch {
	case strings.EqualFold(p.Token1.Address, address):
		return r1, true
	case strings.EqualFold(p.Token2.Address, address):
		return r2, true
	}
	return nil, false
}

func parseUint(s string) *big.Int {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return new(big.Int)
	}
	return v
}

// Default trade settings
const (
	DefaultSlippage = 0.8
	DefaultDeadline = 1 // minutes
)

// TradeSettings holds user trade preferences. A negative slippage or a
// non-positive deadline means "unset".
type TradeSettings struct {
	Percentage float64 `json:"percentage"` // slippage tolerance in percent
	Deadline   int     `json:"deadline"`   // minutes
}

// DefaultTradeSettings returns the settings a fresh swap form starts with
func DefaultTradeSettings() TradeSettings {
	return TradeSettings{Percentage: DefaultSlippage, Deadline: DefaultDeadline}
}

// ResolveSettings fills unset fields with defaults
func ResolveSettings(s TradeSettings) TradeSettings {
	if s.Percentage < 0 || math.IsNaN(s.Percentage) {
		s.Percentage = DefaultSlippage
	}
	if s.Deadline <= 0 {
		s.Deadline = DefaultDeadline
	}
	return s
}

// Prices maps token address to USD unit price
type Prices map[string]float64
