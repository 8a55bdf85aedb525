// Package quantity converts between human decimal amounts and on-chain
// smallest units and validates amounts before they reach the chain.
package quantity

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"reef-swap/pkg/types"
)

var (
	// ErrInvalidAmount is returned for empty, malformed, non-positive or
	// over-balance amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrBelowExistentialBalance is returned when a transaction would leave
	// the account under the network's existential deposit.
	ErrBelowExistentialBalance = errors.New("below existential balance")
)

// NativeDecimals is the precision of the native REEF token
const NativeDecimals = 18

// ParseDecimal parses a human amount. Empty and malformed input fail with ErrInvalidAmount.
func ParseDecimal(amount string) (decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, amount)
	}
	return d, nil
}

// ToSmallestUnits converts a human amount into an integer amount scaled by
// decimals. Digits beyond the token precision are truncated.
func ToSmallestUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := ParseDecimal(amount)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, amount)
	}
	return d.Shift(decimals).BigInt(), nil
}

// ToHuman converts a smallest-unit amount to a decimal in token units
func ToHuman(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// FormatAmount renders a smallest-unit amount as a plain decimal string
// without trailing zeros.
func FormatAmount(v *big.Int, decimals int32) string {
	return ToHuman(v, decimals).String()
}

// CalculateAmount converts the token's amount into smallest units
func CalculateAmount(token types.TokenWithAmount) (*big.Int, error) {
	return ToSmallestUnits(token.Amount, token.Decimals)
}

// EnsureTokenAmount checks that the amount is a positive number not
// exceeding the token balance.
func EnsureTokenAmount(token types.TokenWithAmount) error {
	amount, err := CalculateAmount(token)
	if err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: insert amount", ErrInvalidAmount)
	}
	if amount.Cmp(token.BalanceOrZero()) > 0 {
		return fmt.Errorf("%w: insufficient %s balance", ErrInvalidAmount, token.Symbol)
	}
	return nil
}

// CalculateAmountWithPercentage returns the minimum amount accepted after
// applying a slippage tolerance: floor(amount * (1 - slippage/100)).
func CalculateAmountWithPercentage(token types.TokenWithAmount, slippagePercent float64) (*big.Int, error) {
	if math.IsNaN(slippagePercent) || slippagePercent < 0 || slippagePercent > 100 {
		return nil, fmt.Errorf("slippage %v out of range", slippagePercent)
	}
	amount, err := CalculateAmount(token)
	if err != nil {
		return nil, err
	}
	keep := decimal.NewFromInt(100).Sub(decimal.NewFromFloat(slippagePercent))
	return decimal.NewFromBigInt(amount, 0).Mul(keep).Shift(-2).Floor().BigInt(), nil
}

// CalculateDeadline returns the unix timestamp, in seconds, at which a
// transaction submitted now expires.
func CalculateDeadline(now time.Time, minutes int) *big.Int {
	return big.NewInt(now.Add(time.Duration(minutes) * time.Minute).Unix())
}

// PercentageOf returns pct percent of a smallest-unit balance as a human amount
func PercentageOf(balance *big.Int, decimals int32, pct float64) string {
	if balance == nil || balance.Sign() <= 0 || pct <= 0 {
		return "0"
	}
	if pct > 100 {
		pct = 100
	}
	share := decimal.NewFromBigInt(balance, 0).Mul(decimal.NewFromFloat(pct)).Shift(-2).Floor()
	return ToHuman(share.BigInt(), decimals).String()
}
