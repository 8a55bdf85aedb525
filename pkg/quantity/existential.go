package quantity

import (
	"fmt"
	"math/big"

	"reef-swap/pkg/types"
)

// ExistentialPolicy describes how much native balance must survive a transaction
type ExistentialPolicy struct {
	Deposit    *big.Int // minimum balance keeping the account alive
	FeeReserve *big.Int // held back for transaction fees
}

// DefaultExistentialPolicy keeps 1 REEF alive and 1 REEF for fees
func DefaultExistentialPolicy() ExistentialPolicy {
	return ExistentialPolicy{
		Deposit:    oneReef(),
		FeeReserve: oneReef(),
	}
}

func oneReef() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(NativeDecimals), nil)
}

// ExistentialCheck is the outcome of CheckMinExistentialReefAmount
type ExistentialCheck struct {
	Valid       bool
	Message     string
	MaxTransfer *big.Int // largest native amount that keeps the account alive
}

// CheckMinExistentialReefAmount reports whether nativeBalance still covers
// the existential deposit after the transfer (when native) and the fee reserve.
func CheckMinExistentialReefAmount(token types.TokenWithAmount, nativeBalance *big.Int, policy ExistentialPolicy) ExistentialCheck {
	if nativeBalance == nil {
		nativeBalance = new(big.Int)
	}
	spend := new(big.Int)
	if token.IsNative() {
		if amount, err := CalculateAmount(token); err == nil {
			spend = amount
		}
	}

	floor := new(big.Int).Add(policy.deposit(), policy.feeReserve())
	maxTransfer := new(big.Int).Sub(nativeBalance, floor)
	if maxTransfer.Sign() < 0 {
		maxTransfer.SetInt64(0)
	}

	remaining := new(big.Int).Sub(nativeBalance, spend)
	remaining.Sub(remaining, policy.feeReserve())
	if remaining.Cmp(policy.deposit()) < 0 {
		return ExistentialCheck{
			Valid: false,
			Message: fmt.Sprintf("%s REEF must remain on the account after the transaction",
				FormatAmount(floor, NativeDecimals)),
			MaxTransfer: maxTransfer,
		}
	}
	return ExistentialCheck{Valid: true, MaxTransfer: maxTransfer}
}

// EnsureExistentialReefAmount fails with ErrBelowExistentialBalance when
// CheckMinExistentialReefAmount reports an invalid outcome.
func EnsureExistentialReefAmount(token types.TokenWithAmount, nativeBalance *big.Int, policy ExistentialPolicy) error {
	check := CheckMinExistentialReefAmount(token, nativeBalance, policy)
	if !check.Valid {
		return fmt.Errorf("%w: %s", ErrBelowExistentialBalance, check.Message)
	}
	return nil
}

func (p ExistentialPolicy) deposit() *big.Int {
	if p.Deposit == nil {
		return new(big.Int)
	}
	return p.Deposit
}

func (p ExistentialPolicy) feeReserve() *big.Int {
	if p.FeeReserve == nil {
		return new(big.Int)
	}
	return p.FeeReserve
}
