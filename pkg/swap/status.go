package swap

import (
	"fmt"

	"reef-swap/pkg/quantity"
	"reef-swap/pkg/types"
)

// Evaluate runs the ordered validation rules and returns the first failing
// rule's message, or StatusTrade when the swap can be submitted.
func Evaluate(sell, buy types.TokenWithAmount, isEvmClaimed bool, pool *types.Pool) (bool, string) {
	if !isEvmClaimed {
		return false, "Bind account"
	}
	if sell.IsEmpty {
		return false, "Select sell token"
	}
	if buy.IsEmpty {
		return false, "Select buy token"
	}
	if sameAddress(sell.Address, buy.Address) {
		return false, "Tokens must be different"
	}
	if pool == nil {
		return false, "Pool does not exist"
	}
	sellReserve, okSell := pool.ReserveOf(sell.Address)
	buyReserve, okBuy := pool.ReserveOf(buy.Address)
	if !okSell || !okBuy {
		return false, "Pool does not exist"
	}

	sellAmount, err := quantity.CalculateAmount(sell)
	if err != nil || sellAmount.Sign() <= 0 {
		return false, fmt.Sprintf("Missing %s amount", sell.Symbol)
	}
	buyAmount, err := quantity.CalculateAmount(buy)
	if err != nil {
		return false, fmt.Sprintf("Missing %s amount", buy.Symbol)
	}
	if sellAmount.Cmp(sell.BalanceOrZero()) > 0 {
		return false, fmt.Sprintf("Insufficient %s balance", sell.Symbol)
	}

	sellLeft := sellReserve.Sub(sellReserve, sellAmount)
	buyLeft := buyReserve.Sub(buyReserve, buyAmount)
	if sellLeft.Sign() <= 0 && buyLeft.Sign() <= 0 {
		return false, "Insufficient amounts"
	}
	return true, StatusTrade
}
