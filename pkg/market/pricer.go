package market

import (
	"strings"

	"github.com/shopspring/decimal"

	"reef-swap/pkg/types"
)

// StaticPrices is a fixed USD price table keyed by token address
type StaticPrices map[string]float64

// Prices returns the table with lowercased keys
func (s StaticPrices) Prices() types.Prices {
	out := make(types.Prices, len(s))
	for addr, price := range s {
		out[strings.ToLower(addr)] = price
	}
	return out
}

// Pricer derives USD prices of pooled tokens from a set of anchor prices.
// A token without an anchor takes its price from the deepest pool pairing it
// with a priced token.
type Pricer struct {
	anchors StaticPrices
}

// NewPricer creates a pricer over the given anchor prices
func NewPricer(anchors StaticPrices) *Pricer {
	return &Pricer{anchors: anchors}
}

// Prices returns USD prices for every token reachable from an anchor
func (p *Pricer) Prices(pools []types.Pool) types.Prices {
	prices := p.anchors.Prices()

	// Each pass prices tokens one hop further from an anchor
	for pass := 0; pass < len(pools); pass++ {
		derived := make(map[string]decimal.Decimal)
		depth := make(map[string]decimal.Decimal)

		for _, pl := range pools {
			a := strings.ToLower(pl.Token1.Address)
			b := strings.ToLower(pl.Token2.Address)
			rA, rB := pl.Reserves()
			if rA.Sign() <= 0 || rB.Sign() <= 0 {
				continue
			}
			amountA := decimal.NewFromBigInt(rA, -pl.Token1.Decimals)
			amountB := decimal.NewFromBigInt(rB, -pl.Token2.Decimals)

			consider := func(known string, knownAmount decimal.Decimal, unknown string, unknownAmount decimal.Decimal) {
				price, ok := prices[known]
				if !ok {
					return
				}
				if _, priced := prices[unknown]; priced {
					return
				}
				value := knownAmount.Mul(decimal.NewFromFloat(price))
				if d, seen := depth[unknown]; seen && d.GreaterThanOrEqual(value) {
					return
				}
				depth[unknown] = value
				derived[unknown] = value.Div(unknownAmount)
			}
			consider(a, amountA, b, amountB)
			consider(b, amountB, a, amountA)
		}

		if len(derived) == 0 {
			break
		}
		for addr, price := range derived {
			prices[addr], _ = price.Float64()
		}
	}
	return prices
}
