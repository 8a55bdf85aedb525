package swap

import (
	"math/big"

	"reef-swap/pkg/quantity"
	"reef-swap/pkg/types"
)

// Constant-product pool fee of 0.3%
var (
	feeNumerator   = big.NewInt(997)
	feeDenominator = big.NewInt(1000)
)

// OutputAmount is the amount received for amountIn against the reserves
func OutputAmount(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil
	}
	inWithFee := new(big.Int).Mul(amountIn, feeNumerator)
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, feeDenominator)
	denominator.Add(denominator, inWithFee)
	return numerator.Quo(numerator, denominator)
}

// InputAmount is the amount that must be paid to receive amountOut
func InputAmount(amountOut, reserveIn, reserveOut *big.Int) *big.Int {
	if amountOut.Sign() <= 0 || reserveIn.Sign() <= 0 || amountOut.Cmp(reserveOut) >= 0 {
		return nil
	}
	numerator := new(big.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, feeDenominator)
	denominator := new(big.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, feeNumerator)
	in := numerator.Quo(numerator, denominator)
	return in.Add(in, big.NewInt(1))
}

func orientedReserves(from, to types.TokenWithAmount, p *types.Pool) (*big.Int, *big.Int, bool) {
	if p == nil || from.IsEmpty || to.IsEmpty {
		return nil, nil, false
	}
	rIn, ok := p.ReserveOf(from.Address)
	if !ok {
		return nil, nil, false
	}
	rOut, ok := p.ReserveOf(to.Address)
	if !ok {
		return nil, nil, false
	}
	return rIn, rOut, true
}

// deriveBuyAmount prices the sell amount through the pool
func deriveBuyAmount(sell, buy types.TokenWithAmount, p *types.Pool) string {
	rIn, rOut, ok := orientedReserves(sell, buy, p)
	if !ok {
		return ""
	}
	in, err := quantity.CalculateAmount(sell)
	if err != nil {
		return ""
	}
	out := OutputAmount(in, rIn, rOut)
	if out == nil {
		return ""
	}
	return quantity.FormatAmount(out, buy.Decimals)
}

// deriveSellAmount prices the buy amount through the pool
func deriveSellAmount(sell, buy types.TokenWithAmount, p *types.Pool) string {
	rIn, rOut, ok := orientedReserves(sell, buy, p)
	if !ok {
		return ""
	}
	out, err := quantity.CalculateAmount(buy)
	if err != nil {
		return ""
	}
	in := InputAmount(out, rIn, rOut)
	if in == nil {
		return ""
	}
	return quantity.FormatAmount(in, sell.Decimals)
}
