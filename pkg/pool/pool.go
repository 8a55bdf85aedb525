// Package pool resolves token pairs to liquidity pools and prices them.
package pool

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"reef-swap/pkg/quantity"
	"reef-swap/pkg/types"
)

// NoLiquidity is returned by CalculateRate when a reserve is empty
const NoLiquidity = "No liquidity"

// Pair is a token pair in canonical order: A sorts before B.
type Pair struct {
	A string
	B string
}

// CanonicalPair orders two addresses so the lexicographically smaller one
// comes first. Addresses are compared case-insensitively.
func CanonicalPair(addressA, addressB string) Pair {
	a, b := normalize(addressA), normalize(addressB)
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Key returns a stable map key for the pair
func (p Pair) Key() string {
	return p.A + "/" + p.B
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// FindPool returns the pool for the pair regardless of argument order
func FindPool(addressA, addressB string, pools []types.Pool) (*types.Pool, bool) {
	want := CanonicalPair(addressA, addressB)
	if want.A == want.B {
		return nil, false
	}
	for i := range pools {
		p := &pools[i]
		if CanonicalPair(p.Token1.Address, p.Token2.Address) == want {
			found := Canonicalize(*p)
			return &found, true
		}
	}
	return nil, false
}

// Canonicalize swaps the token sides of a pool whose token1 does not sort first
func Canonicalize(p types.Pool) types.Pool {
	if normalize(p.Token2.Address) < normalize(p.Token1.Address) {
		p.Token1, p.Token2 = p.Token2, p.Token1
		p.Reserve1, p.Reserve2 = p.Reserve2, p.Reserve1
	}
	return p
}

// CalculateRate renders "1 <sell> = N <buy>" from the pool reserves
func CalculateRate(sellTokenAddress string, p types.Pool) string {
	r1, r2 := p.Reserves()
	if r1.Sign() == 0 || r2.Sign() == 0 {
		return NoLiquidity
	}
	n1 := quantity.ToHuman(r1, p.Token1.Decimals)
	n2 := quantity.ToHuman(r2, p.Token2.Decimals)

	sell, buy := p.Token1, p.Token2
	rate := n2.Div(n1)
	if !strings.EqualFold(sellTokenAddress, p.Token1.Address) {
		sell, buy = p.Token2, p.Token1
		rate = n1.Div(n2)
	}
	return fmt.Sprintf("1 %s = %s %s", sell.Symbol, maxDecimals(rate, 4), buy.Symbol)
}

func maxDecimals(d decimal.Decimal, places int32) string {
	return d.Truncate(places).String()
}

// TokensForPair lists the tokens that share a pool with token
func TokensForPair(token string, tokens []types.Token, pools []types.Pool) []types.Token {
	want := normalize(token)
	available := make(map[string]struct{})
	for _, p := range pools {
		t1, t2 := normalize(p.Token1.Address), normalize(p.Token2.Address)
		switch want {
		case t1:
			available[t2] = struct{}{}
		case t2:
			available[t1] = struct{}{}
		}
	}

	out := make([]types.Token, 0, len(available))
	for _, t := range tokens {
		if _, ok := available[normalize(t.Address)]; ok {
			out = append(out, t)
		}
	}
	return out
}
