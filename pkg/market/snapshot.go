package market

import (
	"math/big"
	"sort"
	"strings"
	"time"

	"reef-swap/pkg/types"
)

// Snapshot is one consistent view of the market
type Snapshot struct {
	Pools   []types.Pool
	Tokens  []types.Token
	Prices  types.Prices
	Fetched time.Time
}

// TokensFromPools lists each token that appears in a pool once, sorted by
// symbol. Balances start at zero until refreshed from the chain.
func TokensFromPools(pools []types.Pool) []types.Token {
	seen := make(map[string]types.Token)
	for _, p := range pools {
		for _, t := range []types.Token{p.Token1, p.Token2} {
			key := strings.ToLower(t.Address)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			t.Balance = new(big.Int)
			seen[key] = t
		}
	}

	tokens := make([]types.Token, 0, len(seen))
	for _, t := range seen {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].Symbol != tokens[j].Symbol {
			return tokens[i].Symbol < tokens[j].Symbol
		}
		return strings.ToLower(tokens[i].Address) < strings.ToLower(tokens[j].Address)
	})
	return tokens
}

// FindTokenBySymbol searches tokens by symbol: exact match first, then
// partial match.
func FindTokenBySymbol(tokens []types.Token, symbol string) (types.Token, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return types.Token{}, false
	}

	for _, t := range tokens {
		if strings.ToUpper(t.Symbol) == symbol {
			return t, true
		}
	}
	for _, t := range tokens {
		if strings.Contains(strings.ToUpper(t.Symbol), symbol) {
			return t, true
		}
	}
	return types.Token{}, false
}

// ResolveToken finds a token by address or symbol
func ResolveToken(tokens []types.Token, ref string) (types.Token, bool) {
	if strings.HasPrefix(ref, "0x") {
		for _, t := range tokens {
			if strings.EqualFold(t.Address, ref) {
				return t, true
			}
		}
		return types.Token{}, false
	}
	return FindTokenBySymbol(tokens, ref)
}
