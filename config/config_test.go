package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reef-swap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "private_key: abc\n"), "")
	require.NoError(t, err)

	assert.Equal(t, "mainnet", cfg.Network.Name)
	assert.True(t, cfg.Network.BatchTxs)
	assert.Equal(t, int64(13939), cfg.Network.ChainID)
	assert.Equal(t, "https://squid.subsquid.io/reef-swap/graphql", cfg.Network.GraphqlDexURL)
	assert.Equal(t, 0.8, cfg.Swap.Slippage)
	assert.Equal(t, 1, cfg.Swap.Deadline)
	assert.Equal(t, uint64(582938), cfg.Swap.BatchTradeGas)
	assert.Equal(t, uint64(64), cfg.Swap.BatchTradeStorage)
	assert.Equal(t, uint64(2), cfg.Swap.BatchSafetyMultiplier)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, "1000000000000000000", cfg.Existential.Deposit.String())
	assert.True(t, cfg.EvmClaimed)
	assert.NoError(t, cfg.RequireKey())
}

func TestLoadTestnetOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, "network: mainnet\n"), "testnet")
	require.NoError(t, err)
	assert.Equal(t, "testnet", cfg.Network.Name)
	assert.False(t, cfg.Network.BatchTxs)
	assert.Equal(t, "https://squid.subsquid.io/reef-swap-testnet/graphql", cfg.Network.GraphqlDexURL)
	assert.Error(t, cfg.RequireKey())
}

func TestLoadFileValues(t *testing.T) {
	path := writeConfig(t, `
swap:
  slippage: 2.5
  deadline: 5
existential:
  deposit: "0.5"
prices:
  "0x0000000000000000000000000000000001000000": 0.002
networks:
  local:
    rpc_url: http://localhost:8545
    router_address: "0x641e34931C03751BFED14C4087bA395303bEC0d9"
    chain_id: 1337
`)
	cfg, err := Load(path, "local")
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.TradeSettings().Percentage)
	assert.Equal(t, 5, cfg.TradeSettings().Deadline)
	assert.Equal(t, "500000000000000000", cfg.Existential.Deposit.String())
	assert.InDelta(t, 0.002, cfg.Prices["0x0000000000000000000000000000000001000000"], 1e-12)
	assert.Equal(t, int64(1337), cfg.ChainID().Int64())
	assert.False(t, cfg.Network.BatchTxs)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("REEF_SWAP_SWAP_SLIPPAGE", "3")
	t.Setenv("REEF_SWAP_PRIVATE_KEY", "from-env")
	cfg, err := Load(writeConfig(t, ""), "")
	require.NoError(t, err)
	assert.Equal(t, 3.0, cfg.Swap.Slippage)
	assert.Equal(t, "from-env", cfg.PrivateKey)
}

func TestLoadValidation(t *testing.T) {
	tests := map[string]struct {
		body    string
		network string
	}{
		"unknown network":   {"", "devnet"},
		"slippage too high": {"swap:\n  slippage: 25\n", ""},
		"negative slippage": {"swap:\n  slippage: -1\n", ""},
		"zero deadline":     {"swap:\n  deadline: 0\n", ""},
		"bad router":        {"networks:\n  mainnet:\n    router_address: nope\n", ""},
		"bad deposit":       {"existential:\n  deposit: lots\n", ""},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), tt.network)
			assert.Error(t, err)
		})
	}
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}
