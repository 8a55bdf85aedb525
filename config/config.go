package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"reef-swap/pkg/quantity"
	"reef-swap/pkg/types"
)

// Network holds the routing configuration of one chain
type Network struct {
	Name           string
	RPCURL         string
	GraphqlDexURL  string
	RouterAddress  string
	FactoryAddress string
	ChainID        int64
	BatchTxs       bool
}

// Swap holds trade defaults and the batched-trade resource policy
type Swap struct {
	Slippage              float64
	Deadline              int
	MaxSlippage           float64
	BatchTradeGas         uint64
	BatchTradeStorage     uint64
	BatchSafetyMultiplier uint64
}

// Config holds the application configuration
type Config struct {
	Network    Network
	PrivateKey string
	// NativeAddress is the chain-native account bound to the key, if known
	NativeAddress string
	EvmClaimed    bool
	Swap          Swap
	Existential   quantity.ExistentialPolicy
	PollInterval  time.Duration
	Prices        map[string]float64
	HistoryPath   string
}

var globalConfig *Config

var defaultNetworks = map[string]map[string]interface{}{
	"mainnet": {
		"rpc_url":         "https://rpc.reefscan.com",
		"graphql_dex_url": "https://squid.subsquid.io/reef-swap/graphql",
		"router_address":  "0x641e34931C03751BFED14C4087bA395303bEC0d9",
		"factory_address": "0x380a9033500154872813F6E1120a81ed6c0760a8",
		"chain_id":        13939,
		"batch_txs":       true,
	},
	"testnet": {
		"rpc_url":         "https://rpc-testnet.reefscan.com",
		"graphql_dex_url": "https://squid.subsquid.io/reef-swap-testnet/graphql",
		"router_address":  "0x614b7B6382524C32dDF4ff1f4187Bc0BAAC1ed11",
		"factory_address": "0x06D7a7334B9329D0750FFd0a636D6C3dFA77E580",
		"chain_id":        13939,
		"batch_txs":       false,
	},
}

// New creates a viper instance with defaults, the optional config file and
// environment overrides applied. An empty configFile searches $HOME and the
// working directory for .reef-swap.yaml.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".reef-swap")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix("REEF_SWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", "mainnet")
	for name, values := range defaultNetworks {
		for key, value := range values {
			v.SetDefault("networks."+name+"."+key, value)
		}
	}
	v.SetDefault("native_address", "")
	v.SetDefault("evm_claimed", true)
	v.SetDefault("swap.slippage", 0.8)
	v.SetDefault("swap.deadline", 1)
	v.SetDefault("swap.max_slippage", 20)
	v.SetDefault("swap.batch_trade_gas", 582938)
	v.SetDefault("swap.batch_trade_storage", 64)
	v.SetDefault("swap.batch_safety_multiplier", 2)
	v.SetDefault("existential.deposit", "1")
	v.SetDefault("existential.fee_reserve", "1")
	v.SetDefault("poll_interval", "10s")
	v.SetDefault("history_path", "")
}

// Load reads configuration from environment variables and config file
func Load(configFile, network string) (*Config, error) {
	v, err := New(configFile)
	if err != nil {
		return nil, err
	}
	if network != "" {
		v.Set("network", network)
	}
	cfg, err := FromViper(v)
	if err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

// FromViper decodes and validates a configuration
func FromViper(v *viper.Viper) (*Config, error) {
	name := strings.ToLower(v.GetString("network"))
	prefix := "networks." + name + "."
	if !v.IsSet(prefix + "router_address") {
		return nil, fmt.Errorf("unknown network %q", name)
	}

	cfg := &Config{
		Network: Network{
			Name:           name,
			RPCURL:         v.GetString(prefix + "rpc_url"),
			GraphqlDexURL:  v.GetString(prefix + "graphql_dex_url"),
			RouterAddress:  v.GetString(prefix + "router_address"),
			FactoryAddress: v.GetString(prefix + "factory_address"),
			ChainID:        v.GetInt64(prefix + "chain_id"),
			BatchTxs:       v.GetBool(prefix + "batch_txs"),
		},
		PrivateKey:    v.GetString("private_key"),
		NativeAddress: v.GetString("native_address"),
		EvmClaimed:    v.GetBool("evm_claimed"),
		Swap: Swap{
			Slippage:              v.GetFloat64("swap.slippage"),
			Deadline:              v.GetInt("swap.deadline"),
			MaxSlippage:           v.GetFloat64("swap.max_slippage"),
			BatchTradeGas:         v.GetUint64("swap.batch_trade_gas"),
			BatchTradeStorage:     v.GetUint64("swap.batch_trade_storage"),
			BatchSafetyMultiplier: v.GetUint64("swap.batch_safety_multiplier"),
		},
		PollInterval: v.GetDuration("poll_interval"),
		Prices:       map[string]float64{},
		HistoryPath:  v.GetString("history_path"),
	}

	deposit, err := quantity.ToSmallestUnits(v.GetString("existential.deposit"), quantity.NativeDecimals)
	if err != nil {
		return nil, fmt.Errorf("invalid existential.deposit: %w", err)
	}
	reserve, err := quantity.ToSmallestUnits(v.GetString("existential.fee_reserve"), quantity.NativeDecimals)
	if err != nil {
		return nil, fmt.Errorf("invalid existential.fee_reserve: %w", err)
	}
	cfg.Existential = quantity.ExistentialPolicy{Deposit: deposit, FeeReserve: reserve}

	for address, price := range v.GetStringMap("prices") {
		p, ok := toFloat(price)
		if !ok {
			return nil, fmt.Errorf("invalid price for %s", address)
		}
		cfg.Prices[strings.ToLower(address)] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the swap flow cannot run with
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.Network.RouterAddress) {
		return fmt.Errorf("invalid router address %q for network %s", c.Network.RouterAddress, c.Network.Name)
	}
	if c.Swap.Slippage < 0 || c.Swap.Slippage > c.Swap.MaxSlippage {
		return fmt.Errorf("slippage %v must be between 0 and %v", c.Swap.Slippage, c.Swap.MaxSlippage)
	}
	if c.Swap.Deadline <= 0 {
		return fmt.Errorf("deadline must be positive, got %d", c.Swap.Deadline)
	}
	return nil
}

// TradeSettings returns the configured slippage and deadline
func (c *Config) TradeSettings() types.TradeSettings {
	return types.TradeSettings{Percentage: c.Swap.Slippage, Deadline: c.Swap.Deadline}
}

// ChainID returns the network chain id as a big integer
func (c *Config) ChainID() *big.Int {
	return big.NewInt(c.Network.ChainID)
}

// RequireKey fails when no signing key is configured
func (c *Config) RequireKey() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("private key not found. Please set REEF_SWAP_PRIVATE_KEY environment variable or add private_key to .reef-swap.yaml")
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load("", "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
