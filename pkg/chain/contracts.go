package chain

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ERC20 approve, transfer and balanceOf
const erc20ABI = `[
{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}
]`

// Uniswap-v2 style router entry point used for swaps
const routerABI = `[
{"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokensSupportingFeeOnTransferTokens","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var (
	erc20Contract  = sync.OnceValues(func() (abi.ABI, error) { return abi.JSON(strings.NewReader(erc20ABI)) })
	routerContract = sync.OnceValues(func() (abi.ABI, error) { return abi.JSON(strings.NewReader(routerABI)) })
)

// PackApprove encodes ERC20 approve(spender, amount)
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return pack(erc20Contract, "approve", spender, amount)
}

// PackTransfer encodes ERC20 transfer(to, amount)
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return pack(erc20Contract, "transfer", to, amount)
}

// PackBalanceOf encodes ERC20 balanceOf(owner)
func PackBalanceOf(owner common.Address) ([]byte, error) {
	return pack(erc20Contract, "balanceOf", owner)
}

// UnpackBalanceOf decodes the result of balanceOf
func UnpackBalanceOf(result []byte) (*big.Int, error) {
	parsed, err := erc20Contract()
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	out, err := parsed.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf: %w", err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result %T", out[0])
	}
	return balance, nil
}

// PackSwap encodes the router's fee-on-transfer supporting exact-input swap
func PackSwap(amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return pack(routerContract, "swapExactTokensForTokensSupportingFeeOnTransferTokens", amountIn, amountOutMin, path, to, deadline)
}

func pack(contract func() (abi.ABI, error), method string, args ...interface{}) ([]byte, error) {
	parsed, err := contract()
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s data: %w", method, err)
	}
	return data, nil
}
