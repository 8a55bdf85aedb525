package transfer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reef-swap/pkg/chain"
	"reef-swap/pkg/quantity"
	"reef-swap/pkg/types"
)

const (
	evmTarget    = "0x641e34931c03751bfed14c4087ba395303bec0d9"
	nativeTarget = "5F3sa2TJAWMqDhXG6jhV4N8ko9SxwGy8TpaNS1repo5EYjQX"
	usdcAddr     = "0x7922d8785d93e692bb584e659b607fa821e6a91a"
)

func reef(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type signer struct{ claimed bool }

func (signer) Address() string      { return nativeTarget }
func (s signer) IsEvmClaimed() bool { return s.claimed }

func (signer) EVMAddress() common.Address {
	return common.HexToAddress("0x1111111111111111111111111111111111111111")
}

func (signer) SignTx(tx *ethtypes.Transaction, _ *big.Int) (*ethtypes.Transaction, error) {
	return tx, nil
}

func token(addr, symbol string, balance *big.Int, amount string) types.TokenWithAmount {
	return types.TokenWithAmount{
		Token:  types.Token{Address: addr, Symbol: symbol, Decimals: 18, Balance: balance},
		Amount: amount,
	}
}

func TestSendStatus(t *testing.T) {
	policy := quantity.DefaultExistentialPolicy()
	native := reef(100)
	reefToken := func(amount string) types.TokenWithAmount {
		return token(types.NativeTokenAddress, "REEF", native, amount)
	}

	tests := []struct {
		name   string
		to     string
		token  types.TokenWithAmount
		signer chain.Signer
		want   string
	}{
		{"empty destination", "  ", reefToken("1"), signer{true}, "Missing destination address"},
		{"malformed destination", "0x1234", reefToken("1"), signer{true}, "Incorrect destination address"},
		{"unbound evm target", evmTarget, reefToken("1"), signer{false}, "Bind account"},
		{"native target needs no binding", nativeTarget, reefToken("1"), signer{false}, StatusSend},
		{"empty amount", evmTarget, reefToken(""), signer{true}, "Insert amount"},
		{"zero amount", evmTarget, reefToken("0"), signer{true}, "Insert amount"},
		{"over balance", evmTarget, reefToken("101"), signer{true}, "Insufficient REEF balance"},
		{"below existential", evmTarget, reefToken("99"), signer{true}, "2 REEF must remain on the account after the transaction"},
		{"erc20 ignores native spend", evmTarget, token(usdcAddr, "USDC", reef(5), "5"), signer{true}, StatusSend},
		{"valid", evmTarget, reefToken("98"), signer{true}, StatusSend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, status := SendStatus(tt.to, tt.token, tt.signer, native, policy)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.want == StatusSend, valid)
		})
	}
}

type fakeClient struct {
	built   []*chain.Call
	updates []chain.StatusUpdate
}

func (f *fakeClient) EstimateResources(context.Context, chain.CallRequest) (chain.Resources, error) {
	return chain.Resources{Gas: big.NewInt(21_000), Storage: big.NewInt(-1)}, nil
}

func (f *fakeClient) BuildCall(to common.Address, data []byte, value, gas, storage *big.Int) (*chain.Call, error) {
	c := &chain.Call{To: to, Data: data, Value: value, Gas: gas, Storage: storage}
	f.built = append(f.built, c)
	return c, nil
}

func (f *fakeClient) BatchAll([]*chain.Call) (chain.Extrinsic, error) {
	return nil, chain.ErrBatchUnsupported
}

func (f *fakeClient) Submit(context.Context, chain.Extrinsic, chain.Signer) (<-chan chain.StatusUpdate, error) {
	ch := make(chan chain.StatusUpdate, len(f.updates))
	for _, u := range f.updates {
		ch <- u
	}
	close(ch)
	return ch, nil
}

func TestSendNative(t *testing.T) {
	client := &fakeClient{updates: []chain.StatusUpdate{{TxHash: "0xabc", Status: chain.Status{IsInBlock: true}}}}
	s := NewSender(client, signer{true}, nil)

	hash, err := s.Send(context.Background(), evmTarget, token(types.NativeTokenAddress, "REEF", reef(10), "2.5"))
	require.NoError(t, err)
	assert.Equal(t, "0xabc", hash)

	require.Len(t, client.built, 1)
	call := client.built[0]
	assert.Equal(t, common.HexToAddress(evmTarget), call.To)
	assert.Empty(t, call.Data)
	assert.Equal(t, "2500000000000000000", call.Value.String())
	assert.Zero(t, call.Storage.Sign())
}

func TestSendERC20(t *testing.T) {
	client := &fakeClient{updates: []chain.StatusUpdate{{TxHash: "0xdef", Status: chain.Status{IsInBlock: true}}}}
	s := NewSender(client, signer{true}, nil)

	_, err := s.Send(context.Background(), evmTarget, token(usdcAddr, "USDC", reef(10), "1"))
	require.NoError(t, err)

	call := client.built[0]
	assert.Equal(t, common.HexToAddress(usdcAddr), call.To)
	want, err := chain.PackTransfer(common.HexToAddress(evmTarget), reef(1))
	require.NoError(t, err)
	assert.Equal(t, want, call.Data)
	assert.Zero(t, call.Value.Sign())
}

func TestSendFailures(t *testing.T) {
	client := &fakeClient{updates: []chain.StatusUpdate{{DispatchError: "balances.InsufficientBalance"}}}
	s := NewSender(client, signer{true}, nil)

	_, err := s.Send(context.Background(), evmTarget, token(usdcAddr, "USDC", reef(10), "1"))
	var txErr *chain.TxError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, "Balance too low for transfer and fees.", txErr.Message)

	_, err = s.Send(context.Background(), nativeTarget, token(usdcAddr, "USDC", reef(10), "1"))
	assert.ErrorIs(t, err, ErrNativeDestination)

	_, err = s.Send(context.Background(), evmTarget, token(usdcAddr, "USDC", reef(10), "11"))
	assert.ErrorIs(t, err, quantity.ErrInvalidAmount)
}
