package chain

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackSelectors(t *testing.T) {
	spender := common.HexToAddress("0x641e34931c03751bfed14c4087ba395303bec0d9")

	approve, err := PackApprove(spender, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, "095ea7b3", hex.EncodeToString(approve[:4]))
	assert.Len(t, approve, 4+2*32)

	transfer, err := PackTransfer(spender, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "a9059cbb", hex.EncodeToString(transfer[:4]))

	balanceOf, err := PackBalanceOf(spender)
	require.NoError(t, err)
	assert.Equal(t, "70a08231", hex.EncodeToString(balanceOf[:4]))

	path := []common.Address{common.HexToAddress("0x01"), common.HexToAddress("0x02")}
	swap, err := PackSwap(big.NewInt(10), big.NewInt(9), path, spender, big.NewInt(1700000000))
	require.NoError(t, err)
	assert.Equal(t, "5c11d795", hex.EncodeToString(swap[:4]))
}

func TestUnpackBalanceOf(t *testing.T) {
	word := common.LeftPadBytes(big.NewInt(4242).Bytes(), 32)
	balance, err := UnpackBalanceOf(word)
	require.NoError(t, err)
	assert.Equal(t, int64(4242), balance.Int64())

	_, err = UnpackBalanceOf([]byte{0x01})
	assert.Error(t, err)
}
