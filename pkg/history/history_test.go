package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reef-swap/pkg/types"
)

func event(id string, kind types.EventKind, at time.Time) types.LifecycleEvent {
	return types.LifecycleEvent{
		SwapID: id,
		Kind:   kind,
		Time:   at,
		Trade: types.TradeDetails{
			SellSymbol:  "REEF",
			SellAddress: types.NativeTokenAddress,
			SellAmount:  "10",
			BuySymbol:   "USDC",
			BuyAddress:  "0x7922d8785d93e692bb584e659b607fa821e6a91a",
			BuyAmount:   "0.0049",
			Slippage:    0.8,
			Deadline:    1,
			ChainID:     13939,
		},
	}
}

func newJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	j, err := NewJournal(path, nil)
	require.NoError(t, err)
	return j, path
}

func TestJournalSequentialSwap(t *testing.T) {
	j, path := newJournal(t)
	base := time.Unix(1_700_000_000, 0).UTC()

	steps := []types.LifecycleEvent{
		event("swap-1", types.EventInitiated, base),
		event("swap-1", types.EventApprovalStarted, base.Add(time.Second)),
		event("swap-1", types.EventApprovalSignedAndSent, base.Add(2*time.Second)),
	}
	approved := event("swap-1", types.EventApprovalInBlock, base.Add(3*time.Second))
	approved.TxHash = "0xapprove"
	steps = append(steps, approved, event("swap-1", types.EventTradeSignedAndSent, base.Add(4*time.Second)))
	inBlock := event("swap-1", types.EventTradeInBlock, base.Add(5*time.Second))
	inBlock.TxHash = "0xtrade"
	steps = append(steps, inBlock, event("swap-1", types.EventCompleted, base.Add(6*time.Second)))
	for _, ev := range steps {
		require.NoError(t, j.Record(ev))
	}

	r, err := j.GetSwap("swap-1")
	require.NoError(t, err)
	assert.Equal(t, StatusInBlock, r.Status)
	assert.Equal(t, "0xapprove", r.ApprovalTx)
	assert.Equal(t, "0xtrade", r.TradeTx)
	assert.Len(t, r.Events, len(steps))
	assert.Equal(t, base, r.Created)

	finalized := event("swap-1", types.EventTradeFinalized, base.Add(20*time.Second))
	finalized.TxHash = "0xtrade"
	j.OnEvent(finalized)

	// reopen from disk
	reopened, err := NewJournal(path, nil)
	require.NoError(t, err)
	r, err = reopened.GetSwap("swap-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFinalized, r.Status)
	assert.True(t, r.IsTerminal())
	assert.Equal(t, types.EventTradeFinalized, r.Events[len(r.Events)-1].Kind)
}

func TestJournalFailureIsSticky(t *testing.T) {
	j, _ := newJournal(t)
	at := time.Now()

	failed := event("swap-2", types.EventApprovalError, at)
	failed.Err = "Balance too low."
	j.OnEvent(event("swap-2", types.EventInitiated, at))
	j.OnEvent(failed)
	j.OnEvent(event("swap-2", types.EventTradeInBlock, at))

	r, err := j.GetSwap("swap-2")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "Balance too low.", r.ErrorMessage)
}

func TestJournalCreatesRecordForUnseenSwap(t *testing.T) {
	j, _ := newJournal(t)
	j.OnEvent(event("late", types.EventTradeFinalized, time.Now()))

	r, err := j.GetSwap("late")
	require.NoError(t, err)
	assert.Equal(t, StatusFinalized, r.Status)
	assert.Equal(t, "REEF", r.SellToken)
}

func TestJournalRejectsEventWithoutID(t *testing.T) {
	j, _ := newJournal(t)
	assert.Error(t, j.Record(types.LifecycleEvent{Kind: types.EventInitiated}))
	assert.Zero(t, j.GetStorage().Count())
}

func TestStorageGetByPrefix(t *testing.T) {
	j, _ := newJournal(t)
	at := time.Now()
	j.OnEvent(event("abc123", types.EventInitiated, at))
	j.OnEvent(event("abd456", types.EventInitiated, at.Add(time.Second)))

	r, err := j.GetSwap("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc123", r.ID)

	_, err = j.GetSwap("ab")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = j.GetSwap("zzz")
	assert.ErrorContains(t, err, "not found")

	list := j.ListSwaps()
	require.Len(t, list, 2)
	assert.Equal(t, "abd456", list[0].ID)
	assert.Len(t, j.ListSwapsByStatus(StatusPending), 2)
}

func TestDeleteSwapRequiresTerminal(t *testing.T) {
	j, _ := newJournal(t)
	at := time.Now()
	j.OnEvent(event("s", types.EventInitiated, at))

	assert.Error(t, j.DeleteSwap("s"))

	j.OnEvent(event("s", types.EventFailed, at))
	require.NoError(t, j.DeleteSwap("s"))
	assert.Zero(t, j.GetStorage().Count())
}

func TestNewStorageRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewStorage(path)
	assert.Error(t, err)
}

func TestRecordReturnsCopies(t *testing.T) {
	j, _ := newJournal(t)
	j.OnEvent(event("c", types.EventInitiated, time.Now()))

	r, err := j.GetSwap("c")
	require.NoError(t, err)
	r.Status = StatusFailed
	r.Events = append(r.Events, Entry{Kind: types.EventFailed})

	again, err := j.GetSwap("c")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, again.Status)
	assert.Len(t, again.Events, 1)
}
