package history

import (
	"fmt"
	"time"

	"reef-swap/pkg/types"
)

// SwapStatus is the furthest point a recorded swap reached
type SwapStatus string

const (
	StatusPending   SwapStatus = "pending"   // Swap initiated
	StatusApproved  SwapStatus = "approved"  // Approval in block
	StatusSubmitted SwapStatus = "submitted" // Trade signed and sent
	StatusInBlock   SwapStatus = "in_block"  // Trade in block
	StatusFinalized SwapStatus = "finalized" // Trade block finalized
	StatusFailed    SwapStatus = "failed"    // Swap failed
)

// Record is one orchestrated swap
type Record struct {
	ID          string    `json:"id"`
	Created     time.Time `json:"created"`
	LastUpdated time.Time `json:"last_updated"`

	SellToken  string  `json:"sell_token"`
	SellAddr   string  `json:"sell_address"`
	SellAmount string  `json:"sell_amount"`
	BuyToken   string  `json:"buy_token"`
	BuyAddr    string  `json:"buy_address"`
	BuyAmount  string  `json:"buy_amount"`
	Slippage   float64 `json:"slippage"`
	Deadline   int     `json:"deadline"`
	Batch      bool    `json:"batch"`
	EVMAddress string  `json:"evm_address"`
	ChainID    int64   `json:"chain_id"`

	Status       SwapStatus `json:"status"`
	ApprovalTx   string     `json:"approval_tx,omitempty"`
	TradeTx      string     `json:"trade_tx,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Events       []Entry    `json:"events"`
}

// Entry is a lifecycle event as stored in a record
type Entry struct {
	Kind   types.EventKind `json:"kind"`
	Time   time.Time       `json:"time"`
	TxHash string          `json:"tx_hash,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Validate checks that a record can be stored
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record id is required")
	}
	if r.SellToken == "" && r.SellAddr == "" {
		return fmt.Errorf("sell token is required")
	}
	if r.BuyToken == "" && r.BuyAddr == "" {
		return fmt.Errorf("buy token is required")
	}
	return nil
}

// IsTerminal reports whether the swap can make no further progress
func (r *Record) IsTerminal() bool {
	return r.Status == StatusFinalized || r.Status == StatusFailed
}

// Summary is a shortened view of a record for listing
type Summary struct {
	ID         string     `json:"id"`
	SellToken  string     `json:"sell_token"`
	SellAmount string     `json:"sell_amount"`
	BuyToken   string     `json:"buy_token"`
	BuyAmount  string     `json:"buy_amount"`
	Batch      bool       `json:"batch"`
	Status     SwapStatus `json:"status"`
	Created    time.Time  `json:"created"`
}

// ToSummary converts a record to a summary
func (r *Record) ToSummary() *Summary {
	return &Summary{
		ID:         r.ID,
		SellToken:  r.SellToken,
		SellAmount: r.SellAmount,
		BuyToken:   r.BuyToken,
		BuyAmount:  r.BuyAmount,
		Batch:      r.Batch,
		Status:     r.Status,
		Created:    r.Created,
	}
}

// statusRank orders statuses so late or repeated events never move a
// record backwards.
var statusRank = map[SwapStatus]int{
	StatusPending:   0,
	StatusApproved:  1,
	StatusSubmitted: 2,
	StatusInBlock:   3,
	StatusFinalized: 4,
}

func advance(current, next SwapStatus) SwapStatus {
	if current == StatusFailed {
		return current
	}
	if next == StatusFailed || statusRank[next] > statusRank[current] {
		return next
	}
	return current
}
