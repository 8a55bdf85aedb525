package types

import "time"

// EventKind names a step of an orchestrated swap
type EventKind string

const (
	EventInitiated             EventKind = "initiated"
	EventApprovalStarted       EventKind = "approval_started"
	EventApprovalSignedAndSent EventKind = "approval_signed_and_sent"
	EventApprovalInBlock       EventKind = "approval_in_block"
	EventApprovalError         EventKind = "approval_error"
	EventTradeStarted          EventKind = "trade_started"
	EventTradeSignedAndSent    EventKind = "trade_signed_and_sent"
	EventTradeInBlock          EventKind = "trade_in_block"
	EventTradeFinalized        EventKind = "trade_finalized"
	EventTradeError            EventKind = "trade_error"
	EventCompleted             EventKind = "completed"
	EventFailed                EventKind = "failed"
)

// IsError reports whether the event marks a failure
func (k EventKind) IsError() bool {
	return k == EventApprovalError || k == EventTradeError || k == EventFailed
}

// TradeDetails describes the trade an event belongs to
type TradeDetails struct {
	SellAddress string  `json:"sell_address"`
	SellSymbol  string  `json:"sell_symbol"`
	SellAmount  string  `json:"sell_amount"`
	SellPrice   float64 `json:"sell_price"`
	BuyAddress  string  `json:"buy_address"`
	BuySymbol   string  `json:"buy_symbol"`
	BuyAmount   string  `json:"buy_amount"`
	BuyPrice    float64 `json:"buy_price"`
	Slippage    float64 `json:"slippage"`
	Deadline    int     `json:"deadline"` // minutes
	EVMAddress  string  `json:"evm_address"`
	ChainID     int64   `json:"chain_id"`
}

// LifecycleEvent is one step of an orchestrated swap. For a batched swap the
// approval and trade share a single submission, so only trade events carry
// chain progress.
type LifecycleEvent struct {
	SwapID string       `json:"swap_id"`
	Kind   EventKind    `json:"kind"`
	Batch  bool         `json:"batch"`
	Time   time.Time    `json:"time"`
	TxHash string       `json:"tx_hash,omitempty"`
	Trade  TradeDetails `json:"trade"`
	Err    string       `json:"error,omitempty"`
}

// Level is the severity of a user notification
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)
