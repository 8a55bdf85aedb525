package reporter

import (
	"log/slog"

	"reef-swap/pkg/types"
)

// TxStatus is the telemetry status of a submitted transaction
type TxStatus string

const (
	TxBroadcasted TxStatus = "BROADCASTED"
	TxConfirmed   TxStatus = "CONFIRMED"
	TxRejected    TxStatus = "REJECTED"
)

var eventNames = map[types.EventKind]string{
	types.EventInitiated:             "swap_initiated",
	types.EventApprovalStarted:       "approval_started",
	types.EventApprovalSignedAndSent: "approval_signed_and_sent",
	types.EventApprovalInBlock:       "approval_in_block",
	types.EventApprovalError:         "approval_error",
	types.EventTradeStarted:          "trade_started",
	types.EventTradeSignedAndSent:    "trade_signed_and_sent",
	types.EventTradeInBlock:          "trade_in_block",
	types.EventTradeFinalized:        "trade_finalized",
	types.EventTradeError:            "trade_error",
	types.EventCompleted:             "swap_completed",
	types.EventFailed:                "swap_failed",
}

// a batch carries approval and trade in one submission
var batchNames = map[types.EventKind]string{
	types.EventTradeStarted:       "batch_started",
	types.EventTradeSignedAndSent: "batch_signed_and_sent",
	types.EventTradeInBlock:       "batch_in_block",
	types.EventTradeFinalized:     "batch_finalized",
	types.EventTradeError:         "batch_error",
}

// EventName returns the analytics name of a lifecycle event
func EventName(ev types.LifecycleEvent) string {
	if ev.Batch {
		if name, ok := batchNames[ev.Kind]; ok {
			return name
		}
	}
	if name, ok := eventNames[ev.Kind]; ok {
		return name
	}
	return string(ev.Kind)
}

// TransactionStatus maps a lifecycle event onto a transaction status.
// Events that do not change a transaction's status report false.
func TransactionStatus(kind types.EventKind) (TxStatus, bool) {
	switch kind {
	case types.EventApprovalSignedAndSent, types.EventTradeSignedAndSent:
		return TxBroadcasted, true
	case types.EventApprovalInBlock, types.EventTradeFinalized:
		return TxConfirmed, true
	case types.EventApprovalError, types.EventTradeError:
		return TxRejected, true
	}
	return "", false
}

// Telemetry records lifecycle events as structured log entries
type Telemetry struct {
	logger *slog.Logger
}

// NewTelemetry creates a telemetry observer logging through logger
func NewTelemetry(logger *slog.Logger) *Telemetry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telemetry{logger: logger.With("component", "telemetry")}
}

// OnEvent implements Observer
func (t *Telemetry) OnEvent(ev types.LifecycleEvent) {
	attrs := []any{
		"swap_id", ev.SwapID,
		"sell", ev.Trade.SellSymbol,
		"sell_amount", ev.Trade.SellAmount,
		"buy", ev.Trade.BuySymbol,
		"buy_amount", ev.Trade.BuyAmount,
		"slippage", ev.Trade.Slippage,
		"batch", ev.Batch,
	}
	if ev.Err != "" {
		attrs = append(attrs, "error", ev.Err)
	}
	t.logger.Info(EventName(ev), attrs...)

	if status, ok := TransactionStatus(ev.Kind); ok {
		t.logger.Info("transaction",
			"status", string(status),
			"address", ev.Trade.EVMAddress,
			"chain_id", ev.Trade.ChainID,
			"tx", ev.TxHash,
		)
	}
}
