package chain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies chain-side failures
type ErrorCode int

const (
	ErrorUndefined ErrorCode = iota
	ErrorMinBalanceAfterTx
	ErrorBalanceTooLow
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorMinBalanceAfterTx:
		return "min_balance_after_tx"
	case ErrorBalanceTooLow:
		return "balance_too_low"
	default:
		return "undefined"
	}
}

// MinEVMBalanceMessage is shown when an EVM call fails on the native balance floor
const MinEVMBalanceMessage = "You must allow minimum 60 REEF on account for Ethereum VM transaction even if transaction fees will be much lower."

// TxError is a user-facing, classified transaction failure
type TxError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *TxError) Error() string { return e.Message }

func (e *TxError) Unwrap() error { return e.Err }

// ClassifyError rewrites known chain failures into user-facing text.
// Unknown messages are wrapped as a generic transaction error.
func ClassifyError(err error) *TxError {
	if err == nil {
		return nil
	}
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr
	}
	code, message := ClassifyMessage(err.Error())
	return &TxError{Code: code, Message: message, Err: err}
}

// ClassifyMessage classifies a raw error message
func ClassifyMessage(message string) (ErrorCode, string) {
	switch {
	case strings.HasPrefix(message, "1010"):
		return ErrorBalanceTooLow, "Balance too low."
	case strings.HasPrefix(message, "balances.InsufficientBalance"):
		return ErrorBalanceTooLow, "Balance too low for transfer and fees."
	case strings.Contains(message, "-32603: execution revert: 0x"),
		strings.Contains(message, "InsufficientBalance"):
		return ErrorMinBalanceAfterTx, MinEVMBalanceMessage
	}
	return ErrorUndefined, fmt.Sprintf("Transaction error: %s", message)
}

// CaptureError returns the failure carried by a status update's events, if any
func CaptureError(events []Event) string {
	for _, ev := range events {
		switch {
		case ev.Section == "system" && ev.Method == "ExtrinsicFailed":
			return describe("Extrinsic failed", ev.Data)
		case ev.Section == "evm" && ev.Method == "ExecutedFailed":
			return describe("EVM execution failed", ev.Data)
		}
	}
	return ""
}

func describe(prefix string, data []string) string {
	if len(data) == 0 {
		return prefix
	}
	return prefix + ": " + strings.Join(data, ", ")
}
