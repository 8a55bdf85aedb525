// Package history keeps a journal of orchestrated swaps, one record per swap
// with its ordered lifecycle events, persisted to a JSON file.
package history

import (
	"fmt"
	"log/slog"
	"sync"

	"reef-swap/pkg/types"
)

// Journal records swap lifecycle events
type Journal struct {
	storage *Storage
	logger  *slog.Logger

	// serializes read-modify-write of a record
	mu sync.Mutex
}

// NewJournal opens the journal stored at storagePath; an empty path selects
// the default file in the home directory.
func NewJournal(storagePath string, logger *slog.Logger) (*Journal, error) {
	storage, err := NewStorage(storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Journal{
		storage: storage,
		logger:  logger.With("component", "history"),
	}, nil
}

// OnEvent records a lifecycle event. Storage failures are logged and never
// reach the swap flow.
func (j *Journal) OnEvent(ev types.LifecycleEvent) {
	if err := j.Record(ev); err != nil {
		j.logger.Warn("failed to record swap event", "swap_id", ev.SwapID, "event", string(ev.Kind), "error", err)
	}
}

// Record applies a lifecycle event to its swap record, creating the record
// on first sight.
func (j *Journal) Record(ev types.LifecycleEvent) error {
	if ev.SwapID == "" {
		return fmt.Errorf("event %s has no swap id", ev.Kind)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	record, err := j.storage.Get(ev.SwapID)
	if err != nil || record.ID != ev.SwapID {
		record = newRecord(ev)
		apply(record, ev)
		return j.storage.Create(record)
	}

	apply(record, ev)
	return j.storage.Update(record)
}

// GetSwap retrieves a record by id or unique id prefix
func (j *Journal) GetSwap(id string) (*Record, error) {
	return j.storage.Get(id)
}

// ListSwaps returns all records, newest first
func (j *Journal) ListSwaps() []*Record {
	return j.storage.List()
}

// ListSwapsByStatus returns records with the given status
func (j *Journal) ListSwapsByStatus(status SwapStatus) []*Record {
	return j.storage.ListByStatus(status)
}

// DeleteSwap removes a finished record
func (j *Journal) DeleteSwap(id string) error {
	record, err := j.storage.Get(id)
	if err != nil {
		return err
	}
	if !record.IsTerminal() {
		return fmt.Errorf("cannot delete swap '%s' while it is %s", record.ID, record.Status)
	}
	return j.storage.Delete(record.ID)
}

// GetStorage returns the storage instance
func (j *Journal) GetStorage() *Storage {
	return j.storage
}

func newRecord(ev types.LifecycleEvent) *Record {
	return &Record{
		ID:         ev.SwapID,
		Created:    ev.Time,
		SellToken:  ev.Trade.SellSymbol,
		SellAddr:   ev.Trade.SellAddress,
		SellAmount: ev.Trade.SellAmount,
		BuyToken:   ev.Trade.BuySymbol,
		BuyAddr:    ev.Trade.BuyAddress,
		BuyAmount:  ev.Trade.BuyAmount,
		Slippage:   ev.Trade.Slippage,
		Deadline:   ev.Trade.Deadline,
		Batch:      ev.Batch,
		EVMAddress: ev.Trade.EVMAddress,
		ChainID:    ev.Trade.ChainID,
		Status:     StatusPending,
		Events:     []Entry{},
	}
}

func apply(r *Record, ev types.LifecycleEvent) {
	r.Events = append(r.Events, Entry{
		Kind:   ev.Kind,
		Time:   ev.Time,
		TxHash: ev.TxHash,
		Error:  ev.Err,
	})
	r.LastUpdated = ev.Time

	switch ev.Kind {
	case types.EventApprovalInBlock:
		r.ApprovalTx = ev.TxHash
		r.Status = advance(r.Status, StatusApproved)
	case types.EventTradeSignedAndSent:
		r.Status = advance(r.Status, StatusSubmitted)
	case types.EventTradeInBlock:
		r.TradeTx = ev.TxHash
		r.Status = advance(r.Status, StatusInBlock)
	case types.EventTradeFinalized:
		if r.TradeTx == "" {
			r.TradeTx = ev.TxHash
		}
		r.Status = advance(r.Status, StatusFinalized)
	case types.EventApprovalError, types.EventTradeError, types.EventFailed:
		if ev.Err != "" {
			r.ErrorMessage = ev.Err
		}
		r.Status = advance(r.Status, StatusFailed)
	}
}
