// Package chain defines the typed boundary between the swap core and the
// blockchain client that estimates, signs and submits transactions.
package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrBatchUnsupported is returned by clients that cannot submit atomic batches
	ErrBatchUnsupported = errors.New("atomic batch submission not supported")

	// ErrStreamClosed is returned when a status stream ends before inclusion
	ErrStreamClosed = errors.New("transaction status stream closed before inclusion")
)

// CallRequest is an EVM contract call before resources are attached
type CallRequest struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Resources is an execution-resource estimate. Storage may be negative when
// the call frees storage.
type Resources struct {
	Gas     *big.Int
	Storage *big.Int
}

// Clamped returns a copy with a negative storage estimate raised to zero
func (r Resources) Clamped() Resources {
	out := Resources{Gas: new(big.Int), Storage: new(big.Int)}
	if r.Gas != nil {
		out.Gas.Set(r.Gas)
	}
	if r.Storage != nil && r.Storage.Sign() > 0 {
		out.Storage.Set(r.Storage)
	}
	return out
}

// Extrinsic is a signed-later unit of submission: a single call or a batch
type Extrinsic interface {
	// Calls returns the EVM calls wrapped by the extrinsic, in order
	Calls() []Call
}

// Call is an EVM call with its resource limits attached
type Call struct {
	To      common.Address
	Data    []byte
	Value   *big.Int
	Gas     *big.Int
	Storage *big.Int
}

// Calls implements Extrinsic
func (c *Call) Calls() []Call { return []Call{*c} }

// Batch is an atomic group of calls
type Batch struct {
	Items []*Call
}

// Calls implements Extrinsic
func (b *Batch) Calls() []Call {
	out := make([]Call, 0, len(b.Items))
	for _, c := range b.Items {
		out = append(out, *c)
	}
	return out
}

// Event is a chain event emitted while a transaction is processed
type Event struct {
	Section string
	Method  string
	Data    []string
}

// Status flags of a submitted extrinsic
type Status struct {
	IsInBlock   bool
	IsFinalized bool
}

// StatusUpdate is one delivery from a submission's status stream. The stream
// may repeat a state; consumers must treat transitions idempotently.
type StatusUpdate struct {
	TxHash        string
	DispatchError string
	Status        Status
	Events        []Event
}

// Signer is an authenticated account able to sign EVM transactions
type Signer interface {
	// Address is the native account address
	Address() string
	// EVMAddress is the bound EVM address
	EVMAddress() common.Address
	// IsEvmClaimed reports whether an EVM address is bound to the account
	IsEvmClaimed() bool
	// SignTx signs an EVM transaction for the given chain
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Client is the chain collaborator used by the swap core
type Client interface {
	// EstimateResources estimates gas and storage for a call
	EstimateResources(ctx context.Context, req CallRequest) (Resources, error)
	// BuildCall attaches resources to a call
	BuildCall(to common.Address, data []byte, value, gas, storage *big.Int) (*Call, error)
	// BatchAll wraps calls into one atomic extrinsic
	BatchAll(calls []*Call) (Extrinsic, error)
	// Submit signs and sends an extrinsic. The returned channel delivers
	// status updates and is closed when no further updates will arrive.
	Submit(ctx context.Context, ext Extrinsic, signer Signer) (<-chan StatusUpdate, error)
}
