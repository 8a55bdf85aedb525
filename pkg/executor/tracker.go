package executor

import (
	"context"
	"errors"

	"reef-swap/pkg/chain"
)

// tracker follows one submission's status stream. Updates may repeat a
// state; progress only moves forward.
type tracker struct {
	updates   <-chan chain.StatusUpdate
	txHash    string
	inBlock   bool
	finalized bool
	err       error
}

func newTracker(updates <-chan chain.StatusUpdate) *tracker {
	return &tracker{updates: updates}
}

// untilInBlock blocks until the submission is included in a block
func (t *tracker) untilInBlock(ctx context.Context) error {
	return t.until(ctx, func() bool { return t.inBlock })
}

// untilFinalized blocks until the including block is finalized
func (t *tracker) untilFinalized(ctx context.Context) error {
	return t.until(ctx, func() bool { return t.finalized })
}

func (t *tracker) until(ctx context.Context, reached func() bool) error {
	for {
		if t.err != nil {
			return t.err
		}
		if reached() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-t.updates:
			if !ok {
				t.err = chain.ErrStreamClosed
				continue
			}
			t.observe(u)
		}
	}
}

func (t *tracker) observe(u chain.StatusUpdate) {
	if u.TxHash != "" {
		t.txHash = u.TxHash
	}
	if u.DispatchError != "" {
		t.err = errors.New(u.DispatchError)
		return
	}
	if msg := chain.CaptureError(u.Events); msg != "" {
		t.err = errors.New(msg)
		return
	}
	if u.Status.IsFinalized {
		t.inBlock = true
		t.finalized = true
	}
	if u.Status.IsInBlock {
		t.inBlock = true
	}
}
