package reporter

import (
	"log/slog"
	"sync"

	"reef-swap/pkg/types"
)

// DefaultAsyncBuffer is the number of events an Async observer queues
const DefaultAsyncBuffer = 64

// Async delivers events to an observer on its own goroutine. OnEvent never
// blocks: when the queue is full the event is dropped and counted.
type Async struct {
	next   Observer
	queue  chan types.LifecycleEvent
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	dropped int
	done    chan struct{}
}

// NewAsync starts delivering to next. Close must be called to flush.
func NewAsync(next Observer, buffer int, logger *slog.Logger) *Async {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		next:   next,
		queue:  make(chan types.LifecycleEvent, buffer),
		logger: logger,
		done:   make(chan struct{}),
	}
	go a.loop()
	return a
}

// OnEvent implements Observer
func (a *Async) OnEvent(ev types.LifecycleEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- ev:
	default:
		a.dropped++
		a.logger.Warn("observer queue full, event dropped", "event", string(ev.Kind), "swap_id", ev.SwapID)
	}
}

// Dropped returns the number of events dropped so far
func (a *Async) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close stops accepting events and waits for queued ones to be delivered
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *Async) loop() {
	defer close(a.done)
	for ev := range a.queue {
		deliver(a.logger, a.next, ev)
	}
}
