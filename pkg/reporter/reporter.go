// Package reporter turns swap lifecycle events and notifications into
// console output, telemetry records and fan-out to other observers.
package reporter

import (
	"log/slog"

	"reef-swap/pkg/types"
)

// Observer receives swap lifecycle events
type Observer interface {
	OnEvent(ev types.LifecycleEvent)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ev types.LifecycleEvent)

// OnEvent implements Observer
func (f ObserverFunc) OnEvent(ev types.LifecycleEvent) { f(ev) }

// Fanout delivers each event to every observer in order. A panicking
// observer does not stop delivery to the rest.
type Fanout struct {
	observers []Observer
	logger    *slog.Logger
}

// NewFanout creates a fan-out over the given observers; nil entries are skipped
func NewFanout(logger *slog.Logger, observers ...Observer) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fanout{logger: logger}
	for _, o := range observers {
		if o != nil {
			f.observers = append(f.observers, o)
		}
	}
	return f
}

// OnEvent implements Observer
func (f *Fanout) OnEvent(ev types.LifecycleEvent) {
	for _, o := range f.observers {
		deliver(f.logger, o, ev)
	}
}

func deliver(logger *slog.Logger, o Observer, ev types.LifecycleEvent) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("observer panicked", "event", string(ev.Kind), "panic", p)
		}
	}()
	o.OnEvent(ev)
}
