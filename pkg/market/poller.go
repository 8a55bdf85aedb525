package market

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"reef-swap/pkg/types"
)

const (
	DefaultPollInterval = 10 * time.Second
	MinPollInterval     = 2 * time.Second // Minimum interval to avoid rate limiting
)

// PoolSource delivers pool snapshots
type PoolSource interface {
	AllPools(ctx context.Context) ([]types.Pool, error)
}

// Subscriber receives market snapshots
type Subscriber func(Snapshot)

// Poller refreshes pool snapshots on an interval and pushes them to
// subscribers.
type Poller struct {
	source   PoolSource
	pricer   *Pricer
	interval time.Duration
	logger   *slog.Logger

	mu          sync.RWMutex
	subscribers []Subscriber
	latest      *Snapshot
}

// NewPoller creates a poller. A nil pricer yields empty price tables.
func NewPoller(source PoolSource, pricer *Pricer, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	if pricer == nil {
		pricer = NewPricer(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		source:   source,
		pricer:   pricer,
		interval: interval,
		logger:   logger.With("component", "poller"),
	}
}

// Subscribe registers fn for every future snapshot
func (p *Poller) Subscribe(fn Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Latest returns the most recent snapshot, if any
func (p *Poller) Latest() (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return Snapshot{}, false
	}
	return *p.latest, true
}

// Refresh fetches one snapshot and delivers it to subscribers
func (p *Poller) Refresh(ctx context.Context) (Snapshot, error) {
	pools, err := p.source.AllPools(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Pools:   pools,
		Tokens:  TokensFromPools(pools),
		Prices:  p.pricer.Prices(pools),
		Fetched: time.Now(),
	}

	p.mu.Lock()
	p.latest = &snap
	subscribers := append([]Subscriber(nil), p.subscribers...)
	p.mu.Unlock()

	for _, fn := range subscribers {
		fn(snap)
	}
	return snap, nil
}

// Run refreshes immediately and then on every tick until ctx is done.
// Fetch failures are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.refreshLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refreshLogged(ctx)
		}
	}
}

func (p *Poller) refreshLogged(ctx context.Context) {
	if _, err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
		p.logger.Warn("pool refresh failed", "error", err)
	}
}
