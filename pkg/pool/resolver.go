package pool

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"reef-swap/pkg/types"
)

// DefaultCacheSize bounds the number of cached pair lookups
const DefaultCacheSize = 256

type lookup struct {
	pool  *types.Pool
	found bool
}

// Resolver answers pair lookups against the latest pool snapshot.
// Lookups are cached per canonical pair until the next snapshot.
type Resolver struct {
	mu    sync.RWMutex
	pools []types.Pool
	cache *lru.Cache[Pair, lookup]
}

// NewResolver creates a resolver over an initial snapshot
func NewResolver(pools []types.Pool) *Resolver {
	cache, err := lru.New[Pair, lookup](DefaultCacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	r := &Resolver{cache: cache}
	r.Update(pools)
	return r
}

// Update replaces the snapshot and drops cached lookups
func (r *Resolver) Update(pools []types.Pool) {
	canonical := make([]types.Pool, len(pools))
	for i, p := range pools {
		canonical[i] = Canonicalize(p)
	}

	r.mu.Lock()
	r.pools = canonical
	r.cache.Purge()
	r.mu.Unlock()
}

// Pools returns a copy of the current snapshot
func (r *Resolver) Pools() []types.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Pool, len(r.pools))
	copy(out, r.pools)
	return out
}

// FindPool resolves the pool for the pair in either order
func (r *Resolver) FindPool(addressA, addressB string) (*types.Pool, bool) {
	key := CanonicalPair(addressA, addressB)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if hit, ok := r.cache.Get(key); ok {
		return clonePool(hit.pool), hit.found
	}
	p, found := FindPool(addressA, addressB, r.pools)
	r.cache.Add(key, lookup{pool: p, found: found})
	return clonePool(p), found
}

func clonePool(p *types.Pool) *types.Pool {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
