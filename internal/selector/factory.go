package selector

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultFactoryCapacity bounds a factory's node cache when no explicit
// capacity is given.
const DefaultFactoryCapacity = 128

// Factory builds parameterized selectors: one memoized node per argument
// value, held in a bounded LRU cache keyed by argument equality. Evicted
// nodes are rebuilt (and recomputed) on next use, trading recomputation
// for bounded memory when many parameter values are used transiently.
type Factory[K comparable] struct {
	name  string
	build func(arg K) *Memo

	mu    sync.Mutex
	cache *lru.Cache[K, *Memo]
}

// NewFactory creates a selector factory. build constructs the node for an
// argument and is called at most once per cached argument. capacity <= 0
// uses DefaultFactoryCapacity.
func NewFactory[K comparable](name string, capacity int, build func(arg K) *Memo) (*Factory[K], error) {
	if name == "" {
		return nil, fmt.Errorf("selector factory: name must not be empty")
	}
	if build == nil {
		return nil, fmt.Errorf("selector factory %s: build must not be nil", name)
	}
	if capacity <= 0 {
		capacity = DefaultFactoryCapacity
	}
	cache, err := lru.New[K, *Memo](capacity)
	if err != nil {
		return nil, fmt.Errorf("selector factory %s: %w", name, err)
	}
	return &Factory[K]{name: name, build: build, cache: cache}, nil
}

// Name identifies the factory.
func (f *Factory[K]) Name() string { return f.name }

// For returns the selector node for an argument, building it on first use.
func (f *Factory[K]) For(arg K) *Memo {
	f.mu.Lock()
	defer f.mu.Unlock()
	if node, ok := f.cache.Get(arg); ok {
		return node
	}
	node := f.build(arg)
	f.cache.Add(arg, node)
	return node
}

// Len returns the number of cached nodes.
func (f *Factory[K]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache.Len()
}
