package books

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/matches"
)

// Options configures a Cache.
type Options struct {
	// Budget caps real venue fetches per cycle. Cache hits are free.
	Budget      int
	CallTimeout time.Duration
	Limiters    map[collectors.Venue]*rate.Limiter
}

// Limiter builds a token bucket for a venue; rps <= 0 disables limiting.
func Limiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Cache serves order books for one scan cycle. Each book is fetched at most
// once; concurrent requests for the same key share one call.
type Cache struct {
	fetchers map[collectors.Venue]collectors.BookFetcher
	opts     Options

	calls     atomic.Int64
	exhausted atomic.Bool

	mu    sync.Mutex
	sets  map[string]collectors.BookSet
	fails map[string]error
	group singleflight.Group
}

// NewCache wires the per-venue fetchers.
func NewCache(fetchers map[collectors.Venue]collectors.BookFetcher, opts Options) *Cache {
	if opts.Limiters == nil {
		opts.Limiters = map[collectors.Venue]*rate.Limiter{}
	}
	return &Cache{
		fetchers: fetchers,
		opts:     opts,
		sets:     make(map[string]collectors.BookSet),
		fails:    make(map[string]error),
	}
}

// Orderbook returns the ask/bid ladder for one leg. A venue that has no
// book for the side yields an empty Orderbook and a nil error.
func (c *Cache) Orderbook(ctx context.Context, ref collectors.BookRef) (collectors.Orderbook, error) {
	key := ref.CacheKey()
	if set, ok, err := c.lookup(key); ok {
		if err != nil {
			return collectors.Orderbook{}, err
		}
		return set[ref.Side], nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if set, ok, err := c.lookup(key); ok {
			return set, err
		}
		set, err := c.fetch(ctx, ref)
		if err != nil && !errors.Is(err, matches.ErrBudgetExhausted) && ctx.Err() == nil {
			c.mu.Lock()
			c.fails[key] = err
			c.mu.Unlock()
		}
		if err == nil {
			c.mu.Lock()
			c.sets[key] = set
			c.mu.Unlock()
		}
		return set, err
	})
	if err != nil {
		return collectors.Orderbook{}, err
	}
	set, _ := v.(collectors.BookSet)
	return set[ref.Side], nil
}

func (c *Cache) lookup(key string) (collectors.BookSet, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.fails[key]; ok {
		return nil, true, err
	}
	set, ok := c.sets[key]
	return set, ok, nil
}

func (c *Cache) fetch(ctx context.Context, ref collectors.BookRef) (collectors.BookSet, error) {
	fetcher, ok := c.fetchers[ref.Venue]
	if !ok {
		return nil, fmt.Errorf("%w: no book fetcher for venue %q", matches.ErrQuoteUnavailable, ref.Venue)
	}
	if !c.reserve() {
		return nil, matches.ErrBudgetExhausted
	}
	if lim := c.opts.Limiters[ref.Venue]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			c.calls.Add(-1)
			return nil, fmt.Errorf("%w: rate limit wait: %v", matches.ErrQuoteUnavailable, err)
		}
	}
	callCtx := ctx
	if c.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
	}
	set, err := fetcher.FetchOrderbook(callCtx, ref)
	if errors.Is(err, matches.ErrNoOrderbook) {
		return collectors.BookSet{}, nil
	}
	if err != nil {
		logging.Debugf("orderbook %s failed: %v", ref.CacheKey(), err)
		return nil, fmt.Errorf("%w: %s: %v", matches.ErrQuoteUnavailable, ref.CacheKey(), err)
	}
	if set == nil {
		set = collectors.BookSet{}
	}
	return set, nil
}

func (c *Cache) reserve() bool {
	if c.opts.Budget <= 0 {
		c.calls.Add(1)
		return true
	}
	if n := c.calls.Add(1); n > int64(c.opts.Budget) {
		c.calls.Add(-1)
		c.exhausted.Store(true)
		return false
	}
	return true
}

// Calls is the number of real fetches made this cycle.
func (c *Cache) Calls() int {
	return int(c.calls.Load())
}

// Exhausted reports whether a fetch was refused for lack of budget.
func (c *Cache) Exhausted() bool {
	return c.exhausted.Load()
}

// Reset clears cached books and the call counter for a new cycle.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.sets = make(map[string]collectors.BookSet)
	c.fails = make(map[string]error)
	c.mu.Unlock()
	c.calls.Store(0)
	c.exhausted.Store(false)
}
