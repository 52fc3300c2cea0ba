// Package price provides memoized historical price-per-share lookups.
package price

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mtlprog/vaultfee/internal/metrics"
)

// Fetcher reads the vault's price per share at a block height.
type Fetcher interface {
	PricePerShareAt(ctx context.Context, block uint64) (*big.Int, error)
}

// SampleStore persists historical price samples across runs.
// Get reports found=false for an unknown block.
type SampleStore interface {
	Get(ctx context.Context, block uint64) (pps *big.Int, found bool, err error)
	Put(ctx context.Context, block uint64, pps *big.Int) error
}

// Cache memoizes price per share by block height for the lifetime of a run.
// Entries are never evicted. Concurrent misses for the same height share one fetch.
type Cache struct {
	fetcher Fetcher
	store   SampleStore
	metrics *metrics.Metrics

	mu      sync.RWMutex
	entries map[uint64]*big.Int
	group   singleflight.Group
}

// NewCache creates a cache in front of fetcher. store and m may be nil.
func NewCache(fetcher Fetcher, store SampleStore, m *metrics.Metrics) *Cache {
	if fetcher == nil {
		panic("price.NewCache: fetcher must not be nil")
	}
	return &Cache{
		fetcher: fetcher,
		store:   store,
		metrics: m,
		entries: make(map[uint64]*big.Int),
	}
}

// PriceAt returns the price per share at block. Fetch failures are returned,
// never cached. A shared fetch is detached from the cancellation of whichever
// caller started it; each caller stops waiting when its own ctx is done.
func (c *Cache) PriceAt(ctx context.Context, block uint64) (*big.Int, error) {
	if pps, ok := c.get(block); ok {
		c.metrics.CacheHit()
		return pps, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("price per share at block %d: %w", block, err)
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.FormatUint(block, 10), func() (any, error) {
		if pps, ok := c.get(block); ok {
			return pps, nil
		}
		c.metrics.CacheMiss()

		pps, err := c.load(fetchCtx, block)
		if err != nil {
			return nil, err
		}
		c.set(block, pps)
		return pps, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("price per share at block %d: %w", block, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("price per share at block %d: %w", block, res.Err)
		}
		return new(big.Int).Set(res.Val.(*big.Int)), nil
	}
}

// Prefetch warms the cache for all distinct blocks using at most concurrency
// parallel fetches. The first failure cancels the rest and is returned.
func (c *Cache) Prefetch(ctx context.Context, blocks []uint64, concurrency int) error {
	pending := lo.Filter(lo.Uniq(blocks), func(b uint64, _ int) bool {
		_, ok := c.get(b)
		return !ok
	})
	if len(pending) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for _, b := range pending {
		g.Go(func() error {
			_, err := c.PriceAt(ctx, b)
			return err
		})
	}
	return g.Wait()
}

// Len returns the number of cached heights.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) load(ctx context.Context, block uint64) (*big.Int, error) {
	if c.store != nil {
		pps, found, err := c.store.Get(ctx, block)
		switch {
		case err != nil:
			slog.Warn("price sample store read failed, falling back to chain", "block", block, "error", err)
		case found:
			c.metrics.StoreHit()
			return pps, nil
		}
	}

	pps, err := c.fetcher.PricePerShareAt(ctx, block)
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		if err := c.store.Put(ctx, block, pps); err != nil {
			slog.Warn("price sample store write failed", "block", block, "error", err)
		}
	}
	return pps, nil
}

func (c *Cache) get(block uint64) (*big.Int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pps, ok := c.entries[block]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(pps), true
}

func (c *Cache) set(block uint64, pps *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[block] = new(big.Int).Set(pps)
}
