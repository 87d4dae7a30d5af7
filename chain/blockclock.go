package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// BlockClock resolves block numbers to wall-clock timestamps, memoizing for
// the process lifetime. Many payroll events land in the same block, so the
// cache turns per-event header lookups into one lookup per distinct block.
// The cache is unbounded; at the scale of a single payroll contract's
// lifetime that is acceptable.
type BlockClock struct {
	headers HeaderSource

	mu    sync.RWMutex
	cache map[uint64]time.Time
}

// NewBlockClock creates a block timestamp cache over the given header source.
func NewBlockClock(headers HeaderSource) *BlockClock {
	return &BlockClock{
		headers: headers,
		cache:   make(map[uint64]time.Time),
	}
}

// TimestampOf returns the timestamp of the given block, fetching the header
// on first lookup and serving from cache thereafter.
func (bc *BlockClock) TimestampOf(ctx context.Context, blockNumber uint64) (time.Time, error) {
	bc.mu.RLock()
	ts, ok := bc.cache[blockNumber]
	bc.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := bc.headers.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to resolve header for block %d: %w", blockNumber, err)
	}
	ts = time.Unix(int64(header.Time), 0).UTC()

	bc.mu.Lock()
	bc.cache[blockNumber] = ts
	bc.mu.Unlock()

	return ts, nil
}

// ResolveAll warms the cache for every distinct block number in the slice.
// Backfill calls this once per batch so the decode loop never blocks on a
// header fetch.
func (bc *BlockClock) ResolveAll(ctx context.Context, blockNumbers []uint64) error {
	seen := make(map[uint64]struct{}, len(blockNumbers))
	for _, n := range blockNumbers {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		if _, err := bc.TimestampOf(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// CachedBlocks returns the number of memoized entries.
func (bc *BlockClock) CachedBlocks() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.cache)
}
