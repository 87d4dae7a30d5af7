package processor

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/withobsrvr/payroll-sync-processor/chain"
	"github.com/withobsrvr/payroll-sync-processor/payroll"
)

const (
	initialWatchBackoff = 1 * time.Second
	maxWatchBackoff     = 30 * time.Second
)

// LiveMultiplexer runs one log watcher per event kind and merges their
// decoded records onto a single output channel, so dedup and fromBlock
// bookkeeping live in exactly one place downstream. It must not be started
// before the historical backfill for the same contract has completed;
// backfill-before-live is mandatory, not advisory.
type LiveMultiplexer struct {
	logs         chain.LogSource
	headers      chain.HeaderSource
	decoder      *payroll.EventDecoder
	contract     common.Address
	pollInterval time.Duration
	logger       *zap.Logger

	out    chan *payroll.LedgerEvent
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	stats struct {
		Delivered   uint64
		WatchErrors uint64
	}
}

// NewLiveMultiplexer creates a multiplexer for one contract address.
func NewLiveMultiplexer(
	logs chain.LogSource,
	headers chain.HeaderSource,
	decoder *payroll.EventDecoder,
	contract common.Address,
	pollInterval time.Duration,
	logger *zap.Logger,
) *LiveMultiplexer {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &LiveMultiplexer{
		logs:         logs,
		headers:      headers,
		decoder:      decoder,
		contract:     contract,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Start opens one watch per event kind beginning at fromBlock (inclusive;
// callers pass maxHistoricalBlock+1) and returns the merged channel. The
// channel closes after Stop, or when the parent context is cancelled, once
// every watcher has wound down. All watches are torn down together, never
// partially.
func (m *LiveMultiplexer) Start(ctx context.Context, fromBlock uint64) <-chan *payroll.LedgerEvent {
	ctx, m.cancel = context.WithCancel(ctx)
	m.out = make(chan *payroll.LedgerEvent, 64)

	for _, kind := range payroll.Kinds() {
		m.wg.Add(1)
		go m.watch(ctx, kind, fromBlock)
	}

	go func() {
		m.wg.Wait()
		close(m.out)
	}()

	m.logger.Info("live watchers started",
		zap.Uint64("from_block", fromBlock),
		zap.Int("watchers", len(payroll.Kinds())),
		zap.Duration("poll_interval", m.pollInterval),
	)
	return m.out
}

// Stop tears down every watcher. Safe to call more than once.
func (m *LiveMultiplexer) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// watch polls one event kind, advancing its cursor only after a fully
// successful poll so a transient failure re-scans rather than skips.
func (m *LiveMultiplexer) watch(ctx context.Context, kind payroll.EventKind, fromBlock uint64) {
	defer m.wg.Done()

	topic, ok := payroll.TopicForKind(kind)
	if !ok {
		return
	}

	cursor := fromBlock
	backoff := initialWatchBackoff
	for {
		next, err := m.poll(ctx, topic, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.mu.Lock()
			m.stats.WatchErrors++
			m.mu.Unlock()

			m.logger.Warn("live watch poll failed, retrying",
				zap.String("kind", string(kind)),
				zap.Uint64("cursor", cursor),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = initialWatchBackoff
		cursor = next

		if !sleepCtx(ctx, m.pollInterval) {
			return
		}
	}
}

// poll fetches and forwards new logs for one kind in [cursor, latest] and
// returns the next cursor.
func (m *LiveMultiplexer) poll(ctx context.Context, topic common.Hash, cursor uint64) (uint64, error) {
	header, err := m.headers.HeaderByNumber(ctx, nil)
	if err != nil {
		return cursor, err
	}
	latest := header.Number.Uint64()
	if latest < cursor {
		return cursor, nil
	}

	logs, err := m.logs.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(cursor),
		ToBlock:   new(big.Int).SetUint64(latest),
		Addresses: []common.Address{m.contract},
		Topics:    [][]common.Hash{{topic}},
	})
	if err != nil {
		return cursor, err
	}

	for _, lg := range logs {
		rec, err := m.decoder.DecodeLog(ctx, lg)
		if err != nil {
			if errors.Is(err, payroll.ErrNotDecodable) {
				continue
			}
			// Timestamp resolution failed; re-scan the window next round.
			return cursor, err
		}

		select {
		case m.out <- rec:
			m.mu.Lock()
			m.stats.Delivered++
			m.mu.Unlock()
		case <-ctx.Done():
			return cursor, ctx.Err()
		}
	}

	return latest + 1, nil
}

// Stats returns watcher counters for the health endpoint.
func (m *LiveMultiplexer) Stats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]interface{}{
		"delivered":    m.stats.Delivered,
		"watch_errors": m.stats.WatchErrors,
	}
}

// nextBackoff doubles the backoff with jitter, capped at maxWatchBackoff.
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxWatchBackoff {
		next = maxWatchBackoff
	}
	return next + time.Duration(rand.Float64()*float64(next)*0.1)
}

// sleepCtx sleeps for d, returning false if the context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
