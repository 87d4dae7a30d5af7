// Package store holds the merge point between backfilled and live event
// streams, plus the read-through employee registry projection. Both types
// are single-writer, many-reader: one coordinating task mutates them,
// any number of views read them concurrently.
package store

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/withobsrvr/payroll-sync-processor/payroll"
)

// HistoryStore reconciles the historical backfill and the live stream into
// one gapless, duplicate-free timeline. Records are never mutated or removed
// after insertion; the timeline is kept sorted by (blockNumber, logIndex)
// descending regardless of arrival order.
type HistoryStore struct {
	logger *zap.Logger

	mu              sync.RWMutex
	events          []*payroll.LedgerEvent // sorted (block, logIndex) descending
	seen            map[payroll.EventID]struct{}
	baselineApplied bool
	baselineBlock   uint64
	duplicates      uint64
	staleLive       uint64
}

// NewHistoryStore creates an empty reconciliation store.
func NewHistoryStore(logger *zap.Logger) *HistoryStore {
	return &HistoryStore{
		logger: logger,
		seen:   make(map[payroll.EventID]struct{}),
	}
}

// ApplyHistorical establishes the baseline timeline from a completed
// backfill. It may be called exactly once per store; maxBlock is the highest
// block number the backfill observed and becomes the admission floor for
// live records.
func (s *HistoryStore) ApplyHistorical(records []*payroll.LedgerEvent, maxBlock uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.baselineApplied {
		return fmt.Errorf("historical baseline already applied")
	}

	events := make([]*payroll.LedgerEvent, 0, len(records))
	for _, rec := range records {
		id := rec.ID()
		if _, dup := s.seen[id]; dup {
			s.duplicates++
			continue
		}
		s.seen[id] = struct{}{}
		events = append(events, rec)
	}

	sort.Slice(events, func(i, j int) bool { return eventLess(events[j], events[i]) })

	s.events = events
	s.baselineApplied = true
	s.baselineBlock = maxBlock

	s.logger.Info("applied historical baseline",
		zap.Int("records", len(events)),
		zap.Uint64("max_block", maxBlock),
	)
	return nil
}

// ApplyLive inserts one live record into the timeline. Returns true when the
// record was admitted. Re-delivered records (same txHash and logIndex) and
// records at or below the baseline block are silent no-ops; the live channel
// is expected to re-deliver and must never duplicate entries.
func (s *HistoryStore) ApplyLive(rec *payroll.LedgerEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.baselineApplied {
		s.staleLive++
		s.logger.Warn("live record before historical baseline, dropping",
			zap.Uint64("block", rec.BlockNumber),
			zap.String("tx_hash", rec.TxHash.Hex()),
		)
		return false
	}
	if rec.BlockNumber <= s.baselineBlock {
		s.staleLive++
		return false
	}
	id := rec.ID()
	if _, dup := s.seen[id]; dup {
		s.duplicates++
		return false
	}
	s.seen[id] = struct{}{}

	// Insert at the sorted position. Live records normally belong at the
	// front, but arrival order is not trusted for timeline order.
	i := sort.Search(len(s.events), func(i int) bool { return eventLess(s.events[i], rec) })
	s.events = append(s.events, nil)
	copy(s.events[i+1:], s.events[i:])
	s.events[i] = rec

	return true
}

// eventLess orders ascending by (blockNumber, logIndex).
func eventLess(a, b *payroll.LedgerEvent) bool {
	if a.BlockNumber != b.BlockNumber {
		return a.BlockNumber < b.BlockNumber
	}
	return a.LogIndex < b.LogIndex
}

// Contains reports whether an event identity is already in the timeline.
func (s *HistoryStore) Contains(id payroll.EventID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[id]
	return ok
}

// Len returns the timeline length.
func (s *HistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// BaselineBlock returns the admission floor established by the backfill.
func (s *HistoryStore) BaselineBlock() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baselineBlock
}

// Events returns a copy of the full timeline, newest first.
func (s *HistoryStore) Events() []*payroll.LedgerEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*payroll.LedgerEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Page returns one fixed-size page of the timeline, newest first, optionally
// restricted to a single event kind. kind == "" means no filter. Pages past
// the end are empty, not an error.
func (s *HistoryStore) Page(kind payroll.EventKind, page, pageSize int) []*payroll.LedgerEvent {
	if page < 0 || pageSize <= 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []*payroll.LedgerEvent
	if kind == "" {
		filtered = s.events
	} else {
		filtered = make([]*payroll.LedgerEvent, 0, len(s.events))
		for _, ev := range s.events {
			if ev.Kind == kind {
				filtered = append(filtered, ev)
			}
		}
	}

	start := page * pageSize
	if start >= len(filtered) {
		return nil
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	out := make([]*payroll.LedgerEvent, end-start)
	copy(out, filtered[start:end])
	return out
}

// ForActor returns every timeline event whose actor matches, oldest first.
// Used by the attendance session derivation.
func (s *HistoryStore) ForActor(actor [20]byte) []*payroll.LedgerEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*payroll.LedgerEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Actor == actor {
			out = append(out, s.events[i])
		}
	}
	return out
}

// Stats returns timeline counters for the health endpoint.
func (s *HistoryStore) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byKind := make(map[string]int)
	for _, ev := range s.events {
		byKind[string(ev.Kind)]++
	}
	return map[string]interface{}{
		"timeline_length":       len(s.events),
		"baseline_applied":      s.baselineApplied,
		"baseline_block":        s.baselineBlock,
		"duplicates_suppressed": s.duplicates,
		"stale_live_dropped":    s.staleLive,
		"by_kind":               byKind,
	}
}
