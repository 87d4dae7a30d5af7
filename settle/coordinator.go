// Package settle drives batched wage settlement over the employee registry.
// Batches address the raw registry window, never a filtered view: the
// contract itself skips zero-balance entries inside the window, and a
// single-employee settlement resolves the employee's absolute registry
// index before submitting.
package settle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/withobsrvr/payroll-sync-processor/chain"
	"github.com/withobsrvr/payroll-sync-processor/payroll"
	"github.com/withobsrvr/payroll-sync-processor/server"
	"github.com/withobsrvr/payroll-sync-processor/store"
)

// Status is the settlement batch lifecycle state. Pending moves to exactly
// one of Confirmed or Failed; there is no way back to Pending.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Batch records one settlement attempt over a registry window. Addresses is
// the window snapshot taken at submission; the post-confirmation refresh
// covers exactly these addresses even if the registry grew while pending.
type Batch struct {
	StartIndex  uint64
	Count       uint64
	Status      Status
	TxHash      common.Hash
	Addresses   []common.Address
	SubmittedAt time.Time
	Err         error
}

// Candidate is one employee eligible for settlement on a page.
type Candidate struct {
	Address  common.Address
	Employee payroll.Employee
}

// Settler submits the batch settlement operation. *payroll.Transactor
// satisfies it.
type Settler interface {
	PayAll(ctx context.Context, start, limit uint64) (common.Hash, error)
}

// Coordinator paginates the registry, filters settlement candidates, and
// drives payAll submissions through their Pending/Confirmed/Failed
// lifecycle. It holds no lock across the confirmation wait: the registry
// may change while a batch is pending, and the refresh afterwards reflects
// the then-current state.
type Coordinator struct {
	registry  *store.RegistryProjection
	settler   Settler
	confirmer chain.TxConfirmer
	maxBatch  uint64
	logger    *zap.Logger

	mu    sync.Mutex
	stats struct {
		Submitted uint64
		Confirmed uint64
		Failed    uint64
	}
}

// NewCoordinator creates a settlement coordinator. maxBatch bounds a single
// submission; requests beyond it are rejected, not silently chunked.
func NewCoordinator(
	registry *store.RegistryProjection,
	settler Settler,
	confirmer chain.TxConfirmer,
	maxBatch uint64,
	logger *zap.Logger,
) *Coordinator {
	if maxBatch == 0 {
		maxBatch = 50
	}
	return &Coordinator{
		registry:  registry,
		settler:   settler,
		confirmer: confirmer,
		maxBatch:  maxBatch,
		logger:    logger,
	}
}

// CandidatesForPage returns the employees in the registry page window
// [page*pageSize, min((page+1)*pageSize, size)) that hold a strictly
// positive accrued balance.
func (c *Coordinator) CandidatesForPage(ctx context.Context, page, pageSize uint64) ([]Candidate, error) {
	if pageSize == 0 {
		return nil, &payroll.ValidationError{Field: "pageSize", Reason: "must be positive"}
	}

	addrs, err := c.registry.AllAddresses(ctx)
	if err != nil {
		return nil, err
	}

	start := page * pageSize
	if start >= uint64(len(addrs)) {
		return nil, nil
	}
	end := start + pageSize
	if end > uint64(len(addrs)) {
		end = uint64(len(addrs))
	}

	var candidates []Candidate
	for _, addr := range addrs[start:end] {
		emp, err := c.registry.Get(ctx, addr)
		if err != nil {
			return nil, err
		}
		if !emp.Exists || emp.Accrued == nil || emp.Accrued.Sign() <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{Address: addr, Employee: emp})
	}
	return candidates, nil
}

// SettleBatch submits a settlement over the raw registry window
// [startIndex, startIndex+count) and returns the Pending batch. The window
// is validated against the registry size at submission time; staleness after
// submission is tolerated and re-validated on the next page load.
func (c *Coordinator) SettleBatch(ctx context.Context, startIndex, count uint64) (*Batch, error) {
	if count == 0 {
		return nil, &payroll.ValidationError{Field: "count", Reason: "must be positive"}
	}
	if count > c.maxBatch {
		return nil, &payroll.ValidationError{
			Field:  "count",
			Reason: fmt.Sprintf("exceeds max batch size %d", c.maxBatch),
		}
	}

	addrs, err := c.registry.AllAddresses(ctx)
	if err != nil {
		return nil, err
	}
	if startIndex+count > uint64(len(addrs)) {
		return nil, &payroll.ValidationError{
			Field:  "window",
			Reason: fmt.Sprintf("[%d,%d) exceeds registry size %d", startIndex, startIndex+count, len(addrs)),
		}
	}

	snapshot := make([]common.Address, count)
	copy(snapshot, addrs[startIndex:startIndex+count])

	batch := &Batch{
		StartIndex:  startIndex,
		Count:       count,
		Addresses:   snapshot,
		SubmittedAt: time.Now(),
	}

	hash, err := c.settler.PayAll(ctx, startIndex, count)
	if err != nil {
		batch.Status = StatusFailed
		batch.Err = err
		c.recordOutcome(batch)
		return batch, err
	}
	batch.Status = StatusPending
	batch.TxHash = hash

	c.mu.Lock()
	c.stats.Submitted++
	c.mu.Unlock()

	c.logger.Info("settlement batch submitted",
		zap.Uint64("start_index", startIndex),
		zap.Uint64("count", count),
		zap.String("tx_hash", hash.Hex()),
	)
	return batch, nil
}

// SettleOne settles a single employee by resolving their absolute index in
// the full registry and submitting a batch of size one at that index. Using
// a filtered-list position here would silently settle the wrong employee.
func (c *Coordinator) SettleOne(ctx context.Context, who common.Address) (*Batch, error) {
	index, err := c.registry.AbsoluteIndex(ctx, who)
	if err != nil {
		return nil, err
	}
	return c.SettleBatch(ctx, index, 1)
}

// Confirm waits for a pending batch to be mined and moves it to its terminal
// status. On confirmation, every address in the batch's submission snapshot
// is refreshed so accrued balances read as settled. A failed batch is never
// retried here; the operator re-triggers explicitly to avoid double payment.
func (c *Coordinator) Confirm(ctx context.Context, batch *Batch) error {
	if batch.Status != StatusPending {
		return fmt.Errorf("batch is %s, not pending", batch.Status)
	}

	receipt, err := c.confirmer.WaitMined(ctx, batch.TxHash)
	if err != nil {
		batch.Status = StatusFailed
		batch.Err = &payroll.TransientIOError{Op: "await settlement confirmation", Err: err}
		c.recordOutcome(batch)
		return batch.Err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		batch.Status = StatusFailed
		batch.Err = &payroll.RejectedOperationError{Op: "payAll", Err: errors.New("transaction reverted")}
		c.recordOutcome(batch)
		return batch.Err
	}

	batch.Status = StatusConfirmed
	c.recordOutcome(batch)

	for _, addr := range batch.Addresses {
		if _, err := c.registry.Refresh(ctx, addr); err != nil {
			c.logger.Warn("failed to refresh employee after settlement",
				zap.String("address", addr.Hex()),
				zap.Error(err),
			)
		}
	}

	c.logger.Info("settlement batch confirmed",
		zap.Uint64("start_index", batch.StartIndex),
		zap.Uint64("count", batch.Count),
		zap.String("tx_hash", batch.TxHash.Hex()),
	)
	return nil
}

func (c *Coordinator) recordOutcome(batch *Batch) {
	c.mu.Lock()
	switch batch.Status {
	case StatusConfirmed:
		c.stats.Confirmed++
	case StatusFailed:
		c.stats.Failed++
	}
	c.mu.Unlock()

	server.ObserveSettlement(string(batch.Status), time.Since(batch.SubmittedAt).Seconds())
}

// Stats returns settlement counters for the health endpoint.
func (c *Coordinator) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]interface{}{
		"submitted": c.stats.Submitted,
		"confirmed": c.stats.Confirmed,
		"failed":    c.stats.Failed,
	}
}
