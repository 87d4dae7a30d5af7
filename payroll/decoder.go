package payroll

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// TimestampResolver resolves a block number to its wall-clock timestamp.
// chain.BlockClock is the production implementation.
type TimestampResolver interface {
	TimestampOf(ctx context.Context, blockNumber uint64) (time.Time, error)
}

// EventDecoder classifies raw contract logs into typed LedgerEvents. A log
// that does not match a known selector, or whose payload does not decode,
// yields ErrNotDecodable and never aborts the containing batch. Timestamp
// resolution failures are real I/O errors and are returned as-is.
type EventDecoder struct {
	clock  TimestampResolver
	logger *zap.Logger

	mu    sync.Mutex
	stats struct {
		Decoded     uint64
		Unparseable uint64
		ByKind      map[EventKind]uint64
	}
}

// NewEventDecoder creates a decoder using the given timestamp resolver.
func NewEventDecoder(clock TimestampResolver, logger *zap.Logger) *EventDecoder {
	d := &EventDecoder{clock: clock, logger: logger}
	d.stats.ByKind = make(map[EventKind]uint64)
	return d
}

// DecodeLog decodes one raw log. The returned error is ErrNotDecodable-class
// for malformed or unknown logs and a transport error only when the block
// timestamp cannot be resolved.
func (d *EventDecoder) DecodeLog(ctx context.Context, lg types.Log) (*LedgerEvent, error) {
	ev, err := d.classify(lg)
	if err != nil {
		d.mu.Lock()
		d.stats.Unparseable++
		d.mu.Unlock()
		d.logger.Debug("skipping unparseable log",
			zap.Uint64("block", lg.BlockNumber),
			zap.String("tx_hash", lg.TxHash.Hex()),
			zap.Error(err),
		)
		return nil, err
	}

	ts, err := d.clock.TimestampOf(ctx, lg.BlockNumber)
	if err != nil {
		return nil, &TransientIOError{Op: "resolve block timestamp", Err: err}
	}
	ev.Timestamp = ts

	d.mu.Lock()
	d.stats.Decoded++
	d.stats.ByKind[ev.Kind]++
	d.mu.Unlock()

	return ev, nil
}

func (d *EventDecoder) classify(lg types.Log) (*LedgerEvent, error) {
	if len(lg.Topics) == 0 {
		return nil, fmt.Errorf("%w: no topics", ErrNotDecodable)
	}

	var name string
	var kind EventKind
	switch lg.Topics[0] {
	case TopicDeposited:
		name, kind = "Deposited", KindDeposit
	case TopicWithdrawn:
		name, kind = "Withdrawn", KindWithdrawal
	case TopicSalaryPaid:
		name, kind = "SalaryPaid", KindSalaryPayment
	case TopicCheckedIn:
		name, kind = "CheckedIn", KindCheckIn
	case TopicCheckedOut:
		name, kind = "CheckedOut", KindCheckOut
	default:
		return nil, fmt.Errorf("%w: unknown selector %s", ErrNotDecodable, lg.Topics[0].Hex())
	}

	if len(lg.Topics) < 2 {
		return nil, fmt.Errorf("%w: %s missing indexed address topic", ErrNotDecodable, name)
	}
	actor := common.BytesToAddress(lg.Topics[1].Bytes())

	values, err := payrollABI.Unpack(name, lg.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrNotDecodable, name, err)
	}

	ev := &LedgerEvent{
		Kind:        kind,
		Actor:       actor,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
		LogIndex:    lg.Index,
	}

	switch kind {
	case KindDeposit:
		amount, ok := values[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("%w: %s amount", ErrNotDecodable, name)
		}
		ev.Amount = amount
		contract := lg.Address
		ev.Counterparty = &contract
	case KindWithdrawal, KindSalaryPayment:
		amount, ok := values[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("%w: %s amount", ErrNotDecodable, name)
		}
		ev.Amount = amount
	case KindCheckIn:
		// The on-chain ts payload duplicates the block timestamp; the
		// canonical timestamp is attached from the block clock.
	case KindCheckOut:
		if len(values) < 2 {
			return nil, fmt.Errorf("%w: %s payload too short", ErrNotDecodable, name)
		}
		minutes, ok := values[1].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("%w: %s workedMinutes", ErrNotDecodable, name)
		}
		ev.WorkedMinutes = minutes.Uint64()
	}

	return ev, nil
}

// Stats returns decode counters for the health endpoint.
func (d *EventDecoder) Stats() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	byKind := make(map[string]uint64, len(d.stats.ByKind))
	for k, v := range d.stats.ByKind {
		byKind[string(k)] = v
	}
	return map[string]interface{}{
		"decoded":     d.stats.Decoded,
		"unparseable": d.stats.Unparseable,
		"by_kind":     byKind,
	}
}
