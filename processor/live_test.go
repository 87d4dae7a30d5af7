package processor

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/withobsrvr/payroll-sync-processor/chain"
	"github.com/withobsrvr/payroll-sync-processor/payroll"
)

func newTestMultiplexer(fc *fakeChain, pollInterval time.Duration) *LiveMultiplexer {
	clock := chain.NewBlockClock(fc)
	decoder := payroll.NewEventDecoder(clock, zap.NewNop())
	return NewLiveMultiplexer(fc, fc, decoder, testContract, pollInterval, zap.NewNop())
}

func TestPollForwardsNewLogs(t *testing.T) {
	fc := &fakeChain{
		latest: 20,
		logs: []types.Log{
			depositLog(15, 0, 100),
			depositLog(18, 2, 200),
		},
	}
	m := newTestMultiplexer(fc, time.Second)
	m.out = make(chan *payroll.LedgerEvent, 64)

	next, err := m.poll(context.Background(), payroll.TopicDeposited, 11)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if next != 21 {
		t.Errorf("next cursor = %d, want latest+1 = 21", next)
	}

	if got := len(m.out); got != 2 {
		t.Fatalf("delivered %d records, want 2", got)
	}
	first := <-m.out
	if first.Kind != payroll.KindDeposit || first.BlockNumber != 15 {
		t.Errorf("record = %s@%d, want deposit@15", first.Kind, first.BlockNumber)
	}
}

func TestPollHoldsCursorWhenChainIsBehind(t *testing.T) {
	fc := &fakeChain{latest: 10}
	m := newTestMultiplexer(fc, time.Second)
	m.out = make(chan *payroll.LedgerEvent, 64)

	next, err := m.poll(context.Background(), payroll.TopicDeposited, 50)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if next != 50 {
		t.Errorf("next cursor = %d, want unchanged 50", next)
	}
	if len(fc.queries) != 0 {
		t.Error("no getLogs call expected when latest < cursor")
	}
}

func TestPollFiltersByTopic(t *testing.T) {
	actor := common.HexToAddress("0xaa")
	checkIn := types.Log{
		Address:     testContract,
		Topics:      []common.Hash{payroll.TopicCheckedIn, common.BytesToHash(actor.Bytes())},
		Data:        common.LeftPadBytes([]byte{0x01}, 32),
		BlockNumber: 12,
		TxHash:      common.HexToHash("0x02"),
	}
	fc := &fakeChain{
		latest: 20,
		logs:   []types.Log{depositLog(12, 0, 100), checkIn},
	}
	m := newTestMultiplexer(fc, time.Second)
	m.out = make(chan *payroll.LedgerEvent, 64)

	if _, err := m.poll(context.Background(), payroll.TopicCheckedIn, 0); err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if got := len(m.out); got != 1 {
		t.Fatalf("delivered %d records, want 1", got)
	}
	rec := <-m.out
	if rec.Kind != payroll.KindCheckIn {
		t.Errorf("kind = %s, want check_in", rec.Kind)
	}
}

func TestMultiplexerDeliversAndStops(t *testing.T) {
	fc := &fakeChain{
		latest: 30,
		logs: []types.Log{
			depositLog(25, 0, 100),
			depositLog(28, 1, 200),
		},
	}
	m := newTestMultiplexer(fc, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := m.Start(ctx, 21)

	var got []*payroll.LedgerEvent
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case rec := <-ch:
			got = append(got, rec)
		case <-timeout:
			t.Fatalf("timed out after %d records, want 2", len(got))
		}
	}

	m.Stop()
	if _, open := <-ch; open {
		// Drain anything in flight; the channel must close after Stop.
		for range ch {
		}
	}

	stats := m.Stats()
	if delivered := stats["delivered"].(uint64); delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
}

func TestNextBackoffCapped(t *testing.T) {
	b := initialWatchBackoff
	for i := 0; i < 20; i++ {
		b = nextBackoff(b)
	}
	// 10% jitter on top of the cap is the allowed overshoot.
	if b > maxWatchBackoff+maxWatchBackoff/10 {
		t.Errorf("backoff = %v, want capped near %v", b, maxWatchBackoff)
	}
	if b < initialWatchBackoff {
		t.Errorf("backoff = %v, shrank below initial", b)
	}
}
