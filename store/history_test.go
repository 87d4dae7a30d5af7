package store

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/withobsrvr/payroll-sync-processor/payroll"
)

func event(block uint64, logIndex uint, kind payroll.EventKind) *payroll.LedgerEvent {
	return &payroll.LedgerEvent{
		Kind:        kind,
		Actor:       common.HexToAddress("0xaa"),
		BlockNumber: block,
		TxHash:      common.BytesToHash([]byte{byte(block), byte(logIndex)}),
		LogIndex:    logIndex,
		Timestamp:   time.Unix(1700000000+int64(block), 0),
	}
}

func TestApplyHistoricalDeduplicates(t *testing.T) {
	s := NewHistoryStore(zap.NewNop())

	a := event(10, 0, payroll.KindDeposit)
	b := event(10, 1, payroll.KindCheckIn)
	dup := event(10, 0, payroll.KindDeposit)

	if err := s.ApplyHistorical([]*payroll.LedgerEvent{a, b, dup}, 10); err != nil {
		t.Fatalf("ApplyHistorical failed: %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("timeline length = %d, want 2", s.Len())
	}
}

func TestApplyHistoricalOnce(t *testing.T) {
	s := NewHistoryStore(zap.NewNop())
	if err := s.ApplyHistorical(nil, 5); err != nil {
		t.Fatalf("first ApplyHistorical failed: %v", err)
	}
	if err := s.ApplyHistorical(nil, 5); err == nil {
		t.Fatal("second ApplyHistorical must fail")
	}
}

func TestApplyLiveOrderingAndDedup(t *testing.T) {
	s := NewHistoryStore(zap.NewNop())
	historical := []*payroll.LedgerEvent{
		event(10, 1, payroll.KindCheckIn),
		event(10, 0, payroll.KindDeposit),
		event(12, 0, payroll.KindCheckOut),
	}
	if err := s.ApplyHistorical(historical, 12); err != nil {
		t.Fatalf("ApplyHistorical failed: %v", err)
	}

	// Live records arriving out of order still land in timeline order.
	late := event(15, 0, payroll.KindSalaryPayment)
	early := event(13, 2, payroll.KindWithdrawal)
	if !s.ApplyLive(late) || !s.ApplyLive(early) {
		t.Fatal("fresh live records must be admitted")
	}

	// Same identity again is a silent no-op.
	if s.ApplyLive(event(15, 0, payroll.KindSalaryPayment)) {
		t.Error("re-delivered record must be rejected")
	}
	// At or below the baseline block is stale.
	if s.ApplyLive(event(12, 5, payroll.KindDeposit)) {
		t.Error("record at baseline block must be rejected")
	}
	if s.ApplyLive(event(3, 0, payroll.KindDeposit)) {
		t.Error("record below baseline block must be rejected")
	}

	events := s.Events()
	if len(events) != 5 {
		t.Fatalf("timeline length = %d, want 5", len(events))
	}
	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		if cur.BlockNumber > prev.BlockNumber ||
			(cur.BlockNumber == prev.BlockNumber && cur.LogIndex > prev.LogIndex) {
			t.Fatalf("timeline not newest-first at %d: (%d,%d) before (%d,%d)",
				i, prev.BlockNumber, prev.LogIndex, cur.BlockNumber, cur.LogIndex)
		}
	}
	if events[0].BlockNumber != 15 {
		t.Errorf("newest block = %d, want 15", events[0].BlockNumber)
	}
}

func TestApplyLiveRequiresBaseline(t *testing.T) {
	s := NewHistoryStore(zap.NewNop())
	if s.ApplyLive(event(20, 0, payroll.KindDeposit)) {
		t.Fatal("live record before baseline must be rejected")
	}
	if s.Len() != 0 {
		t.Errorf("timeline length = %d, want 0", s.Len())
	}
}

func TestPage(t *testing.T) {
	s := NewHistoryStore(zap.NewNop())
	var historical []*payroll.LedgerEvent
	for block := uint64(1); block <= 5; block++ {
		historical = append(historical, event(block, 0, payroll.KindDeposit))
		historical = append(historical, event(block, 1, payroll.KindCheckIn))
	}
	if err := s.ApplyHistorical(historical, 5); err != nil {
		t.Fatalf("ApplyHistorical failed: %v", err)
	}

	tests := []struct {
		name      string
		kind      payroll.EventKind
		page      int
		pageSize  int
		wantLen   int
		wantBlock uint64
	}{
		{"first page unfiltered", "", 0, 3, 3, 5},
		{"middle page unfiltered", "", 2, 3, 3, 2},
		{"last partial page", "", 3, 3, 1, 1},
		{"past the end", "", 9, 3, 0, 0},
		{"filtered by kind", payroll.KindDeposit, 0, 2, 2, 5},
		{"filtered second page", payroll.KindDeposit, 2, 2, 1, 1},
		{"invalid page size", "", 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Page(tt.kind, tt.page, tt.pageSize)
			if len(got) != tt.wantLen {
				t.Fatalf("page length = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && got[0].BlockNumber != tt.wantBlock {
				t.Errorf("first block = %d, want %d", got[0].BlockNumber, tt.wantBlock)
			}
			if tt.kind != "" {
				for _, ev := range got {
					if ev.Kind != tt.kind {
						t.Errorf("kind = %s, want %s", ev.Kind, tt.kind)
					}
				}
			}
		})
	}
}

func TestForActorOldestFirst(t *testing.T) {
	s := NewHistoryStore(zap.NewNop())
	other := event(2, 0, payroll.KindDeposit)
	other.Actor = common.HexToAddress("0xbb")

	historical := []*payroll.LedgerEvent{
		event(3, 0, payroll.KindCheckOut),
		event(1, 0, payroll.KindCheckIn),
		other,
	}
	if err := s.ApplyHistorical(historical, 3); err != nil {
		t.Fatalf("ApplyHistorical failed: %v", err)
	}

	got := s.ForActor(common.HexToAddress("0xaa"))
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].BlockNumber != 1 || got[1].BlockNumber != 3 {
		t.Errorf("blocks = (%d, %d), want oldest first (1, 3)", got[0].BlockNumber, got[1].BlockNumber)
	}
}

func TestStatsCounters(t *testing.T) {
	s := NewHistoryStore(zap.NewNop())
	if err := s.ApplyHistorical([]*payroll.LedgerEvent{event(5, 0, payroll.KindDeposit)}, 5); err != nil {
		t.Fatalf("ApplyHistorical failed: %v", err)
	}
	s.ApplyLive(event(6, 0, payroll.KindWithdrawal))
	s.ApplyLive(event(6, 0, payroll.KindWithdrawal)) // duplicate
	s.ApplyLive(event(2, 0, payroll.KindDeposit))    // stale

	stats := s.Stats()
	if got := stats["timeline_length"].(int); got != 2 {
		t.Errorf("timeline_length = %d, want 2", got)
	}
	if got := stats["duplicates_suppressed"].(uint64); got != 1 {
		t.Errorf("duplicates_suppressed = %d, want 1", got)
	}
	if got := stats["stale_live_dropped"].(uint64); got != 1 {
		t.Errorf("stale_live_dropped = %d, want 1", got)
	}
}
