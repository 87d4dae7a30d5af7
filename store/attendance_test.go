package store

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/withobsrvr/payroll-sync-processor/payroll"
)

func attendanceEvent(block uint64, kind payroll.EventKind, minutes uint64) *payroll.LedgerEvent {
	ev := event(block, 0, kind)
	ev.WorkedMinutes = minutes
	return ev
}

func TestAttendanceSessions(t *testing.T) {
	s := NewHistoryStore(zap.NewNop())
	historical := []*payroll.LedgerEvent{
		attendanceEvent(1, payroll.KindCheckIn, 0),
		attendanceEvent(2, payroll.KindCheckOut, 90),
		attendanceEvent(3, payroll.KindCheckIn, 0),
		attendanceEvent(4, payroll.KindCheckOut, 45),
		attendanceEvent(5, payroll.KindCheckIn, 0),
	}
	if err := s.ApplyHistorical(historical, 5); err != nil {
		t.Fatalf("ApplyHistorical failed: %v", err)
	}

	who := common.HexToAddress("0xaa")
	sessions := s.AttendanceSessions(who)
	if len(sessions) != 3 {
		t.Fatalf("got %d sessions, want 3", len(sessions))
	}
	if sessions[0].Open || sessions[0].WorkedMinutes != 90 {
		t.Errorf("session 0 = %+v, want closed with 90 minutes", sessions[0])
	}
	if sessions[1].Open || sessions[1].WorkedMinutes != 45 {
		t.Errorf("session 1 = %+v, want closed with 45 minutes", sessions[1])
	}
	if !sessions[2].Open {
		t.Error("session 2 must be open")
	}

	open, ok := s.OpenSession(who)
	if !ok || !open.Open {
		t.Fatal("OpenSession must report the trailing open session")
	}
}

func TestAttendanceSessionsIgnoresUnbalancedEvents(t *testing.T) {
	s := NewHistoryStore(zap.NewNop())
	historical := []*payroll.LedgerEvent{
		// Check-out with nothing open, then a double check-in.
		attendanceEvent(1, payroll.KindCheckOut, 30),
		attendanceEvent(2, payroll.KindCheckIn, 0),
		attendanceEvent(3, payroll.KindCheckIn, 0),
		attendanceEvent(4, payroll.KindCheckOut, 120),
	}
	if err := s.ApplyHistorical(historical, 4); err != nil {
		t.Fatalf("ApplyHistorical failed: %v", err)
	}

	sessions := s.AttendanceSessions(common.HexToAddress("0xaa"))
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].Open || sessions[0].WorkedMinutes != 120 {
		t.Errorf("session = %+v, want closed with 120 minutes", sessions[0])
	}
}

func TestOpenSessionNone(t *testing.T) {
	s := NewHistoryStore(zap.NewNop())
	if err := s.ApplyHistorical(nil, 0); err != nil {
		t.Fatalf("ApplyHistorical failed: %v", err)
	}
	if _, ok := s.OpenSession(common.HexToAddress("0xaa")); ok {
		t.Error("OpenSession on empty timeline must report none")
	}
}
