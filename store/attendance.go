package store

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/withobsrvr/payroll-sync-processor/payroll"
)

// AttendanceSession is one check-in/check-out pair derived from the
// timeline. A session with no later check-out is open; a check-out always
// closes the most recent still-open check-in, so an employee has at most one
// open session at any time.
type AttendanceSession struct {
	CheckIn       time.Time
	CheckOut      time.Time // zero while the session is open
	WorkedMinutes uint64
	Open          bool
}

// AttendanceSessions derives the attendance sessions for one employee from
// the reconciled timeline, oldest first.
func (s *HistoryStore) AttendanceSessions(who common.Address) []AttendanceSession {
	events := s.ForActor(who)

	var sessions []AttendanceSession
	openIdx := -1
	for _, ev := range events {
		switch ev.Kind {
		case payroll.KindCheckIn:
			if openIdx >= 0 {
				// The contract refuses a second check-in while a session is
				// open; if one still shows up, keep the original session.
				continue
			}
			sessions = append(sessions, AttendanceSession{CheckIn: ev.Timestamp, Open: true})
			openIdx = len(sessions) - 1
		case payroll.KindCheckOut:
			if openIdx < 0 {
				continue
			}
			sessions[openIdx].CheckOut = ev.Timestamp
			sessions[openIdx].WorkedMinutes = ev.WorkedMinutes
			sessions[openIdx].Open = false
			openIdx = -1
		}
	}
	return sessions
}

// OpenSession returns the employee's currently open session, if any.
func (s *HistoryStore) OpenSession(who common.Address) (AttendanceSession, bool) {
	sessions := s.AttendanceSessions(who)
	if n := len(sessions); n > 0 && sessions[n-1].Open {
		return sessions[n-1], true
	}
	return AttendanceSession{}, false
}
