// Package payroll contains the domain model for the on-chain payroll
// contract: typed events decoded from raw logs, the employee projection,
// and the read/write call surface of the contract.
package payroll

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind classifies a decoded ledger event.
type EventKind string

const (
	KindDeposit       EventKind = "deposit"
	KindWithdrawal    EventKind = "withdrawal"
	KindSalaryPayment EventKind = "salary_payment"
	KindCheckIn       EventKind = "check_in"
	KindCheckOut      EventKind = "check_out"
)

// Kinds lists every event kind the decoder recognizes.
func Kinds() []EventKind {
	return []EventKind{KindDeposit, KindWithdrawal, KindSalaryPayment, KindCheckIn, KindCheckOut}
}

// EventID identifies an observed event. (txHash, logIndex) is globally
// unique and is the sole deduplication key across historical and live
// sources.
type EventID struct {
	TxHash   common.Hash
	LogIndex uint
}

// LedgerEvent is an immutable record of one observed payroll contract event.
type LedgerEvent struct {
	Kind EventKind

	// Actor is the address that initiated or is the subject of the event:
	// payer for deposits, employee for withdrawals and attendance events.
	Actor common.Address

	// Counterparty is set for deposits (the contract address receiving the
	// funds) and nil otherwise.
	Counterparty *common.Address

	// Amount in wei; nil for check-in/check-out.
	Amount *big.Int

	// WorkedMinutes is set only for check-out events.
	WorkedMinutes uint64

	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	Timestamp   time.Time
}

// ID returns the deduplication identity of the event.
func (e *LedgerEvent) ID() EventID {
	return EventID{TxHash: e.TxHash, LogIndex: e.LogIndex}
}

// Employee is the mutable registry projection of one employee record.
// All fields other than Address are meaningless when Exists is false.
type Employee struct {
	Address    common.Address
	Name       string
	HourlyRate *big.Int
	Accrued    *big.Int
	Exists     bool
}

// AttendanceRecord mirrors one entry of the contract's attendance log.
type AttendanceRecord struct {
	Ts            *big.Int
	WorkedMinutes *big.Int
}
