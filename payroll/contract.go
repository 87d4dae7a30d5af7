package payroll

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/withobsrvr/payroll-sync-processor/chain"
)

// Caller is the typed read surface of the payroll contract.
type Caller struct {
	address common.Address
	backend chain.ContractCaller
}

// NewCaller binds the read surface to a deployed contract address.
func NewCaller(address common.Address, backend chain.ContractCaller) *Caller {
	return &Caller{address: address, backend: backend}
}

// Address returns the bound contract address.
func (c *Caller) Address() common.Address { return c.address }

func (c *Caller) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := payrollABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s call: %w", method, err)
	}

	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, &TransientIOError{Op: method, Err: err}
	}

	values, err := payrollABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return values, nil
}

// Employee reads one employee record. A missing employee is not an error:
// the contract returns the zero record with Exists=false.
func (c *Caller) Employee(ctx context.Context, who common.Address) (Employee, error) {
	values, err := c.call(ctx, "employees", who)
	if err != nil {
		return Employee{}, err
	}
	if len(values) < 4 {
		return Employee{}, fmt.Errorf("employees returned %d values, want 4", len(values))
	}

	emp := Employee{Address: who}
	emp.Name, _ = values[0].(string)
	emp.HourlyRate, _ = values[1].(*big.Int)
	emp.Accrued, _ = values[2].(*big.Int)
	emp.Exists, _ = values[3].(bool)
	return emp, nil
}

// AllEmployees returns the full registry address list in contract order.
func (c *Caller) AllEmployees(ctx context.Context) ([]common.Address, error) {
	values, err := c.call(ctx, "allEmployees")
	if err != nil {
		return nil, err
	}
	addrs, ok := values[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("allEmployees returned unexpected type %T", values[0])
	}
	return addrs, nil
}

// EmployeeCount returns the registry size.
func (c *Caller) EmployeeCount(ctx context.Context) (uint64, error) {
	values, err := c.call(ctx, "getEmployeeCount")
	if err != nil {
		return 0, err
	}
	return asUint64(values[0], "getEmployeeCount")
}

// AccruedOf returns the employee's accrued balance in wei.
func (c *Caller) AccruedOf(ctx context.Context, who common.Address) (*big.Int, error) {
	values, err := c.call(ctx, "accruedOf", who)
	if err != nil {
		return nil, err
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("accruedOf returned unexpected type %T", values[0])
	}
	return amount, nil
}

// AttendanceCount returns the number of attendance entries for an employee.
func (c *Caller) AttendanceCount(ctx context.Context, who common.Address) (uint64, error) {
	values, err := c.call(ctx, "attendanceCount", who)
	if err != nil {
		return 0, err
	}
	return asUint64(values[0], "attendanceCount")
}

// Attendance reads a window of the employee's attendance log.
func (c *Caller) Attendance(ctx context.Context, who common.Address, offset, limit uint64) ([]AttendanceRecord, error) {
	values, err := c.call(ctx, "attendance", who, new(big.Int).SetUint64(offset), new(big.Int).SetUint64(limit))
	if err != nil {
		return nil, err
	}
	records := *abi.ConvertType(values[0], new([]AttendanceRecord)).(*[]AttendanceRecord)
	return records, nil
}

// CheckInTimestamp returns the employee's open check-in timestamp, zero when
// no session is open.
func (c *Caller) CheckInTimestamp(ctx context.Context, who common.Address) (uint64, error) {
	values, err := c.call(ctx, "checkInTs", who)
	if err != nil {
		return 0, err
	}
	return asUint64(values[0], "checkInTs")
}

// ContractBalance returns the contract's fund balance in wei.
func (c *Caller) ContractBalance(ctx context.Context) (*big.Int, error) {
	values, err := c.call(ctx, "contractBalance")
	if err != nil {
		return nil, err
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("contractBalance returned unexpected type %T", values[0])
	}
	return balance, nil
}

// Owner returns the contract owner address.
func (c *Caller) Owner(ctx context.Context) (common.Address, error) {
	values, err := c.call(ctx, "getOwner")
	if err != nil {
		return common.Address{}, err
	}
	owner, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("getOwner returned unexpected type %T", values[0])
	}
	return owner, nil
}

func asUint64(v interface{}, method string) (uint64, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("%s returned unexpected type %T", method, v)
	}
	return n.Uint64(), nil
}

// Transactor is the typed write surface of the payroll contract. Calldata is
// encoded locally and handed to the external submitter, which owns signing,
// gas and nonce management.
type Transactor struct {
	address   common.Address
	submitter chain.TxSubmitter
}

// NewTransactor binds the write surface to a deployed contract address.
func NewTransactor(address common.Address, submitter chain.TxSubmitter) *Transactor {
	return &Transactor{address: address, submitter: submitter}
}

func (t *Transactor) submit(ctx context.Context, value *big.Int, method string, args ...interface{}) (common.Hash, error) {
	data, err := payrollABI.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode %s call: %w", method, err)
	}

	hash, err := t.submitter.SubmitTx(ctx, t.address, data, value)
	if err != nil {
		return common.Hash{}, &RejectedOperationError{Op: method, Err: err}
	}
	return hash, nil
}

// AddEmployee registers a new employee with an hourly rate in wei.
func (t *Transactor) AddEmployee(ctx context.Context, who common.Address, name string, hourlyRate *big.Int) (common.Hash, error) {
	if who == (common.Address{}) {
		return common.Hash{}, &ValidationError{Field: "address", Reason: "zero address"}
	}
	if name == "" {
		return common.Hash{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if hourlyRate == nil || hourlyRate.Sign() <= 0 {
		return common.Hash{}, &ValidationError{Field: "hourlyRate", Reason: "must be positive"}
	}
	return t.submit(ctx, nil, "addEmployee", who, name, hourlyRate)
}

// UpdateRate changes an employee's hourly rate.
func (t *Transactor) UpdateRate(ctx context.Context, who common.Address, hourlyRate *big.Int) (common.Hash, error) {
	if who == (common.Address{}) {
		return common.Hash{}, &ValidationError{Field: "address", Reason: "zero address"}
	}
	if hourlyRate == nil || hourlyRate.Sign() <= 0 {
		return common.Hash{}, &ValidationError{Field: "hourlyRate", Reason: "must be positive"}
	}
	return t.submit(ctx, nil, "updateRate", who, hourlyRate)
}

// RemoveEmployee removes an employee from the registry.
func (t *Transactor) RemoveEmployee(ctx context.Context, who common.Address) (common.Hash, error) {
	if who == (common.Address{}) {
		return common.Hash{}, &ValidationError{Field: "address", Reason: "zero address"}
	}
	return t.submit(ctx, nil, "removeEmployee", who)
}

// CheckIn opens an attendance session for the sender. A second check-in
// while a session is open is refused by the contract, not guarded locally;
// the session state of record lives on-chain.
func (t *Transactor) CheckIn(ctx context.Context) (common.Hash, error) {
	return t.submit(ctx, nil, "checkIn")
}

// CheckOut closes the sender's open attendance session.
func (t *Transactor) CheckOut(ctx context.Context) (common.Hash, error) {
	return t.submit(ctx, nil, "checkOut")
}

// RecordWork credits whole worked hours directly. Legacy path kept alongside
// check-in/check-out.
func (t *Transactor) RecordWork(ctx context.Context, hoursWorked uint64) (common.Hash, error) {
	if hoursWorked == 0 {
		return common.Hash{}, &ValidationError{Field: "hours", Reason: "must be positive"}
	}
	return t.submit(ctx, nil, "recordWork", new(big.Int).SetUint64(hoursWorked))
}

// Withdraw pays out the sender's own accrued balance.
func (t *Transactor) Withdraw(ctx context.Context) (common.Hash, error) {
	return t.submit(ctx, nil, "withdraw")
}

// Deposit funds the contract with the attached value.
func (t *Transactor) Deposit(ctx context.Context, value *big.Int) (common.Hash, error) {
	if value == nil || value.Sign() <= 0 {
		return common.Hash{}, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return t.submit(ctx, value, "deposit")
}

// PayAll settles accrued balances for the registry window [start, start+limit).
// The contract itself skips zero-balance entries inside the window.
func (t *Transactor) PayAll(ctx context.Context, start, limit uint64) (common.Hash, error) {
	if limit == 0 {
		return common.Hash{}, &ValidationError{Field: "limit", Reason: "must be positive"}
	}
	return t.submit(ctx, nil, "payAll", new(big.Int).SetUint64(start), new(big.Int).SetUint64(limit))
}

// WithdrawFunds sweeps contract funds to the owner.
func (t *Transactor) WithdrawFunds(ctx context.Context, amount *big.Int) (common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return t.submit(ctx, nil, "withdrawFunds", amount)
}
