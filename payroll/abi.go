package payroll

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// payrollABIJSON is the ABI of the Payroll contract, reduced to the surface
// this processor consumes.
const payrollABIJSON = `[
  {"type":"event","name":"Deposited","anonymous":false,"inputs":[
    {"name":"from","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"Withdrawn","anonymous":false,"inputs":[
    {"name":"who","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"SalaryPaid","anonymous":false,"inputs":[
    {"name":"to","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"CheckedIn","anonymous":false,"inputs":[
    {"name":"who","type":"address","indexed":true},
    {"name":"ts","type":"uint256","indexed":false}]},
  {"type":"event","name":"CheckedOut","anonymous":false,"inputs":[
    {"name":"who","type":"address","indexed":true},
    {"name":"ts","type":"uint256","indexed":false},
    {"name":"workedMinutes","type":"uint256","indexed":false}]},

  {"type":"function","name":"employees","stateMutability":"view","inputs":[
    {"name":"","type":"address"}],"outputs":[
    {"name":"name","type":"string"},
    {"name":"hourlyRate","type":"uint256"},
    {"name":"accrued","type":"uint256"},
    {"name":"exists","type":"bool"}]},
  {"type":"function","name":"allEmployees","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"address[]"}]},
  {"type":"function","name":"getEmployeeCount","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"uint256"}]},
  {"type":"function","name":"accruedOf","stateMutability":"view","inputs":[
    {"name":"who","type":"address"}],"outputs":[
    {"name":"","type":"uint256"}]},
  {"type":"function","name":"attendanceCount","stateMutability":"view","inputs":[
    {"name":"who","type":"address"}],"outputs":[
    {"name":"","type":"uint256"}]},
  {"type":"function","name":"attendance","stateMutability":"view","inputs":[
    {"name":"who","type":"address"},
    {"name":"offset","type":"uint256"},
    {"name":"limit","type":"uint256"}],"outputs":[
    {"name":"","type":"tuple[]","components":[
      {"name":"ts","type":"uint256"},
      {"name":"workedMinutes","type":"uint256"}]}]},
  {"type":"function","name":"checkInTs","stateMutability":"view","inputs":[
    {"name":"who","type":"address"}],"outputs":[
    {"name":"","type":"uint256"}]},
  {"type":"function","name":"contractBalance","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"uint256"}]},
  {"type":"function","name":"getOwner","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"address"}]},

  {"type":"function","name":"addEmployee","stateMutability":"nonpayable","inputs":[
    {"name":"who","type":"address"},
    {"name":"name","type":"string"},
    {"name":"hourlyRate","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"updateRate","stateMutability":"nonpayable","inputs":[
    {"name":"who","type":"address"},
    {"name":"hourlyRate","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"removeEmployee","stateMutability":"nonpayable","inputs":[
    {"name":"who","type":"address"}],"outputs":[]},
  {"type":"function","name":"checkIn","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"checkOut","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"recordWork","stateMutability":"nonpayable","inputs":[
    {"name":"hoursWorked","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"payAll","stateMutability":"nonpayable","inputs":[
    {"name":"start","type":"uint256"},
    {"name":"limit","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"withdrawFunds","stateMutability":"nonpayable","inputs":[
    {"name":"amount","type":"uint256"}],"outputs":[]}
]`

var payrollABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(payrollABIJSON))
	if err != nil {
		panic("payroll: invalid embedded ABI: " + err.Error())
	}
	return parsed
}

// Event selectors (topic0), derived from the ABI.
var (
	TopicDeposited  = payrollABI.Events["Deposited"].ID
	TopicWithdrawn  = payrollABI.Events["Withdrawn"].ID
	TopicSalaryPaid = payrollABI.Events["SalaryPaid"].ID
	TopicCheckedIn  = payrollABI.Events["CheckedIn"].ID
	TopicCheckedOut = payrollABI.Events["CheckedOut"].ID
)

// TopicForKind returns the event selector for a kind. The bool is false for
// unknown kinds.
func TopicForKind(kind EventKind) (common.Hash, bool) {
	switch kind {
	case KindDeposit:
		return TopicDeposited, true
	case KindWithdrawal:
		return TopicWithdrawn, true
	case KindSalaryPayment:
		return TopicSalaryPaid, true
	case KindCheckIn:
		return TopicCheckedIn, true
	case KindCheckOut:
		return TopicCheckedOut, true
	}
	return common.Hash{}, false
}
