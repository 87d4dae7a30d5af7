package payroll

import "math/big"

// AccruedForMinutes computes the wage accrued for worked minutes at an
// hourly rate in wei: rate * minutes / 60, truncated to the smallest unit
// the same way the contract does.
func AccruedForMinutes(hourlyRate *big.Int, minutes uint64) *big.Int {
	if hourlyRate == nil || hourlyRate.Sign() <= 0 || minutes == 0 {
		return new(big.Int)
	}
	amount := new(big.Int).Mul(hourlyRate, new(big.Int).SetUint64(minutes))
	return amount.Div(amount, big.NewInt(60))
}
