package payroll

import (
	"math/big"
	"testing"
)

func TestAccruedForMinutes(t *testing.T) {
	tests := []struct {
		name    string
		rate    *big.Int
		minutes uint64
		want    *big.Int
	}{
		{
			// 95 minutes at 0.0012 ETH/hour accrues exactly 0.0019 ETH.
			name:    "fractional hour",
			rate:    big.NewInt(1200000000000000),
			minutes: 95,
			want:    big.NewInt(1900000000000000),
		},
		{
			name:    "whole hour",
			rate:    big.NewInt(1200000000000000),
			minutes: 60,
			want:    big.NewInt(1200000000000000),
		},
		{
			name:    "truncates remainder",
			rate:    big.NewInt(100),
			minutes: 7,
			want:    big.NewInt(11),
		},
		{
			name:    "zero minutes",
			rate:    big.NewInt(1200000000000000),
			minutes: 0,
			want:    big.NewInt(0),
		},
		{
			name:    "nil rate",
			rate:    nil,
			minutes: 60,
			want:    big.NewInt(0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AccruedForMinutes(tt.rate, tt.minutes)
			if got.Cmp(tt.want) != 0 {
				t.Errorf("AccruedForMinutes(%v, %d) = %v, want %v", tt.rate, tt.minutes, got, tt.want)
			}
		})
	}
}
