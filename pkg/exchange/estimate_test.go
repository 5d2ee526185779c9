package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateWithdrawal(t *testing.T) {
	info := MarketInfo{
		Pair:     "ETH_EOS",
		Rate:     decimal.RequireFromString("95.5"),
		Limit:    decimal.RequireFromString("10"),
		Minimum:  decimal.RequireFromString("0.01"),
		MinerFee: decimal.RequireFromString("0.5"),
	}

	tests := []struct {
		name    string
		info    MarketInfo
		amount  string
		want    string
		wantErr error
	}{
		{name: "within limits", info: info, amount: "1", want: "95"},
		{name: "fractional", info: info, amount: "0.5", want: "47.25"},
		{name: "below minimum", info: info, amount: "0.001", wantErr: ErrBelowMinimum},
		{name: "above limit", info: info, amount: "11", wantErr: ErrAboveLimit},
		{
			name:    "max limit used when limit missing",
			info:    MarketInfo{Pair: "ETH_EOS", Rate: info.Rate, MaxLimit: decimal.NewFromInt(2)},
			amount:  "3",
			wantErr: ErrAboveLimit,
		},
		{
			name:    "fee exceeds output",
			info:    MarketInfo{Pair: "ETH_EOS", Rate: info.Rate, MinerFee: info.MinerFee},
			amount:  "0.005",
			wantErr: ErrBelowMinimum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := EstimateWithdrawal(tt.info, decimal.RequireFromString(tt.amount))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, est.Withdrawal.String())
			assert.Equal(t, "ETH_EOS", est.Pair)
		})
	}
}

func TestEstimatePrice(t *testing.T) {
	est := Estimate{Deposit: decimal.NewFromInt(2), Withdrawal: decimal.NewFromInt(100)}
	assert.Equal(t, "0.02", est.Price().String())
	assert.True(t, Estimate{}.Price().IsZero())
}
