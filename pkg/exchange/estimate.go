package exchange

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrBelowMinimum = errors.New("amount below exchange minimum")
	ErrAboveLimit   = errors.New("amount above exchange limit")
)

// Estimate is the expected outcome of depositing an amount into a pair
type Estimate struct {
	Pair       string          `json:"pair"`
	Deposit    decimal.Decimal `json:"deposit"`
	Rate       decimal.Decimal `json:"rate"`
	MinerFee   decimal.Decimal `json:"miner_fee"`
	Withdrawal decimal.Decimal `json:"withdrawal"`
}

// Price is the effective number of deposited units paid per unit received
func (e Estimate) Price() decimal.Decimal {
	if e.Withdrawal.IsZero() {
		return decimal.Zero
	}
	return e.Deposit.DivRound(e.Withdrawal, 18)
}

// EstimateWithdrawal applies info's rate and miner fee to amount. A zero
// limit in info means the exchange did not report one.
func EstimateWithdrawal(info MarketInfo, amount decimal.Decimal) (*Estimate, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be greater than 0")
	}
	if info.Minimum.Sign() > 0 && amount.LessThan(info.Minimum) {
		return nil, fmt.Errorf("%w: %s < %s for %s", ErrBelowMinimum, amount, info.Minimum, info.Pair)
	}
	limit := info.Limit
	if limit.IsZero() {
		limit = info.MaxLimit
	}
	if limit.Sign() > 0 && amount.GreaterThan(limit) {
		return nil, fmt.Errorf("%w: %s > %s for %s", ErrAboveLimit, amount, limit, info.Pair)
	}

	withdrawal := amount.Mul(info.Rate).Sub(info.MinerFee)
	if withdrawal.Sign() <= 0 {
		return nil, fmt.Errorf("%w: miner fee %s exceeds converted amount", ErrBelowMinimum, info.MinerFee)
	}

	return &Estimate{
		Pair:       info.Pair,
		Deposit:    amount,
		Rate:       info.Rate,
		MinerFee:   info.MinerFee,
		Withdrawal: withdrawal,
	}, nil
}
