package parser

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimals of one Ether in wei
const EtherDecimals = 18

// ParseAmount converts a human amount such as "0.25" into base units of a
// token with the given decimals. Amounts finer than one base unit are
// rejected rather than rounded.
func ParseAmount(amount string, decimals int32) (*big.Int, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be greater than 0")
	}

	units := value.Shift(decimals)
	if !units.Equal(units.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}
	return units.BigInt(), nil
}

// FormatAmount renders base units as a human amount with the given decimals
func FormatAmount(units *big.Int, decimals int32) string {
	if units == nil {
		return "0"
	}
	return decimal.NewFromBigInt(units, -decimals).String()
}
