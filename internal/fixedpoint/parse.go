package fixedpoint

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"poolexit/internal/model"
)

// ParseInteger parses a base-unit integer string. Empty or negative input is
// reported as ErrInputOutOfBounds.
func ParseInteger(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%w: empty amount", model.ErrInputOutOfBounds)
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid int: %s", model.ErrInputOutOfBounds, value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount: %s", model.ErrInputOutOfBounds, value)
	}
	return parsed, nil
}

// ParseFixed converts a human decimal string (e.g. "0.001") into an integer
// scaled by 10^decimals, truncating extra precision.
func ParseFixed(value string, decimals int32) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%w: empty value", model.ErrInputOutOfBounds)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid decimal %s: %v", model.ErrInputOutOfBounds, value, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: negative value: %s", model.ErrInputOutOfBounds, value)
	}
	return d.Shift(decimals).Truncate(0).BigInt(), nil
}

// Format renders a scaled integer as a human decimal string.
func Format(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}

// ToDecimal converts a scaled integer into a decimal.Decimal.
func ToDecimal(value *big.Int, decimals int32) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -decimals)
}
