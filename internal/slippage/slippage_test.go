package slippage

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolexit/internal/model"
)

func TestZeroSlippageIsNoop(t *testing.T) {
	for _, raw := range []string{"0", "1", "999999999999999999", "123456789012345678901234567890"} {
		amount, _ := new(big.Int).SetString(raw, 10)

		sub, err := SubSlippage(amount, big.NewInt(0))
		require.NoError(t, err)
		assert.Equal(t, amount.String(), sub.String())

		add, err := AddSlippage(amount, big.NewInt(0))
		require.NoError(t, err)
		assert.Equal(t, amount.String(), add.String())
	}
}

func TestSlippageBoundsOrdering(t *testing.T) {
	fractions := []string{"1", "1000000000000000", "50000000000000000", "1000000000000000000"}
	amounts := []string{"1", "7", "1000000", "987654321987654321987"}

	for _, f := range fractions {
		s, _ := new(big.Int).SetString(f, 10)
		for _, a := range amounts {
			amount, _ := new(big.Int).SetString(a, 10)
			lower, err := SubSlippage(amount, s)
			require.NoError(t, err)
			upper, err := AddSlippage(amount, s)
			require.NoError(t, err)
			assert.True(t, lower.Cmp(amount) <= 0, "sub %s %s", a, f)
			assert.True(t, upper.Cmp(amount) >= 0, "add %s %s", a, f)
		}
	}
}

func TestSlippageRounding(t *testing.T) {
	fivePercent := big.NewInt(50_000_000_000_000_000)

	got, err := SubSlippage(big.NewInt(101), fivePercent)
	require.NoError(t, err)
	assert.Equal(t, "95", got.String()) // 95.95 rounded down

	got, err = AddSlippage(big.NewInt(101), fivePercent)
	require.NoError(t, err)
	assert.Equal(t, "107", got.String()) // 106.05 rounded up
}

func TestSlippageInvalid(t *testing.T) {
	_, err := SubSlippage(big.NewInt(1), big.NewInt(-1))
	assert.True(t, errors.Is(err, model.ErrInputOutOfBounds))

	_, err = AddSlippage(big.NewInt(1), nil)
	assert.True(t, errors.Is(err, model.ErrInputOutOfBounds))

	tooMuch, _ := new(big.Int).SetString("1000000000000000001", 10)
	_, err = SubSlippage(big.NewInt(1), tooMuch)
	assert.True(t, errors.Is(err, model.ErrInputOutOfBounds))

	_, err = Parse("-5")
	assert.True(t, errors.Is(err, model.ErrInputOutOfBounds))
}
