package stablemath

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolexit/internal/model"
)

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func bi(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad int " + s)
	}
	return v
}

// amp 100 at AmpPrecision
var amp100 = big.NewInt(100 * AmpPrecision)

// swap fee 0.1%
var fee = bi("1000000000000000")

// assertClose fails when |got - want| / want exceeds tolerance (18-decimal fraction).
func assertClose(t *testing.T, want, got *big.Int, tolerance string) {
	t.Helper()
	diff := new(big.Int).Sub(got, want)
	diff.Abs(diff)
	limit := new(big.Int).Mul(want, bi(tolerance))
	limit.Quo(limit, e18(1))
	if limit.Sign() == 0 {
		limit.SetInt64(1)
	}
	assert.True(t, diff.Cmp(limit) <= 0, "got %s want %s (diff %s > %s)", got, want, diff, limit)
}

func TestCalculateInvariantBalanced(t *testing.T) {
	balances := []*big.Int{e18(1000), e18(1000), e18(1000)}
	invariant, err := CalculateInvariant(amp100, balances)
	require.NoError(t, err)
	assertClose(t, e18(3000), invariant, "1")
}

func TestCalculateInvariantImbalanced(t *testing.T) {
	balances := []*big.Int{e18(1000), e18(2000)}
	invariant, err := CalculateInvariant(amp100, balances)
	require.NoError(t, err)
	// flat curve: invariant sits just below the sum
	assert.True(t, invariant.Cmp(e18(3000)) < 0)
	assert.True(t, invariant.Cmp(e18(2990)) > 0)
}

func TestCalculateInvariantEmpty(t *testing.T) {
	invariant, err := CalculateInvariant(amp100, []*big.Int{big.NewInt(0), big.NewInt(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, invariant.Sign())
}

func TestTokenBalanceGivenInvariantRecoversBalance(t *testing.T) {
	balances := []*big.Int{e18(1000), e18(2000), e18(1500)}
	invariant, err := CalculateInvariant(amp100, balances)
	require.NoError(t, err)

	for i := range balances {
		got, err := TokenBalanceGivenInvariant(amp100, balances, invariant, i)
		require.NoError(t, err)
		assertClose(t, balances[i], got, "1000000")
	}
}

func TestSharesInToTokensOutProportional(t *testing.T) {
	balances := []*big.Int{e18(1000), e18(2000)}
	totalShares := e18(3000)

	out, err := SharesInToTokensOut(amp100, balances, nil, e18(300), totalShares, fee)
	require.NoError(t, err)
	assert.Equal(t, e18(100).String(), out[0].String())
	assert.Equal(t, e18(200).String(), out[1].String())

	full, err := SharesInToTokensOut(amp100, balances, nil, totalShares, totalShares, fee)
	require.NoError(t, err)
	for i := range balances {
		assert.Equal(t, balances[i].String(), full[i].String())
	}
}

func TestSharesInToTokensOutSingleToken(t *testing.T) {
	balances := []*big.Int{e18(1000), e18(2000), e18(1500)}
	totalShares := e18(4500)
	target := 1

	out, err := SharesInToTokensOut(amp100, balances, &target, e18(45), totalShares, fee)
	require.NoError(t, err)
	for i, amount := range out {
		if i == target {
			continue
		}
		assert.Equal(t, 0, amount.Sign(), "token %d should be zero", i)
	}
	assert.True(t, out[target].Sign() > 0)
	// roughly 1% of the invariant, paid in one token
	assertClose(t, e18(45), out[target], "10000000000000000")

	noFee, err := SharesInToTokensOut(amp100, balances, &target, e18(45), totalShares, big.NewInt(0))
	require.NoError(t, err)
	assert.True(t, out[target].Cmp(noFee[target]) < 0, "fee must reduce the amount out")
}

func TestSharesInToTokensOutBounds(t *testing.T) {
	balances := []*big.Int{e18(1000), e18(2000)}
	_, err := SharesInToTokensOut(amp100, balances, nil, e18(4000), e18(3000), fee)
	assert.True(t, errors.Is(err, model.ErrInputOutOfBounds))

	bad := 5
	_, err = SharesInToTokensOut(amp100, balances, &bad, e18(1), e18(3000), fee)
	assert.True(t, errors.Is(err, model.ErrInputOutOfBounds))

	_, err = SharesInToTokensOut(amp100, balances, nil, e18(1), big.NewInt(0), fee)
	assert.True(t, errors.Is(err, model.ErrArithmetic))
}

func TestTokensOutToSharesInInvertsSingleTokenExit(t *testing.T) {
	balances := []*big.Int{e18(1000), e18(2000), e18(1500)}
	totalShares := e18(4500)
	target := 0
	sharesIn := e18(90)

	out, err := SharesInToTokensOut(amp100, balances, &target, sharesIn, totalShares, big.NewInt(0))
	require.NoError(t, err)

	got, err := TokensOutToSharesIn(amp100, balances, out, totalShares, big.NewInt(0))
	require.NoError(t, err)
	assertClose(t, sharesIn, got, "1000000000")
}

func TestTokensOutToSharesInProportional(t *testing.T) {
	balances := []*big.Int{e18(1000), e18(2000)}
	totalShares := e18(3000)
	amountsOut := []*big.Int{e18(100), e18(200)}

	got, err := TokensOutToSharesIn(amp100, balances, amountsOut, totalShares, fee)
	require.NoError(t, err)
	assertClose(t, e18(300), got, "1000000000")
}

func TestTokensOutToSharesInChargesFeeOnImbalance(t *testing.T) {
	balances := []*big.Int{e18(1000), e18(2000)}
	totalShares := e18(3000)
	amountsOut := []*big.Int{e18(100), big.NewInt(0)}

	withFee, err := TokensOutToSharesIn(amp100, balances, amountsOut, totalShares, fee)
	require.NoError(t, err)
	withoutFee, err := TokensOutToSharesIn(amp100, balances, amountsOut, totalShares, big.NewInt(0))
	require.NoError(t, err)
	assert.True(t, withFee.Cmp(withoutFee) > 0)
}

func TestTokensOutToSharesInErrors(t *testing.T) {
	balances := []*big.Int{e18(1000), e18(2000)}
	_, err := TokensOutToSharesIn(amp100, balances, []*big.Int{e18(1)}, e18(3000), fee)
	assert.True(t, errors.Is(err, model.ErrInputLengthMismatch))

	_, err = TokensOutToSharesIn(amp100, balances, []*big.Int{e18(1001), big.NewInt(0)}, e18(3000), fee)
	assert.True(t, errors.Is(err, model.ErrInputOutOfBounds))
}

func TestBPTSpotPriceBalanced(t *testing.T) {
	balances := []*big.Int{e18(1000), e18(1000)}
	price, err := BPTSpotPrice(amp100, balances, e18(2000), 0)
	require.NoError(t, err)
	assertClose(t, e18(1), price, "1000000000000")
}

func TestSpotPrice(t *testing.T) {
	balanced := []*big.Int{e18(1000), e18(1000)}
	price, err := SpotPrice(amp100, balanced, 0, 1)
	require.NoError(t, err)
	assertClose(t, e18(1), price, "1000000000")

	// token 1 is abundant, so it is cheaper in terms of token 0
	skewed := []*big.Int{e18(1000), e18(5000)}
	price, err = SpotPrice(big.NewInt(10*AmpPrecision), skewed, 0, 1)
	require.NoError(t, err)
	assert.True(t, price.Cmp(e18(1)) < 0)

	inverse, err := SpotPrice(big.NewInt(10*AmpPrecision), skewed, 1, 0)
	require.NoError(t, err)
	assert.True(t, inverse.Cmp(e18(1)) > 0)
}
