// Package stablemath implements the stable-pool invariant math over
// normalized 18-decimal balances.
//
// The amplification parameter is expected at AmpPrecision, so a human
// amplification of 100 is passed as 100000.
package stablemath

import (
	"fmt"
	"math/big"

	"poolexit/internal/fixedpoint"
	"poolexit/internal/model"
)

// AmpPrecision is the scale of the amplification parameter.
const AmpPrecision = 1000

const maxIterations = 255

var (
	ampPrecision = big.NewInt(AmpPrecision)
	bigOne       = big.NewInt(1)
	bigTwo       = big.NewInt(2)
)

// CalculateInvariant computes D from
//
//	A n^n S + D = A D n^n + D^(n+1) / (n^n P)
//
// by Newton iteration, rounding down.
func CalculateInvariant(amp *big.Int, balances []*big.Int) (*big.Int, error) {
	sum := new(big.Int)
	for _, balance := range balances {
		sum.Add(sum, balance)
	}
	if sum.Sign() == 0 {
		return new(big.Int), nil
	}

	numTokens := big.NewInt(int64(len(balances)))
	ampTimesTotal := new(big.Int).Mul(amp, numTokens)
	invariant := new(big.Int).Set(sum)

	for i := 0; i < maxIterations; i++ {
		dP := new(big.Int).Set(invariant)
		for _, balance := range balances {
			denominator := new(big.Int).Mul(balance, numTokens)
			if denominator.Sign() == 0 {
				return nil, fmt.Errorf("%w: zero balance in invariant", model.ErrArithmetic)
			}
			dP.Mul(dP, invariant)
			dP.Quo(dP, denominator)
		}
		prev := invariant

		// ((ampTimesTotal * sum) / AMP_PRECISION + D_P * n) * D
		numerator := new(big.Int).Mul(ampTimesTotal, sum)
		numerator.Quo(numerator, ampPrecision)
		numerator.Add(numerator, new(big.Int).Mul(dP, numTokens))
		numerator.Mul(numerator, prev)

		// ((ampTimesTotal - AMP_PRECISION) * D) / AMP_PRECISION + (n + 1) * D_P
		denominator := new(big.Int).Sub(ampTimesTotal, ampPrecision)
		denominator.Mul(denominator, prev)
		denominator.Quo(denominator, ampPrecision)
		denominator.Add(denominator, new(big.Int).Mul(new(big.Int).Add(numTokens, bigOne), dP))
		if denominator.Sign() <= 0 {
			return nil, fmt.Errorf("%w: invariant denominator", model.ErrArithmetic)
		}

		invariant = numerator.Quo(numerator, denominator)
		if withinOne(invariant, prev) {
			return invariant, nil
		}
	}
	return nil, model.ErrInvariantDidNotConverge
}

// TokenBalanceGivenInvariant solves for the balance of tokenIndex that keeps
// the invariant, given all other balances. Rounds up.
func TokenBalanceGivenInvariant(amp *big.Int, balances []*big.Int, invariant *big.Int, tokenIndex int) (*big.Int, error) {
	if invariant.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero invariant", model.ErrArithmetic)
	}
	numTokens := big.NewInt(int64(len(balances)))
	ampTimesTotal := new(big.Int).Mul(amp, numTokens)
	if ampTimesTotal.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero amplification", model.ErrArithmetic)
	}

	sum := new(big.Int).Set(balances[0])
	pD := new(big.Int).Mul(balances[0], numTokens)
	for j := 1; j < len(balances); j++ {
		pD.Mul(pD, balances[j])
		pD.Mul(pD, numTokens)
		pD.Quo(pD, invariant)
		sum.Add(sum, balances[j])
	}
	sum.Sub(sum, balances[tokenIndex])

	inv2 := new(big.Int).Mul(invariant, invariant)

	// c = inv2 / (ampTimesTotal * P_D) * AMP_PRECISION * balance[tokenIndex]
	c, err := fixedpoint.RawDivUp(inv2, new(big.Int).Mul(ampTimesTotal, pD))
	if err != nil {
		return nil, err
	}
	c.Mul(c, ampPrecision)
	c.Mul(c, balances[tokenIndex])

	// b = sum + invariant / ampTimesTotal * AMP_PRECISION
	b := new(big.Int).Quo(invariant, ampTimesTotal)
	b.Mul(b, ampPrecision)
	b.Add(b, sum)

	tokenBalance, err := fixedpoint.RawDivUp(new(big.Int).Add(inv2, c), new(big.Int).Add(invariant, b))
	if err != nil {
		return nil, err
	}

	for i := 0; i < maxIterations; i++ {
		prev := tokenBalance
		numerator := new(big.Int).Mul(prev, prev)
		numerator.Add(numerator, c)
		denominator := new(big.Int).Mul(prev, bigTwo)
		denominator.Add(denominator, b)
		denominator.Sub(denominator, invariant)
		if denominator.Sign() <= 0 {
			return nil, fmt.Errorf("%w: balance denominator", model.ErrArithmetic)
		}
		tokenBalance, err = fixedpoint.RawDivUp(numerator, denominator)
		if err != nil {
			return nil, err
		}
		if withinOne(tokenBalance, prev) {
			return tokenBalance, nil
		}
	}
	return nil, model.ErrInvariantDidNotConverge
}

// SharesInToTokensOut computes the tokens released for sharesIn pool shares.
// With a target index only that token is paid out and the swap fee is charged
// on the portion that behaves like a swap; with target == nil every token is
// paid out proportionally and no fee applies.
func SharesInToTokensOut(
	amp *big.Int,
	balances []*big.Int,
	target *int,
	sharesIn *big.Int,
	totalShares *big.Int,
	swapFee *big.Int,
) ([]*big.Int, error) {
	if totalShares.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero total shares", model.ErrArithmetic)
	}
	if sharesIn.Cmp(totalShares) > 0 {
		return nil, fmt.Errorf("%w: shares in %s exceed total shares %s", model.ErrInputOutOfBounds, sharesIn, totalShares)
	}

	amountsOut := make([]*big.Int, len(balances))
	if target == nil {
		for i, balance := range balances {
			out := new(big.Int).Mul(balance, sharesIn)
			amountsOut[i] = out.Quo(out, totalShares)
		}
		return amountsOut, nil
	}

	index := *target
	if index < 0 || index >= len(balances) {
		return nil, fmt.Errorf("%w: token index %d", model.ErrInputOutOfBounds, index)
	}
	for i := range amountsOut {
		amountsOut[i] = new(big.Int)
	}

	currentInvariant, err := CalculateInvariant(amp, balances)
	if err != nil {
		return nil, err
	}
	amountOut, err := tokenOutGivenExactSharesIn(amp, balances, index, sharesIn, totalShares, currentInvariant, swapFee)
	if err != nil {
		return nil, err
	}
	amountsOut[index] = amountOut
	return amountsOut, nil
}

func tokenOutGivenExactSharesIn(
	amp *big.Int,
	balances []*big.Int,
	index int,
	sharesIn *big.Int,
	totalShares *big.Int,
	currentInvariant *big.Int,
	swapFee *big.Int,
) (*big.Int, error) {
	remaining := new(big.Int).Sub(totalShares, sharesIn)
	ratio, err := fixedpoint.DivUp(remaining, totalShares)
	if err != nil {
		return nil, err
	}
	newInvariant := fixedpoint.MulUp(ratio, currentInvariant)

	newBalance, err := TokenBalanceGivenInvariant(amp, balances, newInvariant, index)
	if err != nil {
		return nil, err
	}
	amountOutWithoutFee, err := fixedpoint.Sub(balances[index], newBalance)
	if err != nil {
		return nil, err
	}

	sumBalances := sum(balances)
	currentWeight, err := fixedpoint.DivDown(balances[index], sumBalances)
	if err != nil {
		return nil, err
	}
	taxableAmount := fixedpoint.MulUp(amountOutWithoutFee, fixedpoint.Complement(currentWeight))
	nonTaxableAmount := new(big.Int).Sub(amountOutWithoutFee, taxableAmount)

	return nonTaxableAmount.Add(nonTaxableAmount, fixedpoint.MulDown(taxableAmount, fixedpoint.Complement(swapFee))), nil
}

// TokensOutToSharesIn computes the pool shares that must be burned to receive
// exactly amountsOut. The swap fee is charged on the non-proportional part of
// the withdrawal.
func TokensOutToSharesIn(
	amp *big.Int,
	balances []*big.Int,
	amountsOut []*big.Int,
	totalShares *big.Int,
	swapFee *big.Int,
) (*big.Int, error) {
	if len(balances) != len(amountsOut) {
		return nil, fmt.Errorf("%w: %d balances, %d amounts", model.ErrInputLengthMismatch, len(balances), len(amountsOut))
	}

	currentInvariant, err := CalculateInvariant(amp, balances)
	if err != nil {
		return nil, err
	}
	if currentInvariant.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero invariant", model.ErrArithmetic)
	}

	sumBalances := sum(balances)
	balanceRatiosWithoutFee := make([]*big.Int, len(balances))
	invariantRatioWithoutFees := new(big.Int)
	for i, balance := range balances {
		currentWeight, err := fixedpoint.DivUp(balance, sumBalances)
		if err != nil {
			return nil, err
		}
		remaining, err := fixedpoint.Sub(balance, amountsOut[i])
		if err != nil {
			return nil, fmt.Errorf("%w: amount out exceeds balance", model.ErrInputOutOfBounds)
		}
		balanceRatiosWithoutFee[i], err = fixedpoint.DivUp(remaining, balance)
		if err != nil {
			return nil, err
		}
		invariantRatioWithoutFees.Add(invariantRatioWithoutFees, fixedpoint.MulUp(balanceRatiosWithoutFee[i], currentWeight))
	}

	feeComplement := fixedpoint.Complement(swapFee)
	newBalances := make([]*big.Int, len(balances))
	for i, balance := range balances {
		amountOutWithFee := amountsOut[i]
		if invariantRatioWithoutFees.Cmp(balanceRatiosWithoutFee[i]) > 0 {
			nonTaxableAmount := fixedpoint.MulDown(balance, fixedpoint.Complement(invariantRatioWithoutFees))
			if nonTaxableAmount.Cmp(amountsOut[i]) > 0 {
				nonTaxableAmount = new(big.Int).Set(amountsOut[i])
			}
			taxableAmount := new(big.Int).Sub(amountsOut[i], nonTaxableAmount)
			taxableWithFee, err := fixedpoint.DivUp(taxableAmount, feeComplement)
			if err != nil {
				return nil, err
			}
			amountOutWithFee = new(big.Int).Add(nonTaxableAmount, taxableWithFee)
		}
		newBalances[i], err = fixedpoint.Sub(balance, amountOutWithFee)
		if err != nil {
			return nil, fmt.Errorf("%w: amount out with fee exceeds balance", model.ErrInputOutOfBounds)
		}
	}

	newInvariant, err := CalculateInvariant(amp, newBalances)
	if err != nil {
		return nil, err
	}
	invariantRatio, err := fixedpoint.DivDown(newInvariant, currentInvariant)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulUp(totalShares, fixedpoint.Complement(invariantRatio)), nil
}

// BPTSpotPrice returns the pool shares minted per unit of token tokenIndex
// for an infinitesimal single-token deposit, as an 18-decimal fraction.
func BPTSpotPrice(amp *big.Int, balances []*big.Int, totalShares *big.Int, tokenIndex int) (*big.Int, error) {
	invariant, err := CalculateInvariant(amp, balances)
	if err != nil {
		return nil, err
	}
	if invariant.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero invariant", model.ErrArithmetic)
	}

	numTokens := big.NewInt(int64(len(balances)))
	s := new(big.Int)
	dP := new(big.Int).Quo(invariant, numTokens)
	for i, balance := range balances {
		if i == tokenIndex {
			continue
		}
		if balance.Sign() == 0 {
			return nil, fmt.Errorf("%w: zero balance", model.ErrArithmetic)
		}
		s.Add(s, balance)
		dP.Mul(dP, invariant)
		dP.Quo(dP, new(big.Int).Mul(numTokens, balance))
	}

	x := balances[tokenIndex]
	alpha := new(big.Int).Mul(amp, numTokens)
	beta := new(big.Int).Mul(alpha, s)
	gamma := new(big.Int).Sub(ampPrecision, alpha)

	partialX := new(big.Int).Mul(bigTwo, alpha)
	partialX.Mul(partialX, x)
	partialX.Add(partialX, beta)
	partialX.Add(partialX, new(big.Int).Mul(gamma, invariant))

	minusPartialD := new(big.Int).Mul(dP, new(big.Int).Add(numTokens, bigOne))
	minusPartialD.Mul(minusPartialD, ampPrecision)
	minusPartialD.Sub(minusPartialD, new(big.Int).Mul(gamma, x))
	if minusPartialD.Sign() <= 0 {
		return nil, fmt.Errorf("%w: spot price denominator", model.ErrArithmetic)
	}

	ratio := new(big.Int).Mul(partialX, totalShares)
	ratio.Quo(ratio, minusPartialD)
	return fixedpoint.DivUp(ratio, invariant)
}

// SpotPrice returns the amount of token i paid per unit of token j at the
// margin, before fees, over normalized balances.
func SpotPrice(amp *big.Int, balances []*big.Int, i, j int) (*big.Int, error) {
	invariant, err := CalculateInvariant(amp, balances)
	if err != nil {
		return nil, err
	}
	numTokens := big.NewInt(int64(len(balances)))

	// k = D^(n+1) / (n^n P)
	k := new(big.Int).Set(invariant)
	for _, balance := range balances {
		denominator := new(big.Int).Mul(balance, numTokens)
		if denominator.Sign() == 0 {
			return nil, fmt.Errorf("%w: zero balance", model.ErrArithmetic)
		}
		k.Mul(k, invariant)
		k.Quo(k, denominator)
	}

	ann := new(big.Int).Mul(amp, numTokens)
	ann.Mul(ann, fixedpoint.One)
	ann.Quo(ann, ampPrecision)

	derivative := func(index int) (*big.Int, error) {
		term, err := fixedpoint.DivDown(k, balances[index])
		if err != nil {
			return nil, err
		}
		return term.Add(term, ann), nil
	}
	di, err := derivative(i)
	if err != nil {
		return nil, err
	}
	dj, err := derivative(j)
	if err != nil {
		return nil, err
	}
	return fixedpoint.DivDown(dj, di)
}

func sum(values []*big.Int) *big.Int {
	out := new(big.Int)
	for _, v := range values {
		out.Add(out, v)
	}
	return out
}

func withinOne(a, b *big.Int) bool {
	diff := new(big.Int).Sub(a, b)
	return diff.CmpAbs(bigOne) <= 0
}
