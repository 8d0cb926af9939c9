package pricing

import (
	"fmt"
	"math/big"

	"poolexit/internal/fixedpoint"
	"poolexit/internal/model"
	"poolexit/internal/poolstate"
	"poolexit/internal/scaling"
	"poolexit/internal/stablemath"
)

// StableExitPriceImpact compares the shares actually burned for amountsOut
// (native units, snapshot order) with the shares the same withdrawal would
// cost at spot price. The result is an 18-decimal fraction, never negative.
func StableExitPriceImpact(pool model.PoolSnapshot, amountsOut []*big.Int, sharesIn *big.Int) (*big.Int, error) {
	zeroImpact, err := sharesAtSpotPrice(pool, amountsOut)
	if err != nil {
		return nil, err
	}
	ratio, err := fixedpoint.DivDown(sharesIn, zeroImpact)
	if err != nil {
		return nil, err
	}
	if ratio.Cmp(fixedpoint.One) <= 0 {
		return new(big.Int), nil
	}
	return ratio.Sub(ratio, fixedpoint.One), nil
}

// StableJoinPriceImpact is the deposit counterpart: 1 - sharesOut/atSpot.
func StableJoinPriceImpact(pool model.PoolSnapshot, amountsIn []*big.Int, sharesOut *big.Int) (*big.Int, error) {
	zeroImpact, err := sharesAtSpotPrice(pool, amountsIn)
	if err != nil {
		return nil, err
	}
	ratio, err := fixedpoint.DivDown(sharesOut, zeroImpact)
	if err != nil {
		return nil, err
	}
	return fixedpoint.Complement(ratio), nil
}

func sharesAtSpotPrice(pool model.PoolSnapshot, amounts []*big.Int) (*big.Int, error) {
	if len(amounts) != len(pool.Tokens) {
		return nil, fmt.Errorf("%w: %d amounts, pool has %d tokens", model.ErrInputLengthMismatch, len(amounts), len(pool.Tokens))
	}
	state, err := poolstate.ParseStable(pool)
	if err != nil {
		return nil, err
	}
	balances := state.NormalizedBalances()

	total := new(big.Int)
	for i, amount := range amounts {
		if amount == nil || amount.Sign() < 0 {
			return nil, fmt.Errorf("%w: amount of %s", model.ErrInputOutOfBounds, state.Tokens[i].Address)
		}
		if amount.Sign() == 0 {
			continue
		}
		price, err := stablemath.BPTSpotPrice(state.Amp, balances, state.TotalShares, i)
		if err != nil {
			return nil, err
		}
		normalized := scaling.Normalize(amount, state.Tokens[i].Decimals, state.Tokens[i].PriceRate)
		total.Add(total, fixedpoint.MulDown(normalized, price))
	}
	if total.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero amounts", model.ErrInputOutOfBounds)
	}
	return total, nil
}
