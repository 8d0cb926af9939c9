// Package pricing computes spot prices and price impact over pool snapshots.
package pricing

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"poolexit/internal/fixedpoint"
	"poolexit/internal/model"
	"poolexit/internal/poolstate"
	"poolexit/internal/scaling"
	"poolexit/internal/stablemath"
)

// StableSpotPrice returns the price of tokenOut in units of tokenIn as an
// 18-decimal fraction, fee included.
func StableSpotPrice(pool model.PoolSnapshot, tokenIn, tokenOut common.Address) (*big.Int, error) {
	in, out, err := pair(pool, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	state, err := poolstate.ParseStable(pool)
	if err != nil {
		return nil, err
	}

	normalized, err := stablemath.SpotPrice(state.Amp, state.NormalizedBalances(), in, out)
	if err != nil {
		return nil, err
	}
	// back to native units: the internal unit of a token is native * rate
	price := fixedpoint.MulDown(normalized, state.Tokens[out].PriceRate)
	price, err = fixedpoint.DivDown(price, state.Tokens[in].PriceRate)
	if err != nil {
		return nil, err
	}
	return withFee(price, state.SwapFee)
}

// WeightedSpotPrice returns the price of tokenOut in units of tokenIn as an
// 18-decimal fraction, fee included: (Bi/Wi) / (Bo/Wo) / (1 - fee).
func WeightedSpotPrice(pool model.PoolSnapshot, tokenIn, tokenOut common.Address) (*big.Int, error) {
	in, out, err := pair(pool, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	state, err := poolstate.ParseWeighted(pool)
	if err != nil {
		return nil, err
	}

	balanceIn := scaling.Upscale(state.Tokens[in].Balance, state.Tokens[in].Decimals)
	balanceOut := scaling.Upscale(state.Tokens[out].Balance, state.Tokens[out].Decimals)
	numerator, err := fixedpoint.DivDown(balanceIn, state.Weights[in])
	if err != nil {
		return nil, err
	}
	denominator, err := fixedpoint.DivDown(balanceOut, state.Weights[out])
	if err != nil {
		return nil, err
	}
	price, err := fixedpoint.DivDown(numerator, denominator)
	if err != nil {
		return nil, err
	}
	return withFee(price, state.SwapFee)
}

func withFee(price, swapFee *big.Int) (*big.Int, error) {
	return fixedpoint.DivDown(price, fixedpoint.Complement(swapFee))
}

func pair(pool model.PoolSnapshot, tokenIn, tokenOut common.Address) (int, int, error) {
	in := pool.TokenIndex(tokenIn.Hex())
	if in < 0 {
		return 0, 0, fmt.Errorf("%w: %s is not in pool %s", model.ErrTokenMismatch, tokenIn.Hex(), pool.ID)
	}
	out := pool.TokenIndex(tokenOut.Hex())
	if out < 0 {
		return 0, 0, fmt.Errorf("%w: %s is not in pool %s", model.ErrTokenMismatch, tokenOut.Hex(), pool.ID)
	}
	if in == out {
		return 0, 0, fmt.Errorf("%w: token in and out are both %s", model.ErrTokenMismatch, tokenIn.Hex())
	}
	return in, out, nil
}
