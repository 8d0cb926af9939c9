// Package poolstate parses and validates pool snapshots into the numeric
// form used by the math packages.
package poolstate

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"poolexit/internal/assets"
	"poolexit/internal/fixedpoint"
	"poolexit/internal/model"
	"poolexit/internal/scaling"
)

// Stable is a parsed stable-family pool.
type Stable struct {
	Tokens      []scaling.TokenParams
	Addresses   []common.Address
	Amp         *big.Int
	SwapFee     *big.Int
	TotalShares *big.Int
}

// ParseStable validates decimals, price rates, amplification, swap fee and
// total shares of a stable-family pool.
func ParseStable(pool model.PoolSnapshot) (*Stable, error) {
	if !pool.PoolType.IsStableFamily() {
		return nil, fmt.Errorf("%w: %s is not a stable pool", model.ErrUnsupportedPoolType, pool.PoolType)
	}
	tokens, err := scaling.ParseTokens(pool.Tokens, pool.PoolType.RequiresPriceRates())
	if err != nil {
		return nil, err
	}
	addresses, err := tokenAddresses(pool)
	if err != nil {
		return nil, err
	}

	if pool.Amp == "" {
		return nil, fmt.Errorf("%w: pool %s", model.ErrMissingAmp, pool.ID)
	}
	amp, err := fixedpoint.ParseFixed(pool.Amp, 3)
	if err != nil {
		return nil, fmt.Errorf("amp: %w", err)
	}
	if amp.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero amplification parameter", model.ErrInputOutOfBounds)
	}

	swapFee, err := parseSwapFee(pool)
	if err != nil {
		return nil, err
	}
	totalShares, err := fixedpoint.ParseInteger(pool.TotalShares)
	if err != nil {
		return nil, fmt.Errorf("total shares: %w", err)
	}

	return &Stable{
		Tokens:      tokens,
		Addresses:   addresses,
		Amp:         amp,
		SwapFee:     swapFee,
		TotalShares: totalShares,
	}, nil
}

// NormalizedBalances returns every token balance in the internal unit,
// in snapshot order.
func (s *Stable) NormalizedBalances() []*big.Int {
	out := make([]*big.Int, len(s.Tokens))
	for i, token := range s.Tokens {
		out[i] = token.NormalizedBalance()
	}
	return out
}

// Weighted is a parsed weighted pool.
type Weighted struct {
	Tokens      []scaling.TokenParams
	Addresses   []common.Address
	Weights     []*big.Int
	SwapFee     *big.Int
	TotalShares *big.Int
}

// ParseWeighted validates decimals, weights and swap fee of a weighted pool.
func ParseWeighted(pool model.PoolSnapshot) (*Weighted, error) {
	if pool.PoolType != model.PoolTypeWeighted {
		return nil, fmt.Errorf("%w: %s is not a weighted pool", model.ErrUnsupportedPoolType, pool.PoolType)
	}
	tokens, err := scaling.ParseTokens(pool.Tokens, false)
	if err != nil {
		return nil, err
	}
	addresses, err := tokenAddresses(pool)
	if err != nil {
		return nil, err
	}
	weights := make([]*big.Int, len(pool.Tokens))
	for i, token := range pool.Tokens {
		if token.Weight == "" {
			return nil, fmt.Errorf("%w: token %s", model.ErrMissingWeight, token.Address)
		}
		weights[i], err = fixedpoint.ParseFixed(token.Weight, fixedpoint.Decimals)
		if err != nil {
			return nil, fmt.Errorf("weight of %s: %w", token.Address, err)
		}
	}
	swapFee, err := parseSwapFee(pool)
	if err != nil {
		return nil, err
	}
	totalShares := new(big.Int)
	if pool.TotalShares != "" {
		totalShares, err = fixedpoint.ParseInteger(pool.TotalShares)
		if err != nil {
			return nil, fmt.Errorf("total shares: %w", err)
		}
	}
	return &Weighted{
		Tokens:      tokens,
		Addresses:   addresses,
		Weights:     weights,
		SwapFee:     swapFee,
		TotalShares: totalShares,
	}, nil
}

// IndexOf returns the snapshot index of address, resolving the zero address
// to wrappedNative. The second result reports whether the native asset was
// requested.
func IndexOf(pool model.PoolSnapshot, address common.Address, wrappedNative common.Address) (int, bool, error) {
	native := address == (common.Address{})
	lookup := address
	if native {
		lookup = wrappedNative
	}
	idx := pool.TokenIndex(lookup.Hex())
	if idx < 0 {
		return -1, native, fmt.Errorf("%w: %s is not in pool %s", model.ErrTokenMismatch, address.Hex(), pool.ID)
	}
	return idx, native, nil
}

func parseSwapFee(pool model.PoolSnapshot) (*big.Int, error) {
	if pool.SwapFee == "" {
		return nil, fmt.Errorf("%w: pool %s", model.ErrMissingSwapFee, pool.ID)
	}
	swapFee, err := fixedpoint.ParseFixed(pool.SwapFee, fixedpoint.Decimals)
	if err != nil {
		return nil, fmt.Errorf("swap fee: %w", err)
	}
	if swapFee.Cmp(fixedpoint.One) >= 0 {
		return nil, fmt.Errorf("%w: swap fee %s", model.ErrInputOutOfBounds, pool.SwapFee)
	}
	return swapFee, nil
}

func tokenAddresses(pool model.PoolSnapshot) ([]common.Address, error) {
	addresses, err := assets.ParseAddresses(pool.TokenAddresses())
	if err != nil {
		return nil, fmt.Errorf("pool tokens: %w", err)
	}
	return addresses, nil
}
