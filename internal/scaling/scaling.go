// Package scaling converts token amounts between native units and the
// rate-adjusted 18-decimal internal unit.
package scaling

import (
	"fmt"
	"math/big"

	"poolexit/internal/fixedpoint"
	"poolexit/internal/model"
)

// Upscale scales a native amount to 18 decimals.
func Upscale(amount *big.Int, decimals uint8) *big.Int {
	diff := fixedpoint.Decimals - int(decimals)
	switch {
	case diff > 0:
		return new(big.Int).Mul(amount, fixedpoint.Pow10(diff))
	case diff < 0:
		return new(big.Int).Quo(amount, fixedpoint.Pow10(-diff))
	default:
		return new(big.Int).Set(amount)
	}
}

// Downscale scales an 18-decimal amount back to native decimals, truncating.
func Downscale(amount *big.Int, decimals uint8) *big.Int {
	diff := fixedpoint.Decimals - int(decimals)
	switch {
	case diff > 0:
		return new(big.Int).Quo(amount, fixedpoint.Pow10(diff))
	case diff < 0:
		return new(big.Int).Mul(amount, fixedpoint.Pow10(-diff))
	default:
		return new(big.Int).Set(amount)
	}
}

// Normalize converts a native amount into the internal unit: upscale to 18
// decimals, then multiply by the price rate. A nil rate is the identity.
func Normalize(amount *big.Int, decimals uint8, priceRate *big.Int) *big.Int {
	upscaled := Upscale(amount, decimals)
	if priceRate == nil {
		return upscaled
	}
	return fixedpoint.MulDown(upscaled, priceRate)
}

// Denormalize is the inverse of Normalize.
func Denormalize(amount *big.Int, decimals uint8, priceRate *big.Int) (*big.Int, error) {
	unrated := amount
	if priceRate != nil {
		var err error
		unrated, err = fixedpoint.DivDown(amount, priceRate)
		if err != nil {
			return nil, fmt.Errorf("price rate: %w", err)
		}
	}
	return Downscale(unrated, decimals), nil
}

// TokenParams holds the parsed scaling inputs of a pool token.
type TokenParams struct {
	Address   string
	Decimals  uint8
	Balance   *big.Int
	PriceRate *big.Int
}

// ParseTokens validates and parses the scaling inputs of every pool token.
// Price rates are mandatory when requireRates is set; otherwise a missing rate
// defaults to the identity.
func ParseTokens(tokens []model.TokenInfo, requireRates bool) ([]TokenParams, error) {
	out := make([]TokenParams, 0, len(tokens))
	for _, token := range tokens {
		if token.Decimals == nil {
			return nil, fmt.Errorf("%w: token %s", model.ErrMissingDecimals, token.Address)
		}
		balance, err := fixedpoint.ParseInteger(token.Balance)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", token.Address, err)
		}

		rate := new(big.Int).Set(fixedpoint.One)
		if token.PriceRate == "" {
			if requireRates {
				return nil, fmt.Errorf("%w: token %s", model.ErrMissingPriceRate, token.Address)
			}
		} else {
			rate, err = fixedpoint.ParseInteger(token.PriceRate)
			if err != nil {
				return nil, fmt.Errorf("price rate of %s: %w", token.Address, err)
			}
			if rate.Sign() == 0 {
				return nil, fmt.Errorf("%w: zero price rate for %s", model.ErrInputOutOfBounds, token.Address)
			}
		}

		out = append(out, TokenParams{
			Address:   token.Address,
			Decimals:  *token.Decimals,
			Balance:   balance,
			PriceRate: rate,
		})
	}
	return out, nil
}

// NormalizedBalance returns the token balance in the internal unit.
func (p TokenParams) NormalizedBalance() *big.Int {
	return Normalize(p.Balance, p.Decimals, p.PriceRate)
}
