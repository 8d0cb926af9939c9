// Package liquidity values pool holdings in USD.
package liquidity

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolexit/internal/fixedpoint"
	"poolexit/internal/model"
)

// Valuation is the USD value of a pool. Priced counts the tokens that carried
// a USD price; when it is zero Total is zero for lack of data, not because the
// pool is empty.
type Valuation struct {
	PoolID  string          `json:"pool_id"`
	Total   decimal.Decimal `json:"total_usd"`
	Priced  int             `json:"priced_tokens"`
	Imputed int             `json:"imputed_tokens"`
}

// Calculator computes valuations. The zero value is not usable; use New.
type Calculator struct {
	logger *zap.Logger
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger reports imputed prices and unpriced pools to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Calculator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a Calculator that logs nothing unless WithLogger is given.
func New(opts ...Option) *Calculator {
	c := &Calculator{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type holding struct {
	address string
	amount  decimal.Decimal
	// amount in the pool's internal unit (amount * price rate)
	scaled decimal.Decimal
	price  decimal.Decimal
	priced bool
	weight decimal.Decimal
}

// Stable values a stable-family pool. Tokens without a USD price are valued
// at the average price of the priced ones, per internal unit.
func (c *Calculator) Stable(pool model.PoolSnapshot) (Valuation, error) {
	holdings, err := parseHoldings(pool, false)
	if err != nil {
		return Valuation{}, err
	}

	out := Valuation{PoolID: pool.ID, Total: decimal.Zero}
	sumScaled := decimal.Zero
	for _, h := range holdings {
		if !h.priced {
			continue
		}
		out.Total = out.Total.Add(h.amount.Mul(h.price))
		sumScaled = sumScaled.Add(h.scaled)
		out.Priced++
	}

	if out.Priced == 0 || sumScaled.IsZero() {
		c.logger.Warn("no priced tokens, liquidity reported as zero",
			zap.String("pool_id", pool.ID),
			zap.Int("tokens", len(holdings)),
		)
		return out, nil
	}

	average := out.Total.Div(sumScaled)
	for _, h := range holdings {
		if h.priced {
			continue
		}
		out.Total = out.Total.Add(h.scaled.Mul(average))
		out.Imputed++
		c.logger.Debug("imputed token price",
			zap.String("pool_id", pool.ID),
			zap.String("token", h.address),
			zap.String("price_usd", average.String()),
		)
	}
	return out, nil
}

// Weighted values a weighted pool by extrapolating the priced tokens' value
// over their share of the pool weight.
func (c *Calculator) Weighted(pool model.PoolSnapshot) (Valuation, error) {
	holdings, err := parseHoldings(pool, true)
	if err != nil {
		return Valuation{}, err
	}

	out := Valuation{PoolID: pool.ID, Total: decimal.Zero}
	sumValue := decimal.Zero
	sumWeight := decimal.Zero
	for _, h := range holdings {
		if !h.priced {
			continue
		}
		sumValue = sumValue.Add(h.amount.Mul(h.price))
		sumWeight = sumWeight.Add(h.weight)
		out.Priced++
	}
	if sumWeight.IsZero() {
		c.logger.Warn("no priced tokens, liquidity reported as zero", zap.String("pool_id", pool.ID))
		return out, nil
	}
	out.Total = sumValue.Div(sumWeight)
	out.Imputed = len(holdings) - out.Priced
	return out, nil
}

func parseHoldings(pool model.PoolSnapshot, weighted bool) ([]holding, error) {
	holdings := make([]holding, 0, len(pool.Tokens))
	for _, token := range pool.Tokens {
		if token.Decimals == nil {
			return nil, fmt.Errorf("%w: token %s", model.ErrMissingDecimals, token.Address)
		}
		balance, err := fixedpoint.ParseInteger(token.Balance)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", token.Address, err)
		}
		h := holding{
			address: token.Address,
			amount:  fixedpoint.ToDecimal(balance, int32(*token.Decimals)),
		}

		h.scaled = h.amount
		if token.PriceRate != "" {
			rate, err := fixedpoint.ParseInteger(token.PriceRate)
			if err != nil {
				return nil, fmt.Errorf("price rate of %s: %w", token.Address, err)
			}
			h.scaled = h.amount.Mul(fixedpoint.ToDecimal(rate, fixedpoint.Decimals))
		}

		if token.PriceUSD != "" {
			h.price, err = decimal.NewFromString(token.PriceUSD)
			if err != nil || h.price.IsNegative() {
				return nil, fmt.Errorf("%w: price of %s %q", model.ErrInputOutOfBounds, token.Address, token.PriceUSD)
			}
			h.priced = true
		}

		if weighted {
			if token.Weight == "" {
				return nil, fmt.Errorf("%w: token %s", model.ErrMissingWeight, token.Address)
			}
			h.weight, err = decimal.NewFromString(token.Weight)
			if err != nil || h.weight.IsNegative() {
				return nil, fmt.Errorf("%w: weight of %s %q", model.ErrInputOutOfBounds, token.Address, token.Weight)
			}
		}
		holdings = append(holdings, h)
	}
	return holdings, nil
}
