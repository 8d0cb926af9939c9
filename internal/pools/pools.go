// Package pools selects the pricing, exit and valuation strategy for a pool
// type.
package pools

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"poolexit/internal/exit"
	"poolexit/internal/liquidity"
	"poolexit/internal/model"
	"poolexit/internal/pricing"
)

// Concerns is the capability set every pool type exposes. Operations a pool
// type cannot perform return model.ErrUnsupportedPoolType.
type Concerns interface {
	SpotPrice(pool model.PoolSnapshot, tokenIn, tokenOut common.Address) (*big.Int, error)
	ExitPriceImpact(pool model.PoolSnapshot, amountsOut []*big.Int, sharesIn *big.Int) (*big.Int, error)
	JoinPriceImpact(pool model.PoolSnapshot, amountsIn []*big.Int, sharesOut *big.Int) (*big.Int, error)
	ExitExactSharesIn(req model.ExactSharesInRequest, pool model.PoolSnapshot) (model.ExitResult, error)
	ExitExactTokensOut(req model.ExactTokensOutRequest, pool model.PoolSnapshot) (model.ExitResult, error)
	Liquidity(pool model.PoolSnapshot) (liquidity.Valuation, error)
}

// Registry maps pool types to their Concerns.
type Registry struct {
	builder    *exit.Builder
	calculator *liquidity.Calculator
}

// NewRegistry wires the shared exit builder and liquidity calculator.
func NewRegistry(builder *exit.Builder, calculator *liquidity.Calculator) *Registry {
	if calculator == nil {
		calculator = liquidity.New()
	}
	return &Registry{builder: builder, calculator: calculator}
}

// For returns the Concerns of poolType.
func (r *Registry) For(poolType model.PoolType) (Concerns, error) {
	switch {
	case poolType == model.PoolTypePhantomStable:
		return phantomStable{unsupported: unsupported{poolType}, calculator: r.calculator}, nil
	case poolType.IsStableFamily():
		return stable{builder: r.builder, calculator: r.calculator}, nil
	case poolType == model.PoolTypeWeighted:
		return weighted{unsupported: unsupported{poolType}, calculator: r.calculator}, nil
	case poolType == model.PoolTypeLinear:
		return linear{unsupported: unsupported{poolType}, calculator: r.calculator}, nil
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedPoolType, poolType)
	}
}

// Dispatch is shorthand for For(pool.PoolType).
func (r *Registry) Dispatch(pool model.PoolSnapshot) (Concerns, error) {
	return r.For(pool.PoolType)
}

type stable struct {
	builder    *exit.Builder
	calculator *liquidity.Calculator
}

func (s stable) SpotPrice(pool model.PoolSnapshot, tokenIn, tokenOut common.Address) (*big.Int, error) {
	return pricing.StableSpotPrice(pool, tokenIn, tokenOut)
}

func (s stable) ExitPriceImpact(pool model.PoolSnapshot, amountsOut []*big.Int, sharesIn *big.Int) (*big.Int, error) {
	return pricing.StableExitPriceImpact(pool, amountsOut, sharesIn)
}

func (s stable) JoinPriceImpact(pool model.PoolSnapshot, amountsIn []*big.Int, sharesOut *big.Int) (*big.Int, error) {
	return pricing.StableJoinPriceImpact(pool, amountsIn, sharesOut)
}

func (s stable) ExitExactSharesIn(req model.ExactSharesInRequest, pool model.PoolSnapshot) (model.ExitResult, error) {
	if s.builder == nil {
		return model.ExitResult{}, fmt.Errorf("exit builder is nil")
	}
	return s.builder.BuildExactSharesIn(req, pool)
}

func (s stable) ExitExactTokensOut(req model.ExactTokensOutRequest, pool model.PoolSnapshot) (model.ExitResult, error) {
	if s.builder == nil {
		return model.ExitResult{}, fmt.Errorf("exit builder is nil")
	}
	return s.builder.BuildExactTokensOut(req, pool)
}

func (s stable) Liquidity(pool model.PoolSnapshot) (liquidity.Valuation, error) {
	return s.calculator.Stable(pool)
}

// phantomStable pools share the stable invariant but exit through their own
// BPT, which the builder does not encode.
type phantomStable struct {
	unsupported
	calculator *liquidity.Calculator
}

func (p phantomStable) SpotPrice(pool model.PoolSnapshot, tokenIn, tokenOut common.Address) (*big.Int, error) {
	return pricing.StableSpotPrice(pool, tokenIn, tokenOut)
}

func (p phantomStable) ExitPriceImpact(pool model.PoolSnapshot, amountsOut []*big.Int, sharesIn *big.Int) (*big.Int, error) {
	return pricing.StableExitPriceImpact(pool, amountsOut, sharesIn)
}

func (p phantomStable) JoinPriceImpact(pool model.PoolSnapshot, amountsIn []*big.Int, sharesOut *big.Int) (*big.Int, error) {
	return pricing.StableJoinPriceImpact(pool, amountsIn, sharesOut)
}

func (p phantomStable) Liquidity(pool model.PoolSnapshot) (liquidity.Valuation, error) {
	return p.calculator.Stable(pool)
}

type weighted struct {
	unsupported
	calculator *liquidity.Calculator
}

func (w weighted) SpotPrice(pool model.PoolSnapshot, tokenIn, tokenOut common.Address) (*big.Int, error) {
	return pricing.WeightedSpotPrice(pool, tokenIn, tokenOut)
}

func (w weighted) Liquidity(pool model.PoolSnapshot) (liquidity.Valuation, error) {
	return w.calculator.Weighted(pool)
}

// linear pools hold a main token and its wrapped form; valuing them like a
// stable pool imputes the wrapped side through its price rate.
type linear struct {
	unsupported
	calculator *liquidity.Calculator
}

func (l linear) Liquidity(pool model.PoolSnapshot) (liquidity.Valuation, error) {
	return l.calculator.Stable(pool)
}

type unsupported struct {
	poolType model.PoolType
}

func (u unsupported) err(op string) error {
	return fmt.Errorf("%w: %s does not support %s", model.ErrUnsupportedPoolType, u.poolType, op)
}

func (u unsupported) SpotPrice(model.PoolSnapshot, common.Address, common.Address) (*big.Int, error) {
	return nil, u.err("spot price")
}

func (u unsupported) ExitPriceImpact(model.PoolSnapshot, []*big.Int, *big.Int) (*big.Int, error) {
	return nil, u.err("price impact")
}

func (u unsupported) JoinPriceImpact(model.PoolSnapshot, []*big.Int, *big.Int) (*big.Int, error) {
	return nil, u.err("price impact")
}

func (u unsupported) ExitExactSharesIn(model.ExactSharesInRequest, model.PoolSnapshot) (model.ExitResult, error) {
	return model.ExitResult{}, u.err("exits")
}

func (u unsupported) ExitExactTokensOut(model.ExactTokensOutRequest, model.PoolSnapshot) (model.ExitResult, error) {
	return model.ExitResult{}, u.err("exits")
}

func (u unsupported) Liquidity(model.PoolSnapshot) (liquidity.Valuation, error) {
	return liquidity.Valuation{}, u.err("liquidity")
}
