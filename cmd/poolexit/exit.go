package main

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolexit/internal/fixedpoint"
	"poolexit/internal/model"
)

func runExitShares(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	ctx, stop := commandContext()
	defer stop()

	pool, err := a.loadSnapshot(ctx)
	if err != nil {
		return err
	}
	result, err := a.exitShares(pool)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func runExitTokens(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	ctx, stop := commandContext()
	defer stop()

	pool, err := a.loadSnapshot(ctx)
	if err != nil {
		return err
	}
	result, err := a.exitTokens(pool)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func (a *app) exitShares(pool model.PoolSnapshot) (model.ExitResult, error) {
	if a.cfg.Shares == "" {
		return model.ExitResult{}, fmt.Errorf("shares is required")
	}
	slippage, err := a.cfg.SlippageFraction()
	if err != nil {
		return model.ExitResult{}, err
	}
	concerns, err := a.registry.Dispatch(pool)
	if err != nil {
		return model.ExitResult{}, err
	}

	start := time.Now()
	result, err := concerns.ExitExactSharesIn(model.ExactSharesInRequest{
		Exiter:         a.cfg.Exiter,
		SharesIn:       a.cfg.Shares,
		Slippage:       slippage,
		SingleTokenOut: a.cfg.TokenOut,
	}, pool)
	if err != nil {
		return model.ExitResult{}, fmt.Errorf("exit exact shares in: %w", err)
	}
	a.logger.Info("exit built",
		zap.String("pool_id", pool.ID),
		zap.String("mode", "exact_shares_in"),
		zap.String("shares_in", a.cfg.Shares),
		zap.Strings("min_amounts_out", result.MinAmountsOut),
		elapsed(start),
	)
	return result, nil
}

func (a *app) exitTokens(pool model.PoolSnapshot) (model.ExitResult, error) {
	slippage, err := a.cfg.SlippageFraction()
	if err != nil {
		return model.ExitResult{}, err
	}
	concerns, err := a.registry.Dispatch(pool)
	if err != nil {
		return model.ExitResult{}, err
	}

	start := time.Now()
	result, err := concerns.ExitExactTokensOut(model.ExactTokensOutRequest{
		Exiter:     a.cfg.Exiter,
		TokensOut:  a.cfg.Tokens,
		AmountsOut: a.cfg.Amounts,
		Slippage:   slippage,
	}, pool)
	if err != nil {
		return model.ExitResult{}, fmt.Errorf("exit exact tokens out: %w", err)
	}
	a.logger.Info("exit built",
		zap.String("pool_id", pool.ID),
		zap.String("mode", "exact_tokens_out"),
		zap.String("expected_bpt_in", result.ExpectedBPTIn),
		zap.String("max_bpt_in", result.MaxBPTIn),
		elapsed(start),
	)
	return result, nil
}

type priceImpactOutput struct {
	PoolID      string   `json:"pool_id"`
	SharesIn    string   `json:"shares_in"`
	AmountsOut  []string `json:"amounts_out"`
	PriceImpact string   `json:"price_impact"`
}

func runPriceImpact(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	ctx, stop := commandContext()
	defer stop()

	pool, err := a.loadSnapshot(ctx)
	if err != nil {
		return err
	}
	if a.cfg.Exiter == "" {
		// only the amounts matter here
		a.cfg.Exiter = common.Address{}.Hex()
	}

	var (
		result   model.ExitResult
		sharesIn string
		assets   []string
		amounts  []string
	)
	if a.cfg.Shares != "" {
		result, err = a.exitShares(pool)
		if err != nil {
			return err
		}
		sharesIn = a.cfg.Shares
		assets = result.Attributes.ExitPoolRequest.Assets
		amounts = result.ExpectedAmountsOut
	} else {
		result, err = a.exitTokens(pool)
		if err != nil {
			return err
		}
		sharesIn = result.ExpectedBPTIn
		assets = result.Attributes.ExitPoolRequest.Assets
		amounts = result.Attributes.ExitPoolRequest.MinAmountsOut
	}

	ordered, err := snapshotOrder(pool, assets, amounts, a.cfg.WrappedNative)
	if err != nil {
		return err
	}
	shares, err := fixedpoint.ParseInteger(sharesIn)
	if err != nil {
		return err
	}
	concerns, err := a.registry.Dispatch(pool)
	if err != nil {
		return err
	}
	impact, err := concerns.ExitPriceImpact(pool, ordered, shares)
	if err != nil {
		return fmt.Errorf("price impact: %w", err)
	}

	out := priceImpactOutput{
		PoolID:      pool.ID,
		SharesIn:    sharesIn,
		PriceImpact: fixedpoint.Format(impact, fixedpoint.Decimals),
	}
	for _, amount := range ordered {
		out.AmountsOut = append(out.AmountsOut, amount.String())
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

// snapshotOrder maps amounts given in sorted asset order back to the pool's
// token order. The zero address stands for wrappedNative.
func snapshotOrder(pool model.PoolSnapshot, assets, amounts []string, wrappedNative string) ([]*big.Int, error) {
	if len(assets) != len(amounts) {
		return nil, fmt.Errorf("%w: %d assets, %d amounts", model.ErrInputLengthMismatch, len(assets), len(amounts))
	}
	out := make([]*big.Int, len(pool.Tokens))
	for i := range out {
		out[i] = new(big.Int)
	}
	zero := common.Address{}.Hex()
	for i, asset := range assets {
		if strings.EqualFold(asset, zero) {
			asset = wrappedNative
		}
		idx := pool.TokenIndex(asset)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", model.ErrTokenMismatch, asset)
		}
		amount, err := fixedpoint.ParseInteger(amounts[i])
		if err != nil {
			return nil, err
		}
		out[idx] = amount
	}
	return out, nil
}
