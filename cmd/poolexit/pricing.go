package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolexit/internal/fixedpoint"
	"poolexit/internal/model"
)

type spotPriceOutput struct {
	PoolID    string `json:"pool_id"`
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out"`
	SpotPrice string `json:"spot_price"`
}

func runSpotPrice(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	ctx, stop := commandContext()
	defer stop()

	if len(a.cfg.Tokens) != 2 {
		return fmt.Errorf("tokens must name exactly two tokens, got %d", len(a.cfg.Tokens))
	}
	for _, token := range a.cfg.Tokens {
		if !common.IsHexAddress(token) {
			return fmt.Errorf("invalid token address %q", token)
		}
	}
	tokenIn := common.HexToAddress(a.cfg.Tokens[0])
	tokenOut := common.HexToAddress(a.cfg.Tokens[1])

	pool, err := a.loadSnapshot(ctx)
	if err != nil {
		return err
	}
	concerns, err := a.registry.Dispatch(pool)
	if err != nil {
		return err
	}
	price, err := concerns.SpotPrice(pool, tokenIn, tokenOut)
	if err != nil {
		return fmt.Errorf("spot price: %w", err)
	}

	return writeJSON(cmd.OutOrStdout(), spotPriceOutput{
		PoolID:    pool.ID,
		TokenIn:   tokenIn.Hex(),
		TokenOut:  tokenOut.Hex(),
		SpotPrice: fixedpoint.Format(price, fixedpoint.Decimals),
	})
}

func runLiquidity(cmd *cobra.Command, _ []string) error {
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
	applyPriceOverrides(&pool, a.cfg.PriceUSD)

	concerns, err := a.registry.Dispatch(pool)
	if err != nil {
		return err
	}
	valuation, err := concerns.Liquidity(pool)
	if err != nil {
		return fmt.Errorf("liquidity: %w", err)
	}
	a.logger.Info("liquidity computed",
		zap.String("pool_id", pool.ID),
		zap.String("total_usd", valuation.Total.String()),
		zap.Int("priced", valuation.Priced),
		zap.Int("imputed", valuation.Imputed),
	)
	return writeJSON(cmd.OutOrStdout(), valuation)
}

// applyPriceOverrides sets token USD prices by address or symbol.
func applyPriceOverrides(pool *model.PoolSnapshot, prices map[string]string) {
	if len(prices) == 0 {
		return
	}
	tokens := make([]model.TokenInfo, len(pool.Tokens))
	copy(tokens, pool.Tokens)
	for key, price := range prices {
		for i := range tokens {
			if strings.EqualFold(tokens[i].Address, key) || (tokens[i].Symbol != "" && strings.EqualFold(tokens[i].Symbol, key)) {
				tokens[i].PriceUSD = price
			}
		}
	}
	pool.Tokens = tokens
}
