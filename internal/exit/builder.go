// Package exit assembles exitPool transactions for stable-family pools.
package exit

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"poolexit/internal/assets"
	"poolexit/internal/fixedpoint"
	"poolexit/internal/model"
	"poolexit/internal/poolstate"
	"poolexit/internal/scaling"
	"poolexit/internal/slippage"
	"poolexit/internal/stablemath"
	"poolexit/internal/vault"
)

// Config carries the deployment-specific addresses.
type Config struct {
	Vault              common.Address
	WrappedNativeAsset common.Address
}

// Builder builds exit transactions. It holds no mutable state.
type Builder struct {
	cfg Config
}

// NewBuilder returns a Builder for the given deployment.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// BuildExactSharesIn builds an exit that burns exactly req.SharesIn pool
// shares, either proportionally or into req.SingleTokenOut.
func (b *Builder) BuildExactSharesIn(req model.ExactSharesInRequest, pool model.PoolSnapshot) (model.ExitResult, error) {
	if err := checkExitable(pool); err != nil {
		return model.ExitResult{}, err
	}
	sharesIn, err := fixedpoint.ParseInteger(req.SharesIn)
	if err != nil {
		return model.ExitResult{}, fmt.Errorf("shares in: %w", err)
	}
	slip, err := slippage.Parse(req.Slippage)
	if err != nil {
		return model.ExitResult{}, err
	}
	exiter, err := parseExiter(req.Exiter)
	if err != nil {
		return model.ExitResult{}, err
	}

	target := -1
	native := false
	if req.SingleTokenOut != "" {
		if !common.IsHexAddress(req.SingleTokenOut) {
			return model.ExitResult{}, fmt.Errorf("%w: invalid token %s", model.ErrTokenMismatch, req.SingleTokenOut)
		}
		target, native, err = poolstate.IndexOf(pool, common.HexToAddress(req.SingleTokenOut), b.cfg.WrappedNativeAsset)
		if err != nil {
			return model.ExitResult{}, err
		}
	}

	state, err := poolstate.ParseStable(pool)
	if err != nil {
		return model.ExitResult{}, err
	}
	poolID, err := vault.ParsePoolID(pool.ID)
	if err != nil {
		return model.ExitResult{}, err
	}

	perm := assets.Permutation(state.Addresses)
	sortedAddresses, err := assets.Apply(perm, state.Addresses)
	if err != nil {
		return model.ExitResult{}, err
	}
	sortedTokens, err := assets.Apply(perm, state.Tokens)
	if err != nil {
		return model.ExitResult{}, err
	}
	sortedBalances, err := assets.Apply(perm, state.NormalizedBalances())
	if err != nil {
		return model.ExitResult{}, err
	}

	var sortedTarget *int
	if target >= 0 {
		pos := sortedIndex(perm, target)
		sortedTarget = &pos
	}

	normalizedOut, err := stablemath.SharesInToTokensOut(state.Amp, sortedBalances, sortedTarget, sharesIn, state.TotalShares, state.SwapFee)
	if err != nil {
		return model.ExitResult{}, err
	}

	expected := make([]*big.Int, len(normalizedOut))
	minimums := make([]*big.Int, len(normalizedOut))
	for i, amount := range normalizedOut {
		expected[i], err = scaling.Denormalize(amount, sortedTokens[i].Decimals, sortedTokens[i].PriceRate)
		if err != nil {
			return model.ExitResult{}, err
		}
		minimums[i], err = slippage.SubSlippage(expected[i], slip)
		if err != nil {
			return model.ExitResult{}, err
		}
	}

	var userData []byte
	if sortedTarget != nil {
		userData, err = vault.EncodeExitExactBPTInForOneTokenOut(sharesIn, *sortedTarget)
	} else {
		userData, err = vault.EncodeExitExactBPTInForTokensOut(sharesIn)
	}
	if err != nil {
		return model.ExitResult{}, fmt.Errorf("encode user data: %w", err)
	}

	if native {
		sortedAddresses[*sortedTarget] = common.Address{}
	}

	call := vault.ExitPoolCall{
		PoolID:    poolID,
		Sender:    exiter,
		Recipient: exiter,
		Request: vault.ExitPoolRequest{
			Assets:        sortedAddresses,
			MinAmountsOut: minimums,
			UserData:      userData,
		},
	}
	result, err := b.result(call)
	if err != nil {
		return model.ExitResult{}, err
	}
	result.ExpectedAmountsOut = bigStrings(expected)
	result.MinAmountsOut = bigStrings(minimums)
	return result, nil
}

// BuildExactTokensOut builds an exit that pays out exactly req.AmountsOut and
// burns at most the slippage-padded shares amount.
func (b *Builder) BuildExactTokensOut(req model.ExactTokensOutRequest, pool model.PoolSnapshot) (model.ExitResult, error) {
	if len(req.TokensOut) != len(req.AmountsOut) {
		return model.ExitResult{}, fmt.Errorf("%w: %d tokens, %d amounts", model.ErrInputLengthMismatch, len(req.TokensOut), len(req.AmountsOut))
	}
	if len(req.TokensOut) != len(pool.Tokens) {
		return model.ExitResult{}, fmt.Errorf("%w: %d tokens requested, pool has %d", model.ErrInputLengthMismatch, len(req.TokensOut), len(pool.Tokens))
	}
	if err := checkExitable(pool); err != nil {
		return model.ExitResult{}, err
	}
	slip, err := slippage.Parse(req.Slippage)
	if err != nil {
		return model.ExitResult{}, err
	}
	exiter, err := parseExiter(req.Exiter)
	if err != nil {
		return model.ExitResult{}, err
	}

	// position in the pool token list -> requested amount
	requested := make([]*big.Int, len(pool.Tokens))
	nativeIndex := -1
	for i, token := range req.TokensOut {
		if !common.IsHexAddress(token) {
			return model.ExitResult{}, fmt.Errorf("%w: invalid token %s", model.ErrTokenMismatch, token)
		}
		idx, native, err := poolstate.IndexOf(pool, common.HexToAddress(token), b.cfg.WrappedNativeAsset)
		if err != nil {
			return model.ExitResult{}, err
		}
		if requested[idx] != nil {
			return model.ExitResult{}, fmt.Errorf("%w: duplicate token %s", model.ErrTokenMismatch, token)
		}
		if native {
			nativeIndex = idx
		}
		requested[idx], err = fixedpoint.ParseInteger(req.AmountsOut[i])
		if err != nil {
			return model.ExitResult{}, fmt.Errorf("amount out of %s: %w", token, err)
		}
	}

	state, err := poolstate.ParseStable(pool)
	if err != nil {
		return model.ExitResult{}, err
	}
	poolID, err := vault.ParsePoolID(pool.ID)
	if err != nil {
		return model.ExitResult{}, err
	}

	normalizedAmounts := make([]*big.Int, len(requested))
	for i, amount := range requested {
		token := state.Tokens[i]
		if amount.Cmp(token.Balance) > 0 {
			return model.ExitResult{}, fmt.Errorf("%w: amount %s exceeds balance %s of %s", model.ErrInputOutOfBounds, amount, token.Balance, token.Address)
		}
		if token.Balance.Sign() == 0 && amount.Sign() > 0 {
			return model.ExitResult{}, fmt.Errorf("%w: token %s has zero balance", model.ErrInputOutOfBounds, token.Address)
		}
		normalizedAmounts[i] = scaling.Normalize(amount, token.Decimals, token.PriceRate)
	}

	perm := assets.Permutation(state.Addresses)
	sortedAddresses, err := assets.Apply(perm, state.Addresses)
	if err != nil {
		return model.ExitResult{}, err
	}
	sortedBalances, err := assets.Apply(perm, state.NormalizedBalances())
	if err != nil {
		return model.ExitResult{}, err
	}
	sortedNormalizedAmounts, err := assets.Apply(perm, normalizedAmounts)
	if err != nil {
		return model.ExitResult{}, err
	}
	sortedAmounts, err := assets.Apply(perm, requested)
	if err != nil {
		return model.ExitResult{}, err
	}

	expectedBPTIn, err := stablemath.TokensOutToSharesIn(state.Amp, sortedBalances, sortedNormalizedAmounts, state.TotalShares, state.SwapFee)
	if err != nil {
		return model.ExitResult{}, err
	}
	maxBPTIn, err := slippage.AddSlippage(expectedBPTIn, slip)
	if err != nil {
		return model.ExitResult{}, err
	}

	userData, err := vault.EncodeExitBPTInForExactTokensOut(sortedAmounts, maxBPTIn)
	if err != nil {
		return model.ExitResult{}, fmt.Errorf("encode user data: %w", err)
	}

	if nativeIndex >= 0 {
		sortedAddresses[sortedIndex(perm, nativeIndex)] = common.Address{}
	}

	call := vault.ExitPoolCall{
		PoolID:    poolID,
		Sender:    exiter,
		Recipient: exiter,
		Request: vault.ExitPoolRequest{
			Assets:        sortedAddresses,
			MinAmountsOut: sortedAmounts,
			UserData:      userData,
		},
	}
	result, err := b.result(call)
	if err != nil {
		return model.ExitResult{}, err
	}
	result.ExpectedBPTIn = expectedBPTIn.String()
	result.MaxBPTIn = maxBPTIn.String()
	return result, nil
}

func (b *Builder) result(call vault.ExitPoolCall) (model.ExitResult, error) {
	data, err := call.Pack()
	if err != nil {
		return model.ExitResult{}, err
	}
	return model.ExitResult{
		To:           b.cfg.Vault.Hex(),
		FunctionName: vault.ExitPoolMethod,
		Attributes:   call.Attributes(),
		Data:         hexutil.Encode(data),
	}, nil
}

func checkExitable(pool model.PoolSnapshot) error {
	if !pool.PoolType.HasStableExitKinds() {
		return fmt.Errorf("%w: no stable exit encoding for %s", model.ErrUnsupportedPoolType, pool.PoolType)
	}
	return nil
}

func parseExiter(input string) (common.Address, error) {
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("%w: invalid exiter address %q", model.ErrInputOutOfBounds, input)
	}
	return common.HexToAddress(input), nil
}

// sortedIndex returns where snapshot index idx lands after applying perm.
func sortedIndex(perm []int, idx int) int {
	for pos, from := range perm {
		if from == idx {
			return pos
		}
	}
	return -1
}

func bigStrings(values []*big.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}
