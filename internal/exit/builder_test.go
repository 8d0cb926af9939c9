package exit

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolexit/internal/model"
	"poolexit/internal/vault"
)

const (
	tokenA  = "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"
	tokenB  = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	exiter  = "0x1111111111111111111111111111111111111111"
	poolID  = "0x06df3b2bbb68adc8b0e302443692037ed9f91b42000000000000000000000063"
	onePerc = "10000000000000000"
)

var testConfig = Config{
	Vault:              common.HexToAddress("0xBA12222222228d8Ba445958a75a0704d566BF2C8"),
	WrappedNativeAsset: common.HexToAddress(tokenA),
}

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// tokenA sorts after tokenB, so the sorted order is B, A.
func stablePool() model.PoolSnapshot {
	return model.PoolSnapshot{
		ID:       poolID,
		Address:  "0x06Df3b2bbB68adc8B0e302443692037ED9f91b42",
		PoolType: model.PoolTypeMetaStable,
		Tokens: []model.TokenInfo{
			{Address: tokenA, Decimals: model.Uint8Ptr(18), Balance: e18(1000).String(), PriceRate: e18(1).String()},
			{Address: tokenB, Decimals: model.Uint8Ptr(18), Balance: e18(2000).String(), PriceRate: e18(1).String()},
		},
		Amp:         "100",
		SwapFee:     "0.001",
		TotalShares: e18(3000).String(),
	}
}

func TestBuildExactSharesInProportional(t *testing.T) {
	builder := NewBuilder(testConfig)
	result, err := builder.BuildExactSharesIn(model.ExactSharesInRequest{
		Exiter:   exiter,
		SharesIn: e18(300).String(),
		Slippage: onePerc,
	}, stablePool())
	require.NoError(t, err)

	assert.Equal(t, testConfig.Vault.Hex(), result.To)
	assert.Equal(t, vault.ExitPoolMethod, result.FunctionName)
	assert.Equal(t, []string{e18(200).String(), e18(100).String()}, result.ExpectedAmountsOut)
	assert.Equal(t, []string{e18(198).String(), e18(99).String()}, result.MinAmountsOut)

	attrs := result.Attributes
	assert.Equal(t, poolID, attrs.PoolID)
	assert.Equal(t, common.HexToAddress(exiter).Hex(), attrs.Sender)
	assert.Equal(t, attrs.Sender, attrs.Recipient)
	assert.Equal(t, []string{common.HexToAddress(tokenB).Hex(), common.HexToAddress(tokenA).Hex()}, attrs.ExitPoolRequest.Assets)
	assert.Equal(t, result.MinAmountsOut, attrs.ExitPoolRequest.MinAmountsOut)
	assert.False(t, attrs.ExitPoolRequest.ToInternalBalance)

	wantUserData, err := vault.EncodeExitExactBPTInForTokensOut(e18(300))
	require.NoError(t, err)
	assert.Equal(t, hexutil.Encode(wantUserData), attrs.ExitPoolRequest.UserData)

	data, err := hexutil.Decode(result.Data)
	require.NoError(t, err)
	parsed, err := vault.VaultABI()
	require.NoError(t, err)
	assert.Equal(t, parsed.Methods[vault.ExitPoolMethod].ID, data[:4])
}

func TestBuildExactSharesInFullSupply(t *testing.T) {
	builder := NewBuilder(testConfig)
	result, err := builder.BuildExactSharesIn(model.ExactSharesInRequest{
		Exiter:   exiter,
		SharesIn: e18(3000).String(),
	}, stablePool())
	require.NoError(t, err)
	assert.Equal(t, []string{e18(2000).String(), e18(1000).String()}, result.ExpectedAmountsOut)
	assert.Equal(t, result.ExpectedAmountsOut, result.MinAmountsOut)
}

func TestBuildExactSharesInSingleToken(t *testing.T) {
	builder := NewBuilder(testConfig)
	result, err := builder.BuildExactSharesIn(model.ExactSharesInRequest{
		Exiter:         exiter,
		SharesIn:       e18(30).String(),
		Slippage:       onePerc,
		SingleTokenOut: tokenB,
	}, stablePool())
	require.NoError(t, err)

	require.Len(t, result.ExpectedAmountsOut, 2)
	assert.Equal(t, "0", result.ExpectedAmountsOut[1])
	assert.Equal(t, "0", result.MinAmountsOut[1])

	out, ok := new(big.Int).SetString(result.ExpectedAmountsOut[0], 10)
	require.True(t, ok)
	// about a hundredth of the invariant
	assert.True(t, out.Cmp(e18(29)) > 0, "amount out %s", out)
	assert.True(t, out.Cmp(e18(31)) < 0, "amount out %s", out)

	wantUserData, err := vault.EncodeExitExactBPTInForOneTokenOut(e18(30), 0)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Encode(wantUserData), result.Attributes.ExitPoolRequest.UserData)
}

func TestBuildExactSharesInNativeAsset(t *testing.T) {
	builder := NewBuilder(testConfig)
	result, err := builder.BuildExactSharesIn(model.ExactSharesInRequest{
		Exiter:         exiter,
		SharesIn:       e18(30).String(),
		SingleTokenOut: common.Address{}.Hex(),
	}, stablePool())
	require.NoError(t, err)

	assets := result.Attributes.ExitPoolRequest.Assets
	assert.Equal(t, common.HexToAddress(tokenB).Hex(), assets[0])
	assert.Equal(t, common.Address{}.Hex(), assets[1])
	assert.Equal(t, "0", result.ExpectedAmountsOut[0])
	assert.NotEqual(t, "0", result.ExpectedAmountsOut[1])
}

func TestBuildExactSharesInDeterministic(t *testing.T) {
	builder := NewBuilder(testConfig)
	req := model.ExactSharesInRequest{Exiter: exiter, SharesIn: e18(10).String(), Slippage: onePerc, SingleTokenOut: tokenA}
	first, err := builder.BuildExactSharesIn(req, stablePool())
	require.NoError(t, err)
	second, err := builder.BuildExactSharesIn(req, stablePool())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildExactSharesInErrors(t *testing.T) {
	builder := NewBuilder(testConfig)
	base := model.ExactSharesInRequest{Exiter: exiter, SharesIn: e18(10).String()}

	t.Run("unknown token before arithmetic", func(t *testing.T) {
		pool := stablePool()
		pool.Amp = ""
		req := base
		req.SingleTokenOut = "0x9999999999999999999999999999999999999999"
		_, err := builder.BuildExactSharesIn(req, pool)
		assert.True(t, errors.Is(err, model.ErrTokenMismatch), "got %v", err)
	})
	t.Run("missing amp", func(t *testing.T) {
		pool := stablePool()
		pool.Amp = ""
		_, err := builder.BuildExactSharesIn(base, pool)
		assert.True(t, errors.Is(err, model.ErrMissingAmp), "got %v", err)
	})
	t.Run("missing decimals", func(t *testing.T) {
		pool := stablePool()
		pool.Tokens[0].Decimals = nil
		_, err := builder.BuildExactSharesIn(base, pool)
		assert.True(t, errors.Is(err, model.ErrMissingDecimals), "got %v", err)
	})
	t.Run("missing price rate", func(t *testing.T) {
		pool := stablePool()
		pool.Tokens[1].PriceRate = ""
		_, err := builder.BuildExactSharesIn(base, pool)
		assert.True(t, errors.Is(err, model.ErrMissingPriceRate), "got %v", err)
	})
	t.Run("shares above supply", func(t *testing.T) {
		req := base
		req.SharesIn = e18(3001).String()
		_, err := builder.BuildExactSharesIn(req, stablePool())
		assert.True(t, errors.Is(err, model.ErrInputOutOfBounds), "got %v", err)
	})
	t.Run("weighted pool", func(t *testing.T) {
		pool := stablePool()
		pool.PoolType = model.PoolTypeWeighted
		_, err := builder.BuildExactSharesIn(base, pool)
		assert.True(t, errors.Is(err, model.ErrUnsupportedPoolType), "got %v", err)
	})
	t.Run("phantom stable pool", func(t *testing.T) {
		pool := stablePool()
		pool.PoolType = model.PoolTypePhantomStable
		req := base
		req.SingleTokenOut = tokenB
		_, err := builder.BuildExactSharesIn(req, pool)
		assert.True(t, errors.Is(err, model.ErrUnsupportedPoolType), "got %v", err)
	})
	t.Run("bad exiter", func(t *testing.T) {
		req := base
		req.Exiter = "not-an-address"
		_, err := builder.BuildExactSharesIn(req, stablePool())
		assert.True(t, errors.Is(err, model.ErrInputOutOfBounds), "got %v", err)
	})
}

func TestBuildExactTokensOut(t *testing.T) {
	builder := NewBuilder(testConfig)
	result, err := builder.BuildExactTokensOut(model.ExactTokensOutRequest{
		Exiter:     exiter,
		TokensOut:  []string{tokenA, tokenB},
		AmountsOut: []string{e18(100).String(), e18(200).String()},
		Slippage:   onePerc,
	}, stablePool())
	require.NoError(t, err)

	// limits are the exact amounts in sorted order
	assert.Equal(t, []string{e18(200).String(), e18(100).String()}, result.Attributes.ExitPoolRequest.MinAmountsOut)

	expected, ok := new(big.Int).SetString(result.ExpectedBPTIn, 10)
	require.True(t, ok)
	maxIn, ok := new(big.Int).SetString(result.MaxBPTIn, 10)
	require.True(t, ok)

	// a proportional withdrawal of a tenth burns about a tenth of the supply
	diff := new(big.Int).Sub(expected, e18(300))
	diff.Abs(diff)
	assert.True(t, diff.Cmp(e18(1)) < 0, "expected bpt in %s", expected)
	assert.True(t, maxIn.Cmp(expected) > 0)

	wantMax := new(big.Int).Mul(expected, big.NewInt(101))
	wantMax.Quo(wantMax, big.NewInt(100))
	diff.Sub(maxIn, wantMax).Abs(diff)
	assert.True(t, diff.Cmp(big.NewInt(2)) < 0, "max bpt in %s, want about %s", maxIn, wantMax)

	wantUserData, err := vault.EncodeExitBPTInForExactTokensOut([]*big.Int{e18(200), e18(100)}, maxIn)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Encode(wantUserData), result.Attributes.ExitPoolRequest.UserData)
	assert.Empty(t, result.ExpectedAmountsOut)
}

func TestBuildExactTokensOutNativeAsset(t *testing.T) {
	builder := NewBuilder(testConfig)
	result, err := builder.BuildExactTokensOut(model.ExactTokensOutRequest{
		Exiter:     exiter,
		TokensOut:  []string{tokenB, common.Address{}.Hex()},
		AmountsOut: []string{e18(20).String(), e18(10).String()},
	}, stablePool())
	require.NoError(t, err)
	assets := result.Attributes.ExitPoolRequest.Assets
	assert.Equal(t, []string{common.HexToAddress(tokenB).Hex(), common.Address{}.Hex()}, assets)
	assert.Equal(t, []string{e18(20).String(), e18(10).String()}, result.Attributes.ExitPoolRequest.MinAmountsOut)
}

func TestBuildExactTokensOutErrors(t *testing.T) {
	builder := NewBuilder(testConfig)

	cases := []struct {
		name string
		req  model.ExactTokensOutRequest
		want error
	}{
		{
			name: "length mismatch",
			req:  model.ExactTokensOutRequest{Exiter: exiter, TokensOut: []string{tokenA, tokenB}, AmountsOut: []string{"1"}},
			want: model.ErrInputLengthMismatch,
		},
		{
			name: "pool size mismatch",
			req:  model.ExactTokensOutRequest{Exiter: exiter, TokensOut: []string{tokenA}, AmountsOut: []string{"1"}},
			want: model.ErrInputLengthMismatch,
		},
		{
			name: "unknown token",
			req: model.ExactTokensOutRequest{
				Exiter:     exiter,
				TokensOut:  []string{tokenA, "0x9999999999999999999999999999999999999999"},
				AmountsOut: []string{"1", "1"},
			},
			want: model.ErrTokenMismatch,
		},
		{
			name: "duplicate token",
			req:  model.ExactTokensOutRequest{Exiter: exiter, TokensOut: []string{tokenA, tokenA}, AmountsOut: []string{"1", "1"}},
			want: model.ErrTokenMismatch,
		},
		{
			name: "amount above balance",
			req: model.ExactTokensOutRequest{
				Exiter:     exiter,
				TokensOut:  []string{tokenA, tokenB},
				AmountsOut: []string{e18(1001).String(), "1"},
			},
			want: model.ErrInputOutOfBounds,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := builder.BuildExactTokensOut(tc.req, stablePool())
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestBuildExactTokensOutPhantomStable(t *testing.T) {
	pool := stablePool()
	pool.PoolType = model.PoolTypePhantomStable
	_, err := NewBuilder(testConfig).BuildExactTokensOut(model.ExactTokensOutRequest{
		Exiter:     exiter,
		TokensOut:  []string{tokenA, tokenB},
		AmountsOut: []string{e18(1).String(), e18(1).String()},
	}, pool)
	assert.True(t, errors.Is(err, model.ErrUnsupportedPoolType), "got %v", err)
}

// tokenA has 6 decimals and a price rate of 2, so its 500e6 balance counts as
// 1000 in the invariant.
func ratedPool() model.PoolSnapshot {
	pool := stablePool()
	pool.Tokens[0].Decimals = model.Uint8Ptr(6)
	pool.Tokens[0].Balance = "500000000"
	pool.Tokens[0].PriceRate = e18(2).String()
	return pool
}

func TestBuildExactSharesInRatedToken(t *testing.T) {
	result, err := NewBuilder(testConfig).BuildExactSharesIn(model.ExactSharesInRequest{
		Exiter:   exiter,
		SharesIn: e18(300).String(),
	}, ratedPool())
	require.NoError(t, err)
	// sorted order is B, A; amounts come back in native units
	assert.Equal(t, []string{e18(200).String(), "50000000"}, result.ExpectedAmountsOut)
}

func TestExitModesAgreeWithRatedToken(t *testing.T) {
	builder := NewBuilder(testConfig)
	pool := ratedPool()

	single, err := builder.BuildExactSharesIn(model.ExactSharesInRequest{
		Exiter:         exiter,
		SharesIn:       e18(30).String(),
		SingleTokenOut: tokenB,
	}, pool)
	require.NoError(t, err)
	amountB := single.ExpectedAmountsOut[0]

	inverse, err := builder.BuildExactTokensOut(model.ExactTokensOutRequest{
		Exiter:     exiter,
		TokensOut:  []string{tokenA, tokenB},
		AmountsOut: []string{"0", amountB},
	}, pool)
	require.NoError(t, err)

	bptIn, ok := new(big.Int).SetString(inverse.ExpectedBPTIn, 10)
	require.True(t, ok)
	diff := new(big.Int).Sub(bptIn, e18(30))
	diff.Abs(diff)
	// within 0.01% of the shares that produced the amount
	assert.True(t, diff.Cmp(new(big.Int).Div(e18(30), big.NewInt(10000))) < 0, "bpt in %s", bptIn)
}
