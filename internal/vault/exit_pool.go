// Package vault encodes calls to the vault contract.
package vault

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"poolexit/internal/model"
)

// ExitPoolMethod is the vault method used for withdrawals.
const ExitPoolMethod = "exitPool"

// ExitKind values understood by stable-family pools.
const (
	ExitExactBPTInForOneTokenOut int64 = 0
	ExitExactBPTInForTokensOut   int64 = 1
	ExitBPTInForExactTokensOut   int64 = 2
)

// ExitPoolRequest is the tuple argument of exitPool. Field names match the
// ABI component names.
type ExitPoolRequest struct {
	Assets            []common.Address
	MinAmountsOut     []*big.Int
	UserData          []byte
	ToInternalBalance bool
}

// ExitPoolCall holds the arguments of a single exitPool call.
type ExitPoolCall struct {
	PoolID    [32]byte
	Sender    common.Address
	Recipient common.Address
	Request   ExitPoolRequest
}

// Pack returns the ABI-encoded calldata, selector included.
func (c ExitPoolCall) Pack() ([]byte, error) {
	if len(c.Request.Assets) != len(c.Request.MinAmountsOut) {
		return nil, fmt.Errorf("%w: %d assets, %d limits", model.ErrInputLengthMismatch, len(c.Request.Assets), len(c.Request.MinAmountsOut))
	}
	parsed, err := VaultABI()
	if err != nil {
		return nil, fmt.Errorf("parse vault abi: %w", err)
	}
	data, err := parsed.Pack(ExitPoolMethod, c.PoolID, c.Sender, c.Recipient, c.Request)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", ExitPoolMethod, err)
	}
	return data, nil
}

// Attributes renders the call arguments in their string form.
func (c ExitPoolCall) Attributes() model.ExitPoolAttributes {
	assets := make([]string, len(c.Request.Assets))
	for i, asset := range c.Request.Assets {
		assets[i] = asset.Hex()
	}
	limits := make([]string, len(c.Request.MinAmountsOut))
	for i, limit := range c.Request.MinAmountsOut {
		limits[i] = limit.String()
	}
	return model.ExitPoolAttributes{
		PoolID:    hexutil.Encode(c.PoolID[:]),
		Sender:    c.Sender.Hex(),
		Recipient: c.Recipient.Hex(),
		ExitPoolRequest: model.ExitPoolRequest{
			Assets:            assets,
			MinAmountsOut:     limits,
			UserData:          hexutil.Encode(c.Request.UserData),
			ToInternalBalance: c.Request.ToInternalBalance,
		},
	}
}

// ParsePoolID decodes a 32-byte hex pool id.
func ParsePoolID(input string) ([32]byte, error) {
	var id [32]byte
	data, err := hexutil.Decode(strings.TrimSpace(input))
	if err != nil {
		return id, fmt.Errorf("%w: invalid pool id %q: %v", model.ErrInputOutOfBounds, input, err)
	}
	if len(data) != 32 {
		return id, fmt.Errorf("%w: pool id length %d", model.ErrInputOutOfBounds, len(data))
	}
	copy(id[:], data)
	return id, nil
}

var (
	uint256Type, _      = abi.NewType("uint256", "", nil)
	uint256ArrayType, _ = abi.NewType("uint256[]", "", nil)

	oneTokenOutArgs    = abi.Arguments{{Type: uint256Type}, {Type: uint256Type}, {Type: uint256Type}}
	tokensOutArgs      = abi.Arguments{{Type: uint256Type}, {Type: uint256Type}}
	exactTokensOutArgs = abi.Arguments{{Type: uint256Type}, {Type: uint256ArrayType}, {Type: uint256Type}}
)

// EncodeExitExactBPTInForOneTokenOut encodes (0, bptAmountIn, exitTokenIndex).
func EncodeExitExactBPTInForOneTokenOut(bptAmountIn *big.Int, exitTokenIndex int) ([]byte, error) {
	return oneTokenOutArgs.Pack(big.NewInt(ExitExactBPTInForOneTokenOut), bptAmountIn, big.NewInt(int64(exitTokenIndex)))
}

// EncodeExitExactBPTInForTokensOut encodes (1, bptAmountIn).
func EncodeExitExactBPTInForTokensOut(bptAmountIn *big.Int) ([]byte, error) {
	return tokensOutArgs.Pack(big.NewInt(ExitExactBPTInForTokensOut), bptAmountIn)
}

// EncodeExitBPTInForExactTokensOut encodes (2, amountsOut, maxBPTAmountIn).
func EncodeExitBPTInForExactTokensOut(amountsOut []*big.Int, maxBPTAmountIn *big.Int) ([]byte, error) {
	return exactTokensOutArgs.Pack(big.NewInt(ExitBPTInForExactTokensOut), amountsOut, maxBPTAmountIn)
}
