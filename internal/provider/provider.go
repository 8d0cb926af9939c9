// Package provider reads pool snapshots from chain.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolexit/internal/fixedpoint"
	"poolexit/internal/model"
	"poolexit/internal/vault"
)

// ContractCaller is the subset of the chain client the provider needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Config controls where and how the provider reads.
type Config struct {
	Vault        common.Address
	MaxRetries   int
	RetryBackoff time.Duration
}

// Provider builds model.PoolSnapshot values from vault and pool getters.
type Provider struct {
	caller ContractCaller
	vault  common.Address
	retry  retryPolicy
	logger *zap.Logger
	tokens *tokenCache
}

// New returns a Provider. A nil logger disables logging.
func New(caller ContractCaller, cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{
		caller: caller,
		vault:  cfg.Vault,
		logger: logger,
		tokens: newTokenCache(),
	}
	p.retry = retryPolicy{
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBackoff,
		onRetry: func(attempt int, delay time.Duration, err error) {
			logger.Warn("rpc call failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		},
	}
	return p
}

// FetchPool reads the snapshot of poolID at blockNumber (nil for latest).
// The pool address is the first 20 bytes of the pool id.
func (p *Provider) FetchPool(ctx context.Context, poolID string, poolType model.PoolType, blockNumber *big.Int) (model.PoolSnapshot, error) {
	if p.caller == nil {
		return model.PoolSnapshot{}, fmt.Errorf("contract caller is nil")
	}
	id, err := vault.ParsePoolID(poolID)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	poolAddress := common.BytesToAddress(id[:20])

	vaultABI, err := vault.VaultABI()
	if err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("parse vault abi: %w", err)
	}
	poolABI, err := PoolABI()
	if err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := p.call(ctx, p.vault, vaultABI, "getPoolTokens", blockNumber, id)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	if len(values) < 2 {
		return model.PoolSnapshot{}, fmt.Errorf("getPoolTokens return size %d", len(values))
	}
	addresses, ok := values[0].([]common.Address)
	if !ok {
		return model.PoolSnapshot{}, fmt.Errorf("getPoolTokens unexpected tokens type %T", values[0])
	}
	balances, ok := values[1].([]*big.Int)
	if !ok || len(balances) != len(addresses) {
		return model.PoolSnapshot{}, fmt.Errorf("getPoolTokens unexpected balances %T", values[1])
	}

	snapshot := model.PoolSnapshot{
		ID:       hexID(id),
		Address:  poolAddress.Hex(),
		PoolType: poolType,
	}
	if blockNumber != nil {
		snapshot.BlockNumber = blockNumber.Uint64()
	}

	for i, address := range addresses {
		// phantom pools register their own share token in the vault
		if poolType == model.PoolTypePhantomStable && address == poolAddress {
			continue
		}
		meta, err := p.fetchTokenMeta(ctx, address)
		if err != nil {
			return model.PoolSnapshot{}, err
		}
		token := model.TokenInfo{
			Address:  address.Hex(),
			Symbol:   meta.symbol,
			Decimals: model.Uint8Ptr(meta.decimals),
			Balance:  balances[i].String(),
		}
		if rate, err := p.priceRate(ctx, poolABI, poolAddress, poolType, address, blockNumber); err != nil {
			return model.PoolSnapshot{}, err
		} else if rate != nil {
			token.PriceRate = rate.String()
		}
		snapshot.Tokens = append(snapshot.Tokens, token)
	}

	if poolType.IsStableFamily() {
		values, err := p.call(ctx, poolAddress, poolABI, "getAmplificationParameter", blockNumber)
		if err != nil {
			return model.PoolSnapshot{}, err
		}
		amp, err := asBigInt(values[0])
		if err != nil {
			return model.PoolSnapshot{}, fmt.Errorf("amp: %w", err)
		}
		precision, err := asBigInt(values[2])
		if err != nil || precision.Sign() == 0 {
			return model.PoolSnapshot{}, fmt.Errorf("amp precision: %v", values[2])
		}
		snapshot.Amp = decimal.NewFromBigInt(amp, 0).Div(decimal.NewFromBigInt(precision, 0)).String()
	}

	if poolType == model.PoolTypeWeighted {
		values, err := p.call(ctx, poolAddress, poolABI, "getNormalizedWeights", blockNumber)
		if err != nil {
			return model.PoolSnapshot{}, err
		}
		weights, ok := values[0].([]*big.Int)
		if !ok || len(weights) != len(snapshot.Tokens) {
			return model.PoolSnapshot{}, fmt.Errorf("getNormalizedWeights unexpected value %T", values[0])
		}
		for i, weight := range weights {
			snapshot.Tokens[i].Weight = fixedpoint.Format(weight, fixedpoint.Decimals)
		}
	}

	values, err = p.call(ctx, poolAddress, poolABI, "getSwapFeePercentage", blockNumber)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	fee, err := asBigInt(values[0])
	if err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("swap fee: %w", err)
	}
	snapshot.SwapFee = fixedpoint.Format(fee, fixedpoint.Decimals)

	supplyMethod := "totalSupply"
	if poolType == model.PoolTypePhantomStable {
		supplyMethod = "getVirtualSupply"
	}
	values, err = p.call(ctx, poolAddress, poolABI, supplyMethod, blockNumber)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	supply, err := asBigInt(values[0])
	if err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("%s: %w", supplyMethod, err)
	}
	snapshot.TotalShares = supply.String()

	p.logger.Debug("pool snapshot fetched",
		zap.String("pool_id", snapshot.ID),
		zap.String("pool_type", poolType.String()),
		zap.Int("tokens", len(snapshot.Tokens)),
	)
	return snapshot, nil
}

func (p *Provider) priceRate(ctx context.Context, poolABI abi.ABI, pool common.Address, poolType model.PoolType, token common.Address, block *big.Int) (*big.Int, error) {
	var method string
	switch poolType {
	case model.PoolTypeMetaStable:
		method = "getPriceRateCache"
	case model.PoolTypePhantomStable:
		method = "getTokenRate"
	default:
		return nil, nil
	}
	values, err := p.call(ctx, pool, poolABI, method, block, token)
	if err != nil {
		return nil, err
	}
	rate, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	// an unset cache reads as zero and means identity
	if rate.Sign() == 0 {
		return new(big.Int).Set(fixedpoint.One), nil
	}
	return rate, nil
}

func (p *Provider) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	var values []interface{}
	err = p.retry.do(ctx, func(ctx context.Context) error {
		msg := ethereum.CallMsg{To: &to, Data: data}
		resp, err := p.caller.CallContract(ctx, msg, block)
		if err != nil {
			if isRevert(err) {
				return fmt.Errorf("call %s: %w: %w", method, errPermanent, err)
			}
			return fmt.Errorf("call %s: %w", method, err)
		}
		values, err = parsed.Unpack(method, resp)
		if err != nil {
			return fmt.Errorf("unpack %s: %w: %w", method, errPermanent, err)
		}
		if len(values) == 0 {
			return fmt.Errorf("%s: %w: empty return", method, errPermanent)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// isRevert reports whether an eth_call failed inside the EVM. Other RPC errors
// (rate limits, timeouts) stay retryable.
func isRevert(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertErrorCode {
		return true
	}
	var dataErr rpc.DataError
	return errors.As(err, &dataErr) && strings.Contains(dataErr.Error(), "execution reverted")
}

func (p *Provider) fetchTokenMeta(ctx context.Context, token common.Address) (tokenMeta, error) {
	if meta, ok := p.tokens.Get(token); ok {
		return meta, nil
	}
	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return tokenMeta{}, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return tokenMeta{}, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	var meta tokenMeta
	values, err := p.call(ctx, token, stringABI, "decimals", nil)
	if err != nil {
		return meta, fmt.Errorf("decimals of %s: %w", token.Hex(), err)
	}
	meta.decimals, err = asUint8(values[0])
	if err != nil {
		return meta, fmt.Errorf("decimals of %s: %w", token.Hex(), err)
	}

	if values, err := p.call(ctx, token, stringABI, "symbol", nil); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.symbol = symbol
		}
	} else if values, err := p.call(ctx, token, bytes32ABI, "symbol", nil); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.symbol = symbol
		}
	} else {
		p.logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	p.tokens.Set(token, meta)
	return meta, nil
}

// tokenMeta is the ERC20 metadata that does not change between blocks.
type tokenMeta struct {
	decimals uint8
	symbol   string
}

// tokenCache caches token metadata by address.
type tokenCache struct {
	mu   sync.RWMutex
	data map[common.Address]tokenMeta
}

func newTokenCache() *tokenCache {
	return &tokenCache{data: make(map[common.Address]tokenMeta)}
}

func (c *tokenCache) Get(address common.Address) (tokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *tokenCache) Set(address common.Address, meta tokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

func hexID(id [32]byte) string {
	return "0x" + common.Bytes2Hex(id[:])
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("decimals out of range: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
