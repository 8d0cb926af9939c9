package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"poolexit/internal/exit"
	"poolexit/internal/fixedpoint"
)

const (
	// DefaultVault is the vault deployment shared by the main networks.
	DefaultVault = "0xBA12222222228d8Ba445958a75a0704d566BF2C8"
	// DefaultWrappedNative is WETH on Ethereum mainnet.
	DefaultWrappedNative = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Vault         string
	WrappedNative string
	// Slippage is a human fraction, e.g. "0.005" for half a percent.
	Slippage     string
	RPCURL       string
	PGDSN        string
	Snapshot     string
	PoolID       string
	PoolType     string
	Exiter       string
	Shares       string
	TokenOut     string
	Tokens       []string
	Amounts      []string
	PriceUSD     map[string]string
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLEXIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("vault", DefaultVault)
	v.SetDefault("wrapped-native", DefaultWrappedNative)
	v.SetDefault("slippage", "0.005")
	v.SetDefault("snapshot", "./data/pool.json")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Vault:         v.GetString("vault"),
		WrappedNative: v.GetString("wrapped-native"),
		Slippage:      v.GetString("slippage"),
		RPCURL:        v.GetString("rpc"),
		PGDSN:         v.GetString("pg-dsn"),
		Snapshot:      v.GetString("snapshot"),
		PoolID:        v.GetString("pool-id"),
		PoolType:      v.GetString("pool-type"),
		Exiter:        v.GetString("exiter"),
		Shares:        v.GetString("shares"),
		TokenOut:      v.GetString("token-out"),
		Tokens:        stringList(v, "tokens"),
		Amounts:       stringList(v, "amounts"),
		PriceUSD:      stringMap(v, "price-usd"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}

// ExitConfig validates the deployment addresses.
func (c Config) ExitConfig() (exit.Config, error) {
	if !common.IsHexAddress(c.Vault) {
		return exit.Config{}, fmt.Errorf("invalid vault address %q", c.Vault)
	}
	if !common.IsHexAddress(c.WrappedNative) {
		return exit.Config{}, fmt.Errorf("invalid wrapped native address %q", c.WrappedNative)
	}
	return exit.Config{
		Vault:              common.HexToAddress(c.Vault),
		WrappedNativeAsset: common.HexToAddress(c.WrappedNative),
	}, nil
}

// SlippageFraction returns the slippage as an 18-decimal integer string.
func (c Config) SlippageFraction() (string, error) {
	if strings.TrimSpace(c.Slippage) == "" {
		return "0", nil
	}
	s, err := fixedpoint.ParseFixed(strings.TrimSpace(c.Slippage), fixedpoint.Decimals)
	if err != nil {
		return "", fmt.Errorf("slippage: %w", err)
	}
	if s.Cmp(fixedpoint.One) > 0 {
		return "", fmt.Errorf("slippage %s above 1", c.Slippage)
	}
	return s.String(), nil
}

// stringList flattens a flag slice, a config-file list or a comma-separated
// env value into trimmed, non-empty items.
func stringList(v *viper.Viper, key string) []string {
	var out []string
	for _, raw := range v.GetStringSlice(key) {
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// stringMap reads a config-file table or a "key=value,key=value" string.
func stringMap(v *viper.Viper, key string) map[string]string {
	if raw, ok := v.Get(key).(string); ok {
		return parseStringMap(raw)
	}
	out := make(map[string]string)
	for k, value := range v.GetStringMapString(key) {
		if value = strings.TrimSpace(value); value != "" {
			out[k] = value
		}
	}
	return out
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(input, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
