package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"poolexit/internal/config"
	"poolexit/internal/exit"
	"poolexit/internal/liquidity"
	"poolexit/internal/model"
	"poolexit/internal/pools"
	"poolexit/internal/storage"
	"poolexit/internal/storage/postgres"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "poolexit",
		Short:        "Stable pool exit, pricing and liquidity calculator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	exitCmd := &cobra.Command{
		Use:   "exit",
		Short: "Build exitPool transactions",
	}

	sharesCmd := &cobra.Command{
		Use:   "shares",
		Short: "Exit with an exact amount of pool shares",
		RunE:  runExitShares,
	}
	snapshotFlags(sharesCmd.Flags())
	exitFlags(sharesCmd.Flags())
	sharesCmd.Flags().String("shares", "", "pool shares to burn (base units)")
	sharesCmd.Flags().String("token-out", "", "single token to receive; zero address for the native asset")

	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Exit for exact token amounts",
		RunE:  runExitTokens,
	}
	snapshotFlags(tokensCmd.Flags())
	exitFlags(tokensCmd.Flags())
	tokensCmd.Flags().StringSlice("tokens", nil, "tokens to receive (comma-separated)")
	tokensCmd.Flags().StringSlice("amounts", nil, "amounts to receive in base units (comma-separated)")

	exitCmd.AddCommand(sharesCmd, tokensCmd)
	root.AddCommand(exitCmd)

	spotCmd := &cobra.Command{
		Use:   "spot-price",
		Short: "Spot price of the second token in units of the first",
		RunE:  runSpotPrice,
	}
	snapshotFlags(spotCmd.Flags())
	spotCmd.Flags().StringSlice("tokens", nil, "token in, token out")
	root.AddCommand(spotCmd)

	impactCmd := &cobra.Command{
		Use:   "price-impact",
		Short: "Price impact of an exit",
		RunE:  runPriceImpact,
	}
	snapshotFlags(impactCmd.Flags())
	exitFlags(impactCmd.Flags())
	impactCmd.Flags().String("shares", "", "pool shares to burn (base units)")
	impactCmd.Flags().String("token-out", "", "single token to receive")
	impactCmd.Flags().StringSlice("tokens", nil, "tokens to receive (comma-separated)")
	impactCmd.Flags().StringSlice("amounts", nil, "amounts to receive in base units (comma-separated)")
	root.AddCommand(impactCmd)

	liquidityCmd := &cobra.Command{
		Use:   "liquidity",
		Short: "USD liquidity of a pool",
		RunE:  runLiquidity,
	}
	snapshotFlags(liquidityCmd.Flags())
	liquidityCmd.Flags().StringToString("price-usd", nil, "token=price overrides")
	root.AddCommand(liquidityCmd)

	root.AddCommand(newSnapshotCmd())

	return root
}

func snapshotFlags(flags *pflag.FlagSet) {
	flags.String("snapshot", "./data/pool.json", "pool snapshot JSON file")
	flags.String("pg-dsn", "", "Postgres DSN; with --pool-id loads the snapshot from Postgres")
	flags.String("pool-id", "", "pool id (bytes32 hex)")
	flags.String("pool-type", "", "override the snapshot pool type")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func exitFlags(flags *pflag.FlagSet) {
	flags.String("exiter", "", "sender and recipient of the exit")
	flags.String("slippage", "0.005", "slippage tolerance as a fraction")
	flags.String("vault", config.DefaultVault, "vault address")
	flags.String("wrapped-native", config.DefaultWrappedNative, "wrapped native asset address")
}

// app bundles what every subcommand needs.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *pools.Registry
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	exitCfg, err := cfg.ExitConfig()
	if err != nil {
		return nil, err
	}
	registry := pools.NewRegistry(exit.NewBuilder(exitCfg), liquidity.New(liquidity.WithLogger(logger)))
	return &app{cfg: cfg, logger: logger, registry: registry}, nil
}

func (a *app) loadSnapshot(ctx context.Context) (model.PoolSnapshot, error) {
	var store storage.SnapshotStore
	source := a.cfg.Snapshot
	if a.cfg.PGDSN != "" && a.cfg.PoolID != "" {
		pg, err := postgres.NewStore(ctx, a.cfg.PGDSN)
		if err != nil {
			return model.PoolSnapshot{}, fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		store = pg
		source = "postgres"
	} else {
		store = storage.NewFileSnapshotStore(a.cfg.Snapshot)
	}

	snapshot, ok, err := store.LoadSnapshot(ctx, a.cfg.PoolID)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	if !ok {
		return model.PoolSnapshot{}, fmt.Errorf("no snapshot for pool %q in %s", a.cfg.PoolID, source)
	}
	if a.cfg.PoolType != "" {
		snapshot.PoolType, err = model.ParsePoolType(a.cfg.PoolType)
		if err != nil {
			return model.PoolSnapshot{}, err
		}
	}

	a.logger.Debug("snapshot loaded",
		zap.String("source", source),
		zap.String("pool_id", snapshot.ID),
		zap.String("pool_type", snapshot.PoolType.String()),
		zap.Int("tokens", len(snapshot.Tokens)),
	)
	return snapshot, nil
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func writeJSON(w io.Writer, value interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	return cfg.Build()
}

func elapsed(start time.Time) zap.Field {
	return zap.Duration("elapsed", time.Since(start))
}
