package main

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolexit/internal/chain"
	"poolexit/internal/config"
	"poolexit/internal/model"
	"poolexit/internal/provider"
	"poolexit/internal/storage"
	"poolexit/internal/storage/postgres"
)

func newSnapshotCmd() *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch and store pool snapshots",
	}

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Read a pool snapshot from chain",
		RunE:  runSnapshotFetch,
	}
	fetchCmd.Flags().String("rpc", "", "RPC URL")
	fetchCmd.Flags().String("pool-id", "", "pool id (bytes32 hex)")
	fetchCmd.Flags().String("pool-type", "", "pool type (Weighted, Stable, MetaStable, PhantomStable)")
	fetchCmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	fetchCmd.Flags().String("vault", config.DefaultVault, "vault address")
	fetchCmd.Flags().String("snapshot", "./data/pool.json", "output snapshot JSON file")
	fetchCmd.Flags().String("pg-dsn", "", "also store the snapshot in Postgres")
	fetchCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	fetchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fetchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Store a snapshot file in Postgres",
		RunE:  runSnapshotSave,
	}
	saveCmd.Flags().String("snapshot", "./data/pool.json", "snapshot JSON file")
	saveCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	saveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	snapshotCmd.AddCommand(fetchCmd, saveCmd)
	return snapshotCmd
}

func runSnapshotFetch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.PoolID == "" {
		return fmt.Errorf("pool id is required")
	}
	poolType, err := model.ParsePoolType(cfg.PoolType)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(cfg.Vault) {
		return fmt.Errorf("invalid vault address %q", cfg.Vault)
	}
	var block *big.Int
	if number, _ := cmd.Flags().GetUint64("block"); number > 0 {
		block = new(big.Int).SetUint64(number)
	}

	ctx, stop := commandContext()
	defer stop()

	chainClient, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	head, err := chainClient.ResolveHead(ctx, block)
	if err != nil {
		return err
	}

	logger.Info("snapshot fetch start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("chain_id", head.ChainID.String()),
		zap.String("pool_id", cfg.PoolID),
		zap.String("pool_type", poolType.String()),
		zap.String("block", head.Block.String()),
	)

	start := time.Now()
	p := provider.New(chainClient, provider.Config{
		Vault:        common.HexToAddress(cfg.Vault),
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)
	snapshot, err := p.FetchPool(ctx, cfg.PoolID, poolType, head.Block)
	if err != nil {
		return fmt.Errorf("fetch pool: %w", err)
	}

	if err := storage.NewFileSnapshotStore(cfg.Snapshot).SaveSnapshot(ctx, snapshot); err != nil {
		return err
	}
	if cfg.PGDSN != "" {
		if err := saveToPostgres(ctx, cfg.PGDSN, snapshot); err != nil {
			return err
		}
	}

	logger.Info("snapshot fetch done",
		zap.String("pool_id", snapshot.ID),
		zap.Int("tokens", len(snapshot.Tokens)),
		zap.String("out", cfg.Snapshot),
		elapsed(start),
	)
	return writeJSON(cmd.OutOrStdout(), snapshot)
}

func runSnapshotSave(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	ctx, stop := commandContext()
	defer stop()

	snapshot, ok, err := storage.NewFileSnapshotStore(cfg.Snapshot).LoadSnapshot(ctx, "")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("snapshot file %s not found", cfg.Snapshot)
	}
	if err := saveToPostgres(ctx, cfg.PGDSN, snapshot); err != nil {
		return err
	}
	logger.Info("snapshot saved",
		zap.String("pool_id", snapshot.ID),
		zap.Uint64("block_number", snapshot.BlockNumber),
	)
	return nil
}

func saveToPostgres(ctx context.Context, dsn string, snapshot model.PoolSnapshot) error {
	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	return store.SaveSnapshot(ctx, snapshot)
}
