package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolexit/internal/model"
)

// Schema creates the snapshot table. Snapshots are keyed by lower-case pool id
// and block; the full snapshot is kept as JSONB.
const Schema = `
CREATE TABLE IF NOT EXISTS pool_snapshots (
	pool_id      TEXT        NOT NULL,
	block_number BIGINT      NOT NULL,
	pool_type    TEXT        NOT NULL,
	snapshot     JSONB       NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pool_id, block_number)
)`

// Store provides Postgres persistence for pool snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate pool_snapshots: %w", err)
	}
	return nil
}

// SaveSnapshot inserts or replaces the snapshot of a pool at its block.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot model.PoolSnapshot) error {
	if snapshot.ID == "" {
		return fmt.Errorf("snapshot pool id required")
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO pool_snapshots (pool_id, block_number, pool_type, snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (pool_id, block_number) DO UPDATE
		SET pool_type = EXCLUDED.pool_type, snapshot = EXCLUDED.snapshot, updated_at = now()
	`, normalizeID(snapshot.ID), int64(snapshot.BlockNumber), snapshot.PoolType.String(), data)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snapshot.ID, err)
	}
	return nil
}

// LoadSnapshot returns the latest stored snapshot of poolID.
func (s *Store) LoadSnapshot(ctx context.Context, poolID string) (model.PoolSnapshot, bool, error) {
	if poolID == "" {
		return model.PoolSnapshot{}, false, fmt.Errorf("pool id required")
	}
	var data []byte
	row := s.pool.QueryRow(ctx, `
		SELECT snapshot FROM pool_snapshots
		WHERE pool_id = $1
		ORDER BY block_number DESC
		LIMIT 1
	`, normalizeID(poolID))
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolSnapshot{}, false, nil
		}
		return model.PoolSnapshot{}, false, err
	}
	var snapshot model.PoolSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.PoolSnapshot{}, false, fmt.Errorf("parse snapshot %s: %w", poolID, err)
	}
	return snapshot, true, nil
}

func normalizeID(poolID string) string {
	return strings.ToLower(strings.TrimSpace(poolID))
}
