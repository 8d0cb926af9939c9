package storage

import (
	"context"

	"poolexit/internal/model"
)

// SnapshotStore persists pool snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot model.PoolSnapshot) error
	// LoadSnapshot reports false when no snapshot exists for poolID.
	LoadSnapshot(ctx context.Context, poolID string) (model.PoolSnapshot, bool, error)
}
