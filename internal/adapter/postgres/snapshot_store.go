package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/wallpaperpicker/internal/domain"
)

const (
	insertSnapshotSQL = `
		INSERT INTO wallpaper_snapshots (id, destination, wallpaper_id, recorded_at)
		VALUES ($1, $2, $3, $4)`

	selectHistorySQL = `
		SELECT id, destination, wallpaper_id, recorded_at
		FROM wallpaper_snapshots
		WHERE destination = $1
		ORDER BY seq DESC
		LIMIT $2`

	pruneSnapshotsSQL = `
		DELETE FROM wallpaper_snapshots
		WHERE destination = $1
		  AND seq NOT IN (
			SELECT seq FROM wallpaper_snapshots
			WHERE destination = $1
			ORDER BY seq DESC
			LIMIT $2
		  )`
)

// SnapshotStore persists snapshots in the wallpaper_snapshots table.
// Insertion order defines recency.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

func (s *SnapshotStore) Save(ctx context.Context, snapshot domain.Snapshot) error {
	_, err := s.pool.Exec(ctx, insertSnapshotSQL,
		snapshot.ID, string(snapshot.Destination), snapshot.WallpaperID, snapshot.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Latest(ctx context.Context, destination domain.Destination) (*domain.Snapshot, error) {
	row := s.pool.QueryRow(ctx, selectHistorySQL, string(destination), 1)

	snapshot, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return &snapshot, nil
}

// History lists up to limit snapshots newest first; limit <= 0 lists all of them.
func (s *SnapshotStore) History(ctx context.Context, destination domain.Destination, limit int) ([]domain.Snapshot, error) {
	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}

	rows, err := s.pool.Query(ctx, selectHistorySQL, string(destination), limitArg)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	snapshots, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Snapshot, error) {
		return scanSnapshot(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}
	return snapshots, nil
}

func (s *SnapshotStore) Prune(ctx context.Context, destination domain.Destination, keep int) (int64, error) {
	tag, err := s.pool.Exec(ctx, pruneSnapshotsSQL, string(destination), max(keep, 0))
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSnapshot(row pgx.Row) (domain.Snapshot, error) {
	var (
		snapshot    domain.Snapshot
		destination string
	)
	if err := row.Scan(&snapshot.ID, &destination, &snapshot.WallpaperID, &snapshot.RecordedAt); err != nil {
		return domain.Snapshot{}, err
	}
	snapshot.Destination = domain.Destination(destination)
	return snapshot, nil
}
