package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/storage"
)

// CheckpointRepository implements storage.CheckpointRepository for SQLite.
type CheckpointRepository struct {
	store *Store
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(store *Store) *CheckpointRepository {
	return &CheckpointRepository{store: store}
}

// SaveCheckpoint persists the cursor of a pass over a source.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	if err := core.ValidateCheckpoint(checkpoint); err != nil {
		return err
	}
	q, err := r.store.querier()
	if err != nil {
		return err
	}
	checkpoint.UpdatedAt = time.Now().UTC()
	_, err = q.ExecContext(ctx, `
		INSERT INTO checkpoints (pass, source, cursor, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(pass, source) DO UPDATE SET
			cursor = excluded.cursor,
			updated_at = excluded.updated_at
	`, checkpoint.Pass, int64(checkpoint.Source), checkpoint.Cursor, checkpoint.UpdatedAt.UnixMicro())
	return classifyError(err)
}

// LoadCheckpoint retrieves the checkpoint of a pass over a source.
// Returns nil, nil if no checkpoint exists.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, pass string, source core.ID) (*core.Checkpoint, error) {
	q, err := r.store.querier()
	if err != nil {
		return nil, err
	}
	checkpoint := core.Checkpoint{Pass: pass, Source: source}
	var updated int64
	err = q.QueryRowContext(ctx,
		"SELECT cursor, updated_at FROM checkpoints WHERE pass = ? AND source = ?",
		pass, int64(source),
	).Scan(&checkpoint.Cursor, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	checkpoint.UpdatedAt = time.UnixMicro(updated).UTC()
	return &checkpoint, nil
}
