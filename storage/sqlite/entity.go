package sqlite

import (
	"context"
	"database/sql"
	"errors"

	gojson "github.com/goccy/go-json"
	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/storage"
)

// EntityRepository implements storage.EntityRepository for SQLite.
type EntityRepository struct {
	store *Store
}

var _ storage.EntityRepository = (*EntityRepository)(nil)

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(store *Store) *EntityRepository {
	return &EntityRepository{store: store}
}

// Close releases resources. The store is closed separately.
func (r *EntityRepository) Close() error {
	return nil
}

// Rows are only inserted when the identifier is already indexed.
const insertEntitySQL = `
	INSERT INTO entities (id, label, description, aliases, claims, modified)
	SELECT ?, ?, ?, ?, ?, ?
	WHERE EXISTS (SELECT 1 FROM identifiers WHERE id = ?)
	ON CONFLICT(id) DO NOTHING
`

const markFetchedSQL = `UPDATE identifiers SET fetched = 1 WHERE id = ? AND fetched = 0`

// BulkUpsert stores entities that are not yet present and marks their
// identifiers fetched. Entities with unknown identifiers are skipped.
func (r *EntityRepository) BulkUpsert(ctx context.Context, records []*core.EntityRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		insert, err := tx.PrepareContext(ctx, insertEntitySQL)
		if err != nil {
			return err
		}
		defer insert.Close()
		mark, err := tx.PrepareContext(ctx, markFetchedSQL)
		if err != nil {
			return err
		}
		defer mark.Close()

		for _, record := range records {
			if err := core.ValidateEntityRecord(record); err != nil {
				r.store.logger.Debug("skipping invalid entity", "error", err)
				continue
			}
			aliases, claims, err := encodeEntity(record)
			if err != nil {
				return err
			}
			if _, err := insert.ExecContext(ctx,
				record.ID, record.Label, record.Description, aliases, claims, record.Modified,
				record.ID,
			); err != nil {
				return err
			}
			if _, err := mark.ExecContext(ctx, record.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Exists reports whether an entity is stored.
func (r *EntityRepository) Exists(ctx context.Context, id string) (bool, error) {
	q, err := r.store.querier()
	if err != nil {
		return false, err
	}
	var one int
	err = q.QueryRowContext(ctx, "SELECT 1 FROM entities WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classifyError(err)
	}
	return true, nil
}

const selectEntityColumns = `SELECT id, label, description, aliases, claims, modified FROM entities`

// GetEntity retrieves a single entity record.
func (r *EntityRepository) GetEntity(ctx context.Context, id string) (*core.EntityRecord, error) {
	q, err := r.store.querier()
	if err != nil {
		return nil, err
	}
	record, err := scanEntity(q.QueryRowContext(ctx, selectEntityColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return record, nil
}

// ScanEntities returns up to limit entities ordered by identifier.
func (r *EntityRepository) ScanEntities(ctx context.Context, after string, limit int) ([]*core.EntityRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	q, err := r.store.querier()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, selectEntityColumns+" WHERE id > ? ORDER BY id LIMIT ?", after, limit)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	records := make([]*core.EntityRecord, 0, limit)
	for rows.Next() {
		record, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CountEntities returns the number of stored entities.
func (r *EntityRepository) CountEntities(ctx context.Context) (int, error) {
	return r.store.count(ctx, "entities")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*core.EntityRecord, error) {
	var record core.EntityRecord
	var aliases, claims string
	if err := row.Scan(&record.ID, &record.Label, &record.Description, &aliases, &claims, &record.Modified); err != nil {
		return nil, err
	}
	if err := gojson.Unmarshal([]byte(aliases), &record.Aliases); err != nil {
		return nil, errors.Join(storage.ErrSerializationFailed, err)
	}
	record.Claims = gojson.RawMessage(claims)
	return &record, nil
}

func encodeEntity(record *core.EntityRecord) (string, string, error) {
	aliases := record.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	encoded, err := gojson.Marshal(aliases)
	if err != nil {
		return "", "", errors.Join(storage.ErrSerializationFailed, err)
	}
	claims := string(record.Claims)
	if claims == "" {
		claims = "{}"
	}
	return string(encoded), claims, nil
}
