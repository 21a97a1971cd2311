package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/storage"
)

// maxBindBatch bounds the number of bind parameters in a single IN query.
const maxBindBatch = 500

// IdentifierRepository implements storage.IdentifierRepository for SQLite.
type IdentifierRepository struct {
	store *Store
}

var _ storage.IdentifierRepository = (*IdentifierRepository)(nil)

// NewIdentifierRepository creates a new IdentifierRepository.
func NewIdentifierRepository(store *Store) *IdentifierRepository {
	return &IdentifierRepository{store: store}
}

// Close releases resources. The store is closed separately.
func (r *IdentifierRepository) Close() error {
	return nil
}

const upsertIdentifierSQL = `
	INSERT INTO identifiers (id, in_corpus, is_property, fetched)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		in_corpus = identifiers.in_corpus OR excluded.in_corpus,
		is_property = identifiers.is_property OR excluded.is_property,
		fetched = identifiers.fetched OR excluded.fetched
`

// BulkUpsert merges identifier records. Flags are combined with OR.
func (r *IdentifierRepository) BulkUpsert(ctx context.Context, records []core.IdentifierRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertIdentifierSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, record := range records {
			if err := core.ValidateIdentifier(record.ID); err != nil {
				r.store.logger.Debug("skipping invalid identifier", "id", record.ID, "error", err)
				continue
			}
			if _, err := stmt.ExecContext(ctx, record.ID, record.InCorpus, record.IsProperty, record.Fetched); err != nil {
				return err
			}
		}
		return nil
	})
}

// Exists reports whether an identifier is in the index.
func (r *IdentifierRepository) Exists(ctx context.Context, id string) (bool, error) {
	q, err := r.store.querier()
	if err != nil {
		return false, err
	}
	var one int
	err = q.QueryRowContext(ctx, "SELECT 1 FROM identifiers WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classifyError(err)
	}
	return true, nil
}

// GetIdentifier retrieves a single identifier record.
func (r *IdentifierRepository) GetIdentifier(ctx context.Context, id string) (*core.IdentifierRecord, error) {
	q, err := r.store.querier()
	if err != nil {
		return nil, err
	}
	record := core.IdentifierRecord{ID: id}
	err = q.QueryRowContext(ctx,
		"SELECT in_corpus, is_property, fetched FROM identifiers WHERE id = ?", id,
	).Scan(&record.InCorpus, &record.IsProperty, &record.Fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return &record, nil
}

// Missing returns the ids that are unknown or not yet fetched.
func (r *IdentifierRepository) Missing(ctx context.Context, ids []string) ([]string, error) {
	q, err := r.store.querier()
	if err != nil {
		return nil, err
	}

	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	fetched := make(map[string]bool, len(unique))
	for start := 0; start < len(unique); start += maxBindBatch {
		end := min(start+maxBindBatch, len(unique))
		chunk := unique[start:end]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := q.QueryContext(ctx,
			"SELECT id, fetched FROM identifiers WHERE id IN ("+placeholders(len(chunk))+")", args...)
		if err != nil {
			return nil, classifyError(err)
		}
		for rows.Next() {
			var id string
			var done bool
			if err := rows.Scan(&id, &done); err != nil {
				rows.Close()
				return nil, err
			}
			fetched[id] = done
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}

	var missing []string
	for _, id := range unique {
		if !fetched[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// CountIdentifiers returns the number of identifiers in the index.
func (r *IdentifierRepository) CountIdentifiers(ctx context.Context) (int, error) {
	return r.store.count(ctx, "identifiers")
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	q, err := s.querier()
	if err != nil {
		return 0, err
	}
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, classifyError(err)
	}
	return n, nil
}
