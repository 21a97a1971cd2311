package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/storage"
)

// IdentifierRepository implements storage.IdentifierRepository for BadgerDB.
type IdentifierRepository struct {
	backend *Backend
}

var _ storage.IdentifierRepository = (*IdentifierRepository)(nil)

// NewIdentifierRepository creates a new IdentifierRepository.
func NewIdentifierRepository(backend *Backend) (*IdentifierRepository, error) {
	return &IdentifierRepository{
		backend: backend,
	}, nil
}

// Close releases resources. IdentifierRepository has no resources to release.
func (r *IdentifierRepository) Close() error {
	return nil
}

// BulkUpsert merges identifier records into the index.
// Records sharing an identifier within the batch are folded together first.
func (r *IdentifierRepository) BulkUpsert(ctx context.Context, records []core.IdentifierRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	merged := mergeIdentifiers(records)
	if len(merged) == 0 {
		return nil
	}

	return r.backend.WithBatch(func(w *BatchWriter) error {
		for i := range merged {
			record := merged[i]
			if err := core.ValidateIdentifier(record.ID); err != nil {
				r.backend.logger.Debug("skipping invalid identifier", "id", record.ID, "error", err)
				continue
			}
			key := makeIdentifierKey(record.ID)
			existing, err := readIdentifier(w, key)
			if err != nil {
				return err
			}
			if existing != nil {
				if subsumes(existing, &record) {
					continue
				}
				record.Merge(*existing)
			}
			if err := w.Set(key, storage.MarshalIdentifierRecord(&record)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Exists reports whether an identifier is in the index.
func (r *IdentifierRepository) Exists(ctx context.Context, id string) (bool, error) {
	found := false
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeIdentifierKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return nil
	}, false)
	return found, err
}

// GetIdentifier retrieves a single identifier record.
func (r *IdentifierRepository) GetIdentifier(ctx context.Context, id string) (*core.IdentifierRecord, error) {
	var record *core.IdentifierRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = readIdentifier(tx, makeIdentifierKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, storage.ErrNotFound
	}
	return record, nil
}

// Missing returns the ids that are unknown or not yet fetched.
func (r *IdentifierRepository) Missing(ctx context.Context, ids []string) ([]string, error) {
	var missing []string
	seen := make(map[string]struct{}, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			record, err := readIdentifier(tx, makeIdentifierKey(id))
			if err != nil {
				return err
			}
			if record == nil || !record.Fetched {
				missing = append(missing, id)
			}
		}
		return nil
	}, false)
	return missing, err
}

// CountIdentifiers returns the number of identifiers in the index.
func (r *IdentifierRepository) CountIdentifiers(ctx context.Context) (int, error) {
	return r.backend.countPrefix([]byte(identifierPrefix))
}

// itemGetter is satisfied by *badger.Txn and *BatchWriter.
type itemGetter interface {
	Get(key []byte) (*badger.Item, error)
}

func readIdentifier(tx itemGetter, key []byte) (*core.IdentifierRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.IdentifierRecord
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalIdentifierRecord(val)
		return err
	})
	return record, err
}

// subsumes reports whether existing already carries every flag of record.
func subsumes(existing, record *core.IdentifierRecord) bool {
	return (existing.InCorpus || !record.InCorpus) &&
		(existing.IsProperty || !record.IsProperty) &&
		(existing.Fetched || !record.Fetched)
}

// mergeIdentifiers folds duplicate identifiers, keeping first-seen order.
func mergeIdentifiers(records []core.IdentifierRecord) []core.IdentifierRecord {
	index := make(map[string]int, len(records))
	out := make([]core.IdentifierRecord, 0, len(records))
	for _, record := range records {
		if i, ok := index[record.ID]; ok {
			out[i].Merge(record)
			continue
		}
		index[record.ID] = len(out)
		out = append(out, record)
	}
	return out
}
