package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/storage"
)

// EntityRepository implements storage.EntityRepository for BadgerDB.
// It shares the backend with the IdentifierRepository so that storing an
// entity and marking its identifier fetched happen in the same transaction.
type EntityRepository struct {
	backend *Backend
}

var _ storage.EntityRepository = (*EntityRepository)(nil)

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(backend *Backend) (*EntityRepository, error) {
	return &EntityRepository{
		backend: backend,
	}, nil
}

// Close releases resources. EntityRepository has no resources to release.
func (r *EntityRepository) Close() error {
	return nil
}

// BulkUpsert stores entities that are not yet present.
// Entities whose identifier is not indexed are skipped.
func (r *EntityRepository) BulkUpsert(ctx context.Context, records []*core.EntityRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	skipped := 0
	err := r.backend.WithBatch(func(w *BatchWriter) error {
		seen := make(map[string]struct{}, len(records))
		for _, record := range records {
			if err := core.ValidateEntityRecord(record); err != nil {
				r.backend.logger.Debug("skipping invalid entity", "error", err)
				skipped++
				continue
			}
			if _, dup := seen[record.ID]; dup {
				continue
			}
			seen[record.ID] = struct{}{}

			idKey := makeIdentifierKey(record.ID)
			ident, err := readIdentifier(w, idKey)
			if err != nil {
				return err
			}
			if ident == nil {
				skipped++
				continue
			}

			entKey := makeEntityKey(record.ID)
			present, err := keyExists(w, entKey)
			if err != nil {
				return err
			}
			if !present {
				value, err := storage.MarshalEntityRecord(record)
				if err != nil {
					return err
				}
				if err := w.Set(entKey, value); err != nil {
					return err
				}
			}

			if !ident.Fetched {
				ident.Fetched = true
				if err := w.Set(idKey, storage.MarshalIdentifierRecord(ident)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil && skipped > 0 {
		r.backend.logger.Debug("entities skipped", "count", skipped, "batch", len(records))
	}
	return err
}

// Exists reports whether an entity is stored.
func (r *EntityRepository) Exists(ctx context.Context, id string) (bool, error) {
	found := false
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		found, err = keyExists(tx, makeEntityKey(id))
		return err
	}, false)
	return found, err
}

// GetEntity retrieves a single entity record.
func (r *EntityRepository) GetEntity(ctx context.Context, id string) (*core.EntityRecord, error) {
	var record *core.EntityRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = readEntity(tx, makeEntityKey(id))
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

// ScanEntities returns up to limit entities whose identifiers sort after the
// given one in key order.
func (r *EntityRepository) ScanEntities(ctx context.Context, after string, limit int) ([]*core.EntityRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	records := make([]*core.EntityRecord, 0, limit)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entityPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeEntityKey(after)); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			if after != "" && entityIDFromKey(item.Key()) == after {
				continue
			}

			err := item.Value(func(val []byte) error {
				record, err := storage.UnmarshalEntityRecord(val)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
			if len(records) >= limit {
				break
			}
		}
		return nil
	}, false)

	return records, err
}

// CountEntities returns the number of stored entities.
func (r *EntityRepository) CountEntities(ctx context.Context) (int, error) {
	return r.backend.countPrefix([]byte(entityPrefix))
}

func readEntity(tx itemGetter, key []byte) (*core.EntityRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.EntityRecord
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalEntityRecord(val)
		return err
	})
	return record, err
}

func keyExists(tx itemGetter, key []byte) (bool, error) {
	_, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
