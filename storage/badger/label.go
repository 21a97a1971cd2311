package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/storage"
)

// LabelRepository implements storage.LabelRepository for BadgerDB.
type LabelRepository struct {
	backend *Backend
}

var _ storage.LabelRepository = (*LabelRepository)(nil)

// NewLabelRepository creates a new LabelRepository.
func NewLabelRepository(backend *Backend) (*LabelRepository, error) {
	return &LabelRepository{
		backend: backend,
	}, nil
}

// Close releases resources. LabelRepository has no resources to release.
func (r *LabelRepository) Close() error {
	return nil
}

// BulkUpsert stores label records that are not yet present.
func (r *LabelRepository) BulkUpsert(ctx context.Context, records []*core.LabelRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	return r.backend.WithBatch(func(w *BatchWriter) error {
		seen := make(map[string]struct{}, len(records))
		for _, record := range records {
			if err := core.ValidateLabelRecord(record); err != nil {
				r.backend.logger.Debug("skipping invalid label record", "error", err)
				continue
			}
			if _, dup := seen[record.ID]; dup {
				continue
			}
			seen[record.ID] = struct{}{}

			key := makeLabelKey(record.ID)
			present, err := keyExists(w, key)
			if err != nil {
				return err
			}
			if present {
				continue
			}
			value, err := storage.MarshalLabelRecord(record)
			if err != nil {
				return err
			}
			if err := w.Set(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Exists reports whether labels are stored for id.
func (r *LabelRepository) Exists(ctx context.Context, id string) (bool, error) {
	found := false
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		found, err = keyExists(tx, makeLabelKey(id))
		return err
	}, false)
	return found, err
}

// GetLabels retrieves the label record of one identifier.
func (r *LabelRepository) GetLabels(ctx context.Context, id string) (*core.LabelRecord, error) {
	var record *core.LabelRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = readLabels(tx, makeLabelKey(id))
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

// LabelsFor returns the labels of the stored identifiers among ids.
func (r *LabelRepository) LabelsFor(ctx context.Context, ids []string) (map[string]map[string]string, error) {
	labels := make(map[string]map[string]string, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if _, done := labels[id]; done {
				continue
			}
			record, err := readLabels(tx, makeLabelKey(id))
			if err != nil {
				return err
			}
			if record != nil && len(record.Labels) > 0 {
				labels[id] = record.Labels
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return labels, nil
}

// CountLabels returns the number of stored label records.
func (r *LabelRepository) CountLabels(ctx context.Context) (int, error) {
	return r.backend.countPrefix([]byte(labelPrefix))
}

func readLabels(tx itemGetter, key []byte) (*core.LabelRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.LabelRecord
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalLabelRecord(val)
		return err
	})
	return record, err
}
