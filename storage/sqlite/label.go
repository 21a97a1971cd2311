package sqlite

import (
	"context"
	"database/sql"
	"errors"

	gojson "github.com/goccy/go-json"
	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/storage"
)

// LabelRepository implements storage.LabelRepository for SQLite.
type LabelRepository struct {
	store *Store
}

var _ storage.LabelRepository = (*LabelRepository)(nil)

// NewLabelRepository creates a new LabelRepository.
func NewLabelRepository(store *Store) *LabelRepository {
	return &LabelRepository{store: store}
}

// Close releases resources. The store is closed separately.
func (r *LabelRepository) Close() error {
	return nil
}

const insertLabelsSQL = `
	INSERT INTO labels (id, labels, descriptions, in_wikipedia)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING
`

// BulkUpsert stores label records that are not yet present.
func (r *LabelRepository) BulkUpsert(ctx context.Context, records []*core.LabelRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		insert, err := tx.PrepareContext(ctx, insertLabelsSQL)
		if err != nil {
			return err
		}
		defer insert.Close()

		for _, record := range records {
			if err := core.ValidateLabelRecord(record); err != nil {
				r.store.logger.Debug("skipping invalid label record", "error", err)
				continue
			}
			labels, err := encodeLanguageMap(record.Labels)
			if err != nil {
				return err
			}
			descriptions, err := encodeLanguageMap(record.Descriptions)
			if err != nil {
				return err
			}
			if _, err := insert.ExecContext(ctx, record.ID, labels, descriptions, record.InWikipedia); err != nil {
				return err
			}
		}
		return nil
	})
}

// Exists reports whether labels are stored for id.
func (r *LabelRepository) Exists(ctx context.Context, id string) (bool, error) {
	q, err := r.store.querier()
	if err != nil {
		return false, err
	}
	var one int
	err = q.QueryRowContext(ctx, "SELECT 1 FROM labels WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classifyError(err)
	}
	return true, nil
}

// GetLabels retrieves the label record of one identifier.
func (r *LabelRepository) GetLabels(ctx context.Context, id string) (*core.LabelRecord, error) {
	q, err := r.store.querier()
	if err != nil {
		return nil, err
	}

	record := core.LabelRecord{ID: id}
	var labels, descriptions string
	err = q.QueryRowContext(ctx,
		"SELECT labels, descriptions, in_wikipedia FROM labels WHERE id = ?", id,
	).Scan(&labels, &descriptions, &record.InWikipedia)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, classifyError(err)
	}
	if record.Labels, err = decodeLanguageMap(labels); err != nil {
		return nil, err
	}
	if record.Descriptions, err = decodeLanguageMap(descriptions); err != nil {
		return nil, err
	}
	return &record, nil
}

// LabelsFor returns the labels of the stored identifiers among ids.
func (r *LabelRepository) LabelsFor(ctx context.Context, ids []string) (map[string]map[string]string, error) {
	q, err := r.store.querier()
	if err != nil {
		return nil, err
	}

	result := make(map[string]map[string]string, len(ids))
	for start := 0; start < len(ids); start += maxBindBatch {
		chunk := ids[start:min(start+maxBindBatch, len(ids))]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := q.QueryContext(ctx,
			"SELECT id, labels FROM labels WHERE id IN ("+placeholders(len(chunk))+")", args...)
		if err != nil {
			return nil, classifyError(err)
		}
		for rows.Next() {
			var id, raw string
			if err := rows.Scan(&id, &raw); err != nil {
				rows.Close()
				return nil, err
			}
			labels, err := decodeLanguageMap(raw)
			if err != nil {
				rows.Close()
				return nil, err
			}
			if len(labels) > 0 {
				result[id] = labels
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// CountLabels returns the number of stored label records.
func (r *LabelRepository) CountLabels(ctx context.Context) (int, error) {
	return r.store.count(ctx, "labels")
}

func encodeLanguageMap(values map[string]string) (string, error) {
	if values == nil {
		return "{}", nil
	}
	encoded, err := gojson.Marshal(values)
	if err != nil {
		return "", errors.Join(storage.ErrSerializationFailed, err)
	}
	return string(encoded), nil
}

func decodeLanguageMap(raw string) (map[string]string, error) {
	values := map[string]string{}
	if err := gojson.Unmarshal([]byte(raw), &values); err != nil {
		return nil, errors.Join(storage.ErrSerializationFailed, err)
	}
	return values, nil
}
