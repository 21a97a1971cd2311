package storage

import (
	"context"

	"github.com/poiesic/wikidump/core"
)

// BulkWriter persists batches of items.
//
// BulkUpsert must be idempotent: calling it twice with overlapping batches
// must not create duplicates or fail on conflict. Transient contention on the
// destination is reported as an error wrapping ErrContention so the caller can
// retry the same batch.
type BulkWriter[T any] interface {
	BulkUpsert(ctx context.Context, items []T) error
}

// Repository provides operations shared by all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Exists reports whether a record with the given identifier is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// Close releases repository resources. It does not close the backend.
	Close() error
}

// IdentifierRepository is the identifier index.
type IdentifierRepository interface {
	Repository
	// BulkUpsert inserts identifier records, merging flags with any existing
	// record so that InCorpus, IsProperty and Fetched only ever turn on.
	BulkWriter[core.IdentifierRecord]

	// GetIdentifier retrieves a single identifier record.
	// Returns ErrNotFound if the identifier doesn't exist.
	GetIdentifier(ctx context.Context, id string) (*core.IdentifierRecord, error)

	// Missing returns the subset of ids that are either unknown or known but
	// not yet fetched. Order follows the input; duplicates are collapsed.
	Missing(ctx context.Context, ids []string) ([]string, error)

	// CountIdentifiers returns the number of stored identifiers.
	CountIdentifiers(ctx context.Context) (int, error)
}

// EntityRepository is the full entity record store.
type EntityRepository interface {
	Repository
	// BulkUpsert inserts entity records that are not yet stored.
	// Records whose identifier is absent from the identifier index are skipped,
	// and the identifier of every stored record is marked Fetched.
	BulkWriter[*core.EntityRecord]

	// GetEntity retrieves a single entity record.
	// Returns ErrNotFound if the entity doesn't exist.
	GetEntity(ctx context.Context, id string) (*core.EntityRecord, error)

	// ScanEntities returns up to limit entities with identifiers ordered
	// after the given identifier. Pass "" to start from the beginning.
	ScanEntities(ctx context.Context, after string, limit int) ([]*core.EntityRecord, error)

	// CountEntities returns the number of stored entities.
	CountEntities(ctx context.Context) (int, error)
}

// LabelRepository stores all-language labels and descriptions of every
// record in the dump, independent of the identifier index.
type LabelRepository interface {
	Repository
	// BulkUpsert inserts label records that are not yet stored.
	// Existing records are left unchanged.
	BulkWriter[*core.LabelRecord]

	// GetLabels retrieves the label record of one identifier.
	// Returns ErrNotFound if the identifier has no labels stored.
	GetLabels(ctx context.Context, id string) (*core.LabelRecord, error)

	// LabelsFor returns the labels of every stored identifier among ids,
	// keyed by identifier. Unknown identifiers are absent from the result.
	LabelsFor(ctx context.Context, ids []string) (map[string]map[string]string, error)

	// CountLabels returns the number of stored label records.
	CountLabels(ctx context.Context) (int, error)
}

// CheckpointRepository persists resumable line cursors.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint for a pass over a source.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a pass over a source.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, pass string, source core.ID) (*core.Checkpoint, error)
}
