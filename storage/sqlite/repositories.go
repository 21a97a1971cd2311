package sqlite

import "context"

// Repositories bundles the repositories that share one store.
type Repositories struct {
	Store       *Store
	Identifiers *IdentifierRepository
	Entities    *EntityRepository
	Labels      *LabelRepository
	Checkpoints *CheckpointRepository
}

// NewRepositories creates repositories over an open store.
func NewRepositories(store *Store) *Repositories {
	return &Repositories{
		Store:       store,
		Identifiers: NewIdentifierRepository(store),
		Entities:    NewEntityRepository(store),
		Labels:      NewLabelRepository(store),
		Checkpoints: NewCheckpointRepository(store),
	}
}

// Close closes the repositories and then the store.
func (r *Repositories) Close() error {
	r.Labels.Close()
	r.Entities.Close()
	r.Identifiers.Close()
	return r.Store.Close()
}

// NewMemoryRepositories creates repositories over a private in-memory database.
// Caller must Close the result when done.
func NewMemoryRepositories(ctx context.Context) (*Repositories, error) {
	store, err := OpenMemory(ctx)
	if err != nil {
		return nil, err
	}
	return NewRepositories(store), nil
}
