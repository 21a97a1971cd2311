// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wikidump

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/extract"
	"github.com/poiesic/wikidump/ingestion"
	"github.com/poiesic/wikidump/reconcile"
	"github.com/poiesic/wikidump/storage"
	"github.com/poiesic/wikidump/storage/badger"
	"github.com/poiesic/wikidump/storage/sqlite"
)

// Storage backends accepted by NewDatabase.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Database bundles the identifier, entity, label and checkpoint stores of one backend.
type Database struct {
	kind           string
	closer         io.Closer
	identifierRepo storage.IdentifierRepository
	entityRepo     storage.EntityRepository
	labelRepo      storage.LabelRepository
	checkpointRepo storage.CheckpointRepository
	logger         *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	inMemory bool
	logger   *slog.Logger
}

// WithInMemory keeps the store in memory. The path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithDatabaseLogger sets the logger used by the database and its pipelines.
func WithDatabaseLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase opens the named backend at filePath.
func NewDatabase(ctx context.Context, backend, filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	db := &Database{kind: backend, logger: options.logger}
	switch backend {
	case BackendBadger:
		b, err := badger.OpenBackend(filePath, options.inMemory)
		if err != nil {
			return nil, err
		}
		repos, err := badger.NewRepositories(b)
		if err != nil {
			b.Close()
			return nil, err
		}
		db.closer = repos
		db.identifierRepo = repos.Identifiers
		db.entityRepo = repos.Entities
		db.labelRepo = repos.Labels
		db.checkpointRepo = repos.Checkpoints
	case BackendSQLite:
		var (
			store *sqlite.Store
			err   error
		)
		if options.inMemory {
			store, err = sqlite.OpenMemory(ctx)
		} else {
			store, err = sqlite.Open(ctx, filePath)
		}
		if err != nil {
			return nil, err
		}
		repos := sqlite.NewRepositories(store)
		db.closer = repos
		db.identifierRepo = repos.Identifiers
		db.entityRepo = repos.Entities
		db.labelRepo = repos.Labels
		db.checkpointRepo = repos.Checkpoints
	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownBackend, backend)
	}
	return db, nil
}

// Close closes the repositories and the backend.
func (db *Database) Close() error {
	if err := db.closer.Close(); err != nil {
		db.logger.Error("error closing database", "backend", db.kind, "err", err)
		return err
	}
	return nil
}

// Backend returns the backend name.
func (db *Database) Backend() string {
	return db.kind
}

func (db *Database) IdentifierRepository() storage.IdentifierRepository {
	return db.identifierRepo
}

func (db *Database) EntityRepository() storage.EntityRepository {
	return db.entityRepo
}

func (db *Database) LabelRepository() storage.LabelRepository {
	return db.labelRepo
}

func (db *Database) CheckpointRepository() storage.CheckpointRepository {
	return db.checkpointRepo
}

// NewPipeline creates a pipeline whose resume cursor is checkpointed under pass.
// Options given by the caller are applied last.
func (db *Database) NewPipeline(pass string, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithLogger(db.logger),
		ingestion.WithCheckpoints(db.checkpointRepo, pass),
	}
	return ingestion.NewPipeline(append(base, opts...)...)
}

// RunIdentifierPass indexes the corpus-linked records of p's source and the
// identifiers they reference.
func (db *Database) RunIdentifierPass(ctx context.Context, p *ingestion.Pipeline, language string, opts ingestion.RunOptions) (*ingestion.Stats, error) {
	return ingestion.Run(ctx, p, extract.IdentifierPass(language), storage.BulkWriter[core.IdentifierRecord](db.identifierRepo), opts)
}

// RunEntityPass stores the normalized records of p's source whose
// identifiers were indexed by a previous identifier pass.
func (db *Database) RunEntityPass(ctx context.Context, p *ingestion.Pipeline, language string, opts ingestion.RunOptions) (*ingestion.Stats, error) {
	handler := extract.EntityPass(language, db.identifierRepo, db.logger)
	return ingestion.Run(ctx, p, handler, storage.BulkWriter[*core.EntityRecord](db.entityRepo), opts)
}

// RunLabelPass stores the labels and descriptions of every record of p's
// source in all languages.
func (db *Database) RunLabelPass(ctx context.Context, p *ingestion.Pipeline, opts ingestion.RunOptions) (*ingestion.Stats, error) {
	return ingestion.Run(ctx, p, extract.LabelPass(), storage.BulkWriter[*core.LabelRecord](db.labelRepo), opts)
}

// NewReconciler creates a reconciler over the stored entities.
func (db *Database) NewReconciler(config *reconcile.Config, progress io.Writer) (*reconcile.Reconciler, error) {
	return reconcile.NewReconciler(db.entityRepo, db.identifierRepo, config, progress, db.logger)
}

// Counts is a summary of the stored records.
type Counts struct {
	Identifiers int
	Entities    int
	Labels      int
}

// Counts returns the number of stored identifiers, entities and label records.
func (db *Database) Counts(ctx context.Context) (*Counts, error) {
	identifiers, err := db.identifierRepo.CountIdentifiers(ctx)
	if err != nil {
		return nil, err
	}
	entities, err := db.entityRepo.CountEntities(ctx)
	if err != nil {
		return nil, err
	}
	labels, err := db.labelRepo.CountLabels(ctx)
	if err != nil {
		return nil, err
	}
	return &Counts{Identifiers: identifiers, Entities: entities, Labels: labels}, nil
}
