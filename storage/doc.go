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

// Package storage defines the persistence gateway used by the dump pipeline.
//
// The pipeline only needs a small contract from a store: an idempotent,
// batched BulkUpsert that reports contention as a retryable error, and point
// lookups (Exists, Get, Missing) used by the per-record filters. Two backends
// implement it:
//
//   - storage/badger: embedded BadgerDB key-value store (default)
//   - storage/sqlite: SQLite via database/sql, using INSERT ... ON CONFLICT
//
// # Repositories
//
//   - IdentifierRepository: identifier index with corpus/property/fetched flags
//   - EntityRepository: language-filtered entity records
//   - CheckpointRepository: resumable line cursors per pass and source
//
// # Idempotency
//
// Every BulkUpsert may be replayed. A crash between a successful flush and a
// checkpoint save causes the same lines to be processed again on resume, so
// identifier upserts merge flags with logical OR and entity upserts are
// insert-if-absent.
//
// # Contention
//
// Backends map their conflict errors (badger.ErrConflict, SQLITE_BUSY) to
// ErrContention. Callers retry the same batch; items are only dropped from
// memory after a confirmed write.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
