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

package reconcile

import (
	"context"
	"time"

	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/storage"
)

const (
	// DefaultBatchSize is the default number of entities fetched per scan.
	DefaultBatchSize = 1000
)

// EntityIterator pages through the entity store in identifier key order.
type EntityIterator struct {
	repo       storage.EntityRepository
	batchSize  int
	maxRetries int
	retryDelay time.Duration
}

// NewEntityIterator creates a new entity iterator.
// batchSize: number of entities per page (defaults when <= 0)
func NewEntityIterator(repo storage.EntityRepository, batchSize int) *EntityIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &EntityIterator{
		repo:       repo,
		batchSize:  batchSize,
		maxRetries: 1,
	}
}

// ForEach calls fn with each page of entities.
// Iteration stops on the first error from fn or when the store is exhausted.
// Context cancellation is checked between pages.
func (it *EntityIterator) ForEach(ctx context.Context, fn func([]*core.EntityRecord) error) error {
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var page []*core.EntityRecord
		err := RetryWithBackoff(ctx, func() error {
			var err error
			page, err = it.repo.ScanEntities(ctx, after, it.batchSize)
			return err
		}, it.maxRetries, it.retryDelay)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		if err := fn(page); err != nil {
			return err
		}
		if len(page) < it.batchSize {
			return nil
		}
		after = page[len(page)-1].ID
	}
}
