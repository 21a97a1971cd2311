package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/wikidump/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEntities(t *testing.T, n int) *EntityIterator {
	t.Helper()
	repos := setupTestDB(t)
	var ids []core.IdentifierRecord
	var entities []*core.EntityRecord
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("Q%d", i)
		ids = append(ids, core.IdentifierRecord{ID: id, InCorpus: true})
		entities = append(entities, &core.EntityRecord{ID: id, Claims: []byte(`{}`)})
	}
	seed(t, repos, ids, entities...)
	return NewEntityIterator(repos.Entities, 2)
}

func TestEntityIterator_Pages(t *testing.T) {
	iter := seedEntities(t, 5)

	var sizes []int
	var ids []string
	err := iter.ForEach(context.Background(), func(page []*core.EntityRecord) error {
		sizes = append(sizes, len(page))
		for _, e := range page {
			ids = append(ids, e.ID)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.ElementsMatch(t, []string{"Q1", "Q2", "Q3", "Q4", "Q5"}, ids)
}

func TestEntityIterator_ExactMultiple(t *testing.T) {
	iter := seedEntities(t, 4)

	pages := 0
	err := iter.ForEach(context.Background(), func(page []*core.EntityRecord) error {
		pages++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, pages)
}

func TestEntityIterator_StopsOnError(t *testing.T) {
	iter := seedEntities(t, 5)
	stop := errors.New("stop")

	pages := 0
	err := iter.ForEach(context.Background(), func(page []*core.EntityRecord) error {
		pages++
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, pages)
}

func TestEntityIterator_Empty(t *testing.T) {
	iter := NewEntityIterator(setupTestDB(t).Entities, 0)
	assert.Equal(t, DefaultBatchSize, iter.batchSize)

	called := false
	err := iter.ForEach(context.Background(), func([]*core.EntityRecord) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}
