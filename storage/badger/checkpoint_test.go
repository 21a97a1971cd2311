package badger

import (
	"context"
	"testing"

	"github.com/poiesic/wikidump/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRepository(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	source := core.SourceFingerprint("latest-all.json.gz")

	loaded, err := repos.Checkpoints.LoadCheckpoint(ctx, "ids", source)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, repos.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{Pass: "ids", Source: source, Cursor: 100}))
	require.NoError(t, repos.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{Pass: "ids", Source: source, Cursor: 250}))
	require.NoError(t, repos.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{Pass: "entities", Source: source, Cursor: 7}))

	loaded, err = repos.Checkpoints.LoadCheckpoint(ctx, "ids", source)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(250), loaded.Cursor)
	assert.False(t, loaded.UpdatedAt.IsZero())

	loaded, err = repos.Checkpoints.LoadCheckpoint(ctx, "entities", source)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(7), loaded.Cursor)

	other, err := repos.Checkpoints.LoadCheckpoint(ctx, "ids", core.SourceFingerprint("other.json.gz"))
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestCheckpointRepository_Invalid(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	err = repos.Checkpoints.SaveCheckpoint(context.Background(), &core.Checkpoint{Cursor: 1})
	assert.ErrorIs(t, err, core.ErrEmptyPass)
}
