package extract

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/ingestion"
	"github.com/poiesic/wikidump/storage"
	"github.com/poiesic/wikidump/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepos(t *testing.T) *badger.Repositories {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func TestIdentifierPass_LinkedRecord(t *testing.T) {
	handler := IdentifierPass("en")
	got := handler(context.Background(), parse(t, linkedLine("Q1", richClaims)))

	want := []core.IdentifierRecord{
		{ID: "Q1", InCorpus: true},
		{ID: "P1082", IsProperty: true},
		{ID: "Q11573"},
		{ID: "P580", IsProperty: true},
		{ID: "P642", IsProperty: true},
		{ID: "P17", IsProperty: true},
		{ID: "P2044", IsProperty: true},
		{ID: "P31", IsProperty: true},
		{ID: "Q5"},
		{ID: "Q99"},
		{ID: "P999", IsProperty: true},
		{ID: "Q98"},
	}
	assert.Equal(t, want, got)
}

func TestIdentifierPass_Property(t *testing.T) {
	line := `{"type":"property","id":"P31","labels":{"mul":{"language":"mul","value":"instance of"}},` +
		`"descriptions":{"en":{"language":"en","value":"d"}},"sitelinks":{"enwiki":{"site":"enwiki","title":"T"}},` +
		`"claims":{"P31":[` + statement("normal", itemSnak("P31", "Q5"), "") + `]}}`

	got := IdentifierPass("en")(context.Background(), parse(t, line))
	require.Len(t, got, 2, "self reference is merged")
	assert.Equal(t, core.IdentifierRecord{ID: "P31", InCorpus: true, IsProperty: true}, got[0])
	assert.Equal(t, core.IdentifierRecord{ID: "Q5"}, got[1])
}

func TestIdentifierPass_SkipsUnlinked(t *testing.T) {
	handler := IdentifierPass("en")
	assert.Empty(t, handler(context.Background(), nil))
	assert.Empty(t, handler(context.Background(), parse(t, unlinkedLine("Q4"))))
	assert.Empty(t, IdentifierPass("de")(context.Background(), parse(t, linkedLine("Q1", ""))))
}

func TestReferencedIDs(t *testing.T) {
	record, err := NormalizeEntity(parse(t, linkedLine("Q1", richClaims)), "en")
	require.NoError(t, err)

	ids, err := ReferencedIDs(record.Claims)
	require.NoError(t, err)
	// Deprecated statements are gone from stored claims.
	assert.Equal(t, []string{"P1082", "Q11573", "P580", "P642", "P17", "P2044", "P31", "Q5"}, ids)

	ids, err = ReferencedIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = ReferencedIDs([]byte(`{"P31":`))
	assert.Error(t, err)
}

func TestEntityPass_OnlyKnownIdentifiers(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	require.NoError(t, repos.Identifiers.BulkUpsert(ctx, []core.IdentifierRecord{{ID: "Q1", InCorpus: true}}))

	handler := EntityPass("en", repos.Identifiers, nil)
	got := handler(ctx, parse(t, linkedLine("Q1", richClaims)))
	require.Len(t, got, 1)
	assert.Equal(t, "label Q1", got[0].Label)
	assert.Equal(t, []string{"alias Q1"}, got[0].Aliases)

	assert.Empty(t, handler(ctx, parse(t, linkedLine("Q2", ""))))
	assert.Empty(t, handler(ctx, nil))
}

// failingIdentifiers fails every lookup.
type failingIdentifiers struct {
	storage.IdentifierRepository
}

func (failingIdentifiers) Exists(context.Context, string) (bool, error) {
	return false, errors.New("lookup failed")
}

func TestEntityPass_StoreRejectsUnknownAfterLookupFailure(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	got := EntityPass("en", failingIdentifiers{}, logger)(ctx, parse(t, linkedLine("Q1", "")))
	require.Len(t, got, 1, "a failed lookup keeps the record")
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "identifier lookup failed")

	require.NoError(t, repos.Entities.BulkUpsert(ctx, got))
	exists, err := repos.Entities.Exists(ctx, "Q1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func runPass[T any](t *testing.T, path string, handler ingestion.Handler[T], sink storage.BulkWriter[T]) *ingestion.Stats {
	t.Helper()
	p, err := ingestion.NewPipeline(
		ingestion.WithSource(path),
		ingestion.WithPoolSize(2),
		ingestion.WithBatchSize(1),
		ingestion.WithPushThreshold(2),
		ingestion.WithDrainBackoff(0),
	)
	require.NoError(t, err)
	defer p.Release()

	stats, err := ingestion.Run(context.Background(), p, handler, sink, ingestion.RunOptions{})
	require.NoError(t, err)
	return stats
}

func TestPasses_FiveLineScenario(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	path := writeDump(t,
		linkedLine("Q1", `{"P31":[`+statement("normal", itemSnak("P31", "Q5"), "")+`]}`),
		linkedLine("Q2", ""),
		`{"type":"item","id":`,
		linkedLine("Q3", ""),
		unlinkedLine("Q4"),
	)

	stats := runPass(t, path, IdentifierPass("en"), storage.BulkWriter[core.IdentifierRecord](repos.Identifiers))
	assert.Equal(t, int64(1), stats.Malformed)
	assert.GreaterOrEqual(t, stats.Flushes, int64(2))

	for _, id := range []string{"Q1", "Q2", "Q3"} {
		record, err := repos.Identifiers.GetIdentifier(ctx, id)
		require.NoError(t, err, id)
		assert.True(t, record.InCorpus, id)
	}
	for _, id := range []string{"P31", "Q5"} {
		record, err := repos.Identifiers.GetIdentifier(ctx, id)
		require.NoError(t, err, id)
		assert.False(t, record.InCorpus, id)
	}
	_, err := repos.Identifiers.GetIdentifier(ctx, "Q4")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	count, err := repos.Identifiers.CountIdentifiers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	stats = runPass(t, path, EntityPass("en", repos.Identifiers, nil), storage.BulkWriter[*core.EntityRecord](repos.Entities))
	assert.Equal(t, int64(1), stats.Malformed)

	entities, err := repos.Entities.ScanEntities(ctx, "", 10)
	require.NoError(t, err)
	var ids []string
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"Q1", "Q2", "Q3"}, ids)

	missing, err := repos.Identifiers.Missing(ctx, []string{"Q1", "P31", "Q5"})
	require.NoError(t, err)
	assert.Equal(t, []string{"P31", "Q5"}, missing)
}

func TestPasses_ReferentialFilter(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	path := writeDump(t, linkedLine("Q1", ""), linkedLine("Q2", ""), unlinkedLine("Q3"))

	// Entity pass before any identifier is known stores nothing.
	runPass(t, path, EntityPass("en", repos.Identifiers, nil), storage.BulkWriter[*core.EntityRecord](repos.Entities))
	count, err := repos.Entities.CountEntities(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	runPass(t, path, IdentifierPass("en"), storage.BulkWriter[core.IdentifierRecord](repos.Identifiers))
	runPass(t, path, EntityPass("en", repos.Identifiers, nil), storage.BulkWriter[*core.EntityRecord](repos.Entities))

	count, err = repos.Entities.CountEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	exists, err := repos.Entities.Exists(ctx, "Q3")
	require.NoError(t, err)
	assert.False(t, exists)

	// A second entity pass is idempotent.
	runPass(t, path, EntityPass("en", repos.Identifiers, nil), storage.BulkWriter[*core.EntityRecord](repos.Entities))
	count, err = repos.Entities.CountEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLabelPass(t *testing.T) {
	line := `{"type":"item","id":"Q64","labels":{"en":{"language":"en","value":"Berlin"},"de":{"language":"de","value":"Berlin"},` +
		`"fr":{"language":"fr","value":"Berlin"}},"descriptions":{"en":{"language":"en","value":"capital of Germany"},` +
		`"de":{"language":"de","value":"Hauptstadt Deutschlands"}},"sitelinks":{"dewiki":{"site":"dewiki","title":"Berlin"}}}`

	got := LabelPass()(context.Background(), parse(t, line))
	require.Len(t, got, 1)
	assert.Equal(t, &core.LabelRecord{
		ID:           "Q64",
		Labels:       map[string]string{"en": "Berlin", "de": "Berlin", "fr": "Berlin"},
		Descriptions: map[string]string{"en": "capital of Germany", "de": "Hauptstadt Deutschlands"},
		InWikipedia:  true,
	}, got[0])
}

func TestLabelPass_UnlinkedAndMalformed(t *testing.T) {
	handler := LabelPass()

	got := handler(context.Background(), parse(t, `{"type":"item","id":"Q9","sitelinks":{"commons":{"site":"commons","title":"x"}}}`))
	require.Len(t, got, 1, "records outside the corpus keep their labels")
	assert.False(t, got[0].InWikipedia)
	assert.NotNil(t, got[0].Labels)
	assert.NotNil(t, got[0].Descriptions)

	assert.Empty(t, handler(context.Background(), nil))
}

func TestPasses_LabelPassStoresEveryRecord(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	path := writeDump(t, linkedLine("Q1", ""), `{"type":"item","id":`, unlinkedLine("Q2"), linkedLine("Q3", ""))

	stats := runPass(t, path, LabelPass(), storage.BulkWriter[*core.LabelRecord](repos.Labels))
	assert.Equal(t, int64(1), stats.Malformed)

	count, err := repos.Labels.CountLabels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	q2, err := repos.Labels.GetLabels(ctx, "Q2")
	require.NoError(t, err)
	assert.Equal(t, "label Q2", q2.Labels["en"])
	assert.False(t, q2.InWikipedia)

	labels, err := repos.Labels.LabelsFor(ctx, []string{"Q1", "Q3"})
	require.NoError(t, err)
	assert.Equal(t, "label Q3", labels["Q3"]["en"])

	identifiers, err := repos.Identifiers.CountIdentifiers(ctx)
	require.NoError(t, err)
	assert.Zero(t, identifiers)
}
