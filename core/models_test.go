package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEntityLine = `{"type":"item","id":"Q42","modified":"2024-01-01T00:00:00Z",` +
	`"labels":{"en":{"language":"en","value":"Douglas Adams"}},` +
	`"descriptions":{"en":{"language":"en","value":"English writer"}},` +
	`"aliases":{"en":[{"language":"en","value":"DNA"}]},` +
	`"sitelinks":{"enwiki":{"site":"enwiki","title":"Douglas Adams","badges":[]}},` +
	`"claims":{"P31":[{"type":"statement","rank":"normal","mainsnak":{"snaktype":"value","property":"P31","datatype":"wikibase-item",` +
	`"datavalue":{"type":"wikibase-entityid","value":{"entity-type":"item","numeric-id":5,"id":"Q5"}}}}],` +
	`"P2048":[{"type":"statement","rank":"normal","mainsnak":{"snaktype":"value","property":"P2048","datatype":"quantity",` +
	`"datavalue":{"type":"quantity","value":{"amount":"+1.96","unit":"http://www.wikidata.org/entity/Q11573"}}}}]}}`

func TestIDFromContent_Deterministic(t *testing.T) {
	a := IDFromContent("latest-all.json.bz2")
	b := IDFromContent("latest-all.json.bz2")
	c := IDFromContent("latest-all.json.gz")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSourceFingerprint_TrimsWhitespace(t *testing.T) {
	assert.Equal(t, SourceFingerprint("dump.json.gz"), SourceFingerprint("  dump.json.gz\n"))
}

func TestSourceFingerprint_NormalizesPath(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, SourceFingerprint(filepath.Join(wd, "dump.json")), SourceFingerprint("./dump.json"))
	assert.Equal(t, SourceFingerprint("dump.json"), SourceFingerprint("data/../dump.json"))
	assert.NotEqual(t, SourceFingerprint("dump.json"), SourceFingerprint("other/dump.json"))
}

func TestIdentifierRecord_Merge(t *testing.T) {
	r := IdentifierRecord{ID: "Q1", InCorpus: true}
	r.Merge(IdentifierRecord{ID: "Q1", IsProperty: false, Fetched: true})

	assert.True(t, r.InCorpus, "flags never turn off")
	assert.False(t, r.IsProperty)
	assert.True(t, r.Fetched)
}

func TestIsPropertyID(t *testing.T) {
	assert.True(t, IsPropertyID("P31"))
	assert.False(t, IsPropertyID("Q31"))
	assert.False(t, IsPropertyID(""))
}

func TestParseEntity(t *testing.T) {
	e, err := ParseEntity([]byte(sampleEntityLine))
	require.NoError(t, err)

	assert.Equal(t, "Q42", e.ID)
	assert.Equal(t, EntityKindItem, e.Type)
	assert.Equal(t, "Douglas Adams", e.Labels["en"].Value)
	assert.Contains(t, e.Sitelinks, "enwiki")
	require.Len(t, e.Claims["P31"], 1)
	assert.Equal(t, "wikibase-item", e.Claims["P31"][0].Mainsnak.Datatype)
}

func TestParseEntity_Malformed(t *testing.T) {
	_, err := ParseEntity([]byte(`{"id": "Q1", `))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = ParseEntity([]byte(`{"type":"item"}`))
	assert.ErrorIs(t, err, ErrMalformedRecord, "records without id are malformed")
}

func TestSnak_ReferencedID(t *testing.T) {
	e, err := ParseEntity([]byte(sampleEntityLine))
	require.NoError(t, err)

	id, isProp, ok := e.Claims["P31"][0].Mainsnak.ReferencedID()
	require.True(t, ok)
	assert.Equal(t, "Q5", id)
	assert.False(t, isProp)

	id, _, ok = e.Claims["P2048"][0].Mainsnak.ReferencedID()
	require.True(t, ok)
	assert.Equal(t, "Q11573", id)

	var nilSnak *Snak
	_, _, ok = nilSnak.ReferencedID()
	assert.False(t, ok)

	novalue := &Snak{Snaktype: "novalue", Property: "P40", Datatype: DatatypeItem}
	_, _, ok = novalue.ReferencedID()
	assert.False(t, ok)
}

func TestUnitID(t *testing.T) {
	assert.Equal(t, "", UnitID("1"))
	assert.Equal(t, "", UnitID(""))
	assert.Equal(t, "Q11573", UnitID("http://www.wikidata.org/entity/Q11573"))
	assert.Equal(t, "Q11573", UnitID("Q11573"))
}

func TestIdentifierRecordMUS_RoundTrip(t *testing.T) {
	in := IdentifierRecord{ID: "P31", InCorpus: false, IsProperty: true, Fetched: true}
	buf := make([]byte, IdentifierRecordMUS.Size(in))
	n := IdentifierRecordMUS.Marshal(in, buf)
	require.Equal(t, len(buf), n)

	out, m, err := IdentifierRecordMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, n, m)
	assert.Equal(t, in, out)
}

func TestCheckpointMUS_TruncatedData(t *testing.T) {
	in := Checkpoint{Pass: "ids", Source: IDFromContent("x"), Cursor: 1234}
	buf := make([]byte, CheckpointMUS.Size(in))
	CheckpointMUS.Marshal(in, buf)

	_, _, err := CheckpointMUS.Unmarshal(buf[:2])
	assert.Error(t, err)
}
