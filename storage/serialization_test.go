package storage

import (
	"testing"
	"time"

	"github.com/poiesic/wikidump/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalIdentifierRecord(t *testing.T) {
	tests := []struct {
		name   string
		record core.IdentifierRecord
	}{
		{"bare item", core.IdentifierRecord{ID: "Q1"}},
		{"corpus item", core.IdentifierRecord{ID: "Q42", InCorpus: true}},
		{"fetched property", core.IdentifierRecord{ID: "P31", IsProperty: true, Fetched: true}},
		{"all flags", core.IdentifierRecord{ID: "Q123456789", InCorpus: true, IsProperty: true, Fetched: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalIdentifierRecord(&tt.record)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalIdentifierRecord(data)
			require.NoError(t, err)
			assert.Equal(t, tt.record, *decoded)
		})
	}
}

func TestUnmarshalIdentifierRecord_Invalid(t *testing.T) {
	_, err := UnmarshalIdentifierRecord([]byte{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalEntityRecord(t *testing.T) {
	record := &core.EntityRecord{
		ID:          "Q42",
		Label:       "Douglas Adams",
		Description: "English writer",
		Aliases:     []string{"DNA", "Douglas Noel Adams"},
		Claims:      []byte(`{"P31":[{"mainsnak":{"datavalue":{"id":"Q5"}},"rank":"normal"}]}`),
		Modified:    "2024-01-01T00:00:00Z",
	}

	data, err := MarshalEntityRecord(record)
	require.NoError(t, err)

	decoded, err := UnmarshalEntityRecord(data)
	require.NoError(t, err)
	assert.Equal(t, record.ID, decoded.ID)
	assert.Equal(t, record.Aliases, decoded.Aliases)
	assert.JSONEq(t, string(record.Claims), string(decoded.Claims))
}

func TestUnmarshalEntityRecord_Invalid(t *testing.T) {
	_, err := UnmarshalEntityRecord([]byte(`{"id":`))
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalCheckpoint(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	checkpoint := &core.Checkpoint{
		Pass:      "entities",
		Source:    core.SourceFingerprint("/data/latest-all.json.bz2"),
		Cursor:    98765432,
		UpdatedAt: now,
	}

	decoded, err := UnmarshalCheckpoint(MarshalCheckpoint(checkpoint))
	require.NoError(t, err)
	assert.Equal(t, checkpoint.Pass, decoded.Pass)
	assert.Equal(t, checkpoint.Source, decoded.Source)
	assert.Equal(t, checkpoint.Cursor, decoded.Cursor)
	assert.True(t, checkpoint.UpdatedAt.Equal(decoded.UpdatedAt))
}
