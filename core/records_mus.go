// MUS serializers for the records kept in the badger store.
// cmd/musgen regenerates this file.

//go:generate go run ../cmd/musgen

package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// IdentifierRecordMUS is the MUS serializer for IdentifierRecord.
var IdentifierRecordMUS = identifierRecordMUS{}

// CheckpointMUS is the MUS serializer for Checkpoint.
var CheckpointMUS = checkpointMUS{}

type identifierRecordMUS struct{}

func (s identifierRecordMUS) Marshal(v IdentifierRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.Bool.Marshal(v.InCorpus, bs[n:])
	n += ord.Bool.Marshal(v.IsProperty, bs[n:])
	return n + ord.Bool.Marshal(v.Fetched, bs[n:])
}

func (s identifierRecordMUS) Unmarshal(bs []byte) (v IdentifierRecord, n int, err error) {
	v.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.InCorpus, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.IsProperty, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Fetched, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	return
}

func (s identifierRecordMUS) Size(v IdentifierRecord) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.Bool.Size(v.InCorpus)
	size += ord.Bool.Size(v.IsProperty)
	return size + ord.Bool.Size(v.Fetched)
}

type checkpointMUS struct{}

func (s checkpointMUS) Marshal(v Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(v.Pass, bs)
	n += varint.Uint64.Marshal(uint64(v.Source), bs[n:])
	n += varint.Int64.Marshal(v.Cursor, bs[n:])
	return n + varint.Int64.Marshal(v.UpdatedAt.UnixMicro(), bs[n:])
}

func (s checkpointMUS) Unmarshal(bs []byte) (v Checkpoint, n int, err error) {
	v.Pass, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var (
		n1     int
		source uint64
		micros int64
	)
	source, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Source = ID(source)
	v.Cursor, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt = time.UnixMicro(micros).UTC()
	return
}

func (s checkpointMUS) Size(v Checkpoint) (size int) {
	size = ord.String.Size(v.Pass)
	size += varint.Uint64.Size(uint64(v.Source))
	size += varint.Int64.Size(v.Cursor)
	return size + varint.Int64.Size(v.UpdatedAt.UnixMicro())
}
