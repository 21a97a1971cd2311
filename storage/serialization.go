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

package storage

import (
	"fmt"

	gojson "github.com/goccy/go-json"
	"github.com/poiesic/wikidump/core"
)

// MarshalIdentifierRecord serializes an IdentifierRecord to bytes.
func MarshalIdentifierRecord(record *core.IdentifierRecord) []byte {
	buf := make([]byte, core.IdentifierRecordMUS.Size(*record))
	core.IdentifierRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalIdentifierRecord deserializes an IdentifierRecord from bytes.
func UnmarshalIdentifierRecord(data []byte) (*core.IdentifierRecord, error) {
	record, _, err := core.IdentifierRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalEntityRecord serializes an EntityRecord to JSON.
// Claims are arbitrary nested JSON, so entities are stored as documents.
func MarshalEntityRecord(record *core.EntityRecord) ([]byte, error) {
	data, err := gojson.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalEntityRecord deserializes an EntityRecord from JSON.
func UnmarshalEntityRecord(data []byte) (*core.EntityRecord, error) {
	var record core.EntityRecord
	if err := gojson.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalLabelRecord serializes a LabelRecord to JSON.
func MarshalLabelRecord(record *core.LabelRecord) ([]byte, error) {
	data, err := gojson.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalLabelRecord deserializes a LabelRecord from JSON.
func UnmarshalLabelRecord(data []byte) (*core.LabelRecord, error) {
	var record core.LabelRecord
	if err := gojson.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	buf := make([]byte, core.CheckpointMUS.Size(*checkpoint))
	core.CheckpointMUS.Marshal(*checkpoint, buf)
	return buf
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	checkpoint, _, err := core.CheckpointMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &checkpoint, nil
}
