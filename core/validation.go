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

package core

import (
	"fmt"

	gojson "github.com/goccy/go-json"
)

// ValidateIdentifier checks that id is an uppercase letter followed by digits,
// e.g. "Q42" or "P31".
func ValidateIdentifier(id string) error {
	if len(id) < 2 {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	if id[0] < 'A' || id[0] > 'Z' {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	for i := 1; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
		}
	}
	return nil
}

// ValidateEntityRecord validates an EntityRecord before it is persisted.
//
// Validation rules:
//   - ID must be a valid identifier
//   - Claims, when present, must be valid JSON
//
// NOT validated:
//   - Label/Description (may be empty when neither language nor "mul" is present)
func ValidateEntityRecord(record *EntityRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidEntityRecord)
	}
	if err := ValidateIdentifier(record.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntityRecord, err)
	}
	if len(record.Claims) > 0 && !gojson.Valid(record.Claims) {
		return fmt.Errorf("%w: claims are not valid JSON", ErrInvalidEntityRecord)
	}
	return nil
}

// ValidateLabelRecord validates a LabelRecord before it is persisted.
// Records without any label or description are still valid.
func ValidateLabelRecord(record *LabelRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidLabelRecord)
	}
	if err := ValidateIdentifier(record.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLabelRecord, err)
	}
	return nil
}

// ValidateCheckpoint validates a Checkpoint before it is saved.
func ValidateCheckpoint(checkpoint *Checkpoint) error {
	if checkpoint == nil {
		return fmt.Errorf("checkpoint is nil")
	}
	if checkpoint.Pass == "" {
		return ErrEmptyPass
	}
	if checkpoint.Cursor < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeCursor, checkpoint.Cursor)
	}
	return nil
}
