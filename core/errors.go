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

import "errors"

// Domain validation errors
var (
	// ErrMalformedRecord indicates a dump line could not be decoded as an entity.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrInvalidIdentifier indicates an identifier does not have the form [A-Z]digits.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrInvalidEntityRecord indicates an EntityRecord failed validation.
	ErrInvalidEntityRecord = errors.New("invalid entity record")

	// ErrInvalidLabelRecord indicates a LabelRecord failed validation.
	ErrInvalidLabelRecord = errors.New("invalid label record")

	// ErrEmptyPass indicates a checkpoint without a pass name.
	ErrEmptyPass = errors.New("checkpoint pass cannot be empty")

	// ErrNegativeCursor indicates a checkpoint with a negative line cursor.
	ErrNegativeCursor = errors.New("checkpoint cursor cannot be negative")
)
