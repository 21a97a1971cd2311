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

// Datatypes whose values reference other identifiers.
const (
	DatatypeItem     = "wikibase-item"
	DatatypeProperty = "wikibase-property"
	DatatypeQuantity = "quantity"
)

// StatementRankDeprecated marks statements excluded from normalized entities.
const StatementRankDeprecated = "deprecated"

// Entity is one decoded record from the dump.
// It is immutable once parsed and consumed by exactly one worker.
type Entity struct {
	ID           string                 `json:"id"`
	Type         EntityKind             `json:"type"`
	Modified     string                 `json:"modified,omitempty"`
	Labels       map[string]LangValue   `json:"labels,omitempty"`
	Descriptions map[string]LangValue   `json:"descriptions,omitempty"`
	Aliases      map[string][]LangValue `json:"aliases,omitempty"`
	Sitelinks    map[string]Sitelink    `json:"sitelinks,omitempty"`
	Claims       map[string][]Statement `json:"claims,omitempty"`
}

// LangValue is a language-tagged string.
type LangValue struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// Sitelink links an entity to a page on a site such as "enwiki".
type Sitelink struct {
	Site   string   `json:"site"`
	Title  string   `json:"title"`
	Badges []string `json:"badges,omitempty"`
}

// Statement is a single claim on an entity.
type Statement struct {
	ID              string            `json:"id,omitempty"`
	Type            string            `json:"type"`
	Rank            string            `json:"rank"`
	Mainsnak        *Snak             `json:"mainsnak,omitempty"`
	Qualifiers      map[string][]Snak `json:"qualifiers,omitempty"`
	QualifiersOrder []string          `json:"qualifiers-order,omitempty"`
	References      []Reference       `json:"references,omitempty"`
}

// Reference is a set of snaks sourcing a statement.
type Reference struct {
	Hash       string            `json:"hash,omitempty"`
	Snaks      map[string][]Snak `json:"snaks,omitempty"`
	SnaksOrder []string          `json:"snaks-order,omitempty"`
}

// Snak is a property-value pair.
type Snak struct {
	Snaktype  string     `json:"snaktype"`
	Property  string     `json:"property"`
	Hash      string     `json:"hash,omitempty"`
	Datatype  string     `json:"datatype,omitempty"`
	Datavalue *DataValue `json:"datavalue,omitempty"`
}

// DataValue holds a typed snak value. Value is decoded lazily.
type DataValue struct {
	Type  string            `json:"type"`
	Value gojson.RawMessage `json:"value"`
}

// entityIDValue is the value of a wikibase-entityid datavalue.
type entityIDValue struct {
	ID string `json:"id"`
}

// quantityValue is the value of a quantity datavalue.
type quantityValue struct {
	Unit string `json:"unit"`
}

// ParseEntity decodes one dump line into an Entity.
func ParseEntity(line []byte) (*Entity, error) {
	var e Entity
	if err := gojson.Unmarshal(line, &e); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if e.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	return &e, nil
}

// ReferencedID returns the identifier a snak points at, if any.
// Entity-valued snaks yield their target; quantities yield their unit
// unless the unit is the dimensionless "1".
func (s *Snak) ReferencedID() (id string, isProperty bool, ok bool) {
	if s == nil || s.Datavalue == nil || len(s.Datavalue.Value) == 0 {
		return "", false, false
	}
	switch s.Datatype {
	case DatatypeItem, DatatypeProperty:
		var v entityIDValue
		if err := gojson.Unmarshal(s.Datavalue.Value, &v); err != nil || v.ID == "" {
			return "", false, false
		}
		return v.ID, s.Datatype == DatatypeProperty, true
	case DatatypeQuantity:
		var v quantityValue
		if err := gojson.Unmarshal(s.Datavalue.Value, &v); err != nil {
			return "", false, false
		}
		unit := UnitID(v.Unit)
		if unit == "" {
			return "", false, false
		}
		return unit, false, true
	}
	return "", false, false
}

// UnitID extracts the identifier from a quantity unit URI.
// Returns "" for the dimensionless unit "1".
func UnitID(unit string) string {
	if unit == "" || unit == "1" {
		return ""
	}
	for i := len(unit) - 1; i >= 0; i-- {
		if unit[i] == '/' {
			return unit[i+1:]
		}
	}
	return unit
}
