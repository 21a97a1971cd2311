package core

import (
	"encoding/binary"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	gojson "github.com/goccy/go-json"
)

// ID is a content-derived 64-bit identifier.
// Used to fingerprint sources for checkpoint keys.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// EntityKind is the "type" field of a dump record.
type EntityKind string

const (
	// EntityKindItem is a Q-prefixed item.
	EntityKindItem EntityKind = "item"
	// EntityKindProperty is a P-prefixed property.
	EntityKindProperty EntityKind = "property"
	// EntityKindLexeme is an L-prefixed lexeme.
	EntityKindLexeme EntityKind = "lexeme"
)

// MultilingualCode is the language code used for labels valid in every language.
const MultilingualCode = "mul"

// IdentifierRecord is the persisted form of an identifier in the identifier index.
type IdentifierRecord struct {
	ID         string
	InCorpus   bool // linked to the target site corpus
	IsProperty bool
	Fetched    bool // full entity data has been stored
}

// Merge folds other into r. Flags only ever turn on.
func (r *IdentifierRecord) Merge(other IdentifierRecord) {
	r.InCorpus = r.InCorpus || other.InCorpus
	r.IsProperty = r.IsProperty || other.IsProperty
	r.Fetched = r.Fetched || other.Fetched
}

// EntityRecord is the persisted, language-filtered form of an entity.
type EntityRecord struct {
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	Description string            `json:"description"`
	Aliases     []string          `json:"aliases"`
	Claims      gojson.RawMessage `json:"claims"`
	Modified    string            `json:"modified,omitempty"`
}

// LabelRecord holds the labels and descriptions of an entity in every
// language, keyed by language code.
type LabelRecord struct {
	ID           string            `json:"id"`
	Labels       map[string]string `json:"labels"`
	Descriptions map[string]string `json:"descriptions"`
	InWikipedia  bool              `json:"in_wikipedia"` // has a sitelink to any Wikipedia
}

// Checkpoint stores the resumable line cursor of a pass over a source archive.
type Checkpoint struct {
	Pass      string    // e.g. "ids", "entities"
	Source    ID        // fingerprint of the source archive
	Cursor    int64     // raw lines that can be skipped on resume
	UpdatedAt time.Time
}

// SourceFingerprint returns the checkpoint key component for an archive path.
// Relative and absolute spellings of the same path share a fingerprint.
func SourceFingerprint(path string) ID {
	path = strings.TrimSpace(path)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	} else {
		path = filepath.Clean(path)
	}
	return IDFromContent(path)
}

// IsPropertyID reports whether id names a property (P-prefixed).
func IsPropertyID(id string) bool {
	return strings.HasPrefix(id, "P")
}
