package badger

import (
	"fmt"

	"github.com/poiesic/wikidump/core"
)

// Key prefixes for different data types
const (
	identifierPrefix = "idrec:"
	entityPrefix     = "entrec:"
	labelPrefix      = "lblrec:"
	checkpointSuffix = "chkpt"
)

// makeIdentifierKey generates a key for an identifier record.
func makeIdentifierKey(id string) []byte {
	buf := make([]byte, 0, len(identifierPrefix)+len(id))
	buf = append(buf, identifierPrefix...)
	return append(buf, id...)
}

// makeEntityKey generates a key for an entity record.
func makeEntityKey(id string) []byte {
	buf := make([]byte, 0, len(entityPrefix)+len(id))
	buf = append(buf, entityPrefix...)
	return append(buf, id...)
}

func makeLabelKey(id string) []byte {
	buf := make([]byte, 0, len(labelPrefix)+len(id))
	buf = append(buf, labelPrefix...)
	return append(buf, id...)
}

// entityIDFromKey strips the entity prefix from a key.
func entityIDFromKey(key []byte) string {
	return string(key[len(entityPrefix):])
}

// makeCheckpointKey generates a key for a pass checkpoint over a source.
// Format: pass:source:chkpt
func makeCheckpointKey(pass string, source core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%016x:%s", pass, uint64(source), checkpointSuffix))
}
