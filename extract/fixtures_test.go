package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/wikidump/core"
	"github.com/stretchr/testify/require"
)

// linkedLine returns a record linked to English Wikipedia with the given
// claims object.
func linkedLine(id, claims string) string {
	if claims == "" {
		claims = "{}"
	}
	return fmt.Sprintf(`{"type":"item","id":%q,"modified":"2024-05-01T00:00:00Z",`+
		`"labels":{"en":{"language":"en","value":"label %s"}},`+
		`"descriptions":{"en":{"language":"en","value":"description %s"}},`+
		`"aliases":{"en":[{"language":"en","value":"alias %s"}]},`+
		`"sitelinks":{"enwiki":{"site":"enwiki","title":"Title %s"}},`+
		`"claims":%s}`, id, id, id, id, id, claims)
}

// unlinkedLine returns a record without any sitelink.
func unlinkedLine(id string) string {
	return fmt.Sprintf(`{"type":"item","id":%q,"labels":{"en":{"language":"en","value":"label %s"}},"descriptions":{"en":{"language":"en","value":"d"}}}`, id, id)
}

// itemSnak returns a wikibase-item main snak pointing at target.
func itemSnak(property, target string) string {
	return fmt.Sprintf(`{"snaktype":"value","property":%q,"hash":"h-%s","datatype":"wikibase-item",`+
		`"datavalue":{"type":"wikibase-entityid","value":{"entity-type":"item","numeric-id":%s,"id":%q}}}`,
		property, target, target[1:], target)
}

func statement(rank, mainsnak, qualifiers string) string {
	s := fmt.Sprintf(`{"type":"statement","rank":%q,"id":"S-%d","mainsnak":%s`, rank, len(mainsnak), mainsnak)
	if qualifiers != "" {
		s += `,"qualifiers":` + qualifiers + `,"qualifiers-order":["P580"]`
	}
	return s + "}"
}

// richClaims exercises every kind of referenced identifier.
var richClaims = `{` +
	`"P31":[` + statement("normal", itemSnak("P31", "Q5"), "") + `,` + statement("deprecated", itemSnak("P31", "Q99"), "") + `],` +
	`"P1082":[` + statement("preferred",
	`{"snaktype":"value","property":"P1082","hash":"x","datatype":"quantity","datavalue":{"type":"quantity","value":{"amount":"+3","unit":"http://www.wikidata.org/entity/Q11573"}}}`,
	`{"P580":[{"snaktype":"value","property":"P580","hash":"q","datatype":"time","datavalue":{"type":"time","value":{"time":"+2001-01-01T00:00:00Z","precision":11}}}],`+
		`"P642":[{"snaktype":"value","property":"P642","datatype":"wikibase-property","datavalue":{"type":"wikibase-entityid","value":{"entity-type":"property","numeric-id":17,"id":"P17"}}}]}`) + `],` +
	`"P2044":[` + statement("normal",
	`{"snaktype":"value","property":"P2044","datatype":"quantity","datavalue":{"type":"quantity","value":{"amount":"+1","unit":"1"}}}`, "") + `],` +
	`"P999":[` + statement("deprecated", itemSnak("P999", "Q98"), "") + `]` +
	`}`

func parse(t *testing.T, line string) *core.Entity {
	t.Helper()
	e, err := core.ParseEntity([]byte(line))
	require.NoError(t, err)
	return e
}

// writeDump writes an uncompressed dump with one record per line.
func writeDump(t *testing.T, records ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dump.json")
	body := "[\n" + strings.Join(records, ",\n") + "\n]\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
