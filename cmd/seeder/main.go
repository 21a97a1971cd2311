package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	gojson "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/poiesic/wikidump/core"
)

var descriptions = []string{
	"river in northern Europe",
	"species of flowering plant",
	"village in the district of Lower Saxony",
	"painting by an unknown artist",
	"chemical compound",
	"American basketball player",
	"album by a Brazilian band",
	"asteroid of the main belt",
	"road in the city centre",
	"scholarly article published in 1998",
}

var (
	outFile   = flag.String("out", "synthetic.json.gz", "output archive; the extension selects compression")
	count     = flag.Int("n", 10000, "number of records")
	linked    = flag.Float64("linked", 0.6, "fraction of records with an enwiki sitelink")
	malformed = flag.Float64("malformed", 0.001, "fraction of lines that are not valid JSON")
	seed      = flag.Uint64("seed", 42, "random seed")
)

func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// generator produces synthetic dump records.
type generator struct {
	rng       *rand.Rand
	n         int
	linked    float64
	malformed float64
}

// lines yields one serialized record per item, without separators.
func (g *generator) lines() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for i := 1; i <= g.n; i++ {
			if g.rng.Float64() < g.malformed {
				if !yield([]byte(fmt.Sprintf(`{"type":"item","id":"Q%d","labels":`, i)), nil) {
					return
				}
				continue
			}
			line, err := gojson.Marshal(g.entity(i))
			if !yield(line, err) || err != nil {
				return
			}
		}
	}
}

func (g *generator) entity(i int) *core.Entity {
	id := fmt.Sprintf("Q%d", i)
	e := &core.Entity{
		ID:       id,
		Type:     core.EntityKindItem,
		Modified: "2025-01-01T00:00:00Z",
		Labels: map[string]core.LangValue{
			"en": {Language: "en", Value: "Item " + id},
		},
		Descriptions: map[string]core.LangValue{
			"en": {Language: "en", Value: descriptions[g.rng.IntN(len(descriptions))]},
		},
		Aliases: map[string][]core.LangValue{
			"mul": {{Language: "mul", Value: strings.ToLower(id)}},
		},
		Claims: map[string][]core.Statement{
			"P31": {g.statement("P31", itemValue(fmt.Sprintf("Q%d", 5+g.rng.IntN(20))), core.DatatypeItem)},
			"P17": {g.statement("P17", itemValue(fmt.Sprintf("Q%d", 1+g.rng.IntN(g.n))), core.DatatypeItem)},
			"P2044": {g.statement("P2044",
				gojson.RawMessage(fmt.Sprintf(`{"amount":"+%d","unit":"http://www.wikidata.org/entity/Q11573"}`, g.rng.IntN(4000))),
				core.DatatypeQuantity)},
		},
	}
	if g.rng.Float64() < g.linked {
		e.Sitelinks = map[string]core.Sitelink{"enwiki": {Site: "enwiki", Title: "Item " + id}}
	}
	return e
}

func (g *generator) statement(property string, value gojson.RawMessage, datatype string) core.Statement {
	rank := "normal"
	if g.rng.IntN(20) == 0 {
		rank = core.StatementRankDeprecated
	}
	valueType := "wikibase-entityid"
	if datatype == core.DatatypeQuantity {
		valueType = "quantity"
	}
	return core.Statement{
		Type: "statement",
		Rank: rank,
		Mainsnak: &core.Snak{
			Snaktype:  "value",
			Property:  property,
			Datatype:  datatype,
			Datavalue: &core.DataValue{Type: valueType, Value: value},
		},
	}
}

func itemValue(id string) gojson.RawMessage {
	return gojson.RawMessage(fmt.Sprintf(`{"entity-type":"item","id":%q}`, id))
}

// compressor wraps w in the encoder matching the path extension.
func compressor(path string, w io.Writer) (io.WriteCloser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gz":
		return gzip.NewWriter(w), nil
	case ".zst":
		return zstd.NewWriter(w)
	case ".lz4":
		return lz4.NewWriter(w), nil
	case ".bz2":
		return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	case ".json", ".ndjson", ".jsonl":
		return nopCloser{w}, nil
	default:
		return nil, fmt.Errorf("cannot write %q archives", ext)
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// writeDump writes the records in dump layout: "[" and "]" on their own
// lines, one record per line separated by commas.
func writeDump(path string, g *generator) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cw, err := compressor(path, f)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriterSize(cw, 1<<20)

	written := 0
	bw.WriteString("[\n")
	for line, err := range g.lines() {
		if err != nil {
			return written, err
		}
		if written > 0 {
			bw.WriteString(",\n")
		}
		bw.Write(line)
		written++
	}
	bw.WriteString("\n]\n")

	if err := bw.Flush(); err != nil {
		return written, err
	}
	if err := cw.Close(); err != nil {
		return written, err
	}
	return written, f.Close()
}

func main() {
	flag.Parse()

	g := &generator{
		rng:       rand.New(rand.NewPCG(*seed, *seed)),
		n:         *count,
		linked:    *linked,
		malformed: *malformed,
	}
	written, err := writeDump(*outFile, g)
	if err != nil {
		slog.Error("failed to write dump", "path", *outFile, "error", err)
		os.Exit(1)
	}
	slog.Info("dump written", "path", *outFile, "records", written)
}
