package ingestion

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/poiesic/wikidump/core"
	"github.com/poiesic/wikidump/storage"
	"github.com/stretchr/testify/require"
)

// itemLine returns a minimal dump line for id.
func itemLine(id string) string {
	return fmt.Sprintf(`{"type":"item","id":%q,"labels":{"en":{"language":"en","value":"label %s"}}}`, id, id)
}

func itemLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = itemLine(fmt.Sprintf("Q%d", i+1))
	}
	return lines
}

// writeDump writes records in dump layout: "[" on the first line, one
// record per line separated by commas, "]" on the last line. The extension
// of name selects the compression.
func writeDump(t *testing.T, name string, records []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var w io.WriteCloser
	switch filepath.Ext(name) {
	case ".gz":
		w = gzip.NewWriter(f)
	case ".zst":
		w, err = zstd.NewWriter(f)
		require.NoError(t, err)
	case ".lz4":
		w = lz4.NewWriter(f)
	case ".bz2":
		w, err = bzip2.NewWriter(f, &bzip2.WriterConfig{Level: bzip2.BestSpeed})
		require.NoError(t, err)
	default:
		w = nopWriteCloser{f}
	}

	body := "[\n" + strings.Join(records, ",\n") + "\n]\n"
	_, err = io.WriteString(w, body)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return path
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// idHandler returns the entity ID of every parsed record.
func idHandler(_ context.Context, e *core.Entity) []string {
	if e == nil {
		return nil
	}
	return []string{e.ID}
}

// memSink records batches. The first failures calls fail with ErrContention.
type memSink struct {
	mu       sync.Mutex
	batches  [][]string
	calls    int
	failures int
}

func (s *memSink) BulkUpsert(ctx context.Context, items []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return fmt.Errorf("%w: simulated", storage.ErrContention)
	}
	s.batches = append(s.batches, append([]string(nil), items...))
	return nil
}

func (s *memSink) items() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []string
	for _, b := range s.batches {
		all = append(all, b...)
	}
	return all
}

func (s *memSink) batchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sizes := make([]int, len(s.batches))
	for i, b := range s.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func newTestPipeline(t *testing.T, path string, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithSource(path), WithDrainBackoff(0)}, opts...)
	p, err := NewPipeline(opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}
