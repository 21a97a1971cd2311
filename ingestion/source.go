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

package ingestion

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// DefaultMaxLineSize bounds a single dump line. The largest entities in the
// full dump are a few megabytes.
const DefaultMaxLineSize = 64 << 20

const readBufferSize = 1 << 20

// lineTrim is stripped from both ends of every line. Dump lines are array
// elements of the form "{...},".
const lineTrim = "[] ,\r\n\t"

// Line is one record-bearing line of the dump.
type Line struct {
	Cursor    int64  // raw lines consumed, including this one
	Data      []byte // trimmed line; nil when Oversized
	Oversized bool   // longer than the maximum line size and discarded
}

// Source is a single-pass reader of record lines from a possibly compressed
// dump archive.
type Source struct {
	path     string
	file     *os.File
	closers  []func() error
	br       *bufio.Reader
	skip     int64
	maxLine  int
	consumed int64
	buf      []byte
}

// OpenSource opens the archive at path. The compression format is chosen by
// file extension. The first skipLines raw lines are consumed but not yielded.
func OpenSource(path string, skipLines int64, maxLineSize int) (*Source, error) {
	if path == "" {
		return nil, ErrSourceRequired
	}
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStream, path, err)
	}

	s := &Source{
		path:    path,
		file:    file,
		skip:    max(skipLines, 0),
		maxLine: maxLineSize,
	}

	reader, err := s.decoder(file)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrStream, path, err)
	}
	s.br = bufio.NewReaderSize(reader, readBufferSize)

	if err := s.expectArray(); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrStream, path, err)
	}
	return s, nil
}

// decoder wraps file in the decompressor matching the path extension.
func (s *Source) decoder(file *os.File) (io.Reader, error) {
	switch ext := strings.ToLower(filepath.Ext(s.path)); ext {
	case ".gz":
		zr, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, zr.Close)
		return zr, nil
	case ".zst":
		zr, err := zstd.NewReader(file)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { zr.Close(); return nil })
		return zr, nil
	case ".lz4":
		return lz4.NewReader(file), nil
	case ".bz2":
		zr, err := bzip2.NewReader(file, nil)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, zr.Close)
		return zr, nil
	case ".json", ".ndjson", ".jsonl":
		return file, nil
	default:
		return nil, fmt.Errorf("unsupported extension %q", ext)
	}
}

// expectArray checks that the first non-whitespace byte opens a JSON array.
func (s *Source) expectArray() error {
	for {
		b, err := s.br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("empty stream")
			}
			return err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			return s.br.UnreadByte()
		default:
			return fmt.Errorf("expected '[' but found %q", b)
		}
	}
}

// Path returns the archive path.
func (s *Source) Path() string {
	return s.path
}

// Consumed returns the number of raw lines read so far.
func (s *Source) Consumed() int64 {
	return s.consumed
}

// Lines yields each non-empty line after the skipped prefix. A read error is
// yielded once, wrapped in ErrStream, and ends the sequence.
func (s *Source) Lines() iter.Seq2[Line, error] {
	return func(yield func(Line, error) bool) {
		for {
			raw, oversized, err := s.readLine()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Line{Cursor: s.consumed}, fmt.Errorf("%w: %s: %w", ErrStream, s.path, err))
				return
			}
			s.consumed++
			if s.consumed <= s.skip {
				continue
			}
			if oversized {
				if !yield(Line{Cursor: s.consumed, Oversized: true}, nil) {
					return
				}
				continue
			}

			data := bytes.Trim(raw, lineTrim)
			if len(data) == 0 {
				continue
			}
			if !yield(Line{Cursor: s.consumed, Data: bytes.Clone(data)}, nil) {
				return
			}
		}
	}
}

// readLine reads one raw line. Lines whose content, excluding the newline,
// is longer than maxLine are consumed but not buffered. io.EOF is returned
// only when nothing was read.
func (s *Source) readLine() ([]byte, bool, error) {
	s.buf = s.buf[:0]
	oversized := false
	read := false
	for {
		chunk, err := s.br.ReadSlice('\n')
		read = read || len(chunk) > 0
		if !oversized {
			content := len(chunk)
			if err == nil {
				content-- // ReadSlice returned through the '\n'
			}
			if len(s.buf)+content > s.maxLine {
				oversized = true
				s.buf = s.buf[:0]
			} else {
				s.buf = append(s.buf, chunk...)
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && read:
			return s.buf, oversized, nil
		}
		return s.buf, oversized, err
	}
}

// Close releases the decoders and the underlying file.
func (s *Source) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			errs = append(errs, err)
		}
		s.file = nil
	}
	return errors.Join(errs...)
}
