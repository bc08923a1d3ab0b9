package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/biogo/hts/bgzf"
	"github.com/klauspost/compress/zstd"

	"github.com/nvandessel/reassort/internal/constants"
)

// Suffix returns the file-name suffix for a compression codec.
func Suffix(c constants.Compression) string {
	switch c {
	case constants.CompressionBGZF:
		return ".gz"
	case constants.CompressionZstd:
		return ".zst"
	}
	return ""
}

// table is one output file, buffered and optionally compressed.
type table struct {
	path string
	f    *os.File
	zw   io.WriteCloser
	w    *bufio.Writer
}

func createTable(dir, name string, c constants.Compression) (*table, error) {
	path := filepath.Join(dir, name+Suffix(c))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	t := &table{path: path, f: f}
	var sink io.Writer = f
	switch c {
	case constants.CompressionBGZF:
		t.zw = bgzf.NewWriter(f, 1)
		sink = t.zw
	case constants.CompressionZstd:
		enc, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		t.zw = enc
		sink = enc
	}
	t.w = bufio.NewWriter(sink)
	return t, nil
}

func (t *table) printf(format string, args ...any) {
	fmt.Fprintf(t.w, format, args...)
}

func (t *table) close() error {
	if t == nil || t.f == nil {
		return nil
	}
	err := t.w.Flush()
	if t.zw != nil {
		if cerr := t.zw.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := t.f.Close(); err == nil {
		err = cerr
	}
	t.f = nil
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", t.path, err)
	}
	return nil
}

type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var err error
	for _, c := range r.closers {
		if cerr := c(); err == nil {
			err = cerr
		}
	}
	return err
}

// Open opens an output table for reading, decompressing by file suffix.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := bgzf.NewReader(f, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open bgzf stream: %w", err)
		}
		return &readCloser{Reader: zr, closers: []func() error{zr.Close, f.Close}}, nil
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		return &readCloser{Reader: dec, closers: []func() error{
			func() error { dec.Close(); return nil },
			f.Close,
		}}, nil
	}
	return f, nil
}
