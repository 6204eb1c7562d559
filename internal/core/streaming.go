package core

// streaming.go wraps the import file so the CSV reader sees clean UTF-8
// without the whole file being held in memory:
//
//   - a leading UTF-8 byte order mark (common in spreadsheet exports) is dropped
//   - invalid UTF-8 sequences become U+FFFD, so length checks count runes
//     consistently
//   - bytes consumed are counted for progress logging
//   - newlines are counted so blank lines the CSV reader skips can be found

import (
	"bytes"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CountingReader tracks how many bytes have been read through it.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // 0 when unknown
}

// NewCountingReader creates a counting reader with an optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, Total: total}
}

func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// lineCounter counts the physical lines passing through it. The count is
// exact once the underlying reader is drained.
type lineCounter struct {
	reader   io.Reader
	newlines int
	last     byte
	seen     bool
}

func (r *lineCounter) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.newlines += bytes.Count(p[:n], []byte{'\n'})
		r.last = p[n-1]
		r.seen = true
	}
	return n, err
}

// Lines returns the number of lines read so far. A final line without a
// terminator counts as a line.
func (r *lineCounter) Lines() int {
	if r.seen && r.last != '\n' {
		return r.newlines + 1
	}
	return r.newlines
}

// NewSanitizingReader drops a leading BOM and replaces invalid UTF-8 with
// U+FFFD. Multi-byte runes split across reads are reassembled.
func NewSanitizingReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
}

// WrapForStreaming applies sanitizing and then counting. The count is of
// raw file bytes so it can be compared with the file size.
func WrapForStreaming(r io.Reader, totalSize int64) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r, totalSize)
	return NewSanitizingReader(counter), counter
}
