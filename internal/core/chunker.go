package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
)

// Chunker reads a delimited file record by record and groups transformed
// records into fixed-size batches. Memory use is bounded by one batch.
//
// A Chunker is single-pass: the header is consumed by OpenChunker and
// Batches may be ranged over once.
//
// Blank lines are data rows with one empty field, so they reach the
// transformer and fail its field-count check like any short row.
type Chunker struct {
	size    int
	file    *os.File
	reader  *csv.Reader
	counter *CountingReader
	lines   *lineCounter
	header  []string
	closed  bool

	// lastLine is the final physical line of the most recent record.
	lastLine int
	// pending is a data record read while looking for the header, when the
	// header line itself was blank.
	pending *record
}

type record struct {
	fields     []string
	start, end int
}

// OpenChunker opens path, reads and discards its header record, and
// prepares to yield batches of size records.
//
// A missing or unreadable file is an IO error; a file without a header
// record or with an unparsable one is a Format error.
func OpenChunker(path string, size int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &ImportError{Kind: KindIO, Err: fmt.Errorf("unable to open file at %s: %w", path, err)}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &ImportError{Kind: KindIO, Err: fmt.Errorf("stat %s: %w", path, err)}
	}
	if info.IsDir() {
		f.Close()
		return nil, &ImportError{Kind: KindIO, Err: fmt.Errorf("unable to open file at %s: is a directory", path)}
	}

	src, counter := WrapForStreaming(f, info.Size())
	lines := &lineCounter{reader: src}
	r := csv.NewReader(lines)
	r.FieldsPerRecord = -1 // manufacturers tolerate trailing fields
	r.LazyQuotes = true

	c := &Chunker{
		size:    size,
		file:    f,
		reader:  r,
		counter: counter,
		lines:   lines,
	}

	first, err := c.read()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, &ImportError{Kind: KindFormat, Err: ErrEmptyFile}
		}
		return nil, readError(err)
	}

	if first.start > 1 {
		// csv.Reader skipped a blank first line; that line was the header.
		c.header = []string{""}
		c.lastLine = 1
		c.pending = &first
	} else {
		c.header = first.fields
		c.lastLine = first.end
	}
	return c, nil
}

// Header returns the discarded header record.
func (c *Chunker) Header() []string { return c.header }

// BytesRead returns the raw file bytes consumed so far and the file size.
func (c *Chunker) BytesRead() (read, total int64) {
	return c.counter.BytesRead, c.counter.Total
}

// Close releases the file handle. Safe to call more than once.
func (c *Chunker) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.file.Close()
}

// Batches returns the lazy sequence of batches produced by applying
// transform to every post-header record, blank lines included.
//
// A batch is yielded each time the 1-based row count reaches a multiple of
// the batch size, and once more for a trailing partial batch. transform runs
// before its row joins the pending batch, so the first failing row ends the
// sequence with (nil, err) before the batch containing it is yielded.
//
// The file is closed when the sequence finishes, fails, or the consumer
// stops ranging early.
func Batches[T any](c *Chunker, transform func(RawRow) (T, error)) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		if c.closed {
			yield(nil, &ImportError{Kind: KindIO, Err: ErrChunkerClosed})
			return
		}
		defer c.Close()

		batch := make([]T, 0, c.size)
		count := 0
		add := func(row RawRow) bool {
			item, err := transform(row)
			if err != nil {
				yield(nil, atLine(err, row.Line))
				return false
			}
			batch = append(batch, item)
			count++
			if count%c.size == 0 {
				if !yield(batch, nil) {
					return false
				}
				batch = make([]T, 0, c.size)
			}
			return true
		}
		// blanks feeds the skipped lines after lastLine and before line.
		blanks := func(line int) bool {
			for n := c.lastLine + 1; n < line; n++ {
				if !add(RawRow{Line: n, Fields: []string{""}}) {
					return false
				}
			}
			return true
		}

		for {
			rec, err := c.next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				yield(nil, readError(err))
				return
			}

			if !blanks(rec.start) {
				return
			}
			c.lastLine = rec.end
			if !add(RawRow{Line: rec.start, Fields: rec.fields}) {
				return
			}
		}

		// The reader is drained, so the line count is final.
		if !blanks(c.lines.Lines() + 1) {
			return
		}
		if len(batch) > 0 {
			yield(batch, nil)
		}
	}
}

// next returns the record held back by OpenChunker, if any, then reads on.
func (c *Chunker) next() (record, error) {
	if c.pending != nil {
		rec := *c.pending
		c.pending = nil
		return rec, nil
	}
	return c.read()
}

// read parses one record and locates it in the file. The end line accounts
// for line breaks inside a quoted final field.
func (c *Chunker) read() (record, error) {
	fields, err := c.reader.Read()
	if err != nil {
		return record{}, err
	}
	start, _ := c.reader.FieldPos(0)
	last := len(fields) - 1
	lastStart, _ := c.reader.FieldPos(last)
	return record{
		fields: fields,
		start:  start,
		end:    lastStart + strings.Count(fields[last], "\n"),
	}, nil
}

// readError classifies a csv.Reader failure. Parse errors are Format errors
// carrying the line where the bad record starts; anything else came from the
// underlying file.
func readError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		line := pe.StartLine
		if line == 0 {
			line = pe.Line
		}
		return &ImportError{Kind: KindFormat, Line: line, Err: fmt.Errorf("invalid csv: %w", pe.Err)}
	}
	return &ImportError{Kind: KindIO, Err: fmt.Errorf("read file: %w", err)}
}
