package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeCSV writes content to a temp file and returns its path.
func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

// numberedRows builds a header plus n rows "i,name-i,desc,Germany".
func numberedRows(n int) string {
	var b strings.Builder
	b.WriteString("id,name,description,country\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d,name-%d,desc,Germany\n", i, i)
	}
	return b.String()
}

func identity(row RawRow) (RawRow, error) { return row, nil }

func collect(t *testing.T, c *Chunker) ([][]RawRow, error) {
	t.Helper()
	var batches [][]RawRow
	for batch, err := range Batches(c, identity) {
		if err != nil {
			return batches, err
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

func TestBatches_Sizes(t *testing.T) {
	tests := []struct {
		name  string
		rows  int
		size  int
		sizes []int
	}{
		{"exact multiple", 2000, 1000, []int{1000, 1000}},
		{"trailing partial", 2500, 1000, []int{1000, 1000, 500}},
		{"fewer than one batch", 3, 1000, []int{3}},
		{"batch of one", 3, 1, []int{1, 1, 1}},
		{"header only", 0, 1000, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := OpenChunker(writeCSV(t, numberedRows(tt.rows)), tt.size)
			if err != nil {
				t.Fatalf("OpenChunker: %v", err)
			}
			batches, err := collect(t, c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var got []int
			for _, b := range batches {
				got = append(got, len(b))
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.sizes) {
				t.Errorf("batch sizes = %v, want %v", got, tt.sizes)
			}
			if !c.closed {
				t.Error("file not closed after iteration")
			}
		})
	}
}

func TestBatches_LinesAndFields(t *testing.T) {
	content := "id,name,description,country\n" +
		"1,\"Ford, Motor\",\"He said \"\"hi\"\"\",US\n" +
		"\n" +
		"2,Multi,\"line one\nline two\",Japan\n" +
		"3,Last,d,Italy,extra\n"

	c, err := OpenChunker(writeCSV(t, content), 10)
	if err != nil {
		t.Fatalf("OpenChunker: %v", err)
	}
	batches, err := collect(t, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 1 || len(batches[0]) != 4 {
		t.Fatalf("batches = %v, want one batch of 4", batches)
	}

	rows := batches[0]
	if got := rows[0].Fields[1]; got != "Ford, Motor" {
		t.Errorf("quoted comma field = %q", got)
	}
	if got := rows[0].Fields[2]; got != `He said "hi"` {
		t.Errorf("escaped quote field = %q", got)
	}
	if got := rows[1].Fields; len(got) != 1 || got[0] != "" {
		t.Errorf("blank line fields = %q, want one empty field", got)
	}
	if got := rows[2].Fields[2]; got != "line one\nline two" {
		t.Errorf("multiline field = %q", got)
	}
	if got := len(rows[3].Fields); got != 5 {
		t.Errorf("field count = %d, want 5", got)
	}

	wantLines := []int{2, 3, 4, 6}
	for i, row := range rows {
		if row.Line != wantLines[i] {
			t.Errorf("row %d line = %d, want %d", i, row.Line, wantLines[i])
		}
	}
}

func TestBatches_BlankLines(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		size       int
		wantHeader string
		wantLines  []int
		wantBlank  []int
		wantSizes  []int
	}{
		{
			name:       "between rows",
			content:    "id,name\n1,a\n\n2,b\n",
			size:       10,
			wantHeader: "id",
			wantLines:  []int{2, 3, 4},
			wantBlank:  []int{3},
			wantSizes:  []int{3},
		},
		{
			name:       "counts toward the batch size",
			content:    "id,name\n1,a\n\n\n2,b\n",
			size:       2,
			wantHeader: "id",
			wantLines:  []int{2, 3, 4, 5},
			wantBlank:  []int{3, 4},
			wantSizes:  []int{2, 2},
		},
		{
			name:       "after the header",
			content:    "id,name\n\n1,a\n",
			size:       10,
			wantHeader: "id",
			wantLines:  []int{2, 3},
			wantBlank:  []int{2},
			wantSizes:  []int{2},
		},
		{
			name:       "trailing",
			content:    "id,name\n1,a\n\n",
			size:       10,
			wantHeader: "id",
			wantLines:  []int{2, 3},
			wantBlank:  []int{3},
			wantSizes:  []int{2},
		},
		{
			name:       "trailing crlf",
			content:    "id,name\r\n1,a\r\n\r\n",
			size:       10,
			wantHeader: "id",
			wantLines:  []int{2, 3},
			wantBlank:  []int{3},
			wantSizes:  []int{2},
		},
		{
			name:       "blank header line",
			content:    "\n\n1,a\n",
			size:       10,
			wantHeader: "",
			wantLines:  []int{2, 3},
			wantBlank:  []int{2},
			wantSizes:  []int{2},
		},
		{
			name:       "final newline is not a blank line",
			content:    "id,name\n1,a\n2,b",
			size:       10,
			wantHeader: "id",
			wantLines:  []int{2, 3},
			wantSizes:  []int{2},
		},
		{
			name:       "multiline last field",
			content:    "id,name\n1,\"a\n\nb\"\n\n",
			size:       10,
			wantHeader: "id",
			wantLines:  []int{2, 5},
			wantBlank:  []int{5},
			wantSizes:  []int{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := OpenChunker(writeCSV(t, tt.content), tt.size)
			if err != nil {
				t.Fatalf("OpenChunker: %v", err)
			}
			if got := c.Header()[0]; got != tt.wantHeader {
				t.Errorf("header[0] = %q, want %q", got, tt.wantHeader)
			}
			batches, err := collect(t, c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var sizes, lines, blank []int
			for _, b := range batches {
				sizes = append(sizes, len(b))
				for _, row := range b {
					lines = append(lines, row.Line)
					if len(row.Fields) == 1 && row.Fields[0] == "" {
						blank = append(blank, row.Line)
					}
				}
			}
			if fmt.Sprint(sizes) != fmt.Sprint(tt.wantSizes) {
				t.Errorf("batch sizes = %v, want %v", sizes, tt.wantSizes)
			}
			if fmt.Sprint(lines) != fmt.Sprint(tt.wantLines) {
				t.Errorf("lines = %v, want %v", lines, tt.wantLines)
			}
			if fmt.Sprint(blank) != fmt.Sprint(tt.wantBlank) {
				t.Errorf("blank lines = %v, want %v", blank, tt.wantBlank)
			}
		})
	}
}

func TestBatches_BOMHeader(t *testing.T) {
	c, err := OpenChunker(writeCSV(t, "\xEF\xBB\xBFid,name\n1,a\n"), 10)
	if err != nil {
		t.Fatalf("OpenChunker: %v", err)
	}
	if got := c.Header()[0]; got != "id" {
		t.Errorf("header[0] = %q, want id", got)
	}
	c.Close()
}

func TestBatches_TransformErrorStops(t *testing.T) {
	c, err := OpenChunker(writeCSV(t, numberedRows(5)), 2)
	if err != nil {
		t.Fatalf("OpenChunker: %v", err)
	}

	boom := errors.New("boom")
	calls := 0
	transform := func(row RawRow) (int, error) {
		calls++
		if calls == 3 {
			return 0, boom
		}
		return row.Line, nil
	}

	var yielded [][]int
	var gotErr error
	for batch, err := range Batches(c, transform) {
		if err != nil {
			gotErr = err
			break
		}
		yielded = append(yielded, batch)
	}

	if len(yielded) != 1 {
		t.Errorf("yielded %d batches before error, want 1", len(yielded))
	}
	if calls != 3 {
		t.Errorf("transform calls = %d, want 3", calls)
	}
	if !errors.Is(gotErr, boom) {
		t.Fatalf("error = %v, want boom", gotErr)
	}
	var ie *ImportError
	if !errors.As(gotErr, &ie) || ie.Line != 4 {
		t.Errorf("error line = %v, want 4", gotErr)
	}
	if !c.closed {
		t.Error("file not closed after error")
	}
}

func TestBatches_EarlyBreakCloses(t *testing.T) {
	c, err := OpenChunker(writeCSV(t, numberedRows(10)), 2)
	if err != nil {
		t.Fatalf("OpenChunker: %v", err)
	}
	for range Batches(c, identity) {
		break
	}
	if !c.closed {
		t.Fatal("file not closed after early break")
	}

	_, err = collect(t, c)
	if !errors.Is(err, ErrChunkerClosed) {
		t.Errorf("second pass error = %v, want ErrChunkerClosed", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestBatches_LazyQuotes(t *testing.T) {
	c, err := OpenChunker(writeCSV(t, "id,name\n1,Bob\"s Cars\n"), 10)
	if err != nil {
		t.Fatalf("OpenChunker: %v", err)
	}
	batches, err := collect(t, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := batches[0][0].Fields[1]; got != `Bob"s Cars` {
		t.Errorf("field = %q, want bare quote kept", got)
	}
}

func TestOpenChunker_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		path     string
		size     int
		wantKind ErrorKind
	}{
		{"missing file", filepath.Join(dir, "nope.csv"), 10, KindIO},
		{"directory", dir, 10, KindIO},
		{"empty file", writeCSV(t, ""), 10, KindFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := OpenChunker(tt.path, tt.size)
			if err == nil {
				c.Close()
				t.Fatal("expected error")
			}
			if got := KindOf(err); got != tt.wantKind {
				t.Errorf("kind = %v, want %v (err %v)", got, tt.wantKind, err)
			}
		})
	}

	if _, err := OpenChunker(writeCSV(t, "a,b\n"), 0); err == nil {
		t.Error("size 0 accepted")
	}
}

func TestOpenChunker_EmptyFileMessage(t *testing.T) {
	_, err := OpenChunker(writeCSV(t, ""), 10)
	if !errors.Is(err, ErrEmptyFile) {
		t.Errorf("error = %v, want ErrEmptyFile", err)
	}
}
