package tableio

import (
	"bytes"
	"context"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/hupe1980/startable/table"
)

// CSVBuilder reads comma-separated text with a header line. Column kinds
// are inferred from the content; empty fields are null.
type CSVBuilder struct {
	// Comma is the field delimiter, ',' if zero.
	Comma rune
	// ChunkSize is the number of rows converted per batch.
	ChunkSize int
}

func (CSVBuilder) Name() string { return "csv" }

func (b CSVBuilder) comma() rune {
	if b.Comma == 0 {
		return ','
	}
	return b.Comma
}

// Looks accepts text whose first line holds the delimiter.
func (b CSVBuilder) Looks(intro []byte) bool {
	if len(intro) == 0 || bytes.IndexByte(intro, 0) >= 0 {
		return false
	}
	line, _, found := bytes.Cut(intro, []byte("\n"))
	if !found && len(intro) == IntroSize {
		return false
	}
	return utf8.Valid(line) && bytes.ContainsRune(line, b.comma())
}

func (b CSVBuilder) Build(ctx context.Context, src *Source, _ bool) (table.Table, error) {
	r, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	chunk := b.ChunkSize
	if chunk <= 0 {
		chunk = 4096
	}
	cr := csv.NewInferringReader(r,
		csv.WithHeader(true),
		csv.WithComma(b.comma()),
		csv.WithChunk(chunk),
		csv.WithNullReader(true, ""),
	)
	defer cr.Release()

	if !cr.Next() {
		if err := cr.Err(); err != nil {
			return nil, table.NewFormatError("CSV", "bad content", err)
		}
		return nil, table.Formatf("CSV", "no data rows in %s", src.Location)
	}
	t, err := readArrow(src.Name(), cr.Schema(), &peekedRecords{arrowRecords: cr, first: true})
	if err != nil {
		return nil, table.NewFormatError("CSV", "bad content", err)
	}
	return t, nil
}

// peekedRecords replays a batch already taken with Next.
type peekedRecords struct {
	arrowRecords
	first bool
}

func (p *peekedRecords) Next() bool {
	if p.first {
		p.first = false
		return true
	}
	return p.arrowRecords.Next()
}
