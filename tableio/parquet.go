package tableio

import (
	"bytes"
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	pqcompress "github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/hupe1980/startable/table"
)

var parquetMagic = []byte("PAR1")

// ParquetBuilder reads parquet files into memory through arrow.
type ParquetBuilder struct {
	// BatchSize is the number of rows converted per record batch.
	BatchSize int64
}

func (ParquetBuilder) Name() string { return "parquet" }

func (ParquetBuilder) Looks(intro []byte) bool { return bytes.HasPrefix(intro, parquetMagic) }

func (b ParquetBuilder) Build(ctx context.Context, src *Source, _ bool) (table.Table, error) {
	var r parquet.ReaderAtSeeker
	if ra, size, ok := src.Random(ctx); ok {
		r = io.NewSectionReader(ra, 0, size)
	} else {
		data, err := src.Bytes(ctx)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}

	pf, err := file.NewParquetReader(r, file.WithReadProps(&parquet.ReaderProperties{}))
	if err != nil {
		return nil, table.NewFormatError("parquet", "bad file", err)
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, table.NewFormatError("parquet", "bad schema", err)
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	batch := b.BatchSize
	if batch <= 0 {
		batch = 64 * 1024
	}
	tr := array.NewTableReader(tbl, batch)
	defer tr.Release()
	return readArrow(src.Name(), tbl.Schema(), tr)
}

// WriteParquet writes t as a snappy-compressed parquet file. Column units,
// UCDs and descriptions are kept as field metadata and string params as
// schema metadata.
func WriteParquet(ctx context.Context, w io.Writer, t table.Table) (err error) {
	schema, err := arrowSchema(t)
	if err != nil {
		return err
	}
	props := parquet.NewWriterProperties(parquet.WithCompression(pqcompress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	fw, err := pqarrow.NewFileWriter(schema, w, props, arrowProps)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	rb := newRecordBuilder(schema)
	defer rb.Release()

	seq, err := t.RowSequence(ctx)
	if err != nil {
		return err
	}
	defer seq.Close()

	const batch = 4096
	var pending int
	flush := func() error {
		if pending == 0 {
			return nil
		}
		rec := rb.NewRecord()
		defer rec.Release()
		pending = 0
		return fw.WriteBuffered(rec)
	}
	var irow int64
	for {
		ok, err := seq.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		row, err := seq.Row()
		if err != nil {
			return table.NewRowError(irow, err)
		}
		for j, v := range row {
			if err := appendCell(rb.Field(j), v); err != nil {
				return table.NewRowError(irow, err)
			}
		}
		irow++
		if pending++; pending == batch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

var _ arrowRecords = (*array.TableReader)(nil)
