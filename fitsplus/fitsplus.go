package fitsplus

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/startable/fits"
	"github.com/hupe1980/startable/table"
	"github.com/hupe1980/startable/tableio"
	"github.com/hupe1980/startable/votable"
)

const formatName = "fits-plus"

// ErrNotFitsPlus is returned for input lacking the fits-plus primary
// header. It matches table.ErrFormat.
var ErrNotFitsPlus = fmt.Errorf("fitsplus: not a fits-plus file: %w", table.ErrFormat)

// magicCards is the number of fixed leading primary header cards.
const magicCards = 5

// IsMagic reports whether buf starts with the fits-plus primary header
// cards in their required order.
func IsMagic(buf []byte) bool {
	if len(buf) < magicCards*fits.CardSize {
		return false
	}
	var cards [magicCards]fits.Card
	for i := range cards {
		c, err := fits.ParseCard(buf[i*fits.CardSize : (i+1)*fits.CardSize])
		if err != nil {
			return false
		}
		cards[i] = c
	}
	isTrue := func(c fits.Card, key string) bool {
		v, ok := c.Bool()
		return c.Key == key && ok && v
	}
	isInt := func(c fits.Card, key string, want int64) bool {
		v, ok := c.Int()
		return c.Key == key && ok && v == want
	}
	return isTrue(cards[0], "SIMPLE") &&
		isInt(cards[1], "BITPIX", 8) &&
		isInt(cards[2], "NAXIS", 1) &&
		cards[3].Key == "NAXIS1" &&
		isTrue(cards[4], "VOTMETA")
}

// readMetadata reads the primary HDU from r and decodes its VOTable. It
// returns the table description and the number of bytes consumed.
func readMetadata(r io.Reader) (*votable.Table, int64, error) {
	h, n, err := fits.ReadHeader(r)
	if err != nil {
		return nil, n, err
	}
	if v, ok := h.Bool("VOTMETA"); !ok || !v {
		return nil, n, fmt.Errorf("%w: no VOTMETA card", ErrNotFitsPlus)
	}
	size, err := h.RequireInt("NAXIS1")
	if err != nil {
		return nil, n, err
	}
	if size < 0 {
		return nil, n, table.Formatf(formatName, "negative NAXIS1 %d", size)
	}
	// NAXIS1 is untrusted: grow the buffer with the data actually present.
	var meta bytes.Buffer
	got, err := meta.ReadFrom(io.LimitReader(r, size))
	if err != nil {
		return nil, n, table.NewFormatError(formatName, "truncated VOTable metadata", err)
	}
	if got < size {
		return nil, n, table.NewFormatError(formatName, "truncated VOTable metadata",
			fmt.Errorf("read %d of %d bytes: %w", got, size, io.ErrUnexpectedEOF))
	}
	buf := meta.Bytes()
	if err := fits.Skip(r, fits.Padding(size)); err != nil {
		return nil, n, err
	}
	n += size + fits.Padding(size)

	doc, err := votable.Parse(bytes.NewReader(bytes.TrimRight(buf, "\x00 ")))
	if err != nil {
		return nil, n, table.NewFormatError(formatName, "bad VOTable metadata", err)
	}
	vt, err := doc.FirstTable()
	if err != nil {
		return nil, n, err
	}
	if vt.HasData() {
		return nil, n, table.Formatf(formatName, "VOTable metadata contains a DATA element")
	}
	return vt, n, nil
}

// readBintable reads the header of the HDU following the primary one.
func readBintable(r io.Reader) (*fits.Bintable, int64, error) {
	h, n, err := fits.ReadHeader(r)
	if err != nil {
		return nil, n, table.NewFormatError(formatName, "missing BINTABLE extension", err)
	}
	b, err := fits.ParseBintable(h)
	return b, n, err
}

// compatible reports whether data cells of kind got can stand for
// metadata kind want. Narrower integers are accepted, since VOTable has no
// signed byte type.
func compatible(want, got table.Kind) bool {
	if want == got {
		return true
	}
	if want.IsArray() != got.IsArray() {
		return false
	}
	w, g := want.Scalar(), got.Scalar()
	return w.IsInteger() && g.IsInteger() && g <= w
}

// reconcile merges the VOTable description with the BINTABLE columns.
// Names must agree exactly; kinds must be compatible. The result keeps
// the VOTable metadata with the BINTABLE cell kinds.
func reconcile(vt *votable.Table, data []table.ColumnInfo) ([]table.ColumnInfo, error) {
	meta := vt.Columns()
	if len(meta) != len(data) {
		return nil, table.Formatf(formatName, "VOTable has %d columns, BINTABLE has %d", len(meta), len(data))
	}
	out := make([]table.ColumnInfo, len(meta))
	for i, m := range meta {
		d := data[i]
		if m.Name != d.Name {
			return nil, table.Formatf(formatName, "column %d named %q in VOTable, %q in BINTABLE", i+1, m.Name, d.Name)
		}
		if !compatible(m.Kind, d.Kind) {
			return nil, table.Formatf(formatName, "column %q is %s in VOTable, %s in BINTABLE", m.Name, m.Kind, d.Kind)
		}
		m.Kind = d.Kind
		if len(m.Shape) == 0 {
			m.Shape = d.Shape
		}
		out[i] = m
	}
	return out, nil
}

func withMetadata(vt *votable.Table, data table.Table) (table.Table, error) {
	cols, err := reconcile(vt, table.Columns(data))
	if err != nil {
		return nil, err
	}
	name := vt.Name
	if name == "" {
		name = data.Name()
	}
	return table.WithMetadata(data, name, cols, vt.TableParams())
}

// Builder reads fits-plus sources for a tableio.Registry. Register it
// ahead of the plain FITS builder.
type Builder struct{}

func (Builder) Name() string { return formatName }

func (Builder) Looks(intro []byte) bool { return IsMagic(intro) }

// Build reads src as a fits-plus file. With wantRandom and a random
// access source the rows are read in place; otherwise the result is a
// single-use stream.
func (Builder) Build(ctx context.Context, src *tableio.Source, wantRandom bool) (table.Table, error) {
	if !IsMagic(src.Intro()) {
		return nil, ErrNotFitsPlus
	}
	if src.Position != "" {
		return nil, fmt.Errorf("%w: HDU position %q not allowed", ErrNotFitsPlus, src.Position)
	}
	r, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	t, err := read(ctx, src, r, wantRandom)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return t, nil
}

func read(ctx context.Context, src *tableio.Source, r io.ReadCloser, wantRandom bool) (table.Table, error) {
	vt, n, err := readMetadata(r)
	if err != nil {
		return nil, err
	}
	b, m, err := readBintable(r)
	if err != nil {
		return nil, err
	}
	offset := n + m

	if ra, size, ok := src.Random(ctx); ok && wantRandom {
		if need := offset + b.RowCount()*b.RowSize(); need > size {
			return nil, table.Formatf(formatName, "table data needs %d bytes, file has %d", need, size)
		}
		t, err := withMetadata(vt, fits.NewTable(b, ra, offset, nil))
		if err != nil {
			return nil, err
		}
		if err := r.Close(); err != nil {
			_ = t.Close()
			return nil, err
		}
		return t, nil
	}
	return withMetadata(vt, fits.NewStreamTable(b, r, r))
}

// Open reads a fits-plus file held by ra for random access.
func Open(ra io.ReaderAt, size int64) (table.Table, error) {
	r := io.NewSectionReader(ra, 0, size)
	vt, n, err := readMetadata(r)
	if err != nil {
		return nil, err
	}
	b, m, err := readBintable(r)
	if err != nil {
		return nil, err
	}
	offset := n + m
	if need := offset + b.RowCount()*b.RowSize(); need > size {
		return nil, table.Formatf(formatName, "table data needs %d bytes, file has %d", need, size)
	}
	return withMetadata(vt, fits.NewTable(b, ra, offset, nil))
}

// Stream reads a fits-plus stream in a single pass. The sink receives the
// VOTable metadata, then the rows.
func Stream(ctx context.Context, r io.Reader, sink table.Sink) error {
	head := make([]byte, magicCards*fits.CardSize)
	if _, err := io.ReadFull(r, head); err != nil {
		return table.NewFormatError(formatName, "short primary header", err)
	}
	if !IsMagic(head) {
		return ErrNotFitsPlus
	}
	r = io.MultiReader(bytes.NewReader(head), r)
	vt, _, err := readMetadata(r)
	if err != nil {
		return err
	}
	b, _, err := readBintable(r)
	if err != nil {
		return err
	}
	meta, err := withMetadata(vt, fits.NewStreamTable(b, nil, nil))
	if err != nil {
		return err
	}
	return fits.Stream(ctx, b, r, meta, sink)
}

// Write writes t as a fits-plus file and returns the number of bytes
// written. Sequential tables are read into memory first.
func Write(ctx context.Context, w io.Writer, t table.Table) (int64, error) {
	t, err := table.Random(ctx, t)
	if err != nil {
		return 0, err
	}
	doc, err := votable.FromTable(t)
	if err != nil {
		return 0, err
	}
	var xml bytes.Buffer
	if err := doc.Marshal(&xml); err != nil {
		return 0, err
	}
	card, err := fits.ValueCard("VOTMETA", true, "table metadata in VOTable format")
	if err != nil {
		return 0, err
	}
	n, err := fits.WritePrimary(w, xml.Bytes(), card)
	if err != nil {
		return n, err
	}
	m, err := fits.WriteBintable(ctx, w, t)
	return n + m, err
}
