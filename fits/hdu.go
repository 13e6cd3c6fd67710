package fits

import (
	"errors"
	"io"

	"github.com/hupe1980/startable/table"
)

// AnyHDU selects the first BINTABLE extension in FindBintable.
const AnyHDU = -1

// IsMagic reports whether buf starts like a FITS file.
func IsMagic(buf []byte) bool {
	if len(buf) < CardSize {
		return false
	}
	c, err := ParseCard(buf[:CardSize])
	if err != nil || c.Key != "SIMPLE" {
		return false
	}
	v, ok := c.Bool()
	return ok && v
}

// FindBintable reads HDUs from r, skipping data units, until it reaches the
// requested BINTABLE extension. hdu is the 0-based HDU index (the primary
// HDU is 0), or AnyHDU for the first BINTABLE. On success r is positioned at
// the start of the table's data unit, whose byte offset is returned.
func FindBintable(r io.Reader, hdu int) (*Bintable, int64, error) {
	var pos int64
	for i := 0; ; i++ {
		h, n, err := ReadHeader(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, pos, table.Formatf(formatName, "no BINTABLE HDU found")
			}
			return nil, pos, err
		}
		pos += n
		xt, _ := h.String("XTENSION")
		if (hdu == AnyHDU && xt == "BINTABLE") || i == hdu {
			b, err := ParseBintable(h)
			if err != nil {
				return nil, pos, err
			}
			return b, pos, nil
		}
		size, err := DataSize(h)
		if err != nil {
			return nil, pos, err
		}
		if err := Skip(r, size); err != nil {
			return nil, pos, err
		}
		pos += size
	}
}

// Open locates a BINTABLE in the FITS data held by ra and returns it as a
// random-access table.
func Open(ra io.ReaderAt, size int64, hdu int, closer io.Closer) (*Table, error) {
	b, offset, err := FindBintable(io.NewSectionReader(ra, 0, size), hdu)
	if err != nil {
		return nil, err
	}
	if need := offset + b.nrow*b.rowSize; need > size {
		return nil, table.Formatf(formatName, "table data needs %d bytes, file has %d", need, size)
	}
	return NewTable(b, ra, offset, closer), nil
}

// OpenStream locates a BINTABLE in the FITS stream r and returns it as a
// single-use sequential table.
func OpenStream(r io.Reader, hdu int, closer io.Closer) (*table.SingleUseTable, error) {
	b, _, err := FindBintable(r, hdu)
	if err != nil {
		return nil, err
	}
	return NewStreamTable(b, r, closer), nil
}
