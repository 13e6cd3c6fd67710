package tableio

import (
	"context"
	"strconv"

	"github.com/hupe1980/startable/fits"
	"github.com/hupe1980/startable/table"
)

// FITSBuilder reads BINTABLE extensions of plain FITS files. The source
// position selects the HDU by 0-based index; without one the first
// BINTABLE is used.
type FITSBuilder struct{}

func (FITSBuilder) Name() string { return "fits" }

func (FITSBuilder) Looks(intro []byte) bool { return fits.IsMagic(intro) }

// ParseHDU converts a source position to an HDU index.
func ParseHDU(position string) (int, error) {
	if position == "" {
		return fits.AnyHDU, nil
	}
	hdu, err := strconv.Atoi(position)
	if err != nil || hdu < 0 {
		return 0, table.Formatf("FITS", "bad HDU position %q", position)
	}
	return hdu, nil
}

func (FITSBuilder) Build(ctx context.Context, src *Source, _ bool) (table.Table, error) {
	hdu, err := ParseHDU(src.Position)
	if err != nil {
		return nil, err
	}
	if ra, size, ok := src.Random(ctx); ok {
		return fits.Open(ra, size, hdu, nil)
	}
	r, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	t, err := fits.OpenStream(r, hdu, r)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return t, nil
}
