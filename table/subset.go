package table

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// RowSubsetTable exposes the base rows whose index is set in a mask.
//
// Random access maps the i-th subset row to the i-th set bit of the mask.
type RowSubsetTable struct {
	*Wrapper
	mask *roaring64.Bitmap
}

// NewRowSubsetTable returns the rows of base selected by mask.
// The mask is not copied and must not be modified afterwards.
func NewRowSubsetTable(base Table, mask *roaring64.Bitmap) *RowSubsetTable {
	return &RowSubsetTable{Wrapper: NewWrapper(base), mask: mask}
}

// Mask returns the row mask.
func (t *RowSubsetTable) Mask() *roaring64.Bitmap { return t.mask }

func (t *RowSubsetTable) RowCount() int64 {
	return int64(t.mask.GetCardinality())
}

func (t *RowSubsetTable) baseRow(row int64) (int64, error) {
	if err := CheckRowIndex(row, t.RowCount()); err != nil {
		return 0, err
	}
	irow, err := t.mask.Select(uint64(row))
	if err != nil {
		return 0, err
	}
	return int64(irow), nil
}

func (t *RowSubsetTable) Cell(ctx context.Context, row int64, col int) (any, error) {
	if !t.IsRandom() {
		return nil, ErrNotRandom
	}
	irow, err := t.baseRow(row)
	if err != nil {
		return nil, err
	}
	return t.Base.Cell(ctx, irow, col)
}

func (t *RowSubsetTable) Row(ctx context.Context, row int64) ([]any, error) {
	if !t.IsRandom() {
		return nil, ErrNotRandom
	}
	irow, err := t.baseRow(row)
	if err != nil {
		return nil, err
	}
	return t.Base.Row(ctx, irow)
}

func (t *RowSubsetTable) RowSequence(ctx context.Context) (RowSequence, error) {
	seq, err := t.Base.RowSequence(ctx)
	if err != nil {
		return nil, err
	}
	return &subsetSequence{WrapperSequence: WrapperSequence{Base: seq}, mask: t.mask, irow: -1}, nil
}

type subsetSequence struct {
	WrapperSequence
	mask *roaring64.Bitmap
	irow int64
}

func (s *subsetSequence) Next() (bool, error) {
	for {
		ok, err := s.Base.Next()
		if err != nil || !ok {
			return false, err
		}
		s.irow++
		if s.mask.Contains(uint64(s.irow)) {
			return true, nil
		}
	}
}
