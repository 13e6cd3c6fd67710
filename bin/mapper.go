package bin

import (
	"fmt"
	"iter"
	"math"
)

// Mapper defines the mapping of numeric values to bin keys.
type Mapper interface {
	// Key returns the key of the bin into which v falls.
	// ok is false if v cannot be binned.
	Key(v float64) (k int64, ok bool)

	// Bounds returns the lower (inclusive) and upper (exclusive) bound of
	// the bin with key k.
	Bounds(k int64) (lo, hi float64)

	// Keys returns every key between lo and hi inclusive, ascending.
	Keys(lo, hi int64) iter.Seq[int64]
}

// ErrInvalidMapper is returned when a mapper is configured with an unusable
// width or factor.
type ErrInvalidMapper struct {
	Param string
	Value float64
}

func (e *ErrInvalidMapper) Error() string {
	return fmt.Sprintf("bin: bad %s %v", e.Param, e.Value)
}

// keyRange yields consecutive integer keys.
func keyRange(lo, hi int64) iter.Seq[int64] {
	return func(yield func(int64) bool) {
		for k := lo; k <= hi; k++ {
			if !yield(k) {
				return
			}
			if k == math.MaxInt64 {
				return
			}
		}
	}
}

// toKey converts a floored or rounded float to a key, rejecting values
// outside the int64 range.
func toKey(f float64) (int64, bool) {
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// LinearMapper maps values to bins of constant width.
type LinearMapper struct {
	width float64
	base  float64
}

// NewLinearMapper returns a linear mapper with bins of the given width.
// If zeroMid is true, zero lies in the middle of a bin; otherwise it falls
// on a bin boundary.
func NewLinearMapper(width float64, zeroMid bool) (*LinearMapper, error) {
	if !(width > 0) || math.IsInf(width, 1) {
		return nil, &ErrInvalidMapper{Param: "width", Value: width}
	}
	m := &LinearMapper{width: width}
	if zeroMid {
		m.base = -width / 2
	}
	return m, nil
}

// Width returns the bin width.
func (m *LinearMapper) Width() float64 { return m.width }

// Key returns floor((v-base)/width). The result is nudged by one when
// rounding error would put v outside the bounds of the computed key.
// ok is false for NaN, infinities and values whose key lies outside the
// int64 range, such as 1e300 with width 1.
func (m *LinearMapper) Key(v float64) (int64, bool) {
	k, ok := toKey(math.Floor((v - m.base) / m.width))
	if !ok {
		return 0, false
	}
	lo, hi := m.Bounds(k)
	switch {
	case v < lo && k > math.MinInt64:
		k--
	case v >= hi && k < math.MaxInt64:
		k++
	}
	return k, true
}

func (m *LinearMapper) Bounds(k int64) (lo, hi float64) {
	lo = float64(k)*m.width + m.base
	return lo, lo + m.width
}

func (m *LinearMapper) Keys(lo, hi int64) iter.Seq[int64] { return keyRange(lo, hi) }

// LogMapper maps positive values to logarithmically spaced bins.
type LogMapper struct {
	factor     float64
	logFactor  float64
	sqrtFactor float64
}

// NewLogMapper returns a logarithmic mapper whose adjacent bin centres
// differ by factor, which must exceed 1.
func NewLogMapper(factor float64) (*LogMapper, error) {
	if !(factor > 1) || math.IsInf(factor, 1) {
		return nil, &ErrInvalidMapper{Param: "factor", Value: factor}
	}
	return &LogMapper{
		factor:     factor,
		logFactor:  math.Log(factor),
		sqrtFactor: math.Sqrt(factor),
	}, nil
}

// Factor returns the bin spacing factor.
func (m *LogMapper) Factor() float64 { return m.factor }

// Key returns round(ln v / ln factor), rounding halves upwards.
// Non-positive values have no key.
func (m *LogMapper) Key(v float64) (int64, bool) {
	if !(v > 0) || math.IsInf(v, 1) {
		return 0, false
	}
	k, ok := toKey(math.Floor(math.Log(v)/m.logFactor + 0.5))
	if !ok {
		return 0, false
	}
	lo, hi := m.Bounds(k)
	switch {
	case v < lo:
		k--
	case v >= hi:
		k++
	}
	return k, true
}

func (m *LogMapper) Bounds(k int64) (lo, hi float64) {
	centre := math.Pow(m.factor, float64(k))
	return centre / m.sqrtFactor, centre * m.sqrtFactor
}

func (m *LogMapper) Keys(lo, hi int64) iter.Seq[int64] { return keyRange(lo, hi) }
