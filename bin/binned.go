package bin

import (
	"errors"
	"iter"
	"math"
)

// ErrFrozen is returned by Submit after bin iteration has started.
var ErrFrozen = errors.New("bin: data frozen for iteration")

// State is the lifecycle stage of a MapBinnedData.
type State uint8

const (
	// StateEmpty means no datum has been submitted.
	StateEmpty State = iota
	// StateAccumulating means data is being submitted.
	StateAccumulating
	// StateFrozen means bins are being read; Submit is rejected.
	StateFrozen
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// Bin is one histogram bin: a half-open interval and a weighted count for
// each subset.
type Bin struct {
	Key    int64
	Low    float64
	High   float64
	Counts []float64
}

// WeightedCount returns the accumulated weight for subset i.
func (b Bin) WeightedCount(i int) float64 { return b.Counts[i] }

// BinnedData accumulates weighted per-subset counts into bins.
type BinnedData interface {
	// Submit adds weight to the bin containing value for every subset
	// whose flag is set.
	Submit(value, weight float64, sets []bool) error
	// Bins returns the bins in ascending key order.
	Bins(includeEmpty bool) iter.Seq[Bin]
	// SetCount returns the number of subsets.
	SetCount() int
	// IsInteger reports whether every submitted weight was a whole number.
	IsInteger() bool
}

// MapBinnedData is a BinnedData that stores only populated bins.
//
// Bins must not be read while data is still being submitted from another
// goroutine; MapBinnedData does no locking.
type MapBinnedData struct {
	nset    int
	mapper  Mapper
	keys    *keySet
	counts  map[int64][]float64
	isFloat bool
	state   State
}

// NewMapBinnedData creates an empty binned data set for nset subsets.
func NewMapBinnedData(nset int, mapper Mapper) *MapBinnedData {
	return &MapBinnedData{
		nset:   nset,
		mapper: mapper,
		keys:   newKeySet(),
		counts: make(map[int64][]float64),
	}
}

// NewLinearBinnedData creates binned data with linearly spaced bins.
func NewLinearBinnedData(nset int, width float64, zeroMid bool) (*MapBinnedData, error) {
	m, err := NewLinearMapper(width, zeroMid)
	if err != nil {
		return nil, err
	}
	return NewMapBinnedData(nset, m), nil
}

// NewLogBinnedData creates binned data with logarithmically spaced bins.
func NewLogBinnedData(nset int, factor float64) (*MapBinnedData, error) {
	m, err := NewLogMapper(factor)
	if err != nil {
		return nil, err
	}
	return NewMapBinnedData(nset, m), nil
}

// Mapper returns the mapper defining the bins.
func (d *MapBinnedData) Mapper() Mapper { return d.mapper }

// SetCount returns the number of subsets.
func (d *MapBinnedData) SetCount() int { return d.nset }

// IsInteger reports whether every submitted weight was a whole number.
func (d *MapBinnedData) IsInteger() bool { return !d.isFloat }

// State returns the lifecycle stage.
func (d *MapBinnedData) State() State { return d.state }

// Len returns the number of populated bins.
func (d *MapBinnedData) Len() int { return d.keys.Len() }

// Submit adds weight to the bin containing value for each subset i with
// sets[i] set. NaN values, NaN weights, zero weights and values the mapper
// cannot bin are ignored; for a LinearMapper that includes values whose bin
// key would overflow int64 (e.g. 1e300 with width 1). Missing trailing
// flags count as false.
func (d *MapBinnedData) Submit(value, weight float64, sets []bool) error {
	if d.state == StateFrozen {
		return ErrFrozen
	}
	if math.IsNaN(value) || math.IsNaN(weight) || weight == 0 {
		return nil
	}
	d.state = StateAccumulating
	d.isFloat = d.isFloat || weight != math.Trunc(weight)

	key, ok := d.mapper.Key(value)
	if !ok {
		return nil
	}
	counts := d.counts[key]
	if counts == nil {
		counts = make([]float64, d.nset)
		d.counts[key] = counts
		d.keys.Add(key)
	}
	for i := 0; i < d.nset && i < len(sets); i++ {
		if sets[i] {
			counts[i] += weight
		}
	}
	return nil
}

// Bin returns the bin with key k, which may be empty.
func (d *MapBinnedData) Bin(k int64) Bin {
	lo, hi := d.mapper.Bounds(k)
	counts := d.counts[k]
	if counts == nil {
		counts = make([]float64, d.nset)
	}
	return Bin{Key: k, Low: lo, High: hi, Counts: counts}
}

// Bins freezes the data and returns its bins in strictly ascending key
// order. With includeEmpty, every key between the lowest and highest
// populated key is visited and missing bins report zero for every subset.
//
// The Counts slices of populated bins alias internal storage and must not
// be modified. Each synthesized empty bin gets its own zeroed slice.
func (d *MapBinnedData) Bins(includeEmpty bool) iter.Seq[Bin] {
	d.state = StateFrozen
	return func(yield func(Bin) bool) {
		if d.keys.IsEmpty() {
			return
		}
		keys := d.keys.All()
		if includeEmpty {
			keys = d.mapper.Keys(d.keys.Min(), d.keys.Max())
		}
		for k := range keys {
			lo, hi := d.mapper.Bounds(k)
			counts, ok := d.counts[k]
			if !ok {
				counts = make([]float64, d.nset)
			}
			if !yield(Bin{Key: k, Low: lo, High: hi, Counts: counts}) {
				return
			}
		}
	}
}

// Reset discards all bins and returns to the empty state.
func (d *MapBinnedData) Reset() {
	d.keys.Clear()
	clear(d.counts)
	d.isFloat = false
	d.state = StateEmpty
}

// Thaw returns frozen data to the accumulating state so that more data can
// be submitted once iteration has finished.
func (d *MapBinnedData) Thaw() {
	if d.state != StateFrozen {
		return
	}
	d.state = StateAccumulating
	if d.keys.IsEmpty() {
		d.state = StateEmpty
	}
}

var _ BinnedData = (*MapBinnedData)(nil)
