package bin

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// signBit flips the sign of an int64 key so that unsigned bitmap order
// matches signed key order.
const signBit = uint64(1) << 63

// keySet is an ordered set of bin keys backed by a 64-bit roaring bitmap.
type keySet struct {
	rb *roaring64.Bitmap
}

func newKeySet() *keySet {
	return &keySet{rb: roaring64.New()}
}

func encodeKey(k int64) uint64 { return uint64(k) ^ signBit }
func decodeKey(u uint64) int64 { return int64(u ^ signBit) }

// Add adds a key to the set.
func (s *keySet) Add(k int64) {
	s.rb.Add(encodeKey(k))
}

// Contains checks if a key is in the set.
func (s *keySet) Contains(k int64) bool {
	return s.rb.Contains(encodeKey(k))
}

// IsEmpty returns true if the set is empty.
func (s *keySet) IsEmpty() bool {
	return s.rb.IsEmpty()
}

// Len returns the number of keys.
func (s *keySet) Len() int {
	return int(s.rb.GetCardinality())
}

// Min returns the lowest key. The set must not be empty.
func (s *keySet) Min() int64 { return decodeKey(s.rb.Minimum()) }

// Max returns the highest key. The set must not be empty.
func (s *keySet) Max() int64 { return decodeKey(s.rb.Maximum()) }

// All returns the keys in ascending order.
func (s *keySet) All() iter.Seq[int64] {
	return func(yield func(int64) bool) {
		it := s.rb.Iterator()
		for it.HasNext() {
			if !yield(decodeKey(it.Next())) {
				return
			}
		}
	}
}

// Clear removes all keys.
func (s *keySet) Clear() {
	s.rb.Clear()
}
