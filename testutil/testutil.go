package testutil

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/hupe1980/startable/table"
	"github.com/stretchr/testify/require"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Floats returns n values uniformly distributed in [minVal, maxVal).
// Locks only once per call.
func (r *RNG) Floats(n int, minVal, maxVal float64) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	out := make([]float64, n)
	for i := range out {
		out[i] = minVal + r.rand.Float64()*span
	}
	return out
}

// MustTable builds a random-access memory table or fails the test.
func MustTable(t testing.TB, cols []table.ColumnInfo, rows [][]any) *table.MemoryTable {
	t.Helper()
	tab, err := table.NewMemoryTable("test", cols, rows)
	require.NoError(t, err)
	return tab
}

// FloatTable builds a single-column float64 table named after col.
func FloatTable(t testing.TB, col string, values ...float64) *table.MemoryTable {
	t.Helper()
	rows := make([][]any, len(values))
	for i, v := range values {
		rows[i] = []any{v}
	}
	return MustTable(t, []table.ColumnInfo{table.NewColumn(col, table.KindFloat64)}, rows)
}

// SequentialTable hides the random access capability and, optionally, the
// row count of a base table.
type SequentialTable struct {
	*table.Wrapper
	hideCount bool
	opened    int
}

// Sequential returns a sequential-only view of base with a known row count.
func Sequential(base table.Table) *SequentialTable {
	return &SequentialTable{Wrapper: table.NewWrapper(base)}
}

// Streamed returns a sequential-only view of base with unknown row count.
func Streamed(base table.Table) *SequentialTable {
	return &SequentialTable{Wrapper: table.NewWrapper(base), hideCount: true}
}

// Opened returns how many cursors have been opened.
func (s *SequentialTable) Opened() int { return s.opened }

func (s *SequentialTable) IsRandom() bool { return false }

func (s *SequentialTable) RowCount() int64 {
	if s.hideCount {
		return table.UnknownRowCount
	}
	return s.Base.RowCount()
}

func (s *SequentialTable) RowSequence(ctx context.Context) (table.RowSequence, error) {
	s.opened++
	return s.Base.RowSequence(ctx)
}

func (s *SequentialTable) Cell(context.Context, int64, int) (any, error) {
	return nil, table.ErrNotRandom
}

func (s *SequentialTable) Row(context.Context, int64) ([]any, error) {
	return nil, table.ErrNotRandom
}

// FailingTable fails the cursor's Next call that would produce row failRow.
type FailingTable struct {
	*table.Wrapper
	failRow int64
	err     error
	closed  int
}

// FailAt wraps base so that advancing to row failRow returns err.
func FailAt(base table.Table, failRow int64, err error) *FailingTable {
	return &FailingTable{Wrapper: table.NewWrapper(base), failRow: failRow, err: err}
}

// Closed returns how many cursors have been closed.
func (f *FailingTable) Closed() int { return f.closed }

func (f *FailingTable) RowSequence(ctx context.Context) (table.RowSequence, error) {
	seq, err := f.Base.RowSequence(ctx)
	if err != nil {
		return nil, err
	}
	return &failingSequence{WrapperSequence: table.WrapperSequence{Base: seq}, f: f, irow: -1}, nil
}

type failingSequence struct {
	table.WrapperSequence
	f    *FailingTable
	irow int64
}

func (s *failingSequence) Next() (bool, error) {
	if s.irow+1 == s.f.failRow {
		return false, s.f.err
	}
	ok, err := s.Base.Next()
	if ok {
		s.irow++
	}
	return ok, err
}

func (s *failingSequence) Close() error {
	s.f.closed++
	return s.Base.Close()
}

// Rows drains a table's cursor and returns copies of all rows.
func Rows(t testing.TB, tab table.Table) [][]any {
	t.Helper()
	rows, err := table.ReadAll(context.Background(), tab)
	require.NoError(t, err)
	return rows
}
