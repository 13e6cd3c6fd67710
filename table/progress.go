package table

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// ProgressFunc observes the number of rows read so far. total is the
// table's row count, or UnknownRowCount.
type ProgressFunc func(done, total int64)

// ProgressTable reports cursor progress to an observer and supports
// cooperative cancellation.
//
// The observer is invoked at bounded frequency: roughly 200 times over a
// table of known size, or every 256 rows otherwise, plus once when the cursor
// is closed. The interruption flag and the cursor's context are checked on
// every row; a set flag makes Next fail with ErrCancelled.
type ProgressTable struct {
	*Wrapper
	observe     ProgressFunc
	interrupted atomic.Bool
}

// NewProgressTable wraps base with progress reporting. observe may be nil.
func NewProgressTable(base Table, observe ProgressFunc) *ProgressTable {
	return &ProgressTable{Wrapper: NewWrapper(base), observe: observe}
}

// Interrupt requests cancellation of all cursors open on this table.
func (t *ProgressTable) Interrupt() { t.interrupted.Store(true) }

// Reset clears a previous interruption request.
func (t *ProgressTable) Reset() { t.interrupted.Store(false) }

// Interrupted reports whether cancellation has been requested.
func (t *ProgressTable) Interrupted() bool { return t.interrupted.Load() }

func (t *ProgressTable) RowSequence(ctx context.Context) (RowSequence, error) {
	seq, err := t.Base.RowSequence(ctx)
	if err != nil {
		return nil, err
	}
	nrow := t.RowCount()
	every := 256
	if nrow > 0 {
		every = max(int(nrow/200), 1)
	}
	return &progressSequence{
		WrapperSequence: WrapperSequence{Base: seq},
		ctx:             ctx,
		t:               t,
		total:           nrow,
		sometimes:       &rate.Sometimes{First: 1, Every: every},
	}, nil
}

type progressSequence struct {
	WrapperSequence
	ctx       context.Context
	t         *ProgressTable
	total     int64
	done      int64
	sometimes *rate.Sometimes
	closed    bool
}

func (s *progressSequence) Next() (bool, error) {
	if s.t.interrupted.Load() {
		return false, ErrCancelled
	}
	if err := s.ctx.Err(); err != nil {
		return false, &cancelError{cause: err}
	}
	ok, err := s.Base.Next()
	if err != nil || !ok {
		return ok, err
	}
	s.done++
	if s.t.observe != nil {
		s.sometimes.Do(func() { s.t.observe(s.done, s.total) })
	}
	return true, nil
}

func (s *progressSequence) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.t.observe != nil {
		s.t.observe(s.done, s.total)
	}
	return s.Base.Close()
}

// cancelError matches both ErrCancelled and the context error.
type cancelError struct{ cause error }

func (e *cancelError) Error() string {
	return ErrCancelled.Error() + ": " + e.cause.Error()
}

func (e *cancelError) Unwrap() []error { return []error{ErrCancelled, e.cause} }
