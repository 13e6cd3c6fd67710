// Package testutil provides testing utilities for startable.
//
// This package is intended for use in tests and benchmarks only.
// It provides table fixtures with controllable access capabilities and
// failure points, plus a seeded random source for generating cell data.
//
// # Fixtures
//
//	tab := testutil.MustTable(t, cols, rows)       // random access
//	seq := testutil.Sequential(tab)                // sequential only
//	bad := testutil.FailAt(tab, 3, io.ErrUnexpectedEOF)
//
// # Random Data
//
//	rng := testutil.NewRNG(seed)
//	xs := rng.Floats(1000, -5, 5)
package testutil
