// Package bin accumulates weighted histogram counts over discrete bins.
//
// A Mapper turns a scalar value into an integer bin key and back into the
// half-open interval [low, high) the key covers. Linear and logarithmic
// mappers are provided. MapBinnedData stores one running weighted total per
// subset for every populated key and dispenses bins in ascending key order,
// optionally synthesizing empty bins between populated ones.
//
// Usage:
//
//	m, _ := bin.NewLinearMapper(0.5, false)
//	data := bin.NewMapBinnedData(2, m)
//	data.Submit(1.2, 1, []bool{true, false})
//	for b := range data.Bins(true) {
//		fmt.Println(b.Low, b.High, b.WeightedCount(0))
//	}
package bin
