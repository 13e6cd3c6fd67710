// Package fitsplus reads and writes fits-plus files: FITS files whose
// primary HDU holds a VOTable document describing the table stored in the
// following BINTABLE extension.
//
// The primary header starts with exactly these cards:
//
//	SIMPLE  =                    T
//	BITPIX  =                    8
//	NAXIS   =                    1
//	NAXIS1  = <length of the XML>
//	VOTMETA =                    T
//
// The VOTable supplies names, units, UCDs, descriptions and params; the
// BINTABLE supplies the rows. Readers check that both describe the same
// columns.
package fitsplus
