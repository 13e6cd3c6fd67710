// Package mmap maps local table files read-only into memory.
//
// A Mapping serves random row reads of FITS and fits-plus files without
// copying through kernel buffers. Bytes is valid until Close.
package mmap
