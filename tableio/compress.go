package tableio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a whole-stream compression format.
type Codec uint8

const (
	// CodecNone is an uncompressed stream.
	CodecNone Codec = iota
	// CodecGzip is a gzip member stream.
	CodecGzip
	// CodecZstd is a zstandard frame stream.
	CodecZstd
	// CodecLZ4 is an LZ4 frame stream.
	CodecLZ4
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// magicLen is the number of leading bytes DetectCodec inspects.
const magicLen = 4

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecGzip:
		return "gzip"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// DetectCodec identifies the compression of a stream from its first bytes.
func DetectCodec(magic []byte) Codec {
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		return CodecGzip
	case bytes.HasPrefix(magic, zstdMagic):
		return CodecZstd
	case bytes.HasPrefix(magic, lz4Magic):
		return CodecLZ4
	default:
		return CodecNone
	}
}

// NewReader returns a decompressing reader over r. Closing it does not
// close r.
func (c Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CodecNone:
		return io.NopCloser(r), nil
	case CodecGzip:
		return gzip.NewReader(r)
	case CodecZstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case CodecLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("tableio: unsupported codec %s", c)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter returns a compressing writer over w. Close flushes the
// compressed stream but does not close w.
func (c Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CodecNone:
		return nopWriteCloser{w}, nil
	case CodecGzip:
		return gzip.NewWriter(w), nil
	case CodecZstd:
		return zstd.NewWriter(w)
	case CodecLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("tableio: unsupported codec %s", c)
	}
}
