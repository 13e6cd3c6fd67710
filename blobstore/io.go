package blobstore

import (
	"context"
	"io"
)

// ReaderAt adapts b to io.ReaderAt, issuing every read under ctx.
func ReaderAt(ctx context.Context, b Blob) io.ReaderAt {
	if m, ok := b.(Mappable); ok {
		if data, err := m.Bytes(); err == nil {
			return &byteReaderAt{data: data}
		}
	}
	return &ctxReaderAt{ctx: ctx, b: b}
}

type ctxReaderAt struct {
	ctx context.Context
	b   Blob
}

func (r *ctxReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return r.b.ReadAt(r.ctx, p, off)
}

type byteReaderAt struct {
	data []byte
}

func (r *byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// NewReader returns a forward reader over the whole blob.
func NewReader(ctx context.Context, b Blob) io.Reader {
	return io.NewSectionReader(ReaderAt(ctx, b), 0, b.Size())
}

// ReadAll returns the full content of b.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	if d, ok := b.(Downloader); ok {
		return d.Download(ctx)
	}
	if m, ok := b.(Mappable); ok {
		if data, err := m.Bytes(); err == nil {
			out := make([]byte, len(data))
			copy(out, data)
			return out, nil
		}
	}
	buf := make([]byte, b.Size())
	n, err := b.ReadAt(ctx, buf, 0)
	if err == io.EOF && n == len(buf) {
		err = nil
	}
	return buf[:n], err
}

// sectionCloser reads a byte range of a Blob under a fixed context.
type sectionCloser struct {
	*io.SectionReader
}

func (sectionCloser) Close() error { return nil }

func newSection(ctx context.Context, b Blob, off, length int64) io.ReadCloser {
	if end := b.Size(); off+length > end {
		length = max(end-off, 0)
	}
	return sectionCloser{io.NewSectionReader(&ctxReaderAt{ctx: ctx, b: b}, off, length)}
}
