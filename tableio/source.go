package tableio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/hupe1980/startable/blobstore"
)

// IntroSize is the number of leading decompressed bytes format builders
// may inspect. It equals one FITS block.
const IntroSize = 2880

// Source is an opened byte source a table is built from.
//
// A Source can be read any number of times: Open returns a fresh stream
// each call. Random access is only offered for uncompressed content.
type Source struct {
	// Location is the location string the source was opened from, without
	// the position suffix.
	Location string
	// Position is the text following '#' in the location, typically an HDU
	// index. Empty if absent.
	Position string

	blob  blobstore.Blob
	codec Codec
	intro []byte

	closeOnce sync.Once
	closeErr  error
}

// SplitLocation separates a trailing "#position" from a location.
func SplitLocation(location string) (loc, position string) {
	if i := strings.LastIndexByte(location, '#'); i >= 0 {
		return location[:i], location[i+1:]
	}
	return location, ""
}

// NewSource wraps an open blob. The source takes ownership of blob.
func NewSource(ctx context.Context, location string, blob blobstore.Blob) (*Source, error) {
	loc, pos := SplitLocation(location)
	s := &Source{Location: loc, Position: pos, blob: blob}

	magic := make([]byte, min(int64(magicLen), blob.Size()))
	if _, err := blob.ReadAt(ctx, magic, 0); err != nil && !errors.Is(err, io.EOF) {
		_ = blob.Close()
		return nil, fmt.Errorf("tableio: read %s: %w", loc, err)
	}
	s.codec = DetectCodec(magic)

	intro, err := s.readIntro(ctx)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}
	s.intro = intro
	return s, nil
}

// NewBytesSource returns a source over in-memory content.
func NewBytesSource(ctx context.Context, location string, data []byte) (*Source, error) {
	store := blobstore.NewMemoryStore()
	loc, _ := SplitLocation(location)
	if err := store.Put(ctx, loc, data); err != nil {
		return nil, err
	}
	blob, err := store.Open(ctx, loc)
	if err != nil {
		return nil, err
	}
	return NewSource(ctx, location, blob)
}

func (s *Source) readIntro(ctx context.Context) ([]byte, error) {
	r, err := s.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	buf := make([]byte, IntroSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("tableio: read %s: %w", s.Location, err)
	}
	return buf[:n], nil
}

// Name returns the last path element of the location.
func (s *Source) Name() string {
	name := s.Location
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	return path.Base(name)
}

// Codec returns the detected compression.
func (s *Source) Codec() Codec { return s.codec }

// Intro returns up to IntroSize leading bytes of the decompressed content.
func (s *Source) Intro() []byte { return s.intro }

// Size returns the stored (possibly compressed) size in bytes.
func (s *Source) Size() int64 { return s.blob.Size() }

// Open returns a new stream over the decompressed content. Reads made
// through the stream outlive cancellation of ctx.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	ctx = context.WithoutCancel(ctx)
	raw, err := s.blob.ReadRange(ctx, 0, s.blob.Size())
	if err != nil {
		return nil, fmt.Errorf("tableio: open %s: %w", s.Location, err)
	}
	dec, err := s.codec.NewReader(raw)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("tableio: %s stream %s: %w", s.codec, s.Location, err)
	}
	return &stackedReader{ReadCloser: dec, raw: raw}, nil
}

// Random returns positional access to uncompressed content. ok is false
// for compressed sources.
func (s *Source) Random(ctx context.Context) (ra io.ReaderAt, size int64, ok bool) {
	if s.codec != CodecNone {
		return nil, 0, false
	}
	return blobstore.ReaderAt(context.WithoutCancel(ctx), s.blob), s.blob.Size(), true
}

// Bytes returns the whole decompressed content.
func (s *Source) Bytes(ctx context.Context) ([]byte, error) {
	if s.codec == CodecNone {
		return blobstore.ReadAll(ctx, s.blob)
	}
	r, err := s.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Close releases the underlying blob. It is idempotent.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.blob.Close()
	})
	return s.closeErr
}

// stackedReader closes the decompressor and then the raw stream.
type stackedReader struct {
	io.ReadCloser
	raw io.Closer
}

func (r *stackedReader) Close() error {
	return errors.Join(r.ReadCloser.Close(), r.raw.Close())
}
