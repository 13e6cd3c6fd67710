package blobstore

import (
	"bytes"
	"context"
	"io"
	"path"
	"slices"
	"strings"
	"sync"
)

// MemoryStore holds blobs in memory, for tests and generated tables.
// Names are slash-separated and cleaned, so "/cat/a.fits" and
// "cat//a.fits" refer to the same blob. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func memKey(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

// Open returns a handle on the current content of the named blob.
// Later Puts do not affect an open handle.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	data, ok := m.blobs[memKey(name)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return memoryBlob(data), nil
}

// Put stores a copy of data.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	data = bytes.Clone(data)
	if data == nil {
		data = []byte{}
	}
	m.mu.Lock()
	m.blobs[memKey(name)] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, memKey(name))
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	prefix = strings.TrimPrefix(prefix, "/")

	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Len returns the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// memoryBlob shares the stored slice, which Put never mutates in place.
type memoryBlob []byte

func (b memoryBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b memoryBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	off = min(max(off, 0), int64(len(b)))
	end := min(off+max(length, 0), int64(len(b)))
	return io.NopCloser(bytes.NewReader(b[off:end])), nil
}

func (b memoryBlob) Size() int64            { return int64(len(b)) }
func (b memoryBlob) Close() error           { return nil }
func (b memoryBlob) Bytes() ([]byte, error) { return b, nil }
