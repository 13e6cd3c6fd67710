package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.fits")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestMapping_ReadAt(t *testing.T) {
	m, err := Open(writeFile(t, []byte("SIMPLE  =    T")))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 14, m.Len())
	require.NoError(t, m.Advise(Random))

	buf := make([]byte, 6)
	n, err := m.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "SIMPLE", string(buf[:n]))

	n, err = m.ReadAt(buf, 10)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 4, n)

	_, err = m.ReadAt(buf, 100)
	assert.Equal(t, io.EOF, err)

	_, err = m.ReadAt(buf, -1)
	assert.ErrorIs(t, err, ErrNegativeOffset)
}

func TestMapping_Close(t *testing.T) {
	m, err := Open(writeFile(t, []byte("data")))
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())

	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMapping_Empty(t *testing.T) {
	m, err := Open(writeFile(t, nil))
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Bytes())
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
