package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/hupe1980/startable/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore_Integration requires a running MinIO instance named by
// MINIO_ENDPOINT.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}
	ctx := context.Background()
	const bucket = "test-startable"

	store, err := Dial(endpoint, bucket, WithCredentials("minioadmin", "minioadmin"), WithPrefix("it/"))
	require.NoError(t, err)

	exists, err := store.client.BucketExists(ctx, bucket)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}
	if !exists {
		require.NoError(t, store.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	data := []byte("hello minio table")
	require.NoError(t, store.Put(ctx, "t.csv", data))

	b, err := store.Open(ctx, "t.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), b.Size())

	buf := make([]byte, 5)
	n, err := b.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(buf[:n]))

	r, err := b.ReadRange(ctx, 12, 100)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "table", string(got))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "t.csv")

	require.NoError(t, store.Delete(ctx, "t.csv"))
	_, err = store.Open(ctx, "t.csv")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDial(t *testing.T) {
	store, err := Dial("localhost:9000", "survey", WithPrefix("cat"))
	require.NoError(t, err)
	assert.Equal(t, "survey", store.Bucket())
	assert.Equal(t, "cat/x.fits", store.key("x.fits"))

	_, err = Dial("bad endpoint with spaces:xx", "b")
	assert.Error(t, err)
}
