package tableio

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/startable/blobstore"
	"github.com/hupe1980/startable/fits"
	"github.com/hupe1980/startable/table"
	"github.com/hupe1980/startable/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *table.MemoryTable {
	t.Helper()
	return testutil.MustTable(t,
		[]table.ColumnInfo{
			{Name: "id", Kind: table.KindInt32},
			{Name: "flux", Kind: table.KindFloat64, Unit: "Jy"},
			{Name: "spec", Kind: table.KindFloat32Array, Shape: []int{2}},
		},
		[][]any{
			{int32(1), 0.5, []float32{1, 2}},
			{int32(2), 1.5, []float32{3, 4}},
			{int32(3), nil, []float32{5, 6}},
		})
}

func fitsBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := fits.Write(context.Background(), &buf, sampleTable(t))
	require.NoError(t, err)
	return buf.Bytes()
}

func compress(t *testing.T, c Codec, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := c.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newRegistry(r *Resolver) *Registry {
	return NewRegistry(r, []Builder{FITSBuilder{}, ParquetBuilder{}, CSVBuilder{}})
}

func TestSource_Codecs(t *testing.T) {
	ctx := context.Background()
	data := fitsBytes(t)

	for _, c := range []Codec{CodecNone, CodecGzip, CodecZstd, CodecLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			src, err := NewBytesSource(ctx, "mem/table.fits#1", compress(t, c, data))
			require.NoError(t, err)
			defer src.Close()

			assert.Equal(t, c, src.Codec())
			assert.Equal(t, "mem/table.fits", src.Location)
			assert.Equal(t, "1", src.Position)
			assert.Equal(t, "table.fits", src.Name())
			assert.Equal(t, data[:IntroSize], src.Intro())

			_, size, ok := src.Random(ctx)
			assert.Equal(t, c == CodecNone, ok)
			if ok {
				assert.Equal(t, int64(len(data)), size)
			}

			got, err := src.Bytes(ctx)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestSource_ShortContent(t *testing.T) {
	src, err := NewBytesSource(context.Background(), "tiny", []byte("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a,b\n"), src.Intro())
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
}

func TestRegistry_OpenLocalFITS(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cat.fits")
	require.NoError(t, os.WriteFile(path, fitsBytes(t), 0o644))

	reg := newRegistry(nil)
	tab, err := reg.Open(ctx, path, AutoFormat, false)
	require.NoError(t, err)
	defer tab.Close()

	assert.True(t, tab.IsRandom())
	assert.Equal(t, int64(3), tab.RowCount())
	assert.Equal(t, "Jy", tab.ColumnInfo(1).Unit)

	v, err := tab.Cell(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, v)

	t.Run("file url with hdu", func(t *testing.T) {
		tab, err := reg.Open(ctx, "file://"+path+"#1", "FITS", false)
		require.NoError(t, err)
		defer tab.Close()
		assert.Equal(t, int64(3), tab.RowCount())
	})

	t.Run("primary hdu is not a table", func(t *testing.T) {
		_, err := reg.Open(ctx, path+"#0", "fits", false)
		assert.ErrorIs(t, err, table.ErrFormat)
	})

	t.Run("bad position", func(t *testing.T) {
		_, err := reg.Open(ctx, path+"#x", "fits", false)
		assert.ErrorIs(t, err, table.ErrFormat)
	})
}

func TestRegistry_CompressedStream(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	require.NoError(t, mem.Put(ctx, "cat.fits.gz", compress(t, CodecGzip, fitsBytes(t))))

	res := NewResolver(nil)
	res.Mount("mem://", mem)
	reg := newRegistry(res)

	t.Run("sequential", func(t *testing.T) {
		tab, err := reg.Open(ctx, "mem://cat.fits.gz", AutoFormat, false)
		require.NoError(t, err)
		defer tab.Close()
		assert.False(t, tab.IsRandom())

		rows, err := table.ReadAll(ctx, tab)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		f, ok := rows[2][1].(float64)
		require.True(t, ok)
		assert.True(t, math.IsNaN(f))

		_, err = tab.RowSequence(ctx)
		assert.ErrorIs(t, err, table.ErrSingleUse)
	})

	t.Run("random", func(t *testing.T) {
		tab, err := reg.Open(ctx, "mem://cat.fits.gz", AutoFormat, true)
		require.NoError(t, err)
		defer tab.Close()
		require.True(t, tab.IsRandom())

		v, err := tab.Cell(ctx, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, int32(1), v)
	})
}

func TestRegistry_UnknownFormat(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(nil)

	src, err := NewBytesSource(ctx, "junk", bytes.Repeat([]byte{0xff}, 100))
	require.NoError(t, err)
	_, err = reg.Build(ctx, src, AutoFormat, false)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	src, err = NewBytesSource(ctx, "junk", []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	_, err = reg.Build(ctx, src, "votable", false)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = reg.Open(ctx, filepath.Join(t.TempDir(), "missing.fits"), AutoFormat, false)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestCSVBuilder(t *testing.T) {
	ctx := context.Background()
	src, err := NewBytesSource(ctx, "points.csv", []byte("n,x,label\n1,2.5,a\n2,,b\n3,4,c\n"))
	require.NoError(t, err)

	assert.True(t, CSVBuilder{}.Looks(src.Intro()))
	assert.False(t, CSVBuilder{}.Looks(fitsBytes(t)[:IntroSize]))

	tab, err := newRegistry(nil).Build(ctx, src, AutoFormat, true)
	require.NoError(t, err)
	defer tab.Close()

	require.Equal(t, 3, tab.ColumnCount())
	assert.Equal(t, "points.csv", tab.Name())
	assert.Equal(t, table.KindInt64, tab.ColumnInfo(0).Kind)
	assert.Equal(t, table.KindFloat64, tab.ColumnInfo(1).Kind)
	assert.Equal(t, table.KindString, tab.ColumnInfo(2).Kind)

	rows, err := table.ReadAll(ctx, tab)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []any{int64(1), 2.5, "a"}, rows[0])
	assert.Nil(t, rows[1][1])
}

func TestParquet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := sampleTable(t)

	var buf bytes.Buffer
	require.NoError(t, WriteParquet(ctx, &buf, src))

	mem := blobstore.NewMemoryStore()
	require.NoError(t, mem.Put(ctx, "cat.parquet", buf.Bytes()))
	res := NewResolver(nil)
	res.Mount("mem://", mem)

	tab, err := newRegistry(res).Open(ctx, "mem://cat.parquet", AutoFormat, false)
	require.NoError(t, err)
	defer tab.Close()

	require.Equal(t, 3, tab.ColumnCount())
	assert.Equal(t, table.KindInt32, tab.ColumnInfo(0).Kind)
	assert.Equal(t, "Jy", tab.ColumnInfo(1).Unit)
	assert.Equal(t, table.KindFloat32Array, tab.ColumnInfo(2).Kind)

	want, err := table.ReadAll(ctx, src)
	require.NoError(t, err)
	got, err := table.ReadAll(ctx, tab)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	a, b := blobstore.NewMemoryStore(), blobstore.NewMemoryStore()

	var dials atomic.Int32
	res := NewResolver(func(_ context.Context, scheme, bucket string) (blobstore.BlobStore, error) {
		if scheme != "s3" {
			return nil, ErrNoStore
		}
		dials.Add(1)
		return b, nil
	})
	res.Mount("mem://", a)
	res.Mount("mem://deep/", b)

	store, name, err := res.Resolve(ctx, "mem://deep/x.fits")
	require.NoError(t, err)
	assert.Same(t, b, store)
	assert.Equal(t, "x.fits", name)

	store, name, err = res.Resolve(ctx, "mem://x.fits")
	require.NoError(t, err)
	assert.Same(t, a, store)
	assert.Equal(t, "x.fits", name)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store, name, err := res.Resolve(ctx, "s3://bucket/dir/t.fits")
			assert.NoError(t, err)
			assert.Same(t, b, store)
			assert.Equal(t, "dir/t.fits", name)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), dials.Load())

	_, _, err = res.Resolve(ctx, "gs://bucket/t.fits")
	assert.ErrorIs(t, err, ErrNoStore)

	_, _, err = NewResolver(nil).Resolve(ctx, "s3://bucket/t.fits")
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestCachedLoader(t *testing.T) {
	ctx := context.Background()
	var loads atomic.Int32
	load := func(_ context.Context, location string) (table.Table, error) {
		loads.Add(1)
		if location == "bad" {
			return nil, errors.New("boom")
		}
		return testutil.Sequential(testutil.FloatTable(t, location, 1, 2)), nil
	}
	c := NewCachedLoader(load, 2)

	t1, err := c.Load(ctx, "a")
	require.NoError(t, err)
	assert.True(t, t1.IsRandom())
	assert.Equal(t, int64(2), t1.RowCount())

	_, err = c.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int32(1), loads.Load())

	_, err = c.Load(ctx, "b")
	require.NoError(t, err)
	_, err = c.Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = c.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int32(4), loads.Load())

	_, err = c.Load(ctx, "bad")
	require.Error(t, err)
	_, err = c.Load(ctx, "bad")
	require.Error(t, err)
	assert.Equal(t, int32(6), loads.Load())
}

func TestCachedLoader_CallerCancel(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	var loads atomic.Int32
	var loadErr atomic.Value
	load := func(ctx context.Context, location string) (table.Table, error) {
		loads.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			loadErr.Store(err)
			return nil, err
		}
		return testutil.FloatTable(t, location, 1, 2, 3), nil
	}
	c := NewCachedLoader(load, 4)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Load(ctxA, "spec.fits")
		errA <- err
	}()
	<-started
	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	var wg sync.WaitGroup
	var tabB table.Table
	var errB error
	wg.Add(1)
	go func() {
		defer wg.Done()
		tabB, errB = c.Load(context.Background(), "spec.fits")
	}()
	close(release)
	wg.Wait()

	require.NoError(t, errB)
	assert.Equal(t, int64(3), tabB.RowCount())
	assert.Nil(t, loadErr.Load())
	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, 1, c.Len())

	_, err := c.Load(ctxA, "spec.fits")
	assert.ErrorIs(t, err, context.Canceled)
}
