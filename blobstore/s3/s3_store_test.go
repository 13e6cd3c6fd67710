package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/startable/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func headFor(key string) any {
	return mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return aws.ToString(in.Bucket) == "bucket" && aws.ToString(in.Key) == key
	})
}

func openBlob(t *testing.T, m *MockS3Client, size int64) blobstore.Blob {
	t.Helper()
	m.On("HeadObject", mock.Anything, headFor("cat/t.fits")).
		Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(size)}, nil).Once()
	b, err := NewStore(m, "bucket", "cat").Open(context.Background(), "t.fits")
	require.NoError(t, err)
	return b
}

func getRange(r string) any {
	return mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == "cat/t.fits" && aws.ToString(in.Range) == r
	})
}

func body(s string) io.ReadCloser { return io.NopCloser(strings.NewReader(s)) }

func TestStore_Open(t *testing.T) {
	m := new(MockS3Client)
	store := NewStore(m, "bucket", "cat")

	m.On("HeadObject", mock.Anything, headFor("cat/missing")).Return(nil, &types.NotFound{}).Once()
	_, err := store.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	b := openBlob(t, m, 100)
	assert.Equal(t, int64(100), b.Size())
	m.AssertExpectations(t)
}

func TestBlob_ReadAt(t *testing.T) {
	ctx := context.Background()
	m := new(MockS3Client)
	b := openBlob(t, m, 10)

	m.On("GetObject", mock.Anything, getRange("bytes=0-4")).
		Return(&s3.GetObjectOutput{Body: body("hello")}, nil).Once()
	buf := make([]byte, 5)
	n, err := b.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	// A read past the end is clipped to the object size.
	m.On("GetObject", mock.Anything, getRange("bytes=7-9")).
		Return(&s3.GetObjectOutput{Body: body("rld")}, nil).Once()
	n, err = b.ReadAt(ctx, buf, 7)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "rld", string(buf[:n]))

	_, err = b.ReadAt(ctx, buf, 10)
	assert.Equal(t, io.EOF, err)
	m.AssertExpectations(t)
}

func TestBlob_ReadRange(t *testing.T) {
	m := new(MockS3Client)
	b := openBlob(t, m, 10)

	m.On("GetObject", mock.Anything, getRange("bytes=2-6")).
		Return(&s3.GetObjectOutput{Body: body("llo W")}, nil).Once()
	r, err := b.ReadRange(context.Background(), 2, 5)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "llo W", string(got))
}

func TestBlob_Download(t *testing.T) {
	m := new(MockS3Client)
	b := openBlob(t, m, 10)

	m.On("GetObject", mock.Anything, mock.Anything).Return(&s3.GetObjectOutput{
		Body:          body("0123456789"),
		ContentLength: aws.Int64(10),
		ContentRange:  aws.String("bytes 0-9/10"),
	}, nil).Once()

	data, err := blobstore.ReadAll(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func TestStore_Put(t *testing.T) {
	m := new(MockS3Client)
	store := NewStore(m, "bucket", "cat")

	var uploaded string
	m.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "cat/new.fits"
	})).Run(func(args mock.Arguments) {
		b, _ := io.ReadAll(args.Get(1).(*s3.PutObjectInput).Body)
		uploaded = string(b)
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(context.Background(), "new.fits", []byte("content")))
	assert.Equal(t, "content", uploaded)
}

func TestStore_Delete(t *testing.T) {
	m := new(MockS3Client)
	store := NewStore(m, "bucket", "cat")

	m.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return aws.ToString(in.Key) == "cat/old.fits"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()

	assert.NoError(t, store.Delete(context.Background(), "old.fits"))
}

func TestStore_List_Pagination(t *testing.T) {
	m := new(MockS3Client)
	store := NewStore(m, "bucket", "cat/")

	m.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken == nil && aws.ToString(in.Prefix) == "cat"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token"),
		Contents:              []types.Object{{Key: aws.String("cat/b.fits")}},
	}, nil).Once()
	m.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.ContinuationToken) == "token"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents:    []types.Object{{Key: aws.String("cat/a.fits")}},
	}, nil).Once()

	keys, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.fits", "b.fits"}, keys)
}
