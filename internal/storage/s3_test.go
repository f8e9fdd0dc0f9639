package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockS3 records the last input per operation and plays back canned results
type mockS3 struct {
	headOut *s3.HeadObjectOutput
	headErr error
	getOut  *s3.GetObjectOutput
	getErr  error
	putErr  error
	delErr  error

	lastHead *s3.HeadObjectInput
	lastGet  *s3.GetObjectInput
	lastPut  *s3.PutObjectInput
	lastDel  *s3.DeleteObjectInput
}

func (m *mockS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.lastHead = in
	return m.headOut, m.headErr
}

func (m *mockS3) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.lastGet = in
	return m.getOut, m.getErr
}

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.lastPut = in
	return &s3.PutObjectOutput{}, m.putErr
}

func (m *mockS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.lastDel = in
	return &s3.DeleteObjectOutput{}, m.delErr
}

type mockPresigner struct {
	url string
	err error
}

func (m *mockPresigner) PresignPutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &v4.PresignedHTTPRequest{URL: m.url, Method: "PUT"}, nil
}

func TestS3Storage_RetrieveRange(t *testing.T) {
	t.Run("range header", func(t *testing.T) {
		mock := &mockS3{
			getOut: &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("chunk-data"))},
		}
		blobs := newS3StorageWithClient(mock, nil, "beamup-test")

		reader, err := blobs.RetrieveRange(context.Background(), "videos/demo.mp4", 0, 1023)
		require.NoError(t, err)
		defer reader.Close()

		require.NotNil(t, mock.lastGet)
		assert.Equal(t, "beamup-test", aws.ToString(mock.lastGet.Bucket))
		assert.Equal(t, "videos/demo.mp4", aws.ToString(mock.lastGet.Key))
		assert.Equal(t, "bytes=0-1023", aws.ToString(mock.lastGet.Range))

		content, err := io.ReadAll(reader)
		assert.NoError(t, err)
		assert.Equal(t, "chunk-data", string(content))
	})

	t.Run("invalid bounds rejected locally", func(t *testing.T) {
		mock := &mockS3{}
		blobs := newS3StorageWithClient(mock, nil, "beamup-test")

		_, err := blobs.RetrieveRange(context.Background(), "key", 100, 50)
		assert.ErrorIs(t, err, ErrRangeNotSatisfiable)
		assert.Nil(t, mock.lastGet, "no request should reach the store")
	})

	t.Run("missing key", func(t *testing.T) {
		mock := &mockS3{getErr: &s3types.NoSuchKey{}}
		blobs := newS3StorageWithClient(mock, nil, "beamup-test")

		_, err := blobs.RetrieveRange(context.Background(), "gone.mp4", 0, 100)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("range past object", func(t *testing.T) {
		mock := &mockS3{getErr: &smithy.GenericAPIError{Code: "InvalidRange", Message: "range not satisfiable"}}
		blobs := newS3StorageWithClient(mock, nil, "beamup-test")

		_, err := blobs.RetrieveRange(context.Background(), "short.mp4", 5000, 9000)
		assert.ErrorIs(t, err, ErrRangeNotSatisfiable)
	})

	t.Run("store unavailable", func(t *testing.T) {
		mock := &mockS3{getErr: errors.New("dial tcp: connection refused")}
		blobs := newS3StorageWithClient(mock, nil, "beamup-test")

		_, err := blobs.RetrieveRange(context.Background(), "key", 0, 100)
		assert.ErrorIs(t, err, ErrStorageUnavailable)
	})
}

func TestS3Storage_GetSize(t *testing.T) {
	t.Run("existing object", func(t *testing.T) {
		mock := &mockS3{
			headOut: &s3.HeadObjectOutput{ContentLength: aws.Int64(20_000_000)},
		}
		blobs := newS3StorageWithClient(mock, nil, "beamup-test")

		size, err := blobs.GetSize(context.Background(), "videos/demo.mp4")
		require.NoError(t, err)
		assert.Equal(t, int64(20_000_000), size)
		assert.Equal(t, "videos/demo.mp4", aws.ToString(mock.lastHead.Key))
	})

	t.Run("missing object", func(t *testing.T) {
		mock := &mockS3{headErr: &s3types.NotFound{}}
		blobs := newS3StorageWithClient(mock, nil, "beamup-test")

		_, err := blobs.GetSize(context.Background(), "gone.mp4")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("store unavailable", func(t *testing.T) {
		mock := &mockS3{headErr: errors.New("dial tcp: connection refused")}
		blobs := newS3StorageWithClient(mock, nil, "beamup-test")

		_, err := blobs.GetSize(context.Background(), "key")
		assert.ErrorIs(t, err, ErrStorageUnavailable)
	})
}

func TestS3Storage_Exists(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		mock := &mockS3{headOut: &s3.HeadObjectOutput{}}
		blobs := newS3StorageWithClient(mock, nil, "beamup-test")

		exists, err := blobs.Exists(context.Background(), "key")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("absent", func(t *testing.T) {
		mock := &mockS3{headErr: &s3types.NotFound{}}
		blobs := newS3StorageWithClient(mock, nil, "beamup-test")

		exists, err := blobs.Exists(context.Background(), "key")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestS3Storage_Store(t *testing.T) {
	mock := &mockS3{}
	blobs := newS3StorageWithClient(mock, nil, "beamup-test")

	err := blobs.Store(context.Background(), "videos/demo.mp4", strings.NewReader("data"), "video/mp4")
	require.NoError(t, err)

	require.NotNil(t, mock.lastPut)
	assert.Equal(t, "videos/demo.mp4", aws.ToString(mock.lastPut.Key))
	assert.Equal(t, "video/mp4", aws.ToString(mock.lastPut.ContentType))
}

func TestS3Storage_Delete(t *testing.T) {
	mock := &mockS3{}
	blobs := newS3StorageWithClient(mock, nil, "beamup-test")

	err := blobs.Delete(context.Background(), "videos/demo.mp4")
	require.NoError(t, err)
	assert.Equal(t, "videos/demo.mp4", aws.ToString(mock.lastDel.Key))
}

func TestS3Storage_PresignUpload(t *testing.T) {
	t.Run("issues URL with expiry", func(t *testing.T) {
		blobs := newS3StorageWithClient(&mockS3{}, &mockPresigner{url: "https://bucket.example/videos/demo.mp4?sig=abc"}, "beamup-test")

		url, expiresAt, err := blobs.PresignUpload(context.Background(), "videos/demo.mp4", "video/mp4", 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "https://bucket.example/videos/demo.mp4?sig=abc", url)
		assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Minute)
	})

	t.Run("presign failure", func(t *testing.T) {
		blobs := newS3StorageWithClient(&mockS3{}, &mockPresigner{err: errors.New("signing failed")}, "beamup-test")

		_, _, err := blobs.PresignUpload(context.Background(), "key", "", time.Minute)
		assert.Error(t, err)
	})
}
