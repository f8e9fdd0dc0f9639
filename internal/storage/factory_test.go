package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beamup-io/beamup/pkg/config"
)

func TestStorageFactory_CreateLocalStorage(t *testing.T) {
	storageConfig := &config.StorageConfig{
		Type:      "local",
		LocalPath: t.TempDir(),
	}

	factory := NewStorageFactory(storageConfig)
	blobs, err := factory.CreateStorage(context.Background())

	require.NoError(t, err)
	require.NotNil(t, blobs)

	ctx := context.Background()
	testKey := "factory_test.mp4"
	testContent := "content from factory test"

	err = blobs.Store(ctx, testKey, strings.NewReader(testContent), "video/mp4")
	assert.NoError(t, err)

	size, err := blobs.GetSize(ctx, testKey)
	assert.NoError(t, err)
	assert.Equal(t, int64(len(testContent)), size)

	reader, err := blobs.RetrieveRange(ctx, testKey, 0, size-1)
	require.NoError(t, err)
	defer reader.Close()

	retrieved, err := io.ReadAll(reader)
	assert.NoError(t, err)
	assert.Equal(t, testContent, string(retrieved))
}

func TestStorageFactory_CreateS3Storage(t *testing.T) {
	storageConfig := &config.StorageConfig{
		Type:           "s3",
		Bucket:         "beamup-test",
		Region:         "us-east-1",
		Endpoint:       "http://localhost:9000",
		AccessKey:      "test-access",
		SecretKey:      "test-secret",
		ForcePathStyle: true,
	}

	factory := NewStorageFactory(storageConfig)
	blobs, err := factory.CreateStorage(context.Background())

	// Client construction does not touch the network
	require.NoError(t, err)
	require.NotNil(t, blobs)
}

func TestStorageFactory_UnsupportedType(t *testing.T) {
	storageConfig := &config.StorageConfig{
		Type: "carrier-pigeon",
	}

	factory := NewStorageFactory(storageConfig)
	blobs, err := factory.CreateStorage(context.Background())

	assert.Error(t, err)
	assert.Nil(t, blobs)
	assert.Contains(t, err.Error(), "unsupported storage type")
}
