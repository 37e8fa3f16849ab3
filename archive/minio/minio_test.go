package minio

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/repairfs/archive"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-repairfs"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	if _, err = client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	payload := []byte("salvaged page payload")
	require.NoError(t, store.Put(ctx, "entry", payload))
	defer func() { _ = store.Delete(ctx, "entry") }()

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "entry")

	blob, err := store.Open(ctx, "entry")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), blob.Size())

	buf := make([]byte, len(payload))
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf)
	require.NoError(t, blob.Close())

	w, err := store.Create(ctx, "streamed")
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	defer func() { _ = store.Delete(ctx, "streamed") }()

	_, err = store.Open(ctx, "missing")
	assert.ErrorIs(t, err, archive.ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "missing"))
}
