package s3

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/repairfs/archive"
)

func TestIntegration_S3Store(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("Skipping S3 integration test: S3_BUCKET not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test-repairfs-%d/", time.Now().UnixNano())

	store, err := NewStoreFromEnv(ctx, bucket, prefix)
	require.NoError(t, err)

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

	// Streaming write path
	w, err := store.Create(ctx, "streamed")
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	defer func() { _ = store.Delete(ctx, "streamed") }()

	_, err = store.Open(ctx, "missing")
	assert.ErrorIs(t, err, archive.ErrNotFound)
}
