package s3

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/repairfs/archive"
)

// mockDDBClient is an in-memory DynamoDB mock for testing.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue // entry_name -> item
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := params.Item["entry_name"].(*types.AttributeValueMemberS).Value
	m.items[name] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name := params.Key["entry_name"].(*types.AttributeValueMemberS).Value
	item, ok := m.items[name]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (m *mockDDBClient) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := params.Key["entry_name"].(*types.AttributeValueMemberS).Value
	delete(m.items, name)
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestCatalogRoundtrip(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(newMockDDBClient(), "repairfs-entries")

	entry := &archive.Entry{
		Name:        "salvaged.db.zst",
		Size:        16384,
		Checksum:    0xdeadbeef,
		Compression: archive.CompressionZstd,
	}
	require.NoError(t, catalog.Put(ctx, entry))

	got, err := catalog.Get(ctx, entry.Name)
	require.NoError(t, err)
	assert.Equal(t, entry, got)
}

func TestCatalogGetMissing(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(newMockDDBClient(), "repairfs-entries")

	_, err := catalog.Get(ctx, "absent")
	require.ErrorIs(t, err, archive.ErrNotFound)
}

func TestCatalogPutReplaces(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(newMockDDBClient(), "repairfs-entries")

	entry := &archive.Entry{Name: "out.lz4", Size: 100, Checksum: 1, Compression: archive.CompressionLZ4}
	require.NoError(t, catalog.Put(ctx, entry))

	entry.Size = 200
	entry.Checksum = 2
	require.NoError(t, catalog.Put(ctx, entry))

	got, err := catalog.Get(ctx, entry.Name)
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.Size)
	assert.Equal(t, uint32(2), got.Checksum)
}

func TestCatalogDelete(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(newMockDDBClient(), "repairfs-entries")

	entry := &archive.Entry{Name: "out.zst", Size: 1, Compression: archive.CompressionZstd}
	require.NoError(t, catalog.Put(ctx, entry))
	require.NoError(t, catalog.Delete(ctx, entry.Name))

	_, err := catalog.Get(ctx, entry.Name)
	require.ErrorIs(t, err, archive.ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, catalog.Delete(ctx, entry.Name))
}
