package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/repairfs/archive"
)

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Catalog implements archive.Catalog backed by DynamoDB. S3 holds the entry
// bytes; DynamoDB holds the descriptor a restore needs to verify them (the
// checksum over the uncompressed bytes cannot be re-derived from the blob).
//
// Table schema:
//   - Partition key: entry_name (string)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name repairfs-entries \
//	  --attribute-definitions AttributeName=entry_name,AttributeType=S \
//	  --key-schema AttributeName=entry_name,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type Catalog struct {
	client    DDBClient
	tableName string
}

// NewCatalog creates a DynamoDB-backed entry catalog.
func NewCatalog(client DDBClient, tableName string) *Catalog {
	return &Catalog{
		client:    client,
		tableName: tableName,
	}
}

// Put records or replaces the descriptor for entry.Name.
func (c *Catalog) Put(ctx context.Context, entry *archive.Entry) error {
	_, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"entry_name":  &types.AttributeValueMemberS{Value: entry.Name},
			"size":        &types.AttributeValueMemberN{Value: strconv.FormatInt(entry.Size, 10)},
			"checksum":    &types.AttributeValueMemberN{Value: strconv.FormatUint(uint64(entry.Checksum), 10)},
			"compression": &types.AttributeValueMemberN{Value: strconv.Itoa(int(entry.Compression))},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to record entry %q in DynamoDB: %w", entry.Name, err)
	}
	return nil
}

// Get returns the descriptor recorded under name, or archive.ErrNotFound.
func (c *Catalog) Get(ctx context.Context, name string) (*archive.Entry, error) {
	resp, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"entry_name": &types.AttributeValueMemberS{Value: name},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query entry %q in DynamoDB: %w", name, err)
	}
	if len(resp.Item) == 0 {
		return nil, archive.ErrNotFound
	}
	return entryFromItem(name, resp.Item)
}

// Delete removes the descriptor recorded under name. DynamoDB deletes are
// idempotent.
func (c *Catalog) Delete(ctx context.Context, name string) error {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"entry_name": &types.AttributeValueMemberS{Value: name},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete entry %q in DynamoDB: %w", name, err)
	}
	return nil
}

func entryFromItem(name string, item map[string]types.AttributeValue) (*archive.Entry, error) {
	sizeAttr, ok := item["size"].(*types.AttributeValueMemberN)
	if !ok {
		return nil, errors.New("invalid size attribute in DynamoDB")
	}
	checksumAttr, ok := item["checksum"].(*types.AttributeValueMemberN)
	if !ok {
		return nil, errors.New("invalid checksum attribute in DynamoDB")
	}
	compressionAttr, ok := item["compression"].(*types.AttributeValueMemberN)
	if !ok {
		return nil, errors.New("invalid compression attribute in DynamoDB")
	}

	size, err := strconv.ParseInt(sizeAttr.Value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse size: %w", err)
	}
	checksum, err := strconv.ParseUint(checksumAttr.Value, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to parse checksum: %w", err)
	}
	compression, err := strconv.Atoi(compressionAttr.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse compression: %w", err)
	}

	return &archive.Entry{
		Name:        name,
		Size:        size,
		Checksum:    uint32(checksum),
		Compression: archive.Compression(compression),
	}, nil
}
