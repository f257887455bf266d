package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/slabgo/blobstore"
)

// ErrConcurrentModification is returned when another writer committed a
// manifest version first.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// DDBClient is the subset of the DynamoDB API the commit store calls.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DDBCommitStore wraps an S3 store with DynamoDB-coordinated manifest
// commits, enabling multiple writers against the same prefix.
//
// S3 has no compare-and-swap, so updating the CURRENT pointer directly can
// lose a concurrent writer's commit. The commit store keeps CURRENT in a
// DynamoDB table instead: each commit does a conditional put of the next
// version number and fails with ErrConcurrentModification when that
// version already exists. All other blobs pass straight through to S3.
//
// Table schema:
//   - Partition key: base_uri (string), the s3://bucket/prefix this store
//     commits under
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name slabgo-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	blobs     *Store
	ddb       DDBClient
	tableName string
	baseURI   string
}

// CurrentName is the blob name the commit store intercepts. Reads and
// writes of this name go to DynamoDB instead of S3.
const CurrentName = "CURRENT"

// NewDDBCommitStore creates an S3+DynamoDB commit store. baseURI is the
// partition key, conventionally "s3://bucket/prefix".
func NewDDBCommitStore(blobs *Store, ddb DDBClient, tableName, baseURI string) *DDBCommitStore {
	return &DDBCommitStore{
		blobs:     blobs,
		ddb:       ddb,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Open opens a blob for reading. Opening CURRENT reads the committed
// manifest name from DynamoDB.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name == CurrentName {
		version, manifestName, err := s.latestVersion(ctx)
		if err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, blobstore.ErrNotFound
		}

		return &currentBlob{content: []byte(manifestName)}, nil
	}

	return s.blobs.Open(ctx, name)
}

// Put writes a blob. Writing CURRENT commits a new version through a
// DynamoDB conditional put.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == CurrentName {
		return s.commit(ctx, string(data))
	}

	return s.blobs.Put(ctx, name, data)
}

// Create starts a streaming write on the underlying S3 store.
func (s *DDBCommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return s.blobs.Create(ctx, name)
}

// Delete removes a blob from the underlying S3 store.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	return s.blobs.Delete(ctx, name)
}

// List lists blobs in the underlying S3 store.
func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.blobs.List(ctx, prefix)
}

// PruneVersions deletes committed version rows, keeping the newest keep
// entries. The blobs the pruned versions pointed at are not touched.
func (s *DDBCommitStore) PruneVersions(ctx context.Context, keep int) error {
	versions, err := s.queryVersions(ctx, 0)
	if err != nil {
		return err
	}

	if keep < 1 {
		keep = 1
	}
	if len(versions) <= keep {
		return nil
	}

	for _, item := range versions[keep:] {
		_, err := s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"base_uri": item["base_uri"],
				"version":  item["version"],
			},
		})
		if err != nil {
			return fmt.Errorf("delete commit row: %w", err)
		}
	}

	return nil
}

// queryVersions returns commit rows for this baseURI, newest first. A
// limit of 0 fetches all rows.
func (s *DDBCommitStore) queryVersions(ctx context.Context, limit int32) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	resp, err := s.ddb.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("query commit table: %w", err)
	}

	return resp.Items, nil
}

// latestVersion returns the newest committed version and the manifest
// name it points at. Version 0 means nothing has been committed yet.
func (s *DDBCommitStore) latestVersion(ctx context.Context) (uint64, string, error) {
	items, err := s.queryVersions(ctx, 1)
	if err != nil {
		return 0, "", err
	}

	if len(items) == 0 {
		return 0, "", nil
	}

	item := items[0]

	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("malformed version attribute")
	}

	nameAttr, ok := item["manifest_name"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("malformed manifest_name attribute")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return 0, "", fmt.Errorf("parse version: %w", err)
	}

	return version, nameAttr.Value, nil
}

// commit writes version latest+1 with a conditional put. Losing the race
// to another writer surfaces as ErrConcurrentModification.
func (s *DDBCommitStore) commit(ctx context.Context, manifestName string) error {
	current, _, err := s.latestVersion(ctx)
	if err != nil {
		return err
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: s.baseURI},
			"version":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", current+1)},
			"manifest_name": &types.AttributeValueMemberS{Value: manifestName},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("commit version: %w", err)
	}

	return nil
}

// currentBlob is the in-memory blob handed out for CURRENT reads.
type currentBlob struct {
	content []byte
}

func (b *currentBlob) Close() error {
	return nil
}

func (b *currentBlob) Size() int64 {
	return int64(len(b.content))
}

func (b *currentBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off >= int64(len(b.content)) {
		return 0, io.EOF
	}

	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

func (b *currentBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= int64(len(b.content)) {
		return nil, io.EOF
	}

	end := off + length
	if end > int64(len(b.content)) {
		end = int64(len(b.content))
	}

	return io.NopCloser(bytes.NewReader(b.content[off:end])), nil
}
