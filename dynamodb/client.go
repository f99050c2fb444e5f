//nolint:nilnil
package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/restoremgr/store/restore"
)

const (
	// PartitionKey is the DynamoDB partition key attribute name. It holds
	// the "{year}_{week}" bucket a request was created in.
	PartitionKey = "pk"

	// RowKey is the DynamoDB sort key attribute name. It holds the
	// generated unique identifier of a request.
	RowKey = "sk"

	// StatusAttr is the attribute name used to store the request status
	// redundantly next to the body, so the dequeue scan can filter
	// server-side without deserializing the payload.
	StatusAttr = "current_status"

	// BodyAttr is the attribute name used to store the JSON-encoded
	// snapshot of a restore request.
	BodyAttr = "body"

	// maxBackoff is the maximum backoff duration for retry loops.
	maxBackoff = 2 * time.Second
)

// ErrKeyCollision is returned by [Client.Insert] when a record with the
// derived (partition key, row key) pair already exists. Row keys are
// freshly generated UUIDs, so a collision indicates something is badly
// wrong rather than a retryable condition.
var ErrKeyCollision = errors.New("restore request key already exists")

// Client is a DynamoDB-backed store for restore requests. Each request
// is one item keyed by a week bucket (partition key, "pk") and a
// generated request ID (sort key, "sk"), with the full JSON-encoded
// request in "body" and its status mirrored in "current_status".
//
// Use [New] to create a Client, [Client.Connect] to initialize the
// underlying DynamoDB connection, and [Client.Init] to validate the
// table schema.
type Client struct {
	client    API
	tableName string
	awsCfg    *aws.Config
	opts      *Options
}

// New creates a new Client configured with the given AWS config, table
// name, and optional options. Call [Client.Connect] on the returned
// client before use.
func New(awsCfg *aws.Config, tableName string, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:    awsCfg,
		tableName: tableName,
		opts:      options,
	}
}

// Connect initializes the DynamoDB client from the AWS config provided
// to [New]. It must be called before any other Client methods, and must
// complete before the Client is used concurrently.
func (c *Client) Connect() error {
	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid DynamoDB options: %w", err)
	}

	// Use injected DynamoDB API if provided (useful for testing).
	if c.opts.dynamoDBAPI != nil {
		c.client = c.opts.dynamoDBAPI
	} else {
		c.client = dynamodb.NewFromConfig(*c.awsCfg)
	}

	return nil
}

// Init validates the DynamoDB table schema. It checks that the table
// exists, is active, and has the correct partition key (pk) and sort
// key (sk).
//
// Pass skipSchemaValidation true to skip all checks and return
// immediately, which is useful when schema validation is managed
// separately.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if skipSchemaValidation {
		return nil
	}

	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	}

	response, err := c.client.DescribeTable(ctx, input)
	if err != nil {
		var notFoundError *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFoundError) {
			return fmt.Errorf("table %s does not exist", c.tableName)
		}
		return fmt.Errorf("failed to describe table %s: %w", c.tableName, err)
	}

	if len(response.Table.KeySchema) < 1 {
		return fmt.Errorf("table %s has no key schema", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[0].AttributeName) != PartitionKey {
		return fmt.Errorf("table %s has partition key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[0].AttributeName), PartitionKey)
	}

	if len(response.Table.KeySchema) < 2 {
		return fmt.Errorf("table %s has a simple primary key, expected composite", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[1].AttributeName) != RowKey {
		return fmt.Errorf("table %s has sort key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[1].AttributeName), RowKey)
	}

	if response.Table.TableStatus != dynamodbtypes.TableStatusActive {
		return fmt.Errorf("table %s is not active (status: %s)", c.tableName, response.Table.TableStatus)
	}

	return nil
}

// Insert persists a new restore request. It derives the partition key
// from the current week bucket, generates a fresh UUID row key, stamps
// the request's StatusLocationURI with both keys, and performs a
// create-only write.
//
// The write is conditioned on the key pair not existing; a collision
// (practically impossible with freshly generated UUIDs) is reported as
// [ErrKeyCollision], never silently merged.
func (c *Client) Insert(ctx context.Context, req *restore.Request) error {
	if req == nil {
		return errors.New("request cannot be nil")
	}

	if req.Status == "" {
		return errors.New("request status cannot be empty")
	}

	partitionKey := weekBucket(c.opts.clock())
	rowKey := uuid.NewString()

	req.StatusLocationURI = restore.BuildLocator(c.opts.statusLocationBase, partitionKey, rowKey)

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal restore request: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: &c.tableName,
		Item: map[string]dynamodbtypes.AttributeValue{
			PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: partitionKey},
			RowKey:       &dynamodbtypes.AttributeValueMemberS{Value: rowKey},
			StatusAttr:   &dynamodbtypes.AttributeValueMemberS{Value: string(req.Status)},
			BodyAttr:     &dynamodbtypes.AttributeValueMemberS{Value: string(body)},
		},
		ConditionExpression: aws.String(fmt.Sprintf("attribute_not_exists(%s) AND attribute_not_exists(%s)", PartitionKey, RowKey)),
	}

	if _, err = c.client.PutItem(ctx, input); err != nil {
		var conditionFailed *dynamodbtypes.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return fmt.Errorf("%w: %s/%s", ErrKeyCollision, partitionKey, rowKey)
		}

		return fmt.Errorf("failed to write restore request to DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// GetDetails retrieves a restore request by its exact (partition key,
// row key) pair, as previously communicated to the caller via the
// status-location URI. Returns (nil, nil) if no record matches; absence
// is a normal outcome, not an error.
func (c *Client) GetDetails(ctx context.Context, partitionKey, rowKey string) (*restore.Request, error) {
	if partitionKey == "" {
		return nil, errors.New("partition key cannot be empty")
	}

	if rowKey == "" {
		return nil, errors.New("row key cannot be empty")
	}

	input := &dynamodb.GetItemInput{
		TableName: &c.tableName,
		Key: map[string]dynamodbtypes.AttributeValue{
			PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: partitionKey},
			RowKey:       &dynamodbtypes.AttributeValueMemberS{Value: rowKey},
		},
	}

	output, err := c.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get restore request from DynamoDB table %s: %w", c.tableName, err)
	}

	if len(output.Item) == 0 {
		return nil, nil
	}

	return unmarshalBody(output.Item)
}

// GetNextPending returns one restore request with status ACCEPTED from
// the current week's partition, or (nil, nil) if the partition holds no
// pending requests.
//
// The partition key is recomputed from the clock on every call, so a
// request left unprocessed past the week it was created in is no longer
// reachable through this scan. Only the first response page is
// consulted, and no ordering is guaranteed beyond the table's natural
// row-key order. The scan is read-only: two concurrent callers may both
// observe the same record. Use [Client.ClaimNextPending] when a
// consumer needs exclusive ownership.
func (c *Client) GetNextPending(ctx context.Context) (*restore.Request, error) {
	output, err := c.queryPending(ctx)
	if err != nil {
		return nil, err
	}

	if len(output.Items) == 0 {
		return nil, nil
	}

	return unmarshalBody(output.Items[0])
}

// ClaimNextPending atomically takes ownership of one pending restore
// request by transitioning its status from ACCEPTED to CLAIMED, guarded
// on the stored status still being ACCEPTED. When another consumer wins
// the race for a record, the next candidate in the page is tried.
// Returns (nil, nil) when nothing in the current week's partition is
// claimable.
//
// The same week-bucket and first-page limitations as
// [Client.GetNextPending] apply.
func (c *Client) ClaimNextPending(ctx context.Context) (*restore.Request, error) {
	output, err := c.queryPending(ctx)
	if err != nil {
		return nil, err
	}

	for _, item := range output.Items {
		req, err := unmarshalBody(item)
		if err != nil {
			return nil, err
		}

		req.Status = restore.StatusClaimed

		err = c.upsert(ctx, getStringValue(item[PartitionKey]), getStringValue(item[RowKey]), req,
			aws.String(fmt.Sprintf("%s = :expected", StatusAttr)),
			map[string]dynamodbtypes.AttributeValue{
				":expected": &dynamodbtypes.AttributeValueMemberS{Value: string(restore.StatusAccepted)},
			})
		if err != nil {
			var conditionFailed *dynamodbtypes.ConditionalCheckFailedException
			if errors.As(err, &conditionFailed) {
				// Another consumer claimed this record first.
				continue
			}

			return nil, fmt.Errorf("failed to claim restore request in DynamoDB table %s: %w", c.tableName, err)
		}

		return req, nil
	}

	return nil, nil
}

// Update writes the request's current state back to the store. The
// target (partition key, row key) pair is parsed from the request's
// StatusLocationURI; a locator with fewer than two path segments fails
// with [restore.ErrMalformedLocator].
//
// The status attribute and the body snapshot are set together in a
// single upsert, so the stored status column can never diverge from the
// status embedded in the payload. Applying the same update twice yields
// the same stored state.
func (c *Client) Update(ctx context.Context, req *restore.Request) error {
	if req == nil {
		return errors.New("request cannot be nil")
	}

	if req.Status == "" {
		return errors.New("request status cannot be empty")
	}

	partitionKey, rowKey, err := req.Keys()
	if err != nil {
		return fmt.Errorf("failed to resolve restore request keys: %w", err)
	}

	if err := c.upsert(ctx, partitionKey, rowKey, req, nil, nil); err != nil {
		return fmt.Errorf("failed to update restore request in DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// DropAllData deletes every item from the DynamoDB table. It scans the
// table in pages and removes each page using BatchWriteItem with
// exponential backoff for unprocessed items.
//
// This method is intended for use in tests only. Do not call it in
// production.
func (c *Client) DropAllData(ctx context.Context) error {
	input := &dynamodb.ScanInput{
		TableName: aws.String(c.tableName),
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		output, err := c.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to scan DynamoDB table %s: %w", c.tableName, err)
		}

		if len(output.Items) == 0 {
			break
		}

		// Process items in batches of 25 (DynamoDB BatchWriteItem limit).
		for i := 0; i < len(output.Items); i += 25 {
			end := min(i+25, len(output.Items))
			batch := output.Items[i:end]

			requestItems := make([]dynamodbtypes.WriteRequest, 0, len(batch))

			for _, item := range batch {
				requestItems = append(requestItems, dynamodbtypes.WriteRequest{
					DeleteRequest: &dynamodbtypes.DeleteRequest{
						Key: map[string]dynamodbtypes.AttributeValue{
							PartitionKey: item[PartitionKey],
							RowKey:       item[RowKey],
						},
					},
				})
			}

			batchInput := &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]dynamodbtypes.WriteRequest{
					c.tableName: requestItems,
				},
			}

			// Retry with exponential backoff for unprocessed items.
			const maxRetries = 5
			backoff := 50 * time.Millisecond

			for attempt := 0; attempt <= maxRetries; attempt++ {
				batchResult, err := c.client.BatchWriteItem(ctx, batchInput)
				if err != nil {
					return fmt.Errorf("failed to batch delete items from DynamoDB table %s: %w", c.tableName, err)
				}

				if len(batchResult.UnprocessedItems) == 0 {
					break
				}

				if attempt == maxRetries {
					return fmt.Errorf("%d unprocessed items after %d retries in DropAllData",
						len(batchResult.UnprocessedItems[c.tableName]), maxRetries)
				}

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}

				backoff = min(backoff*2, maxBackoff)
				batchInput.RequestItems = batchResult.UnprocessedItems
			}
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return nil
}

// queryPending issues the dequeue scan: all items in the current week's
// partition whose stored status is ACCEPTED. Only one Query call is
// made; results beyond the first response page are not retrieved.
func (c *Client) queryPending(ctx context.Context) (*dynamodb.QueryOutput, error) {
	bucket := weekBucket(c.opts.clock())

	input := &dynamodb.QueryInput{
		TableName: &c.tableName,
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk":     &dynamodbtypes.AttributeValueMemberS{Value: bucket},
			":status": &dynamodbtypes.AttributeValueMemberS{Value: string(restore.StatusAccepted)},
		},
		KeyConditionExpression: aws.String(fmt.Sprintf("%s = :pk", PartitionKey)),
		FilterExpression:       aws.String(fmt.Sprintf("%s = :status", StatusAttr)),
	}

	output, err := c.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query DynamoDB table %s: %w", c.tableName, err)
	}

	return output, nil
}

// upsert sets the status attribute and the body snapshot of the record
// at (partitionKey, rowKey) in a single UpdateItem, creating the item
// when absent. An optional condition expression guards the write.
func (c *Client) upsert(ctx context.Context, partitionKey, rowKey string, req *restore.Request, condition *string, conditionValues map[string]dynamodbtypes.AttributeValue) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal restore request: %w", err)
	}

	values := map[string]dynamodbtypes.AttributeValue{
		":status": &dynamodbtypes.AttributeValueMemberS{Value: string(req.Status)},
		":body":   &dynamodbtypes.AttributeValueMemberS{Value: string(body)},
	}

	for name, value := range conditionValues {
		values[name] = value
	}

	input := &dynamodb.UpdateItemInput{
		TableName: &c.tableName,
		Key: map[string]dynamodbtypes.AttributeValue{
			PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: partitionKey},
			RowKey:       &dynamodbtypes.AttributeValueMemberS{Value: rowKey},
		},
		UpdateExpression:          aws.String(fmt.Sprintf("SET %s = :status, %s = :body", StatusAttr, BodyAttr)),
		ExpressionAttributeValues: values,
		ConditionExpression:       condition,
	}

	if _, err := c.client.UpdateItem(ctx, input); err != nil {
		return err
	}

	return nil
}

// weekBucket derives the "{year}_{week}" partition key for t. It uses
// the ISO week date, so the year component follows the ISO year rather
// than the calendar year across year boundaries.
func weekBucket(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d_%d", year, week)
}

// unmarshalBody decodes the body attribute of a stored item into a
// restore request.
func unmarshalBody(item map[string]dynamodbtypes.AttributeValue) (*restore.Request, error) {
	body := getStringValue(item[BodyAttr])
	if body == "" {
		return nil, errors.New("stored restore request has no body")
	}

	var req restore.Request

	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal restore request: %w", err)
	}

	return &req, nil
}

// getStringValue extracts the string value from a DynamoDB AttributeValue.
// It returns an empty string if the AttributeValue is not of type AttributeValueMemberS.
func getStringValue(attr dynamodbtypes.AttributeValue) string {
	if attrValue, ok := attr.(*dynamodbtypes.AttributeValueMemberS); ok {
		return attrValue.Value
	}

	return ""
}
