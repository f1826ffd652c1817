package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MaxBatchItems is the DynamoDB limit on items in one TransactWriteItems call.
const MaxBatchItems = 100

var (
	ErrNotFound        = errors.New("repository: document not found")
	ErrConditionFailed = errors.New("repository: condition failed")
	ErrBatchTooLarge   = errors.New("repository: batch exceeds transaction limit")
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client is the document store over a single DynamoDB table. Every document lives
// at PK = collection path, SK = document id.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

func docKey(collection, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: collection},
		"SK": &types.AttributeValueMemberS{Value: id},
	}
}

const notExists = "attribute_not_exists(PK) AND attribute_not_exists(SK)"

// getItem reads one document. Reads are strongly consistent when consistent is set.
func (c *Client) getItem(ctx context.Context, collection, id string, consistent bool) (map[string]types.AttributeValue, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            docKey(collection, id),
		ConsistentRead: aws.Bool(consistent),
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return out.Item, nil
}

// putItem stores a record struct. Its PK and SK fields locate the document.
func (c *Client) putItem(ctx context.Context, record any, mustNotExist bool) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal %T: %w", record, err)
	}
	in := &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	}
	if mustNotExist {
		in.ConditionExpression = aws.String(notExists)
	}
	_, err = c.api.PutItem(ctx, in)
	return mapWriteErr(err)
}

func (c *Client) deleteItem(ctx context.Context, collection, id string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       docKey(collection, id),
	})
	return err
}

func (c *Client) updateItem(ctx context.Context, collection, id string, u *update) error {
	expr, err := u.build()
	if err != nil {
		return err
	}
	_, err = c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.tableName),
		Key:                       docKey(collection, id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return mapWriteErr(err)
}

// writeBatch collects the writes of one logical change. It is committed as a
// single all-or-nothing transaction. The first marshalling or expression error is
// kept and returned by commit.
type writeBatch struct {
	table string
	items []types.TransactWriteItem
	err   error
}

func (c *Client) newBatch() *writeBatch {
	return &writeBatch{table: c.tableName}
}

func (b *writeBatch) marshal(record any) map[string]types.AttributeValue {
	item, err := attributevalue.MarshalMap(record)
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("marshal %T: %w", record, err)
	}
	return item
}

func (b *writeBatch) put(record any) {
	b.items = append(b.items, types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(b.table),
			Item:      b.marshal(record),
		},
	})
}

func (b *writeBatch) create(record any) {
	b.items = append(b.items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(b.table),
			Item:                b.marshal(record),
			ConditionExpression: aws.String(notExists),
		},
	})
}

func (b *writeBatch) update(collection, id string, u *update) {
	expr, err := u.build()
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
		return
	}
	b.items = append(b.items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(b.table),
			Key:                       docKey(collection, id),
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		},
	})
}

func (b *writeBatch) delete(collection, id string) {
	b.items = append(b.items, types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(b.table),
			Key:       docKey(collection, id),
		},
	})
}

func (b *writeBatch) len() int { return len(b.items) }

// commit writes the batch in one TransactWriteItems call.
func (c *Client) commit(ctx context.Context, b *writeBatch) error {
	if b.err != nil {
		return b.err
	}
	if b.len() == 0 {
		return nil
	}
	if b.len() > MaxBatchItems {
		return fmt.Errorf("%w: %d items", ErrBatchTooLarge, b.len())
	}
	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: b.items,
	})
	return mapWriteErr(err)
}

// mapWriteErr folds DynamoDB conditional failures into ErrConditionFailed.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("%w: %v", ErrConditionFailed, err)
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return fmt.Errorf("%w: %v", ErrConditionFailed, err)
			}
		}
	}
	return err
}
