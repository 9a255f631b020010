package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/etalk/webchain-order-sync/internal/aws"
)

// ErrRecordExists indicates a record for the order id was created earlier;
// the stored reference wins and the new one is discarded.
var ErrRecordExists = errors.New("broadcast record already exists")

// RecordStore persists per-order transaction references in DynamoDB.
type RecordStore struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewRecordStore returns a configured RecordStore.
func NewRecordStore(client aws.DynamoDBAPI, tableName string) *RecordStore {
	return &RecordStore{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get retrieves the record for an order id. If not found, returns (nil, nil).
func (s *RecordStore) Get(ctx context.Context, orderID int64) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberN{Value: strconv.FormatInt(orderID, 10)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// Create writes the record for orderID if none exists yet. The conditional
// put makes creation a compare-and-set: concurrent triggers for the same
// order id cannot both win. Returns ErrRecordExists when the key is taken.
func (s *RecordStore) Create(ctx context.Context, orderID int64, txHash string) error {
	rec := Record{
		OrderID:   orderID,
		TxHash:    txHash,
		CreatedAt: s.nowFunc().UTC(),
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
			return ErrRecordExists
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
