package errlog

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/etalk/webchain-order-sync/internal/aws"
)

// MaxEntries bounds the log; the oldest entries are evicted first.
const MaxEntries = 100

const logItemKey = "webchain_sync_errors"

// Entry is one recorded sync failure.
type Entry struct {
	Time    time.Time `dynamodbav:"time" json:"time"`
	OrderID int64     `dynamodbav:"order_id" json:"order_id"`
	Message string    `dynamodbav:"message" json:"message"`
}

type logItem struct {
	OptionName string  `dynamodbav:"option_name"` // PK
	Entries    []Entry `dynamodbav:"entries"`
}

// Store keeps the error log as a single item whose value is replaced whole on
// every update. Entries stay in insertion order.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore returns an error log Store bound to a DynamoDB table.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Record appends an entry stamped with the capture time and trims the log to
// the most recent MaxEntries. Repeated identical failures each get their own
// entry.
func (s *Store) Record(ctx context.Context, orderID int64, message string) error {
	entries, err := s.load(ctx)
	if err != nil {
		return err
	}

	entries = append(entries, Entry{
		Time:    s.nowFunc().UTC(),
		OrderID: orderID,
		Message: message,
	})
	if len(entries) > MaxEntries {
		entries = entries[len(entries)-MaxEntries:]
	}

	return s.save(ctx, entries)
}

// List returns up to limit of the most recent entries in chronological order.
// limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Clear empties the log unconditionally.
func (s *Store) Clear(ctx context.Context) error {
	return s.save(ctx, []Entry{})
}

func (s *Store) load(ctx context.Context) ([]Entry, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"option_name": &types.AttributeValueMemberS{Value: logItemKey},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get error log: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var item logItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal error log: %w", err)
	}
	return item.Entries, nil
}

func (s *Store) save(ctx context.Context, entries []Entry) error {
	item, err := attributevalue.MarshalMap(logItem{
		OptionName: logItemKey,
		Entries:    entries,
	})
	if err != nil {
		return fmt.Errorf("marshal error log: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put error log: %w", err)
	}
	return nil
}
