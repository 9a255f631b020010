package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDynamo is a minimal in-memory DynamoDB supporting GetItem and the
// conditional PutItem the record store relies on.
type mockDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func (m *mockDynamo) pk(attrs map[string]types.AttributeValue) (string, error) {
	if v, ok := attrs["order_id"].(*types.AttributeValueMemberN); ok {
		return v.Value, nil
	}
	return "", errors.New("missing order_id")
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, err := m.pk(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.items[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, err := m.pk(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(order_id)" {
		if _, exists := m.items[pk]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.items[pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func TestRecordStoreCreateAndGet(t *testing.T) {
	mock := newMockDynamo()
	s := NewRecordStore(mock, "broadcast-records")
	ctx := context.Background()

	rec, err := s.Get(ctx, 1001)
	require.NoError(t, err)
	assert.Nil(t, rec, "no record before create")

	require.NoError(t, s.Create(ctx, 1001, "0xabc"))

	rec, err = s.Get(ctx, 1001)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(1001), rec.OrderID)
	assert.Equal(t, "0xabc", rec.TxHash)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestRecordStoreCreateIsWriteOnce(t *testing.T) {
	mock := newMockDynamo()
	s := NewRecordStore(mock, "broadcast-records")
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, 1001, "0xfirst"))

	err := s.Create(ctx, 1001, "0xsecond")
	require.ErrorIs(t, err, ErrRecordExists)

	// the original reference is untouched
	rec, err := s.Get(ctx, 1001)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "0xfirst", rec.TxHash)
}
