package settings

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/etalk/webchain-order-sync/internal/aws"
)

// Option names in the settings table.
const (
	optionUserEmail        = "webchain_user_email"
	optionWallet           = "webchain_wallet"
	optionConnectionStatus = "webchain_connection_status"
)

// DefaultConnectionStatus is shown before any verification has run.
const DefaultConnectionStatus = "Not verified"

var walletPattern = regexp.MustCompile(`^0x[a-f0-9]{40}$`)

// NormalizeWallet lowercases the input and returns it only if it is a valid
// wallet address (0x followed by exactly 40 hex digits). Anything else
// normalizes to the empty string.
func NormalizeWallet(wallet string) string {
	wallet = strings.ToLower(strings.TrimSpace(wallet))
	if !walletPattern.MatchString(wallet) {
		return ""
	}
	return wallet
}

// Credentials is the configured validator account pair.
type Credentials struct {
	Email  string
	Wallet string
}

// Store persists validator settings as single-value options. Each write
// replaces the whole stored value.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore returns a settings Store bound to a DynamoDB table.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Credentials returns the stored account pair. Unset options come back as
// empty strings; callers decide whether that is an error.
func (s *Store) Credentials(ctx context.Context) (Credentials, error) {
	email, err := s.getOption(ctx, optionUserEmail)
	if err != nil {
		return Credentials{}, err
	}
	wallet, err := s.getOption(ctx, optionWallet)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Email: email, Wallet: wallet}, nil
}

// SaveCredentials stores the account pair. The wallet must already be
// normalized by the caller.
func (s *Store) SaveCredentials(ctx context.Context, creds Credentials) error {
	if err := s.setOption(ctx, optionUserEmail, creds.Email); err != nil {
		return err
	}
	return s.setOption(ctx, optionWallet, creds.Wallet)
}

// ConnectionStatus returns the advisory verification status string.
func (s *Store) ConnectionStatus(ctx context.Context) (string, error) {
	status, err := s.getOption(ctx, optionConnectionStatus)
	if err != nil {
		return "", err
	}
	if status == "" {
		return DefaultConnectionStatus, nil
	}
	return status, nil
}

// SetConnectionStatus stores the advisory verification status string.
func (s *Store) SetConnectionStatus(ctx context.Context, status string) error {
	return s.setOption(ctx, optionConnectionStatus, status)
}

func (s *Store) getOption(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"option_name": &types.AttributeValueMemberS{Value: name},
		},
	})
	if err != nil {
		return "", fmt.Errorf("get option %s: %w", name, err)
	}
	if len(out.Item) == 0 {
		return "", nil
	}
	v, ok := out.Item["option_value"].(*types.AttributeValueMemberS)
	if !ok {
		return "", nil
	}
	return v.Value, nil
}

func (s *Store) setOption(ctx context.Context, name, value string) error {
	now := s.nowFunc()
	_, err := s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item: map[string]types.AttributeValue{
			"option_name":  &types.AttributeValueMemberS{Value: name},
			"option_value": &types.AttributeValueMemberS{Value: value},
			"updated_at":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("put option %s: %w", name, err)
	}
	return nil
}
