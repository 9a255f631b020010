package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/etalk/webchain-order-sync/internal/aws"
)

// CompletedOrderMessage is the payload sent from the host webhook to the
// broadcast worker.
type CompletedOrderMessage struct {
	OrderID       int64  `json:"order_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Publisher wraps an SQS client and a queue URL.
type Publisher struct {
	sqs      aws.SQSAPI
	queueURL string
}

// NewPublisher returns a Publisher bound to a queue URL.
func NewPublisher(sqsClient aws.SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		sqs:      sqsClient,
		queueURL: queueURL,
	}
}

// PublishOrderCompleted enqueues a completed-order event for the worker.
func (p *Publisher) PublishOrderCompleted(ctx context.Context, orderID int64, correlationID string) error {
	body, err := json.Marshal(CompletedOrderMessage{
		OrderID:       orderID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	bodyStr := string(body)
	input := &sqs.SendMessageInput{
		QueueUrl:    &p.queueURL,
		MessageBody: &bodyStr,
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"order_id": {
				DataType:    awsString("String"),
				StringValue: awsString(strconv.FormatInt(orderID, 10)),
			},
		},
	}
	if correlationID != "" {
		input.MessageAttributes["correlation_id"] = sqstypes.MessageAttributeValue{
			DataType:    awsString("String"),
			StringValue: &correlationID,
		}
	}

	if _, err := p.sqs.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
