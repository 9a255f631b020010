package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/etalk/webchain-order-sync/internal/broadcast"
	syncevents "github.com/etalk/webchain-order-sync/internal/events"
)

// Broadcaster runs the broadcast workflow for one order.
type Broadcaster interface {
	Broadcast(ctx context.Context, orderID int64) broadcast.Result
}

// Processor handles completed-order messages by running the broadcast engine.
type Processor struct {
	engine Broadcaster
	log    *zap.Logger
}

// NewProcessor creates a worker processor.
func NewProcessor(engine Broadcaster, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		engine: engine,
		log:    log,
	}
}

// Handle receives an SQS batch event and processes each message. It always
// returns nil for engine failures: a failed broadcast is terminal for that
// invocation and already recorded in the error log, and retries are an
// operator responsibility.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	p.log.Info("received completed-order messages", zap.Int("count", len(ev.Records)))
	for _, rec := range ev.Records {
		p.processMessage(ctx, rec)
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) {
	var msg syncevents.CompletedOrderMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		p.log.Error("invalid message body",
			zap.String("body", rec.Body),
			zap.Error(err),
		)
		return
	}

	log := p.log.With(
		zap.Int64("order_id", msg.OrderID),
		zap.String("correlation_id", msg.CorrelationID),
	)

	res := p.engine.Broadcast(ctx, msg.OrderID)
	switch res.Status {
	case broadcast.StatusBroadcast:
		log.Info("order broadcast", zap.String("tx_hash", res.TxHash))
	case broadcast.StatusAlreadyBroadcast:
		log.Info("duplicate completed-order event", zap.String("tx_hash", res.TxHash))
	default:
		log.Warn("broadcast failed", zap.String("reason", res.Reason))
	}
}

func localEvent(body string) events.SQSEvent {
	if body == "" {
		body = fmt.Sprintf(`{"order_id":%d,"correlation_id":"local-1"}`, 1001)
	}
	return events.SQSEvent{
		Records: []events.SQSMessage{
			{Body: body},
		},
	}
}
