package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses assigned by the host commerce platform.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusRefunded  = "REFUNDED"
)

// GuestEmail is the placeholder billing address for orders placed without an
// account. Customer notifications are suppressed for it.
const GuestEmail = "guest@example.com"

// LineItem is one purchased product line on an order.
type LineItem struct {
	ProductID int64           `dynamodbav:"product_id"`
	Name      string          `dynamodbav:"name"`
	Quantity  int             `dynamodbav:"quantity"`
	LineTotal decimal.Decimal `dynamodbav:"line_total"`
	SKU       string          `dynamodbav:"sku,omitempty"`
}

// Order is the host-owned order record as stored in the orders DynamoDB
// table. This service only ever reads it.
type Order struct {
	OrderID      int64           `dynamodbav:"order_id"` // PK
	Status       string          `dynamodbav:"status"`
	Total        decimal.Decimal `dynamodbav:"total"`
	Currency     string          `dynamodbav:"currency"`
	CustomerID   int64           `dynamodbav:"customer_id"`
	BillingEmail string          `dynamodbav:"billing_email,omitempty"` // empty for guest orders
	Items        []LineItem      `dynamodbav:"items,omitempty"`
	CreatedAt    time.Time       `dynamodbav:"created_at"`
}
