package webchain

import "github.com/shopspring/decimal"

// Customer identifies the purchaser on the order payload.
type Customer struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// PayloadItem is one order line as the WebChain API expects it.
type PayloadItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	SKU       string          `json:"sku"`
}

// OrderPayload is the order_data object sent to POST /process-order.
type OrderPayload struct {
	OrderID  int64           `json:"order_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Customer Customer        `json:"customer"`
	Items    []PayloadItem   `json:"items"`
}

// VerifyResult is a successful validator verification.
type VerifyResult struct {
	Balance decimal.Decimal `json:"balance"`
}

type verifyRequest struct {
	UserEmail string `json:"user_email"`
	Wallet    string `json:"wallet"`
}

type processOrderRequest struct {
	UserEmail string       `json:"user_email"`
	Wallet    string       `json:"wallet"`
	OrderData OrderPayload `json:"order_data"`
}

// processOrderResponse covers both response shapes the API has used across
// versions: a top-level tx_hash, or success+data.tx_hash.
type processOrderResponse struct {
	TxHash  string `json:"tx_hash"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		TxHash string `json:"tx_hash"`
	} `json:"data"`
}

type verifyResponse struct {
	Balance decimal.Decimal `json:"balance"`
	Message string          `json:"message"`
}
