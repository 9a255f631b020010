package broadcast

import "time"

// Broadcast outcome statuses.
const (
	StatusBroadcast        = "BROADCAST"
	StatusAlreadyBroadcast = "ALREADY_BROADCAST"
	StatusFailed           = "FAILED"
)

// Result is the tri-state outcome of a broadcast attempt. AlreadyBroadcast is
// informational, not a failure; callers must be able to tell the two apart.
type Result struct {
	Status string `json:"status"`
	TxHash string `json:"tx_hash,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Broadcasted is a first-time successful broadcast.
func Broadcasted(txHash string) Result {
	return Result{Status: StatusBroadcast, TxHash: txHash}
}

// AlreadyBroadcast reports the reference recorded by an earlier broadcast.
func AlreadyBroadcast(txHash string) Result {
	return Result{Status: StatusAlreadyBroadcast, TxHash: txHash}
}

// Failed is a terminal failure for this attempt.
func Failed(reason string) Result {
	return Result{Status: StatusFailed, Reason: reason}
}

// Record is the per-order transaction reference persisted after a successful
// broadcast. Created exactly once, never overwritten or deleted.
type Record struct {
	OrderID   int64     `dynamodbav:"order_id"` // PK
	TxHash    string    `dynamodbav:"tx_hash"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}
