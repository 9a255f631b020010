package webchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// maxResponseSize is the maximum allowed response size from the WebChain API (1MB)
const maxResponseSize = 1 * 1024 * 1024

func init() {
	// order amounts and prices go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// VerificationError is a non-success response from /verify-validator.
type VerificationError struct {
	StatusCode int
	Message    string
}

func (e *VerificationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Validator verification failed"
}

// RemoteError is a non-success response from /process-order. Its message
// prefers the remote message, then the raw body, then a generic fallback.
type RemoteError struct {
	StatusCode int
	Message    string
	RawBody    string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.RawBody != "" {
		return e.RawBody
	}
	return "API returned invalid response"
}

// Client talks to the remote WebChain API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client bound to baseURL. Every call is a single attempt
// bounded by timeout; retries are the caller's responsibility.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// VerifyValidator checks the account email / wallet pair against the remote
// service. A *VerificationError is returned for any non-success response;
// transport failures come back unwrapped in type so callers can tell them apart.
func (c *Client) VerifyValidator(ctx context.Context, email, wallet string) (*VerifyResult, error) {
	status, body, err := c.postJSON(ctx, "/verify-validator", verifyRequest{
		UserEmail: email,
		Wallet:    wallet,
	})
	if err != nil {
		return nil, err
	}

	var resp verifyResponse
	decodeErr := json.Unmarshal(body, &resp)

	if status != http.StatusOK {
		return nil, &VerificationError{StatusCode: status, Message: resp.Message}
	}
	if decodeErr != nil {
		// success is exactly 200 with a decodable body
		return nil, &VerificationError{StatusCode: status}
	}
	return &VerifyResult{Balance: resp.Balance}, nil
}

// ProcessOrder submits the order payload and returns the transaction hash.
// Both historical response shapes are accepted: {"tx_hash":...} and
// {"success":true,"data":{"tx_hash":...}}.
func (c *Client) ProcessOrder(ctx context.Context, email, wallet string, payload OrderPayload) (string, error) {
	status, body, err := c.postJSON(ctx, "/process-order", processOrderRequest{
		UserEmail: email,
		Wallet:    wallet,
		OrderData: payload,
	})
	if err != nil {
		return "", err
	}

	var resp processOrderResponse
	_ = json.Unmarshal(body, &resp)

	if status == http.StatusOK {
		if resp.TxHash != "" {
			return resp.TxHash, nil
		}
		if resp.Success && resp.Data.TxHash != "" {
			return resp.Data.TxHash, nil
		}
	}
	return "", &RemoteError{StatusCode: status, Message: resp.Message, RawBody: string(body)}
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("read response from %s: %w", path, err)
	}
	return resp.StatusCode, body, nil
}
