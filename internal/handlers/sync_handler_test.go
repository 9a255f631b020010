package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etalk/webchain-order-sync/internal/auth"
	"github.com/etalk/webchain-order-sync/internal/broadcast"
	"github.com/etalk/webchain-order-sync/internal/errlog"
	"github.com/etalk/webchain-order-sync/internal/orders"
	"github.com/etalk/webchain-order-sync/internal/settings"
	"github.com/etalk/webchain-order-sync/internal/webchain"
)

type fakeEngine struct {
	result   broadcast.Result
	orderIDs []int64
}

func (f *fakeEngine) Broadcast(ctx context.Context, orderID int64) broadcast.Result {
	f.orderIDs = append(f.orderIDs, orderID)
	return f.result
}

type fakeOrders struct {
	orders map[int64]*orders.Order
	err    error
}

func (f *fakeOrders) Get(ctx context.Context, orderID int64) (*orders.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.orders[orderID], nil
}

type fakeVerifier struct {
	result *webchain.VerifyResult
	err    error

	gotEmail  string
	gotWallet string
}

func (f *fakeVerifier) VerifyValidator(ctx context.Context, email, wallet string) (*webchain.VerifyResult, error) {
	f.gotEmail = email
	f.gotWallet = wallet
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeSettings struct {
	creds  settings.Credentials
	status string
}

func (f *fakeSettings) Credentials(ctx context.Context) (settings.Credentials, error) {
	return f.creds, nil
}

func (f *fakeSettings) SaveCredentials(ctx context.Context, creds settings.Credentials) error {
	f.creds = creds
	return nil
}

func (f *fakeSettings) ConnectionStatus(ctx context.Context) (string, error) {
	if f.status == "" {
		return settings.DefaultConnectionStatus, nil
	}
	return f.status, nil
}

func (f *fakeSettings) SetConnectionStatus(ctx context.Context, status string) error {
	f.status = status
	return nil
}

type fakeErrorLog struct {
	entries  []errlog.Entry
	cleared  bool
	gotLimit int
}

func (f *fakeErrorLog) List(ctx context.Context, limit int) ([]errlog.Entry, error) {
	f.gotLimit = limit
	if limit > 0 && len(f.entries) > limit {
		return f.entries[len(f.entries)-limit:], nil
	}
	return f.entries, nil
}

func (f *fakeErrorLog) Clear(ctx context.Context) error {
	f.cleared = true
	f.entries = nil
	return nil
}

type fakePublisher struct {
	orderIDs       []int64
	correlationIDs []string
	err            error
}

func (f *fakePublisher) PublishOrderCompleted(ctx context.Context, orderID int64, correlationID string) error {
	if f.err != nil {
		return f.err
	}
	f.orderIDs = append(f.orderIDs, orderID)
	f.correlationIDs = append(f.correlationIDs, correlationID)
	return nil
}

type testEnv struct {
	router    *gin.Engine
	auth      *auth.Service
	engine    *fakeEngine
	orders    *fakeOrders
	api       *fakeVerifier
	settings  *fakeSettings
	errors    *fakeErrorLog
	publisher *fakePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		auth:   auth.NewService("test-secret", "webchain-order-sync"),
		engine: &fakeEngine{result: broadcast.Broadcasted("0xaaa111")},
		orders: &fakeOrders{orders: map[int64]*orders.Order{
			1001: {OrderID: 1001, Status: orders.StatusCompleted},
		}},
		api:       &fakeVerifier{result: &webchain.VerifyResult{Balance: decimal.RequireFromString("123.45")}},
		settings:  &fakeSettings{},
		errors:    &fakeErrorLog{},
		publisher: &fakePublisher{},
	}

	env.router = gin.New()
	RegisterSyncRoutes(env.router, HandlerConfig{
		Engine:    env.engine,
		Orders:    env.orders,
		API:       env.api,
		Settings:  env.settings,
		Errors:    env.errors,
		Publisher: env.publisher,
		Auth:      env.auth,
		Nonces:    auth.NewMemoryNonceStore(),
	})
	return env
}

// token mints a fresh single-use token; nonce-guarded routes consume the jti.
func (e *testEnv) token(t *testing.T, capabilities ...string) string {
	t.Helper()
	token, err := e.auth.GenerateToken(capabilities, time.Minute)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestBroadcastOrderSuccess(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/sync/orders/1001/broadcast", env.token(t, auth.CapEditShopOrders), nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Success: Transaction 0xaaa111", body["message"])
	assert.Equal(t, "0xaaa111", body["tx_hash"])
	assert.Equal(t, []int64{1001}, env.engine.orderIDs)
}

func TestBroadcastOrderAlreadyBroadcast(t *testing.T) {
	env := newTestEnv(t)
	env.engine.result = broadcast.AlreadyBroadcast("0xbbb222")

	w := env.do(t, http.MethodPost, "/sync/orders/1001/broadcast", env.token(t, auth.CapEditShopOrders), nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Order already broadcast: Transaction 0xbbb222", body["error"])
}

func TestBroadcastOrderEngineFailure(t *testing.T) {
	env := newTestEnv(t)
	env.engine.result = broadcast.Failed("API request failed: connection refused")

	w := env.do(t, http.MethodPost, "/sync/orders/1001/broadcast", env.token(t, auth.CapEditShopOrders), nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "API request failed: connection refused", decodeBody(t, w)["error"])
}

func TestBroadcastOrderNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/sync/orders/9999/broadcast", env.token(t, auth.CapEditShopOrders), nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Order not found", decodeBody(t, w)["error"])
	assert.Empty(t, env.engine.orderIDs)
}

func TestBroadcastOrderRejectsInvalidID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/sync/orders/abc/broadcast", env.token(t, auth.CapEditShopOrders), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBroadcastRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/sync/orders/1001/broadcast", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, env.engine.orderIDs)
}

func TestBroadcastRequiresOrderCapability(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/sync/orders/1001/broadcast", env.token(t), nil)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Unauthorized", decodeBody(t, w)["error"])
	assert.Empty(t, env.engine.orderIDs)
}

func TestBroadcastRejectsReplayedToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, auth.CapEditShopOrders)

	first := env.do(t, http.MethodPost, "/sync/orders/1001/broadcast", token, nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := env.do(t, http.MethodPost, "/sync/orders/1001/broadcast", token, nil)
	require.Equal(t, http.StatusForbidden, second.Code)
	assert.Equal(t, "replayed_request", decodeBody(t, second)["error"])
	assert.Equal(t, []int64{1001}, env.engine.orderIDs)
}

func TestOrderCompletedEnqueues(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/sync/orders/1001/completed", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t))
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "req-42", body["correlation_id"])
	assert.Equal(t, []int64{1001}, env.publisher.orderIDs)
	assert.Equal(t, []string{"req-42"}, env.publisher.correlationIDs)
	// the webhook never runs the engine inline
	assert.Empty(t, env.engine.orderIDs)
}

func TestOrderCompletedGeneratesCorrelationID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/sync/orders/1001/completed", env.token(t), nil)

	require.Equal(t, http.StatusAccepted, w.Code)
	body := decodeBody(t, w)
	assert.NotEmpty(t, body["correlation_id"])
}

func TestOrderCompletedEnqueueFailure(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.err = fmt.Errorf("queue unavailable")

	w := env.do(t, http.MethodPost, "/sync/orders/1001/completed", env.token(t), nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestTestBroadcastRunsEngine(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/sync/test-broadcast", env.token(t, auth.CapEditShopOrders),
		gin.H{"order_id": 1001})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{1001}, env.engine.orderIDs)
}

func TestTestBroadcastRejectsMissingOrderID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/sync/test-broadcast", env.token(t, auth.CapEditShopOrders), gin.H{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.engine.orderIDs)
}

func TestTestConnectionSuccess(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/sync/test-connection", env.token(t), gin.H{
		"email":  "validator@example.org",
		"wallet": "0xABCDEF0123456789ABCDEF0123456789ABCDEF01",
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Successfully connected!", body["message"])

	// verification ran against the normalized wallet and credentials stuck
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", env.api.gotWallet)
	assert.Equal(t, "validator@example.org", env.settings.creds.Email)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", env.settings.creds.Wallet)
	assert.Equal(t, "✓ Connected - Balance: 123.45 ETK", env.settings.status)
}

func TestTestConnectionRejectedByValidator(t *testing.T) {
	env := newTestEnv(t)
	env.api.err = &webchain.VerificationError{StatusCode: http.StatusForbidden, Message: "Not a registered validator"}

	w := env.do(t, http.MethodPost, "/sync/test-connection", env.token(t), gin.H{
		"email":  "validator@example.org",
		"wallet": "0xabcdef0123456789abcdef0123456789abcdef01",
	})

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not a registered validator", decodeBody(t, w)["error"])
	assert.Empty(t, env.settings.creds.Email)
}

func TestTestConnectionRejectsMalformedWallet(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/sync/test-connection", env.token(t), gin.H{
		"email":  "validator@example.org",
		"wallet": "0xnothex",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.api.gotWallet)
}

func TestSaveSettings(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/sync/settings", env.token(t, auth.CapManageOptions), gin.H{
		"email":  "validator@example.org",
		"wallet": "0xABCDEF0123456789ABCDEF0123456789ABCDEF01",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", env.settings.creds.Wallet)
}

func TestSaveSettingsRequiresAdminCapability(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/sync/settings", env.token(t, auth.CapEditShopOrders), gin.H{
		"email":  "validator@example.org",
		"wallet": "0xabcdef0123456789abcdef0123456789abcdef01",
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, env.settings.creds.Email)
}

func TestClearErrors(t *testing.T) {
	env := newTestEnv(t)
	env.errors.entries = []errlog.Entry{{OrderID: 1, Message: "failure"}}

	w := env.do(t, http.MethodPost, "/sync/errors/clear", env.token(t, auth.CapManageOptions), nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Error logs cleared successfully", decodeBody(t, w)["message"])
	assert.True(t, env.errors.cleared)
}

func TestStatusReportsConnectionAndErrors(t *testing.T) {
	env := newTestEnv(t)
	env.settings.status = "✓ Connected - Balance: 5 ETK"
	env.errors.entries = []errlog.Entry{
		{OrderID: 1, Message: "first"},
		{OrderID: 2, Message: "second"},
	}

	w := env.do(t, http.MethodGet, "/sync/status?limit=1", env.token(t), nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "✓ Connected - Balance: 5 ETK", body["connection_status"])
	entries, ok := body["errors"].([]interface{})
	require.True(t, ok)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, env.errors.gotLimit)
}

func TestStatusDefaultsWhenUnconfigured(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/sync/status", env.token(t), nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, settings.DefaultConnectionStatus, body["connection_status"])
	entries, ok := body["errors"].([]interface{})
	require.True(t, ok)
	assert.Empty(t, entries)
	assert.Equal(t, defaultErrorListLimit, env.errors.gotLimit)
}
