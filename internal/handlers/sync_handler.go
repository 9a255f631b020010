package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/etalk/webchain-order-sync/internal/auth"
	"github.com/etalk/webchain-order-sync/internal/broadcast"
	"github.com/etalk/webchain-order-sync/internal/errlog"
	"github.com/etalk/webchain-order-sync/internal/settings"
	"github.com/etalk/webchain-order-sync/internal/webchain"
)

// defaultErrorListLimit matches the number of recent errors shown to the
// operator.
const defaultErrorListLimit = 10

// Broadcaster runs the broadcast workflow for one order.
type Broadcaster interface {
	Broadcast(ctx context.Context, orderID int64) broadcast.Result
}

// Verifier checks ad-hoc credentials against the remote service.
type Verifier interface {
	VerifyValidator(ctx context.Context, email, wallet string) (*webchain.VerifyResult, error)
}

// SettingsStore is the settings surface the handlers need.
type SettingsStore interface {
	Credentials(ctx context.Context) (settings.Credentials, error)
	SaveCredentials(ctx context.Context, creds settings.Credentials) error
	ConnectionStatus(ctx context.Context) (string, error)
	SetConnectionStatus(ctx context.Context, status string) error
}

// ErrorLog is the error log surface the handlers need.
type ErrorLog interface {
	List(ctx context.Context, limit int) ([]errlog.Entry, error)
	Clear(ctx context.Context) error
}

// CompletedPublisher enqueues completed-order events for the worker.
type CompletedPublisher interface {
	PublishOrderCompleted(ctx context.Context, orderID int64, correlationID string) error
}

// HandlerConfig groups dependencies for the sync trigger surface.
type HandlerConfig struct {
	Engine    Broadcaster
	Orders    broadcast.OrderGetter
	API       Verifier
	Settings  SettingsStore
	Errors    ErrorLog
	Publisher CompletedPublisher
	Auth      *auth.Service
	Nonces    auth.NonceStore
	Logger    *zap.Logger
}

type syncHandler struct {
	cfg      HandlerConfig
	validate *validatorv10.Validate
	log      *zap.Logger
}

// RegisterSyncRoutes registers the operator-facing sync routes.
func RegisterSyncRoutes(r *gin.Engine, cfg HandlerConfig) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &syncHandler{
		cfg:      cfg,
		validate: validatorv10.New(),
		log:      log,
	}

	anyToken := auth.RequireCapability(cfg.Auth, nil, "")
	orderCap := auth.RequireCapability(cfg.Auth, cfg.Nonces, auth.CapEditShopOrders)
	adminCap := auth.RequireCapability(cfg.Auth, cfg.Nonces, auth.CapManageOptions)

	sync := r.Group("/sync")
	{
		sync.POST("/orders/:order_id/broadcast", orderCap, h.broadcastOrder)
		sync.POST("/orders/:order_id/completed", anyToken, h.orderCompleted)
		sync.POST("/test-broadcast", orderCap, h.testBroadcast)
		sync.POST("/test-connection", auth.RequireCapability(cfg.Auth, cfg.Nonces, ""), h.testConnection)
		sync.PUT("/settings", adminCap, h.saveSettings)
		sync.POST("/errors/clear", adminCap, h.clearErrors)
		sync.GET("/status", anyToken, h.status)
	}
}

type testConnectionRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Wallet string `json:"wallet" validate:"required"`
}

type settingsRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Wallet string `json:"wallet" validate:"required"`
}

type testBroadcastRequest struct {
	OrderID int64 `json:"order_id" validate:"required,min=1"`
}

// broadcastOrder is the manual re-trigger from the order list.
func (h *syncHandler) broadcastOrder(c *gin.Context) {
	orderID, ok := h.orderIDParam(c)
	if !ok {
		return
	}
	h.runBroadcast(c, orderID)
}

// testBroadcast runs the identical engine logic against an operator-chosen
// order id. This is a real broadcast, not a simulation: a successful test
// records the transaction reference like any other trigger.
func (h *syncHandler) testBroadcast(c *gin.Context) {
	var req testBroadcastRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	h.runBroadcast(c, req.OrderID)
}

func (h *syncHandler) runBroadcast(c *gin.Context, orderID int64) {
	ctx := c.Request.Context()

	order, err := h.cfg.Orders.Get(ctx, orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order_lookup_failed", "msg": err.Error()})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	res := h.cfg.Engine.Broadcast(ctx, orderID)
	switch res.Status {
	case broadcast.StatusBroadcast:
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("Success: Transaction %s", res.TxHash),
			"tx_hash": res.TxHash,
		})
	case broadcast.StatusAlreadyBroadcast:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   fmt.Sprintf("Order already broadcast: Transaction %s", res.TxHash),
			"tx_hash": res.TxHash,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Reason})
	}
}

// orderCompleted is the host webhook fired when an order transitions to
// completed. It enqueues the broadcast instead of running it inline.
func (h *syncHandler) orderCompleted(c *gin.Context) {
	orderID, ok := h.orderIDParam(c)
	if !ok {
		return
	}

	correlationID := c.GetHeader("X-Request-Id")
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	if err := h.cfg.Publisher.PublishOrderCompleted(c.Request.Context(), orderID, correlationID); err != nil {
		h.log.Error("failed to enqueue completed order",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue_failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"order_id": orderID, "correlation_id": correlationID})
}

// testConnection verifies ad-hoc credentials and, on success, persists them
// together with an advisory status string.
func (h *syncHandler) testConnection(c *gin.Context) {
	var req testConnectionRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	wallet := settings.NormalizeWallet(req.Wallet)
	if wallet == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and wallet are required"})
		return
	}

	ctx := c.Request.Context()
	result, err := h.cfg.API.VerifyValidator(ctx, req.Email, wallet)
	if err != nil {
		var verr *webchain.VerificationError
		if errors.As(err, &verr) {
			status := verr.StatusCode
			if status < http.StatusBadRequest {
				status = http.StatusBadGateway
			}
			c.JSON(status, gin.H{"error": verr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("API request failed: %v", err)})
		return
	}

	if err := h.cfg.Settings.SaveCredentials(ctx, settings.Credentials{Email: req.Email, Wallet: wallet}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings_save_failed", "msg": err.Error()})
		return
	}
	status := fmt.Sprintf("✓ Connected - Balance: %s ETK", result.Balance)
	if err := h.cfg.Settings.SetConnectionStatus(c.Request.Context(), status); err != nil {
		h.log.Warn("failed to store connection status", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully connected!",
		"balance": result.Balance,
	})
}

// saveSettings validates and stores the validator credentials.
func (h *syncHandler) saveSettings(c *gin.Context) {
	var req settingsRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	wallet := settings.NormalizeWallet(req.Wallet)
	if wallet == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation_failed",
			"fields": map[string]string{"wallet": "must be 0x followed by 40 hex digits"},
		})
		return
	}

	if err := h.cfg.Settings.SaveCredentials(c.Request.Context(), settings.Credentials{
		Email:  req.Email,
		Wallet: wallet,
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings_save_failed", "msg": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Settings saved"})
}

// status reports the advisory connection status and recent sync errors.
func (h *syncHandler) status(c *gin.Context) {
	ctx := c.Request.Context()

	connStatus, err := h.cfg.Settings.ConnectionStatus(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status_lookup_failed", "msg": err.Error()})
		return
	}

	limit := defaultErrorListLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.cfg.Errors.List(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error_log_lookup_failed", "msg": err.Error()})
		return
	}
	if entries == nil {
		entries = []errlog.Entry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"connection_status": connStatus,
		"errors":            entries,
	})
}

// clearErrors empties the error log.
func (h *syncHandler) clearErrors(c *gin.Context) {
	if err := h.cfg.Errors.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear_failed", "msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Error logs cleared successfully"})
}

func (h *syncHandler) orderIDParam(c *gin.Context) (int64, bool) {
	orderID, err := strconv.ParseInt(c.Param("order_id"), 10, 64)
	if err != nil || orderID < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_order_id"})
		return 0, false
	}
	return orderID, true
}
