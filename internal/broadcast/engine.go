package broadcast

import (
	"context"
	"errors"
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/etalk/webchain-order-sync/internal/orders"
	"github.com/etalk/webchain-order-sync/internal/settings"
	"github.com/etalk/webchain-order-sync/internal/webchain"
)

// OrderGetter reads host orders.
type OrderGetter interface {
	Get(ctx context.Context, orderID int64) (*orders.Order, error)
}

// Records persists per-order transaction references.
type Records interface {
	Get(ctx context.Context, orderID int64) (*Record, error)
	Create(ctx context.Context, orderID int64, txHash string) error
}

// SettingsReader loads the configured validator credentials.
type SettingsReader interface {
	Credentials(ctx context.Context) (settings.Credentials, error)
}

// APIClient talks to the remote WebChain API.
type APIClient interface {
	VerifyValidator(ctx context.Context, email, wallet string) (*webchain.VerifyResult, error)
	ProcessOrder(ctx context.Context, email, wallet string, payload webchain.OrderPayload) (string, error)
}

// ErrorLog records sync failures for diagnostics and operator display.
type ErrorLog interface {
	Record(ctx context.Context, orderID int64, message string) error
}

// Notifier sends post-broadcast notifications. Best-effort by contract.
type Notifier interface {
	Notify(ctx context.Context, orderID int64, txHash, billingEmail string)
}

// OutcomeRecorder counts broadcast outcomes. Best-effort.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, status string)
}

// Deps groups the collaborators the engine needs.
type Deps struct {
	Orders   OrderGetter
	Records  Records
	Settings SettingsReader
	API      APIClient
	Errors   ErrorLog
	Notifier Notifier
	Metrics  OutcomeRecorder
	Logger   *zap.Logger
}

// Engine orchestrates the broadcast workflow: verify, submit, persist,
// notify. At most one broadcast per order, enforced by the record store.
type Engine struct {
	orders   OrderGetter
	records  Records
	settings SettingsReader
	api      APIClient
	errors   ErrorLog
	notifier Notifier
	metrics  OutcomeRecorder
	log      *zap.Logger
	validate *validatorv10.Validate
}

// NewEngine wires up a broadcast engine.
func NewEngine(deps Deps) *Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		orders:   deps.Orders,
		records:  deps.Records,
		settings: deps.Settings,
		api:      deps.API,
		errors:   deps.Errors,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		log:      log,
		validate: NewValidator(),
	}
}

// Broadcast runs the full workflow for one order, short-circuiting on the
// first failure. Every call against the remote API is a single attempt;
// re-triggering is the operator's responsibility.
func (e *Engine) Broadcast(ctx context.Context, orderID int64) Result {
	log := e.log.With(zap.Int64("order_id", orderID))

	// An existing record wins outright: no network calls are made.
	rec, err := e.records.Get(ctx, orderID)
	if err != nil {
		return e.fail(ctx, orderID, fmt.Sprintf("broadcast record lookup failed: %v", err))
	}
	if rec != nil {
		log.Info("order already broadcast", zap.String("tx_hash", rec.TxHash))
		return e.finish(ctx, AlreadyBroadcast(rec.TxHash))
	}

	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return e.fail(ctx, orderID, fmt.Sprintf("order lookup failed: %v", err))
	}
	if order == nil {
		return e.fail(ctx, orderID, "Order not found")
	}

	payload, err := BuildPayload(e.validate, order)
	if err != nil {
		return e.fail(ctx, orderID, err.Error())
	}

	creds, err := e.settings.Credentials(ctx)
	if err != nil {
		return e.fail(ctx, orderID, fmt.Sprintf("settings lookup failed: %v", err))
	}
	if creds.Email == "" || creds.Wallet == "" {
		return e.fail(ctx, orderID, "Missing email or wallet configuration")
	}

	// Pre-validate the configured credentials before any order data leaves.
	if _, err := e.api.VerifyValidator(ctx, creds.Email, creds.Wallet); err != nil {
		var verr *webchain.VerificationError
		if errors.As(err, &verr) {
			return e.fail(ctx, orderID, verr.Error())
		}
		return e.fail(ctx, orderID, fmt.Sprintf("Validator verification failed: %v", err))
	}

	log.Debug("submitting order payload", zap.String("currency", payload.Currency))

	txHash, err := e.api.ProcessOrder(ctx, creds.Email, creds.Wallet, *payload)
	if err != nil {
		var rerr *webchain.RemoteError
		if errors.As(err, &rerr) {
			return e.fail(ctx, orderID, rerr.Error())
		}
		return e.fail(ctx, orderID, fmt.Sprintf("API request failed: %v", err))
	}

	// Persist before notifying. The conditional write means a concurrent
	// trigger that got here first keeps its reference.
	if err := e.records.Create(ctx, orderID, txHash); err != nil {
		if errors.Is(err, ErrRecordExists) {
			if existing, getErr := e.records.Get(ctx, orderID); getErr == nil && existing != nil {
				log.Warn("concurrent broadcast won the record write",
					zap.String("tx_hash", existing.TxHash))
				return e.finish(ctx, AlreadyBroadcast(existing.TxHash))
			}
		}
		return e.fail(ctx, orderID, fmt.Sprintf("failed to persist transaction reference: %v", err))
	}

	log.Info("order broadcast successful", zap.String("tx_hash", txHash))

	// Notification failures are logged by the dispatcher and never mask the
	// successful broadcast.
	e.notifier.Notify(ctx, orderID, txHash, payload.Customer.Email)

	return e.finish(ctx, Broadcasted(txHash))
}

func (e *Engine) fail(ctx context.Context, orderID int64, reason string) Result {
	e.log.Warn("broadcast failed",
		zap.Int64("order_id", orderID),
		zap.String("reason", reason),
	)
	if err := e.errors.Record(ctx, orderID, reason); err != nil {
		e.log.Error("failed to record sync error", zap.Error(err))
	}
	return e.finish(ctx, Failed(reason))
}

func (e *Engine) finish(ctx context.Context, res Result) Result {
	if e.metrics != nil {
		e.metrics.RecordOutcome(ctx, res.Status)
	}
	return res
}
