package notify

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"

	"github.com/etalk/webchain-order-sync/internal/orders"
)

const messageTemplate = `
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #1e4620;">Order Broadcast to WebChain</h2>
    <p>Order #%s has been successfully recorded on the WebChain blockchain.</p>
    <p><strong>Transaction Hash:</strong> %s</p>
    <p><a href="%s" style="color: #007cba; text-decoration: none;">View Transaction on WebChain Explorer</a></p>
    <hr style="border: 0; border-top: 1px solid #eee; margin: 20px 0;">
    <p style="color: #666; font-size: 12px;">This email was sent by %s.</p>
</div>`

// Dispatcher sends broadcast confirmations. The administrator always gets
// one; the customer only when the order was not placed as a guest.
type Dispatcher struct {
	mailer          Mailer
	adminEmail      string
	siteName        string
	explorerBaseURL string
	log             *zap.Logger
}

// NewDispatcher wires up a Dispatcher.
func NewDispatcher(mailer Mailer, adminEmail, siteName, explorerBaseURL string, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		mailer:          mailer,
		adminEmail:      adminEmail,
		siteName:        siteName,
		explorerBaseURL: explorerBaseURL,
		log:             log,
	}
}

// Notify sends the confirmation messages. Failures are logged and swallowed;
// the broadcast already happened and its outcome must not change here.
func (d *Dispatcher) Notify(ctx context.Context, orderID int64, txHash, billingEmail string) {
	explorerURL := fmt.Sprintf("%s/webchain?tx=%s", d.explorerBaseURL, txHash)
	body := fmt.Sprintf(messageTemplate,
		html.EscapeString(fmt.Sprintf("%d", orderID)),
		html.EscapeString(txHash),
		explorerURL,
		html.EscapeString(d.siteName),
	)

	adminSubject := fmt.Sprintf("WebChain Order Broadcast: Order #%d", orderID)
	if err := d.mailer.Send(ctx, d.adminEmail, adminSubject, body); err != nil {
		d.log.Error("admin notification failed",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
	}

	if billingEmail == orders.GuestEmail || billingEmail == "" {
		d.log.Debug("skipped customer notification for guest order",
			zap.Int64("order_id", orderID))
		return
	}

	customerSubject := fmt.Sprintf("Your Order #%d Has Been Recorded on WebChain", orderID)
	if err := d.mailer.Send(ctx, billingEmail, customerSubject, body); err != nil {
		d.log.Error("customer notification failed",
			zap.Int64("order_id", orderID),
			zap.String("to", billingEmail),
			zap.Error(err),
		)
	}
}
