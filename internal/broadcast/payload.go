package broadcast

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/etalk/webchain-order-sync/internal/orders"
	"github.com/etalk/webchain-order-sync/internal/webchain"
)

// ValidationError reports an order that cannot be broadcast. Fields names the
// offending payload fields.
type ValidationError struct {
	Fields    []string
	Total     decimal.Decimal
	ItemCount int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid order data: Total=%s, Items=%d", e.Total, e.ItemCount)
}

// NewValidator returns a validator with the payload invariants registered.
func NewValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterStructValidation(orderPayloadStructValidation, webchain.OrderPayload{})
	return v
}

// orderPayloadStructValidation enforces the broadcast preconditions: a
// positive total and a non-empty item list.
func orderPayloadStructValidation(sl validatorv10.StructLevel) {
	p := sl.Current().Interface().(webchain.OrderPayload)

	if !p.Amount.IsPositive() {
		sl.ReportError(p.Amount, "amount", "Amount", "amount_positive", "")
	}
	if len(p.Items) == 0 {
		sl.ReportError(p.Items, "items", "Items", "items_nonempty", "")
	}
}

// BuildPayload maps a host order onto the wire payload, applying the
// validation invariants. Guest orders get the guest sentinel billing email.
func BuildPayload(v *validatorv10.Validate, o *orders.Order) (*webchain.OrderPayload, error) {
	billingEmail := o.BillingEmail
	if billingEmail == "" {
		billingEmail = orders.GuestEmail
	}

	items := make([]webchain.PayloadItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, webchain.PayloadItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.LineTotal,
			SKU:       it.SKU,
		})
	}

	payload := webchain.OrderPayload{
		OrderID:  o.OrderID,
		Amount:   o.Total,
		Currency: o.Currency,
		Customer: webchain.Customer{
			ID:    o.CustomerID,
			Email: billingEmail,
		},
		Items: items,
	}

	if err := v.Struct(payload); err != nil {
		verr := &ValidationError{Total: o.Total, ItemCount: len(o.Items)}
		if ve, ok := err.(validatorv10.ValidationErrors); ok {
			for _, fe := range ve {
				verr.Fields = append(verr.Fields, fe.Field())
			}
		}
		return nil, verr
	}
	return &payload, nil
}
