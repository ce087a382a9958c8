package adapter

import (
	"github.com/shopspring/decimal"
)

// PaymentCodec builds the payment request shown to a payer and renders it as
// a scannable code. Both operations are pure functions of their input.
type PaymentCodec interface {
	Name() string
	// BuildIdentifier returns a payment-request URI embedding payee, the exact
	// two-decimal amount, currency and a reference tag derived from orderID.
	BuildIdentifier(payeeHandle, payeeName string, amount decimal.Decimal, orderID string) string
	// RenderCode encodes identifier into an image blob (PNG).
	RenderCode(identifier string) ([]byte, error)
}
