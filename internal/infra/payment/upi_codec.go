package payment

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"

	"typing-premium-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentCodec = (*UPICodec)(nil)

// UPICodec renders NPCI "upi://pay" deep links and their QR codes.
type UPICodec struct {
	currency string
	note     string
	size     int
	level    qrcode.RecoveryLevel
}

// NewUPICodec validates the QR settings; level is one of low|medium|high|highest.
func NewUPICodec(currency, note string, size int, level string) (*UPICodec, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	if currency == "" {
		currency = "INR"
	}
	return &UPICodec{currency: currency, note: note, size: size, level: lvl}, nil
}

func (c *UPICodec) Name() string { return "upi" }

// BuildIdentifier keeps the parameter order fixed so the output is stable for a given input.
func (c *UPICodec) BuildIdentifier(payeeHandle, payeeName string, amount decimal.Decimal, orderID string) string {
	params := []struct{ k, v string }{
		{"pa", payeeHandle},
		{"pn", payeeName},
		{"am", amount.StringFixed(2)},
		{"cu", c.currency},
		{"tn", c.note},
		{"tr", ReferenceTag(orderID)},
	}
	var b strings.Builder
	b.WriteString("upi://pay?")
	first := true
	for _, p := range params {
		if p.v == "" {
			continue
		}
		if !first {
			b.WriteByte('&')
		}
		first = false
		b.WriteString(p.k)
		b.WriteByte('=')
		b.WriteString(escape(p.v))
	}
	return b.String()
}

func (c *UPICodec) RenderCode(identifier string) ([]byte, error) {
	if identifier == "" {
		return nil, fmt.Errorf("render code: empty identifier")
	}
	png, err := qrcode.Encode(identifier, c.level, c.size)
	if err != nil {
		return nil, fmt.Errorf("render code: %w", err)
	}
	return png, nil
}

// ReferenceTag derives the short transaction reference shown in payer apps.
// UPI caps tr at 35 characters and many apps reject punctuation.
func ReferenceTag(orderID string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(orderID) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	tag := "TP" + b.String()
	if len(tag) > 35 {
		tag = tag[:35]
	}
	return tag
}

// escape percent-encodes like url.QueryEscape but keeps '@' and uses %20 for spaces,
// which several UPI apps require.
func escape(s string) string {
	e := url.QueryEscape(s)
	e = strings.ReplaceAll(e, "+", "%20")
	return strings.ReplaceAll(e, "%40", "@")
}

func parseLevel(s string) (qrcode.RecoveryLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return qrcode.Low, nil
	case "", "medium":
		return qrcode.Medium, nil
	case "high":
		return qrcode.High, nil
	case "highest":
		return qrcode.Highest, nil
	}
	return qrcode.Medium, fmt.Errorf("unknown qr level %q", s)
}
