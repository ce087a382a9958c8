package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"typing-premium-payments/internal/domain"
)

// Claim reference formats accepted on the manual submission path.
const (
	// ClaimRefStrict is the 12-digit numeric UPI reference (UTR).
	ClaimRefStrict = "strict"
	// ClaimRefAlphanumeric accepts 10-25 letters and digits.
	ClaimRefAlphanumeric = "alphanumeric"
)

var (
	strictRefRe       = regexp.MustCompile(`^[0-9]{12}$`)
	alphanumericRefRe = regexp.MustCompile(`^[A-Z0-9]{10,25}$`)
)

// TxnRefValidator normalizes and checks user-claimed transaction references.
type TxnRefValidator struct {
	format string
	re     *regexp.Regexp
}

func NewTxnRefValidator(format string) (*TxnRefValidator, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", ClaimRefStrict:
		return &TxnRefValidator{format: ClaimRefStrict, re: strictRefRe}, nil
	case ClaimRefAlphanumeric:
		return &TxnRefValidator{format: ClaimRefAlphanumeric, re: alphanumericRefRe}, nil
	}
	return nil, fmt.Errorf("%w: claim reference format %q", domain.ErrInvalidArgument, format)
}

func (v *TxnRefValidator) Format() string { return v.format }

// Normalize returns the canonical form of raw or an InvalidTransactionIDError.
func (v *TxnRefValidator) Normalize(raw string) (string, error) {
	ref := NormalizeBankRef(raw)
	if !v.re.MatchString(ref) {
		return "", &domain.InvalidTransactionIDError{Value: raw, Format: v.format}
	}
	return ref, nil
}

// NormalizeBankRef is the comparison form shared by claimed and imported
// references: surrounding space and inner spaces dropped, upper case.
func NormalizeBankRef(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}
