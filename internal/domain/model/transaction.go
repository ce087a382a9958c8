package model

import (
	"time"

	"github.com/shopspring/decimal"

	"typing-premium-payments/internal/domain"
)

type ReconciliationStatus string

const (
	ReconciliationUnmatched    ReconciliationStatus = "unmatched"
	ReconciliationMatched      ReconciliationStatus = "matched"
	ReconciliationManualReview ReconciliationStatus = "manual_review"
	ReconciliationIgnored      ReconciliationStatus = "ignored"
)

func (s ReconciliationStatus) Valid() bool {
	switch s {
	case ReconciliationUnmatched, ReconciliationMatched, ReconciliationManualReview, ReconciliationIgnored:
		return true
	}
	return false
}

type MatchMethod string

const (
	MatchExact      MatchMethod = "exact"
	MatchAmountOnly MatchMethod = "amount_only"
	MatchFuzzy      MatchMethod = "fuzzy"
	MatchNone       MatchMethod = "none"
	MatchManual     MatchMethod = "manual"
)

// BankTransaction is one credit row ingested from a bank statement.
// ExternalRef is unique across all imports.
type BankTransaction struct {
	ID             string
	Amount         decimal.Decimal
	ExternalRef    string
	Date           *time.Time
	Description    string
	Status         ReconciliationStatus
	MatchedOrderID *string
	Confidence     int
	Method         MatchMethod
	BatchID        string
	ImportedBy     string
	RawRow         string // serialized original row, audit only
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the record-level invariants before persisting.
func (t *BankTransaction) Validate() error {
	if t.ExternalRef == "" {
		return &domain.ValidationError{Field: "externalRef", Reason: "required"}
	}
	if !t.Amount.IsPositive() {
		return &domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if t.Confidence < 0 || t.Confidence > 100 {
		return &domain.ValidationError{Field: "confidence", Reason: "must be within 0..100"}
	}
	if !t.Status.Valid() {
		return &domain.ValidationError{Field: "status", Reason: "unknown reconciliation status"}
	}
	if t.Status == ReconciliationMatched && (t.MatchedOrderID == nil || *t.MatchedOrderID == "") {
		return &domain.ValidationError{Field: "matchedOrderId", Reason: "required when matched"}
	}
	return nil
}
