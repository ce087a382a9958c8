package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"   // awaiting the payer's transfer
	OrderStatusSubmitted OrderStatus = "submitted" // user attached a transaction reference
	OrderStatusVerified  OrderStatus = "verified"  // payment confirmed, premium granted
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusFailed    OrderStatus = "failed" // rejected by an admin
)

// ActiveOrderStatuses hold a sequence slot.
var ActiveOrderStatuses = []OrderStatus{OrderStatusPending, OrderStatusSubmitted}

func (s OrderStatus) IsActive() bool {
	return s == OrderStatusPending || s == OrderStatusSubmitted
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusVerified || s == OrderStatusExpired || s == OrderStatusFailed
}

// CanTransitionTo encodes the forward-only lifecycle. Admins may decide an
// order straight from pending when they confirm the credit themselves.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusSubmitted || next == OrderStatusExpired ||
			next == OrderStatusVerified || next == OrderStatusFailed
	case OrderStatusSubmitted:
		return next == OrderStatusVerified || next == OrderStatusFailed || next == OrderStatusExpired
	}
	return false
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ConfidenceFromScore buckets a 0-100 match score.
func ConfidenceFromScore(score int) Confidence {
	switch {
	case score >= 95:
		return ConfidenceHigh
	case score >= 80:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Order is one purchase attempt, identified on the bank side by UniqueAmount.
type Order struct {
	ID                       string
	UserID                   string
	PlanType                 PlanType
	BaseAmount               decimal.Decimal
	Sequence                 int
	UniqueAmount             decimal.Decimal
	PaymentIdentifier        string
	RenderedCode             []byte
	Status                   OrderStatus
	ClaimedTxnRef            *string
	ProofRef                 *string
	BankReconciled           bool
	ReconciliationConfidence *Confidence
	CreatedAt                time.Time
	ExpiresAt                time.Time
	SubmittedAt              *time.Time
	VerifiedAt               *time.Time
	VerifiedBy               *string
	Notes                    string
	UpdatedAt                time.Time
}

// IsExpired depends only on ExpiresAt; stored status catches up via sweeps.
func (o *Order) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

func (o *Order) IsZero() bool { return o == nil || o.ID == "" }

// SolicitsPayment reports whether the payment identifier may still be shown.
func (o *Order) SolicitsPayment(now time.Time) bool {
	return o.Status == OrderStatusPending && !o.IsExpired(now)
}
