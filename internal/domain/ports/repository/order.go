package repository

import (
	"context"
	"time"

	"typing-premium-payments/internal/domain/model"
)

// -----------------------------
// Payment orders
// -----------------------------

// OrderUpdate carries the fields written by a guarded status transition.
// Nil pointers leave the column untouched.
type OrderUpdate struct {
	Status         model.OrderStatus
	VerifiedAt     *time.Time
	VerifiedBy     *string
	Notes          *string
	BankReconciled *bool
	Confidence     *model.Confidence
}

type OrderRepository interface {
	// Create inserts a pending order. It returns domain.ErrSequenceTaken when
	// another active order of the plan already holds the sequence and
	// domain.ErrActiveOrderExists when the user already has an active order.
	Create(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	// FindActiveByUser returns the pending/submitted order of the user, or domain.ErrNotFound.
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Order, error)
	FindByClaimRef(ctx context.Context, tx Tx, ref string) (*model.Order, error)

	// LockPlanSequences serializes sequence allocation for a plan until tx ends.
	LockPlanSequences(ctx context.Context, tx Tx, plan model.PlanType) error
	// ActiveSequences lists sequences held by pending/submitted orders of the plan.
	ActiveSequences(ctx context.Context, tx Tx, plan model.PlanType) ([]int, error)

	// ListReconcilable returns active, not yet bank-reconciled orders, newest first.
	ListReconcilable(ctx context.Context, tx Tx) ([]*model.Order, error)
	ListByStatus(ctx context.Context, tx Tx, status model.OrderStatus, offset, limit int) ([]*model.Order, error)

	// SubmitClaim moves a pending order to submitted. It reports false when the
	// order was no longer pending; domain.ErrClaimRefTaken on a reused reference.
	SubmitClaim(ctx context.Context, tx Tx, id, ref string, proofRef *string, at time.Time) (bool, error)
	// Transition applies upd only if the current status is one of from.
	Transition(ctx context.Context, tx Tx, id string, from []model.OrderStatus, upd OrderUpdate) (bool, error)
	// ExpireStale expires pending orders with expires_at before pendingBefore and
	// submitted ones before submittedBefore. plan narrows the sweep when non-nil.
	ExpireStale(ctx context.Context, tx Tx, plan *model.PlanType, pendingBefore, submittedBefore time.Time) (int, error)
	// DeleteTerminalBefore removes expired/failed orders last updated before cutoff.
	DeleteTerminalBefore(ctx context.Context, tx Tx, cutoff time.Time) (int, error)
}
