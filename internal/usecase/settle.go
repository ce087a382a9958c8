package usecase

import (
	"context"
	"time"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/domain/ports/repository"
)

// settler performs the guarded terminal transitions shared by admin
// decisions, manual linking and auto-verification. The status precondition
// is enforced by the write itself, so of two racing approvals exactly one
// transitions the order and activates premium.
type settler struct {
	orders  repository.OrderRepository
	premium PremiumUseCase
}

type verification struct {
	by         string
	notes      string
	at         time.Time
	from       []model.OrderStatus
	reconciled bool
	confidence *model.Confidence
}

// approve marks o verified and activates premium on the same tx. o is
// updated in place on success.
func (s *settler) approve(ctx context.Context, tx repository.Tx, o *model.Order, v verification) (*PremiumGrant, error) {
	at := v.at
	by := v.by
	upd := repository.OrderUpdate{
		Status:     model.OrderStatusVerified,
		VerifiedAt: &at,
		VerifiedBy: &by,
	}
	if v.notes != "" {
		notes := v.notes
		upd.Notes = &notes
	}
	if v.reconciled {
		yes := true
		upd.BankReconciled = &yes
		upd.Confidence = v.confidence
	}

	ok, err := s.orders.Transition(ctx, tx, o.ID, v.from, upd)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.conflict(ctx, tx, o.ID)
	}

	grant, err := s.premium.ActivateTx(ctx, tx, o.UserID, o.PlanType)
	if err != nil {
		return nil, err
	}

	o.Status = model.OrderStatusVerified
	o.VerifiedAt = &at
	o.VerifiedBy = &by
	if upd.Notes != nil {
		o.Notes = *upd.Notes
	}
	if v.reconciled {
		o.BankReconciled = true
		o.ReconciliationConfidence = v.confidence
	}
	o.UpdatedAt = at
	return grant, nil
}

func (s *settler) reject(ctx context.Context, tx repository.Tx, o *model.Order, by, notes string, at time.Time) error {
	upd := repository.OrderUpdate{
		Status:     model.OrderStatusFailed,
		VerifiedAt: &at,
		VerifiedBy: &by,
		Notes:      &notes,
	}
	ok, err := s.orders.Transition(ctx, tx, o.ID, model.ActiveOrderStatuses, upd)
	if err != nil {
		return err
	}
	if !ok {
		return s.conflict(ctx, tx, o.ID)
	}
	o.Status = model.OrderStatusFailed
	o.VerifiedAt = &at
	o.VerifiedBy = &by
	o.Notes = notes
	o.UpdatedAt = at
	return nil
}

func (s *settler) conflict(ctx context.Context, tx repository.Tx, id string) error {
	cur, err := s.orders.FindByID(ctx, tx, id)
	if err != nil {
		return err
	}
	return &domain.AlreadyDecidedError{OrderID: id, Status: string(cur.Status)}
}
