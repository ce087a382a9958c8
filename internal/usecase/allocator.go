package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/domain/ports/repository"
)

// DefaultSequencePoolSize is two decimal digits of sub-unit, excluding 00.
const DefaultSequencePoolSize = 99

// AmountAllocator hands out per-plan sequences and derives unique amounts.
type AmountAllocator struct {
	orders   repository.OrderRepository
	catalog  *model.PlanCatalog
	poolSize int
}

func NewAmountAllocator(orders repository.OrderRepository, catalog *model.PlanCatalog, poolSize int) *AmountAllocator {
	if poolSize <= 0 || poolSize > DefaultSequencePoolSize {
		poolSize = DefaultSequencePoolSize
	}
	return &AmountAllocator{orders: orders, catalog: catalog, poolSize: poolSize}
}

func (a *AmountAllocator) PoolSize() int { return a.poolSize }

// NextSequence returns the smallest sequence in [1, poolSize] not held by a
// pending or submitted order of plan. Callers must hold the plan's allocation
// lock on tx for the result to stay free until the order is inserted.
func (a *AmountAllocator) NextSequence(ctx context.Context, tx repository.Tx, plan model.PlanType) (int, error) {
	used, err := a.orders.ActiveSequences(ctx, tx, plan)
	if err != nil {
		return 0, fmt.Errorf("active sequences: %w", err)
	}
	seq := NewSequencePool(used...).NextMissing(1)
	if seq > a.poolSize {
		return 0, &domain.SequenceExhaustedError{PlanType: string(plan), PoolSize: a.poolSize}
	}
	return seq, nil
}

// UniqueAmount is base(plan) + sequence/100.
func (a *AmountAllocator) UniqueAmount(plan model.PlanType, sequence int) (decimal.Decimal, error) {
	p, err := a.catalog.Get(plan)
	if err != nil {
		return decimal.Zero, err
	}
	if sequence < 1 || sequence > a.poolSize {
		return decimal.Zero, &domain.ValidationError{Field: "sequence", Reason: fmt.Sprintf("must be within 1..%d", a.poolSize)}
	}
	return model.UniqueAmount(p.BaseAmount, sequence), nil
}
