package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/domain/ports/repository"
	"typing-premium-payments/internal/infra/logging"
)

// Compile-time check
var _ PremiumUseCase = (*premiumUC)(nil)

// PremiumGrant is the outcome of one activation.
type PremiumGrant struct {
	UserID    string
	PlanType  model.PlanType
	ExpiresAt time.Time
	Stacked   bool // extended a live grant rather than starting fresh
	Quotas    model.Quotas
}

type PremiumUseCase interface {
	// Activate applies plan to the user in its own transaction.
	Activate(ctx context.Context, userID string, plan model.PlanType) (*PremiumGrant, error)
	// ActivateTx joins the caller's transaction; the user row is locked until it ends.
	ActivateTx(ctx context.Context, tx repository.Tx, userID string, plan model.PlanType) (*PremiumGrant, error)
	// SweepExpiredPremiums demotes users whose grant has lapsed.
	SweepExpiredPremiums(ctx context.Context) (int, error)
}

type premiumUC struct {
	users      repository.UserRepository
	tm         repository.TransactionManager
	catalog    *model.PlanCatalog
	baseQuotas model.Quotas
	now        func() time.Time
	log        *zerolog.Logger
}

func NewPremiumUseCase(users repository.UserRepository, tm repository.TransactionManager, catalog *model.PlanCatalog, baseQuotas model.Quotas, logger *zerolog.Logger, opts ...Option) *premiumUC {
	o := collectOptions(opts)
	l := logger.With().Str("component", "PremiumUC").Logger()
	return &premiumUC{
		users:      users,
		tm:         tm,
		catalog:    catalog,
		baseQuotas: baseQuotas,
		now:        o.now,
		log:        &l,
	}
}

func (u *premiumUC) Activate(ctx context.Context, userID string, plan model.PlanType) (*PremiumGrant, error) {
	defer logging.TraceDuration(u.log, "PremiumUC.Activate")()

	var grant *PremiumGrant
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		g, err := u.ActivateTx(ctx, tx, userID, plan)
		grant = g
		return err
	})
	return grant, err
}

func (u *premiumUC) ActivateTx(ctx context.Context, tx repository.Tx, userID string, plan model.PlanType) (*PremiumGrant, error) {
	p, err := u.catalog.Get(plan)
	if err != nil {
		return nil, err
	}
	user, err := u.users.FindByID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	now := u.now()
	stacked := user.PremiumActive(now)
	expires := user.ExtendPremium(p, now)
	if err := u.users.SavePremium(ctx, tx, user); err != nil {
		return nil, err
	}

	logging.With(ctx, u.log).Info().
		Str("user_id", userID).
		Str("plan", string(plan)).
		Bool("stacked", stacked).
		Time("expires_at", expires).
		Msg("premium activated")

	return &PremiumGrant{
		UserID:    userID,
		PlanType:  plan,
		ExpiresAt: expires,
		Stacked:   stacked,
		Quotas:    user.Quotas,
	}, nil
}

func (u *premiumUC) SweepExpiredPremiums(ctx context.Context) (int, error) {
	defer logging.TraceDuration(u.log, "PremiumUC.SweepExpiredPremiums")()
	return u.users.DemoteExpiredPremiums(ctx, repository.NoTX, u.now(), u.baseQuotas)
}
