// File: internal/usecase/order_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/domain/ports/adapter"
	"typing-premium-payments/internal/domain/ports/repository"
	"typing-premium-payments/internal/infra/logging"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

// Caller identifies who is asking; admins see every order.
type Caller struct {
	UserID  string
	IsAdmin bool
}

// OrderView is an order as returned to clients: payment details are removed
// once payment is no longer being solicited.
type OrderView struct {
	model.Order
	IsExpired bool
}

type DecisionAction string

const (
	ActionApprove DecisionAction = "approve"
	ActionReject  DecisionAction = "reject"
)

func ParseDecisionAction(s string) (DecisionAction, error) {
	switch a := DecisionAction(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionApprove, ActionReject:
		return a, nil
	}
	return "", &domain.ValidationError{Field: "action", Reason: "must be approve or reject"}
}

// Decision is the result of an admin decision; Premium is set on approval.
type Decision struct {
	Order   *model.Order
	Premium *PremiumGrant
}

// ClaimReceivedMessage is shown to the payer after a successful claim.
const ClaimReceivedMessage = "Payment reference received. Premium is activated as soon as the transfer is confirmed."

type OrderUseCase interface {
	CreateOrder(ctx context.Context, userID string, plan model.PlanType) (*model.Order, error)
	SubmitClaim(ctx context.Context, orderID, userID, txnRef string, proofRef *string) (*model.Order, error)
	Decide(ctx context.Context, orderID, adminID string, action DecisionAction, notes string) (*Decision, error)
	SweepExpired(ctx context.Context) (int, error)

	GetOrder(ctx context.Context, orderID string, caller Caller) (*OrderView, error)
	ActiveOrderForUser(ctx context.Context, userID string) (*OrderView, error)
	ListOrders(ctx context.Context, status model.OrderStatus, offset, limit int) ([]*model.Order, error)
	PurgeTerminal(ctx context.Context, olderThan time.Duration) (int, error)
}

// OrderSettings are the payment knobs the ledger needs from config.
type OrderSettings struct {
	PayeeVPA  string
	PayeeName string
	// Window is how long a new order solicits payment.
	Window time.Duration
	// SubmittedGrace keeps claimed orders open past ExpiresAt for review.
	SubmittedGrace time.Duration

	CreateLimit int
	ClaimLimit  int
	LimitWindow time.Duration
}

// createAttempts bounds retries when the storage layer reports that a
// sequence was taken between scan and insert.
const createAttempts = 3

type orderUC struct {
	orders    repository.OrderRepository
	tm        repository.TransactionManager
	catalog   *model.PlanCatalog
	allocator *AmountAllocator
	codec     adapter.PaymentCodec
	validator *TxnRefValidator
	limiter   adapter.RateLimiter
	notify    NotificationUseCase
	settle    *settler
	cfg       OrderSettings
	now       func() time.Time
	log       *zerolog.Logger

	mu        sync.Mutex
	planLocks map[model.PlanType]*sync.Mutex
}

func NewOrderUseCase(
	orders repository.OrderRepository,
	tm repository.TransactionManager,
	catalog *model.PlanCatalog,
	allocator *AmountAllocator,
	codec adapter.PaymentCodec,
	validator *TxnRefValidator,
	limiter adapter.RateLimiter,
	premium PremiumUseCase,
	notify NotificationUseCase,
	cfg OrderSettings,
	logger *zerolog.Logger,
	opts ...Option,
) *orderUC {
	o := collectOptions(opts)
	if cfg.Window <= 0 {
		cfg.Window = 30 * time.Minute
	}
	l := logger.With().Str("component", "OrderUC").Logger()
	return &orderUC{
		orders:    orders,
		tm:        tm,
		catalog:   catalog,
		allocator: allocator,
		codec:     codec,
		validator: validator,
		limiter:   limiter,
		notify:    notify,
		settle:    &settler{orders: orders, premium: premium},
		cfg:       cfg,
		now:       o.now,
		log:       &l,
		planLocks: make(map[model.PlanType]*sync.Mutex),
	}
}

var txOpts = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// planLock serializes allocation per plan inside this process; the advisory
// lock taken by LockPlanSequences does the same across processes.
func (u *orderUC) planLock(p model.PlanType) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	m, ok := u.planLocks[p]
	if !ok {
		m = &sync.Mutex{}
		u.planLocks[p] = m
	}
	return m
}

func (u *orderUC) CreateOrder(ctx context.Context, userID string, planType model.PlanType) (*model.Order, error) {
	defer logging.TraceDuration(u.log, "OrderUC.CreateOrder")()
	log := logging.With(ctx, u.log)

	if userID == "" {
		return nil, &domain.ValidationError{Field: "userId", Reason: "required"}
	}
	plan, err := u.catalog.Get(planType)
	if err != nil {
		return nil, err
	}
	if err := u.allow(ctx, "order:create", userID, u.cfg.CreateLimit); err != nil {
		return nil, err
	}

	lock := u.planLock(plan.Type)
	lock.Lock()
	defer lock.Unlock()

	var order *model.Order
	for attempt := 1; attempt <= createAttempts; attempt++ {
		order, err = u.createOnce(ctx, userID, plan)
		if !errors.Is(err, domain.ErrSequenceTaken) {
			break
		}
		log.Warn().Int("attempt", attempt).Str("plan", string(plan.Type)).Msg("sequence taken concurrently, retrying")
	}
	switch {
	case errors.Is(err, domain.ErrActiveOrderExists):
		return nil, u.duplicateOrder(ctx, userID)
	case errors.Is(err, domain.ErrSequenceTaken):
		return nil, fmt.Errorf("allocate %s sequence: %w", plan.Type, err)
	case err != nil:
		return nil, err
	}

	log.Info().
		Str("order_id", order.ID).
		Str("user_id", userID).
		Str("plan", string(order.PlanType)).
		Int("sequence", order.Sequence).
		Str("amount", order.UniqueAmount.StringFixed(2)).
		Msg("payment order created")
	return order, nil
}

func (u *orderUC) createOnce(ctx context.Context, userID string, plan model.Plan) (*model.Order, error) {
	now := u.now()
	var created *model.Order
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		if err := u.orders.LockPlanSequences(ctx, tx, plan.Type); err != nil {
			return err
		}
		// Free slots held by lapsed orders before scanning.
		if _, err := u.orders.ExpireStale(ctx, tx, &plan.Type, now, now.Add(-u.cfg.SubmittedGrace)); err != nil {
			return fmt.Errorf("expire stale orders: %w", err)
		}

		existing, err := u.orders.FindActiveByUser(ctx, tx, userID)
		switch {
		case err == nil:
			expired, err := u.expireIfStale(ctx, tx, existing, now)
			if err != nil {
				return err
			}
			if !expired {
				return &domain.DuplicatePendingOrderError{
					OrderID:   existing.ID,
					Status:    string(existing.Status),
					ExpiresAt: existing.ExpiresAt,
				}
			}
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		seq, err := u.allocator.NextSequence(ctx, tx, plan.Type)
		if err != nil {
			return err
		}
		amount, err := u.allocator.UniqueAmount(plan.Type, seq)
		if err != nil {
			return err
		}

		id := uuid.NewString()
		identifier := u.codec.BuildIdentifier(u.cfg.PayeeVPA, u.cfg.PayeeName, amount, id)
		code, err := u.codec.RenderCode(identifier)
		if err != nil {
			return fmt.Errorf("render payment code: %w", err)
		}

		o := &model.Order{
			ID:                id,
			UserID:            userID,
			PlanType:          plan.Type,
			BaseAmount:        plan.BaseAmount,
			Sequence:          seq,
			UniqueAmount:      amount,
			PaymentIdentifier: identifier,
			RenderedCode:      code,
			Status:            model.OrderStatusPending,
			CreatedAt:         now,
			ExpiresAt:         now.Add(u.cfg.Window),
			UpdatedAt:         now,
		}
		if err := u.orders.Create(ctx, tx, o); err != nil {
			return err
		}
		created = o
		return nil
	})
	return created, err
}

// duplicateOrder builds the redirect error after a storage-level user conflict.
func (u *orderUC) duplicateOrder(ctx context.Context, userID string) error {
	existing, err := u.orders.FindActiveByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrActiveOrderExists, err)
	}
	return &domain.DuplicatePendingOrderError{
		OrderID:   existing.ID,
		Status:    string(existing.Status),
		ExpiresAt: existing.ExpiresAt,
	}
}

func (u *orderUC) SubmitClaim(ctx context.Context, orderID, userID, txnRef string, proofRef *string) (*model.Order, error) {
	defer logging.TraceDuration(u.log, "OrderUC.SubmitClaim")()
	log := logging.With(logging.WithOrderID(ctx, orderID), u.log)

	o, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrForbidden
	}
	ref, err := u.validator.Normalize(txnRef)
	if err != nil {
		return nil, err
	}
	if err := u.allow(ctx, "order:claim", userID, u.cfg.ClaimLimit); err != nil {
		return nil, err
	}

	now := u.now()
	var out *model.Order
	err = u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		cur, err := u.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if cur.Status != model.OrderStatusPending {
			return &domain.OrderNotSubmittableError{OrderID: cur.ID, Status: string(cur.Status), Reason: domain.ReasonWrongStatus}
		}
		if cur.IsExpired(now) {
			return &domain.OrderNotSubmittableError{OrderID: cur.ID, Status: string(cur.Status), Reason: domain.ReasonExpired}
		}

		other, err := u.orders.FindByClaimRef(ctx, tx, ref)
		switch {
		case err == nil && other.ID != cur.ID:
			return &domain.DuplicateClaimError{TxnRef: ref}
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return err
		}

		ok, err := u.orders.SubmitClaim(ctx, tx, cur.ID, ref, proofRef, now)
		if errors.Is(err, domain.ErrClaimRefTaken) {
			return &domain.DuplicateClaimError{TxnRef: ref}
		}
		if err != nil {
			return err
		}
		if !ok {
			return &domain.OrderNotSubmittableError{OrderID: cur.ID, Status: string(cur.Status), Reason: domain.ReasonWrongStatus}
		}

		cur.Status = model.OrderStatusSubmitted
		cur.ClaimedTxnRef = &ref
		cur.ProofRef = proofRef
		cur.SubmittedAt = &now
		cur.UpdatedAt = now
		cur.PaymentIdentifier = ""
		cur.RenderedCode = nil
		out = cur
		return nil
	})

	var ns *domain.OrderNotSubmittableError
	if errors.As(err, &ns) && ns.Reason == domain.ReasonExpired {
		u.expireLazily(ctx, o)
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("txn_ref", logging.Redact(ref, false)).Msg("payment claim submitted")
	u.notify.Notify(ctx, Event{
		Kind:     model.NotificationPaymentSubmitted,
		UserID:   out.UserID,
		OrderID:  out.ID,
		Title:    "Payment submitted",
		Message:  fmt.Sprintf("Order %s (%s, %s INR) claims reference %s.", out.ID, out.PlanType, out.UniqueAmount.StringFixed(2), ref),
		Audience: AudienceAll,
	})
	return out, nil
}

func (u *orderUC) Decide(ctx context.Context, orderID, adminID string, action DecisionAction, notes string) (*Decision, error) {
	defer logging.TraceDuration(u.log, "OrderUC.Decide")()
	log := logging.With(logging.WithOrderID(ctx, orderID), u.log)

	action, err := ParseDecisionAction(string(action))
	if err != nil {
		return nil, err
	}
	notes = strings.TrimSpace(notes)
	if action == ActionReject && notes == "" {
		return nil, &domain.ValidationError{Field: "notes", Reason: "required when rejecting"}
	}

	now := u.now()
	var dec *Decision
	err = u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		o, err := u.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.IsActive() {
			return &domain.AlreadyDecidedError{OrderID: o.ID, Status: string(o.Status)}
		}
		if action == ActionReject {
			if err := u.settle.reject(ctx, tx, o, adminID, notes, now); err != nil {
				return err
			}
			dec = &Decision{Order: o}
			return nil
		}
		grant, err := u.settle.approve(ctx, tx, o, verification{
			by:    adminID,
			notes: notes,
			at:    now,
			from:  model.ActiveOrderStatuses,
		})
		if err != nil {
			return err
		}
		dec = &Decision{Order: o, Premium: grant}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("admin_id", adminID).Str("status", string(dec.Order.Status)).Msg("order decided")
	u.notify.Notify(ctx, decisionEvent(dec))
	return dec, nil
}

func decisionEvent(dec *Decision) Event {
	o := dec.Order
	if dec.Premium != nil {
		return Event{
			Kind:     model.NotificationPaymentVerified,
			UserID:   o.UserID,
			OrderID:  o.ID,
			Title:    "Payment verified",
			Message:  fmt.Sprintf("Your %s premium is active until %s.", o.PlanType, dec.Premium.ExpiresAt.UTC().Format(time.RFC1123)),
			Audience: AudienceAll,
		}
	}
	return Event{
		Kind:     model.NotificationPaymentFailed,
		UserID:   o.UserID,
		OrderID:  o.ID,
		Title:    "Payment could not be verified",
		Message:  o.Notes,
		Audience: AudienceAll,
	}
}

func (u *orderUC) SweepExpired(ctx context.Context) (int, error) {
	defer logging.TraceDuration(u.log, "OrderUC.SweepExpired")()
	now := u.now()
	return u.orders.ExpireStale(ctx, repository.NoTX, nil, now, now.Add(-u.cfg.SubmittedGrace))
}

func (u *orderUC) GetOrder(ctx context.Context, orderID string, caller Caller) (*OrderView, error) {
	defer logging.TraceDuration(u.log, "OrderUC.GetOrder")()
	o, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	// Other users' orders are reported as missing, not forbidden.
	if !caller.IsAdmin && o.UserID != caller.UserID {
		return nil, domain.ErrNotFound
	}
	u.expireLazily(ctx, o)
	return u.view(o), nil
}

func (u *orderUC) ActiveOrderForUser(ctx context.Context, userID string) (*OrderView, error) {
	o, err := u.orders.FindActiveByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	if u.expireLazily(ctx, o) {
		return nil, domain.ErrNotFound
	}
	return u.view(o), nil
}

func (u *orderUC) ListOrders(ctx context.Context, status model.OrderStatus, offset, limit int) ([]*model.Order, error) {
	switch status {
	case model.OrderStatusPending, model.OrderStatusSubmitted, model.OrderStatusVerified,
		model.OrderStatusExpired, model.OrderStatusFailed:
	default:
		return nil, &domain.ValidationError{Field: "status", Reason: "unknown order status"}
	}
	if offset < 0 {
		offset = 0
	}
	return u.orders.ListByStatus(ctx, repository.NoTX, status, offset, clampLimit(limit))
}

func (u *orderUC) PurgeTerminal(ctx context.Context, olderThan time.Duration) (int, error) {
	return u.orders.DeleteTerminalBefore(ctx, repository.NoTX, u.now().Add(-olderThan))
}

// stale applies the expiry policy: pending orders lapse at ExpiresAt, claimed
// ones only after the review grace.
func (u *orderUC) stale(o *model.Order, now time.Time) bool {
	switch o.Status {
	case model.OrderStatusPending:
		return o.IsExpired(now)
	case model.OrderStatusSubmitted:
		return now.After(o.ExpiresAt.Add(u.cfg.SubmittedGrace))
	}
	return false
}

func (u *orderUC) expireIfStale(ctx context.Context, tx repository.Tx, o *model.Order, now time.Time) (bool, error) {
	if !u.stale(o, now) {
		return false, nil
	}
	ok, err := u.orders.Transition(ctx, tx, o.ID, []model.OrderStatus{o.Status}, repository.OrderUpdate{Status: model.OrderStatusExpired})
	if err != nil {
		return false, err
	}
	if ok {
		o.Status = model.OrderStatusExpired
		o.UpdatedAt = now
	}
	return ok, nil
}

// expireLazily is the read-path expiry; failures only delay it to the sweep.
func (u *orderUC) expireLazily(ctx context.Context, o *model.Order) bool {
	ok, err := u.expireIfStale(ctx, repository.NoTX, o, u.now())
	if err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Str("order_id", o.ID).Msg("lazy expiry failed")
	}
	return ok
}

func (u *orderUC) view(o *model.Order) *OrderView {
	v := &OrderView{Order: *o, IsExpired: o.IsExpired(u.now())}
	if o.Status != model.OrderStatusPending {
		v.PaymentIdentifier = ""
		v.RenderedCode = nil
	}
	return v
}

// allow applies a per-user fixed-window limit. Limiter errors fail open.
func (u *orderUC) allow(ctx context.Context, action, userID string, limit int) error {
	if u.limiter == nil || limit <= 0 {
		return nil
	}
	ok, err := u.limiter.Allow(ctx, "rate_limit:"+action+":"+userID, limit, u.cfg.LimitWindow)
	if err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Str("action", action).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}
