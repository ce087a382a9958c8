// File: internal/usecase/reconciliation_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/domain/ports/adapter"
	"typing-premium-payments/internal/domain/ports/repository"
	"typing-premium-payments/internal/infra/logging"
)

// Compile-time check
var _ ReconciliationUseCase = (*reconciliationUC)(nil)

// Match scores.
const (
	ScoreExact           = 100
	ScoreAmountUnique    = 95
	ScoreAmountAmbiguous = 85
	ScoreFuzzy           = 70
)

const importLockKey = "lock:reconcile:import"

type AutoVerifiedItem struct {
	TransactionID    string    `json:"transactionId"`
	OrderID          string    `json:"orderId"`
	UserID           string    `json:"userId"`
	ExternalRef      string    `json:"externalRef"`
	Amount           string    `json:"amount"`
	PremiumExpiresAt time.Time `json:"premiumExpiresAt"`
}

type ReviewItem struct {
	TransactionID string            `json:"transactionId"`
	Line          int               `json:"line"`
	ExternalRef   string            `json:"externalRef"`
	Amount        string            `json:"amount"`
	OrderID       string            `json:"orderId,omitempty"`
	Confidence    int               `json:"confidence"`
	Method        model.MatchMethod `json:"method"`
	Reason        string            `json:"reason"`
	Error         string            `json:"error,omitempty"`
}

type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// BatchResult summarizes one statement import.
type BatchResult struct {
	BatchID      string             `json:"batchId"`
	Total        int                `json:"total"`
	Imported     int                `json:"imported"`
	Duplicates   int                `json:"duplicates"`
	Skipped      int                `json:"skipped"`
	Matched      int                `json:"matched"`
	Unmatched    int                `json:"unmatched"`
	AutoVerified []AutoVerifiedItem `json:"autoVerified"`
	NeedsReview  []ReviewItem       `json:"needsReview"`
	Errors       []RowError         `json:"errors"`
}

type ReconciliationUseCase interface {
	// ImportStatement parses a CSV bank export and imports it.
	ImportStatement(ctx context.Context, r io.Reader, importer string) (*BatchResult, error)
	// ImportBatch deduplicates rows, proposes order matches and auto-verifies
	// high-confidence ones. A failing row never aborts the batch.
	ImportBatch(ctx context.Context, rows []StatementRow, importer string) (*BatchResult, error)
	// LinkTransaction settles an order against an imported row by hand.
	LinkTransaction(ctx context.Context, txnID, orderID, adminID string) (*Decision, error)
	IgnoreTransaction(ctx context.Context, txnID, adminID string) error
	ListTransactions(ctx context.Context, status model.ReconciliationStatus, offset, limit int) ([]*model.BankTransaction, error)
}

type ReconciliationSettings struct {
	FuzzyTolerance      decimal.Decimal
	AutoVerifyThreshold int
	ImportLockTTL       time.Duration
}

type reconciliationUC struct {
	txns   repository.BankTransactionRepository
	orders repository.OrderRepository
	tm     repository.TransactionManager
	locker adapter.Locker
	notify NotificationUseCase
	settle *settler
	cfg    ReconciliationSettings
	now    func() time.Time
	log    *zerolog.Logger
}

func NewReconciliationUseCase(
	txns repository.BankTransactionRepository,
	orders repository.OrderRepository,
	tm repository.TransactionManager,
	locker adapter.Locker,
	premium PremiumUseCase,
	notify NotificationUseCase,
	cfg ReconciliationSettings,
	logger *zerolog.Logger,
	opts ...Option,
) *reconciliationUC {
	o := collectOptions(opts)
	if cfg.AutoVerifyThreshold <= 0 {
		cfg.AutoVerifyThreshold = ScoreAmountUnique
	}
	if cfg.FuzzyTolerance.IsZero() {
		cfg.FuzzyTolerance = decimal.New(2, -2)
	}
	if cfg.ImportLockTTL <= 0 {
		cfg.ImportLockTTL = 5 * time.Minute
	}
	l := logger.With().Str("component", "ReconciliationUC").Logger()
	return &reconciliationUC{
		txns:   txns,
		orders: orders,
		tm:     tm,
		locker: locker,
		notify: notify,
		settle: &settler{orders: orders, premium: premium},
		cfg:    cfg,
		now:    o.now,
		log:    &l,
	}
}

func (u *reconciliationUC) ImportStatement(ctx context.Context, r io.Reader, importer string) (*BatchResult, error) {
	rows, err := ParseStatementCSV(r)
	if err != nil {
		return nil, err
	}
	return u.ImportBatch(ctx, rows, importer)
}

func (u *reconciliationUC) ImportBatch(ctx context.Context, rows []StatementRow, importer string) (*BatchResult, error) {
	defer logging.TraceDuration(u.log, "ReconciliationUC.ImportBatch")()

	if u.locker != nil {
		token, err := u.locker.TryLock(ctx, importLockKey, u.cfg.ImportLockTTL)
		if errors.Is(err, domain.ErrLockNotAcquired) {
			return nil, domain.ErrImportInProgress
		}
		if err != nil {
			return nil, fmt.Errorf("acquire import lock: %w", err)
		}
		defer func() {
			if err := u.locker.Unlock(context.Background(), importLockKey, token); err != nil {
				u.log.Warn().Err(err).Msg("release import lock failed")
			}
		}()
	}

	res := &BatchResult{
		BatchID:      ulid.Make().String(),
		Total:        len(rows),
		AutoVerified: []AutoVerifiedItem{},
		NeedsReview:  []ReviewItem{},
		Errors:       []RowError{},
	}
	ctx = logging.WithBatchID(ctx, res.BatchID)
	log := logging.With(ctx, u.log)

	open, err := u.orders.ListReconcilable(ctx, repository.NoTX)
	if err != nil {
		return nil, fmt.Errorf("load reconcilable orders: %w", err)
	}
	b := &batch{
		id:         res.BatchID,
		importer:   importer,
		candidates: open,
		seen:       make(map[string]struct{}, len(rows)),
		res:        res,
	}

	for _, row := range rows {
		if err := u.processRow(ctx, b, row); err != nil {
			log.Warn().Err(err).Int("line", row.Line).Msg("statement row failed")
			res.Errors = append(res.Errors, RowError{Line: row.Line, Reason: err.Error()})
		}
	}

	log.Info().
		Str("importer", importer).
		Int("total", res.Total).
		Int("imported", res.Imported).
		Int("duplicates", res.Duplicates).
		Int("matched", res.Matched).
		Int("auto_verified", len(res.AutoVerified)).
		Int("needs_review", len(res.NeedsReview)).
		Int("errors", len(res.Errors)).
		Msg("statement imported")

	if n := len(res.NeedsReview); n > 0 {
		u.notify.Notify(ctx, Event{
			Kind:     model.NotificationReconciliationReview,
			Title:    "Bank transactions need review",
			Message:  fmt.Sprintf("Batch %s: %d of %d transactions need a manual decision.", res.BatchID, n, res.Total),
			Audience: AudienceAdmins,
		})
	}
	return res, nil
}

// batch is the mutable state of one import.
type batch struct {
	id         string
	importer   string
	candidates []*model.Order // newest first
	seen       map[string]struct{}
	res        *BatchResult
}

func (b *batch) drop(orderID string) {
	for i, o := range b.candidates {
		if o.ID == orderID {
			b.candidates = append(b.candidates[:i], b.candidates[i+1:]...)
			return
		}
	}
}

func (u *reconciliationUC) processRow(ctx context.Context, b *batch, row StatementRow) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("row panicked: %v", r)
		}
	}()

	line, err := row.extract()
	if errors.Is(err, errNotCredit) {
		b.res.Skipped++
		return nil
	}
	if err != nil {
		return err
	}

	if _, dup := b.seen[line.ref]; dup {
		b.res.Duplicates++
		return nil
	}
	b.seen[line.ref] = struct{}{}

	exists, err := u.txns.ExistsByRef(ctx, repository.NoTX, line.ref)
	if err != nil {
		return err
	}
	if exists {
		b.res.Duplicates++
		return nil
	}

	m := matchOrder(line, b.candidates, u.cfg.FuzzyTolerance)
	now := u.now()
	bt := &model.BankTransaction{
		ID:          uuid.NewString(),
		Amount:      line.amount,
		ExternalRef: line.ref,
		Date:        line.date,
		Description: line.description,
		Status:      model.ReconciliationUnmatched,
		Confidence:  m.score,
		Method:      m.method,
		BatchID:     b.id,
		ImportedBy:  b.importer,
		RawRow:      line.raw,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if m.order != nil {
		id := m.order.ID
		bt.MatchedOrderID = &id
		bt.Status = model.ReconciliationManualReview
	}
	if err := bt.Validate(); err != nil {
		return err
	}

	inserted, err := u.txns.Insert(ctx, repository.NoTX, bt)
	if err != nil {
		return err
	}
	if !inserted {
		// a concurrent import stored the same reference first
		b.res.Duplicates++
		return nil
	}
	b.res.Imported++

	if m.order == nil {
		b.res.Unmatched++
		return nil
	}
	b.res.Matched++

	review := ReviewItem{
		TransactionID: bt.ID,
		Line:          row.Line,
		ExternalRef:   bt.ExternalRef,
		Amount:        bt.Amount.StringFixed(2),
		OrderID:       m.order.ID,
		Confidence:    m.score,
		Method:        m.method,
		Reason:        m.reason(),
	}

	if m.score < u.cfg.AutoVerifyThreshold {
		b.res.NeedsReview = append(b.res.NeedsReview, review)
		return nil
	}
	if m.order.Status != model.OrderStatusSubmitted {
		review.Reason = "order has no submitted claim"
		b.res.NeedsReview = append(b.res.NeedsReview, review)
		return nil
	}

	item, err := u.autoVerify(ctx, b, bt, m.order)
	if err != nil {
		logging.With(ctx, u.log).Error().Err(err).Str("order_id", m.order.ID).Msg("auto-verification failed")
		review.Reason = "auto-verification failed"
		review.Error = err.Error()
		b.res.NeedsReview = append(b.res.NeedsReview, review)
		u.notify.Notify(ctx, Event{
			Kind:     model.NotificationAutoVerifyFailed,
			UserID:   m.order.UserID,
			OrderID:  m.order.ID,
			Title:    "Auto-verification failed",
			Message:  fmt.Sprintf("Transaction %s matched order %s but could not be applied: %v", bt.ExternalRef, m.order.ID, err),
			Audience: AudienceAdmins,
		})
		return nil
	}
	b.res.AutoVerified = append(b.res.AutoVerified, *item)
	b.drop(m.order.ID)
	return nil
}

// autoVerify settles the order and marks the transaction matched atomically.
// The transaction row itself was committed earlier, so a failure here leaves
// it in manual_review.
func (u *reconciliationUC) autoVerify(ctx context.Context, b *batch, bt *model.BankTransaction, candidate *model.Order) (*AutoVerifiedItem, error) {
	now := u.now()
	high := model.ConfidenceHigh
	var dec *Decision
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		o, err := u.orders.FindByID(ctx, tx, candidate.ID)
		if err != nil {
			return err
		}
		grant, err := u.settle.approve(ctx, tx, o, verification{
			by:         b.importer,
			notes:      "auto-verified from bank statement batch " + b.id,
			at:         now,
			from:       []model.OrderStatus{model.OrderStatusSubmitted},
			reconciled: true,
			confidence: &high,
		})
		if err != nil {
			return err
		}
		if err := u.txns.UpdateStatus(ctx, tx, bt.ID, model.ReconciliationMatched, &o.ID, bt.Confidence, bt.Method); err != nil {
			return err
		}
		dec = &Decision{Order: o, Premium: grant}
		return nil
	})
	if err != nil {
		return nil, err
	}
	bt.Status = model.ReconciliationMatched

	u.notify.Notify(ctx, decisionEvent(dec))
	return &AutoVerifiedItem{
		TransactionID:    bt.ID,
		OrderID:          dec.Order.ID,
		UserID:           dec.Order.UserID,
		ExternalRef:      bt.ExternalRef,
		Amount:           bt.Amount.StringFixed(2),
		PremiumExpiresAt: dec.Premium.ExpiresAt,
	}, nil
}

func (u *reconciliationUC) LinkTransaction(ctx context.Context, txnID, orderID, adminID string) (*Decision, error) {
	defer logging.TraceDuration(u.log, "ReconciliationUC.LinkTransaction")()
	log := logging.With(logging.WithOrderID(ctx, orderID), u.log)

	now := u.now()
	var dec *Decision
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		bt, err := u.txns.FindByID(ctx, tx, txnID)
		if err != nil {
			return err
		}
		if bt.Status == model.ReconciliationMatched || bt.Status == model.ReconciliationIgnored {
			return fmt.Errorf("%w: %s is %s", domain.ErrTransactionSettled, bt.ID, bt.Status)
		}
		o, err := u.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.IsActive() {
			return &domain.AlreadyDecidedError{OrderID: o.ID, Status: string(o.Status)}
		}
		if !o.UniqueAmount.Equal(bt.Amount) {
			log.Warn().Str("order_amount", o.UniqueAmount.StringFixed(2)).Str("txn_amount", bt.Amount.StringFixed(2)).Msg("linking transaction with a different amount")
		}

		conf := model.ConfidenceLow
		if bt.MatchedOrderID != nil && *bt.MatchedOrderID == o.ID {
			conf = model.ConfidenceFromScore(bt.Confidence)
		}
		grant, err := u.settle.approve(ctx, tx, o, verification{
			by:         adminID,
			notes:      "linked to bank transaction " + bt.ExternalRef,
			at:         now,
			from:       model.ActiveOrderStatuses,
			reconciled: true,
			confidence: &conf,
		})
		if err != nil {
			return err
		}
		if err := u.txns.UpdateStatus(ctx, tx, bt.ID, model.ReconciliationMatched, &o.ID, bt.Confidence, model.MatchManual); err != nil {
			return err
		}
		dec = &Decision{Order: o, Premium: grant}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("admin_id", adminID).Str("transaction_id", txnID).Msg("transaction linked")
	u.notify.Notify(ctx, decisionEvent(dec))
	return dec, nil
}

func (u *reconciliationUC) IgnoreTransaction(ctx context.Context, txnID, adminID string) error {
	defer logging.TraceDuration(u.log, "ReconciliationUC.IgnoreTransaction")()
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		bt, err := u.txns.FindByID(ctx, tx, txnID)
		if err != nil {
			return err
		}
		if bt.Status == model.ReconciliationMatched || bt.Status == model.ReconciliationIgnored {
			return fmt.Errorf("%w: %s is %s", domain.ErrTransactionSettled, bt.ID, bt.Status)
		}
		return u.txns.UpdateStatus(ctx, tx, bt.ID, model.ReconciliationIgnored, nil, bt.Confidence, bt.Method)
	})
	if err != nil {
		return err
	}
	logging.With(ctx, u.log).Info().Str("admin_id", adminID).Str("transaction_id", txnID).Msg("transaction ignored")
	return nil
}

func (u *reconciliationUC) ListTransactions(ctx context.Context, status model.ReconciliationStatus, offset, limit int) ([]*model.BankTransaction, error) {
	if !status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "unknown reconciliation status"}
	}
	if offset < 0 {
		offset = 0
	}
	return u.txns.ListByStatus(ctx, repository.NoTX, status, offset, clampLimit(limit))
}

// match is the best candidate for one credit line.
type match struct {
	order     *model.Order
	score     int
	method    model.MatchMethod
	ambiguous bool
}

func (m match) reason() string {
	switch {
	case m.method == model.MatchExact:
		return "exact amount and reference"
	case m.ambiguous:
		return "amount matches several open orders"
	case m.method == model.MatchAmountOnly:
		return "amount matches a single open order"
	case m.method == model.MatchFuzzy:
		return "amount is close to an open order"
	}
	return "no match"
}

// matchOrder picks the best candidate for line. candidates are ordered
// newest first, so ties resolve to the most recently created order.
func matchOrder(line creditLine, candidates []*model.Order, tolerance decimal.Decimal) match {
	var sameAmount []*model.Order
	for _, o := range candidates {
		if !o.UniqueAmount.Equal(line.amount) {
			continue
		}
		if o.ClaimedTxnRef != nil && NormalizeBankRef(*o.ClaimedTxnRef) == line.ref {
			return match{order: o, score: ScoreExact, method: model.MatchExact}
		}
		sameAmount = append(sameAmount, o)
	}
	switch len(sameAmount) {
	case 0:
	case 1:
		return match{order: sameAmount[0], score: ScoreAmountUnique, method: model.MatchAmountOnly}
	default:
		return match{order: sameAmount[0], score: ScoreAmountAmbiguous, method: model.MatchAmountOnly, ambiguous: true}
	}

	var best *model.Order
	var bestDiff decimal.Decimal
	for _, o := range candidates {
		diff := o.UniqueAmount.Sub(line.amount).Abs()
		if diff.GreaterThan(tolerance) {
			continue
		}
		if best == nil || diff.LessThan(bestDiff) {
			best, bestDiff = o, diff
		}
	}
	if best != nil {
		return match{order: best, score: ScoreFuzzy, method: model.MatchFuzzy}
	}
	return match{score: 0, method: model.MatchNone}
}
