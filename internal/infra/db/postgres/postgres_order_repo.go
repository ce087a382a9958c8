package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, user_id, plan_type, base_amount, sequence, unique_amount, payment_identifier, rendered_code,
  status, claimed_txn_ref, proof_ref, bank_reconciled, reconciliation_confidence,
  created_at, expires_at, submitted_at, verified_at, verified_by, notes, updated_at`

const activeStatuses = `('pending','submitted')`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		o            model.Order
		plan, status string
		base, unique int64
		confidence   *string
	)
	err := row.Scan(&o.ID, &o.UserID, &plan, &base, &o.Sequence, &unique, &o.PaymentIdentifier, &o.RenderedCode,
		&status, &o.ClaimedTxnRef, &o.ProofRef, &o.BankReconciled, &confidence,
		&o.CreatedAt, &o.ExpiresAt, &o.SubmittedAt, &o.VerifiedAt, &o.VerifiedBy, &o.Notes, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.PlanType = model.PlanType(plan)
	o.Status = model.OrderStatus(status)
	o.BaseAmount = model.FromMinor(base)
	o.UniqueAmount = model.FromMinor(unique)
	if confidence != nil {
		c := model.Confidence(*confidence)
		o.ReconciliationConfidence = &c
	}
	return &o, nil
}

func (r *orderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO payment_orders (
  id, user_id, plan_type, base_amount, sequence, unique_amount, payment_identifier, rendered_code,
  status, notes, created_at, expires_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
);`
	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.UserID, string(o.PlanType), model.ToMinor(o.BaseAmount), o.Sequence,
		model.ToMinor(o.UniqueAmount), o.PaymentIdentifier, o.RenderedCode, string(o.Status), o.Notes,
		o.CreatedAt, o.ExpiresAt, o.UpdatedAt)
	if err != nil {
		if name, ok := uniqueViolation(err); ok {
			switch name {
			case "uq_orders_active_sequence":
				return domain.ErrSequenceTaken
			case "uq_orders_active_user":
				return domain.ErrActiveOrderExists
			default:
				return domain.ErrAlreadyExists
			}
		}
		return mapExecErr(err)
	}
	return nil
}

func (r *orderRepo) findOne(ctx context.Context, tx repository.Tx, where string, arg interface{}) (*model.Order, error) {
	q := forUpdate(`SELECT `+orderColumns+` FROM payment_orders WHERE `+where, tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	return r.findOne(ctx, tx, `id=$1`, id)
}

func (r *orderRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Order, error) {
	return r.findOne(ctx, tx, `user_id=$1 AND status IN `+activeStatuses, userID)
}

func (r *orderRepo) FindByClaimRef(ctx context.Context, tx repository.Tx, ref string) (*model.Order, error) {
	return r.findOne(ctx, tx, `claimed_txn_ref=$1`, ref)
}

// LockPlanSequences takes a transaction-scoped advisory lock; it is a no-op outside a tx.
func (r *orderRepo) LockPlanSequences(ctx context.Context, tx repository.Tx, plan model.PlanType) error {
	if _, ok := tx.(pgx.Tx); !ok {
		return nil
	}
	_, err := execSQL(ctx, r.pool, tx, `SELECT pg_advisory_xact_lock($1);`, hashToInt64("order-seq:"+string(plan)))
	if err != nil {
		return mapExecErr(err)
	}
	return nil
}

func (r *orderRepo) ActiveSequences(ctx context.Context, tx repository.Tx, plan model.PlanType) ([]int, error) {
	const q = `SELECT sequence FROM payment_orders WHERE plan_type=$1 AND status IN ` + activeStatuses + ` ORDER BY sequence;`
	rows, err := queryRows(ctx, r.pool, tx, q, string(plan))
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var seq int
		if err := rows.Scan(&seq); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *orderRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Order, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *orderRepo) ListReconcilable(ctx context.Context, tx repository.Tx) ([]*model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM payment_orders
WHERE status IN ` + activeStatuses + ` AND NOT bank_reconciled
ORDER BY created_at DESC, sequence DESC;`
	return r.list(ctx, tx, q)
}

func (r *orderRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.OrderStatus, offset, limit int) ([]*model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM payment_orders
WHERE status=$1
ORDER BY created_at DESC, sequence DESC
OFFSET $2 LIMIT $3;`
	return r.list(ctx, tx, q, string(status), offset, limit)
}

func (r *orderRepo) SubmitClaim(ctx context.Context, tx repository.Tx, id, ref string, proofRef *string, at time.Time) (bool, error) {
	const q = `
UPDATE payment_orders
   SET status='submitted', claimed_txn_ref=$2, proof_ref=$3, submitted_at=$4, updated_at=$4
 WHERE id=$1 AND status='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, ref, proofRef, at)
	if err != nil {
		if name, ok := uniqueViolation(err); ok && name == "uq_orders_claimed_txn_ref" {
			return false, domain.ErrClaimRefTaken
		}
		return false, mapExecErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *orderRepo) Transition(ctx context.Context, tx repository.Tx, id string, from []model.OrderStatus, upd repository.OrderUpdate) (bool, error) {
	const q = `
UPDATE payment_orders
   SET status=$3,
       verified_at=COALESCE($4, verified_at),
       verified_by=COALESCE($5, verified_by),
       notes=COALESCE($6, notes),
       bank_reconciled=COALESCE($7, bank_reconciled),
       reconciliation_confidence=COALESCE($8, reconciliation_confidence),
       updated_at=NOW()
 WHERE id=$1 AND status = ANY($2);`

	fromStr := make([]string, len(from))
	for i, s := range from {
		fromStr[i] = string(s)
	}
	var confidence *string
	if upd.Confidence != nil {
		c := string(*upd.Confidence)
		confidence = &c
	}
	tag, err := execSQL(ctx, r.pool, tx, q, id, fromStr, string(upd.Status), upd.VerifiedAt, upd.VerifiedBy, upd.Notes, upd.BankReconciled, confidence)
	if err != nil {
		return false, mapExecErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *orderRepo) ExpireStale(ctx context.Context, tx repository.Tx, plan *model.PlanType, pendingBefore, submittedBefore time.Time) (int, error) {
	const q = `
UPDATE payment_orders
   SET status='expired', updated_at=NOW()
 WHERE ((status='pending' AND expires_at < $1) OR (status='submitted' AND expires_at < $2))
   AND ($3::text IS NULL OR plan_type=$3);`
	var planArg *string
	if plan != nil {
		p := string(*plan)
		planArg = &p
	}
	tag, err := execSQL(ctx, r.pool, tx, q, pendingBefore, submittedBefore, planArg)
	if err != nil {
		return 0, mapExecErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *orderRepo) DeleteTerminalBefore(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	const q = `DELETE FROM payment_orders WHERE status IN ('expired','failed') AND updated_at < $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, cutoff)
	if err != nil {
		return 0, mapExecErr(err)
	}
	return int(tag.RowsAffected()), nil
}
