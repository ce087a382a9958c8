package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/domain/ports/repository"
)

var _ repository.BankTransactionRepository = (*bankTransactionRepo)(nil)

type bankTransactionRepo struct{ pool *pgxpool.Pool }

func NewBankTransactionRepo(pool *pgxpool.Pool) *bankTransactionRepo {
	return &bankTransactionRepo{pool: pool}
}

const bankTxnColumns = `id, amount, external_ref, txn_date, description, status, matched_order_id, confidence,
  match_method, batch_id, imported_by, COALESCE(raw_row::text, ''), created_at, updated_at`

func scanBankTxn(row rowScanner) (*model.BankTransaction, error) {
	var (
		t              model.BankTransaction
		amount         int64
		status, method string
	)
	err := row.Scan(&t.ID, &amount, &t.ExternalRef, &t.Date, &t.Description, &status, &t.MatchedOrderID, &t.Confidence,
		&method, &t.BatchID, &t.ImportedBy, &t.RawRow, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Amount = model.FromMinor(amount)
	t.Status = model.ReconciliationStatus(status)
	t.Method = model.MatchMethod(method)
	return &t, nil
}

// Insert relies on the unique external_ref constraint; a conflicting row is skipped.
func (r *bankTransactionRepo) Insert(ctx context.Context, tx repository.Tx, t *model.BankTransaction) (bool, error) {
	const q = `
INSERT INTO bank_transactions (
  id, amount, external_ref, txn_date, description, status, matched_order_id, confidence,
  match_method, batch_id, imported_by, raw_row, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12, '')::jsonb,$13,$14
) ON CONFLICT (external_ref) DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, q, t.ID, model.ToMinor(t.Amount), t.ExternalRef, t.Date, t.Description,
		string(t.Status), t.MatchedOrderID, t.Confidence, string(t.Method), t.BatchID, t.ImportedBy, t.RawRow,
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return false, mapExecErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *bankTransactionRepo) ExistsByRef(ctx context.Context, tx repository.Tx, ref string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM bank_transactions WHERE external_ref = $1);`
	row, err := pickRow(ctx, r.pool, tx, q, ref)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *bankTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.BankTransaction, error) {
	q := forUpdate(`SELECT `+bankTxnColumns+` FROM bank_transactions WHERE id=$1`, tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	t, err := scanBankTxn(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}

func (r *bankTransactionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.ReconciliationStatus, orderID *string, confidence int, method model.MatchMethod) error {
	const q = `
UPDATE bank_transactions
   SET status=$2, matched_order_id=$3, confidence=$4, match_method=$5, updated_at=NOW()
 WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, string(status), orderID, confidence, string(method))
	if err != nil {
		return mapExecErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *bankTransactionRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.ReconciliationStatus, offset, limit int) ([]*model.BankTransaction, error) {
	const q = `SELECT ` + bankTxnColumns + ` FROM bank_transactions
WHERE status=$1
ORDER BY created_at DESC, external_ref
OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, string(status), offset, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.BankTransaction
	for rows.Next() {
		t, err := scanBankTxn(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
