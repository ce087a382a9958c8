package repository

import (
	"context"

	"typing-premium-payments/internal/domain/model"
)

// -----------------------------
// Bank transactions
// -----------------------------

type BankTransactionRepository interface {
	// Insert stores t unless its external reference was already imported.
	// It reports whether a row was written.
	Insert(ctx context.Context, tx Tx, t *model.BankTransaction) (bool, error)
	ExistsByRef(ctx context.Context, tx Tx, ref string) (bool, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.BankTransaction, error)
	// UpdateStatus rewrites the reconciliation outcome of a stored row.
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.ReconciliationStatus, orderID *string, confidence int, method model.MatchMethod) error
	ListByStatus(ctx context.Context, tx Tx, status model.ReconciliationStatus, offset, limit int) ([]*model.BankTransaction, error)
}
