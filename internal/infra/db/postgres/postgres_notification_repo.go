package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/domain/ports/repository"
)

var _ repository.NotificationRepository = (*notificationRepo)(nil)

type notificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) repository.NotificationRepository {
	return &notificationRepo{pool: pool}
}

func (r *notificationRepo) Save(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	const q = `
INSERT INTO notifications (id, recipient_id, kind, title, message, order_id, user_id, is_read, read_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := execSQL(ctx, r.pool, tx, q, n.ID, n.RecipientID, string(n.Kind), n.Title, n.Message, n.OrderID, n.UserID, n.Read, n.ReadAt, n.CreatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return domain.ErrAlreadyExists
		}
		return mapExecErr(err)
	}
	return nil
}

func (r *notificationRepo) ListByRecipient(ctx context.Context, tx repository.Tx, recipientID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	const q = `
SELECT id, recipient_id, kind, title, message, order_id, user_id, is_read, read_at, created_at
  FROM notifications
 WHERE recipient_id = $1 AND (NOT $2 OR NOT is_read)
 ORDER BY created_at DESC, id DESC
 LIMIT $3`
	rows, err := queryRows(ctx, r.pool, tx, q, recipientID, unreadOnly, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		var (
			n    model.Notification
			kind string
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &kind, &n.Title, &n.Message, &n.OrderID, &n.UserID, &n.Read, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		n.Kind = model.NotificationKind(kind)
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, tx repository.Tx, id, recipientID string, at time.Time) error {
	const q = `
UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $3)
 WHERE id = $1 AND recipient_id = $2`
	tag, err := execSQL(ctx, r.pool, tx, q, id, recipientID, at)
	if err != nil {
		return mapExecErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *notificationRepo) DeleteReadBefore(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM notifications WHERE is_read AND read_at < $1`, cutoff)
	if err != nil {
		return 0, mapExecErr(err)
	}
	return int(tag.RowsAffected()), nil
}
