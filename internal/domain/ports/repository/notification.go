package repository

import (
	"context"
	"time"

	"typing-premium-payments/internal/domain/model"
)

// -----------------------------
// Notification inbox
// -----------------------------

type NotificationRepository interface {
	Save(ctx context.Context, tx Tx, n *model.Notification) error
	ListByRecipient(ctx context.Context, tx Tx, recipientID string, unreadOnly bool, limit int) ([]*model.Notification, error)
	// MarkRead flags the notification as read if it belongs to recipientID.
	MarkRead(ctx context.Context, tx Tx, id, recipientID string, at time.Time) error
	DeleteReadBefore(ctx context.Context, tx Tx, cutoff time.Time) (int, error)
}
