package model

import "time"

type NotificationKind string

const (
	NotificationPaymentSubmitted     NotificationKind = "payment_submitted"
	NotificationPaymentVerified      NotificationKind = "payment_verified"
	NotificationPaymentFailed        NotificationKind = "payment_failed"
	NotificationReconciliationReview NotificationKind = "reconciliation_review"
	NotificationAutoVerifyFailed     NotificationKind = "auto_verify_failed"
)

// Notification is an inbox entry for an admin or an end user.
type Notification struct {
	ID          string
	RecipientID string
	Kind        NotificationKind
	Title       string
	Message     string
	OrderID     *string
	UserID      *string
	Read        bool
	ReadAt      *time.Time
	CreatedAt   time.Time
}
