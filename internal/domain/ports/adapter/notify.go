package adapter

import "context"

// NotifyMessage is a rendered notification handed to a delivery transport.
// Admin messages go to the operator channel; otherwise RecipientID names the user.
type NotifyMessage struct {
	Admin       bool
	RecipientID string
	Kind        string
	Title       string
	Text        string
	OrderID     string
}

// Notifier delivers messages over one transport (Telegram, email, ...).
type Notifier interface {
	Name() string
	Deliver(ctx context.Context, msg NotifyMessage) error
}

// AdminDirectory enumerates who counts as an admin for notification fan-out.
type AdminDirectory interface {
	ListAdminRecipients(ctx context.Context) ([]string, error)
}
