package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/domain/ports/adapter"
	"typing-premium-payments/internal/domain/ports/repository"
	"typing-premium-payments/internal/infra/logging"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// Audience selects who receives an event.
type Audience uint8

const (
	AudienceAdmins Audience = 1 << iota
	AudienceUser
	AudienceAll = AudienceAdmins | AudienceUser
)

// Event is a payment milestone reported to the dispatcher.
type Event struct {
	Kind     model.NotificationKind
	UserID   string
	OrderID  string
	Title    string
	Message  string
	Audience Audience
}

// TaskSubmitter runs delivery off the caller's path. Submit fails fast when
// the queue is saturated.
type TaskSubmitter interface {
	Submit(task func(ctx context.Context) error) error
}

type NotificationUseCase interface {
	// Notify records inbox entries and hands the event to delivery transports.
	// Failures are logged and never returned: the triggering state change has
	// already been committed.
	Notify(ctx context.Context, ev Event)
	ListInbox(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	PurgeRead(ctx context.Context, olderThan time.Duration) (int, error)
}

const deliveryTimeout = 10 * time.Second

type notificationUC struct {
	repo      repository.NotificationRepository
	admins    adapter.AdminDirectory
	notifiers []adapter.Notifier
	pool      TaskSubmitter
	now       func() time.Time
	log       *zerolog.Logger
}

func NewNotificationUseCase(repo repository.NotificationRepository, admins adapter.AdminDirectory, notifiers []adapter.Notifier, pool TaskSubmitter, logger *zerolog.Logger, opts ...Option) *notificationUC {
	o := collectOptions(opts)
	l := logger.With().Str("component", "NotificationUC").Logger()
	return &notificationUC{
		repo:      repo,
		admins:    admins,
		notifiers: notifiers,
		pool:      pool,
		now:       o.now,
		log:       &l,
	}
}

func (n *notificationUC) Notify(ctx context.Context, ev Event) {
	log := logging.With(ctx, n.log)
	now := n.now()

	var recipients []string
	if ev.Audience&AudienceAdmins != 0 {
		ids, err := n.admins.ListAdminRecipients(ctx)
		if err != nil {
			log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("list admin recipients failed")
		}
		recipients = append(recipients, ids...)
	}
	if ev.Audience&AudienceUser != 0 && ev.UserID != "" {
		recipients = append(recipients, ev.UserID)
	}

	seen := make(map[string]struct{}, len(recipients))
	for _, rid := range recipients {
		if _, dup := seen[rid]; dup {
			continue
		}
		seen[rid] = struct{}{}
		if err := n.repo.Save(ctx, repository.NoTX, n.entry(ev, rid, now)); err != nil {
			log.Error().Err(err).Str("recipient", rid).Str("kind", string(ev.Kind)).Msg("save notification failed")
		}
	}

	for _, msg := range n.messages(ev) {
		n.dispatch(log, msg)
	}
}

func (n *notificationUC) entry(ev Event, recipientID string, now time.Time) *model.Notification {
	nt := &model.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Kind:        ev.Kind,
		Title:       ev.Title,
		Message:     ev.Message,
		CreatedAt:   now,
	}
	if ev.OrderID != "" {
		id := ev.OrderID
		nt.OrderID = &id
	}
	if ev.UserID != "" {
		id := ev.UserID
		nt.UserID = &id
	}
	return nt
}

// messages yields one transport message per audience.
func (n *notificationUC) messages(ev Event) []adapter.NotifyMessage {
	var out []adapter.NotifyMessage
	base := adapter.NotifyMessage{Kind: string(ev.Kind), Title: ev.Title, Text: ev.Message, OrderID: ev.OrderID}
	if ev.Audience&AudienceAdmins != 0 {
		m := base
		m.Admin = true
		out = append(out, m)
	}
	if ev.Audience&AudienceUser != 0 && ev.UserID != "" {
		m := base
		m.RecipientID = ev.UserID
		out = append(out, m)
	}
	return out
}

func (n *notificationUC) dispatch(log *zerolog.Logger, msg adapter.NotifyMessage) {
	for _, nf := range n.notifiers {
		nf := nf
		task := func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
			defer cancel()
			if err := nf.Deliver(ctx, msg); err != nil {
				log.Warn().Err(err).Str("transport", nf.Name()).Str("kind", msg.Kind).Msg("notification delivery failed")
				return err
			}
			return nil
		}
		if n.pool == nil {
			_ = task(context.Background())
			continue
		}
		if err := n.pool.Submit(task); err != nil {
			log.Warn().Err(err).Str("transport", nf.Name()).Str("kind", msg.Kind).Msg("notification dropped")
		}
	}
}

func (n *notificationUC) ListInbox(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	defer logging.TraceDuration(n.log, "NotificationUC.ListInbox")()
	if recipientID == "" {
		return nil, &domain.ValidationError{Field: "recipient", Reason: "required"}
	}
	return n.repo.ListByRecipient(ctx, repository.NoTX, recipientID, unreadOnly, clampLimit(limit))
}

func (n *notificationUC) MarkRead(ctx context.Context, id, recipientID string) error {
	defer logging.TraceDuration(n.log, "NotificationUC.MarkRead")()
	return n.repo.MarkRead(ctx, repository.NoTX, id, recipientID, n.now())
}

func (n *notificationUC) PurgeRead(ctx context.Context, olderThan time.Duration) (int, error) {
	return n.repo.DeleteReadBefore(ctx, repository.NoTX, n.now().Add(-olderThan))
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
