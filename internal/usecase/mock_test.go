//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/domain/ports/adapter"
	"typing-premium-payments/internal/domain/ports/repository"
	"typing-premium-payments/internal/usecase"
)

// -----------------------------
// Utilities
// -----------------------------

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

func testCatalog() *model.PlanCatalog {
	c, err := model.NewPlanCatalog(
		model.Plan{Type: model.PlanTrial, BaseAmount: dec("19"), DurationDays: 7, Quotas: model.Quotas{AIFeedback: 20, Paragraphs: 20}},
		model.Plan{Type: model.PlanMonthly, BaseAmount: dec("69"), DurationDays: 30, Quotas: model.Quotas{AIFeedback: 100, Paragraphs: 100}},
		model.Plan{Type: model.PlanYearly, BaseAmount: dec("499"), DurationDays: 365, Quotas: model.Quotas{AIFeedback: 1500, Paragraphs: 1500}},
		model.Plan{Type: model.PlanLifetime, BaseAmount: dec("999"), DurationDays: 36500, Quotas: model.Quotas{AIFeedback: model.UnlimitedQuota, Paragraphs: model.UnlimitedQuota}},
	)
	if err != nil {
		panic(err)
	}
	return c
}

var baseQuotas = model.Quotas{AIFeedback: 5, Paragraphs: 5}

// =============================
// In-memory database
// =============================

// memDB backs every mock repository. WithTx snapshots it and restores the
// snapshot when fn fails, so tests observe rollback like Postgres would.
type memDB struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	now    func() time.Time
	orders map[string]model.Order
	txns   map[string]model.BankTransaction
	users  map[string]model.User
	notifs map[string]model.Notification
}

func newMemDB(now func() time.Time) *memDB {
	return &memDB{
		now:    now,
		orders: map[string]model.Order{},
		txns:   map[string]model.BankTransaction{},
		users:  map[string]model.User{},
		notifs: map[string]model.Notification{},
	}
}

type memSnapshot struct {
	orders map[string]model.Order
	txns   map[string]model.BankTransaction
	users  map[string]model.User
	notifs map[string]model.Notification
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	return memSnapshot{copyMap(db.orders), copyMap(db.txns), copyMap(db.users), copyMap(db.notifs)}
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.orders, db.txns, db.users, db.notifs = s.orders, s.txns, s.users, s.notifs
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	db         *memDB
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx serializes transactions and rolls the in-memory state back on error.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.db.txMu.Lock()
	defer m.db.txMu.Unlock()
	snap := m.db.snapshot()
	if err := fn(ctx, repository.NoTX); err != nil {
		m.db.restore(snap)
		return err
	}
	return nil
}

// ---- Orders ----

type MockOrderRepo struct {
	db *memDB

	CreateFunc     func(ctx context.Context, tx repository.Tx, o *model.Order) error
	TransitionFunc func(ctx context.Context, tx repository.Tx, id string, from []model.OrderStatus, upd repository.OrderUpdate) (bool, error)

	mu        sync.Mutex
	lockCalls map[model.PlanType]int
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func (r *MockOrderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if r.CreateFunc != nil {
		if err := r.CreateFunc(ctx, tx, o); err != nil {
			return err
		}
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range r.db.orders {
		if !e.Status.IsActive() {
			continue
		}
		if e.PlanType == o.PlanType && e.Sequence == o.Sequence {
			return domain.ErrSequenceTaken
		}
		if e.UserID == o.UserID {
			return domain.ErrActiveOrderExists
		}
	}
	if _, ok := r.db.orders[o.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.db.orders[o.ID] = *o
	return nil
}

func (r *MockOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (r *MockOrderRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, o := range r.db.orders {
		if o.UserID == userID && o.Status.IsActive() {
			cp := o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockOrderRepo) FindByClaimRef(ctx context.Context, tx repository.Tx, ref string) (*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, o := range r.db.orders {
		if o.ClaimedTxnRef != nil && *o.ClaimedTxnRef == ref {
			cp := o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockOrderRepo) LockPlanSequences(ctx context.Context, tx repository.Tx, plan model.PlanType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lockCalls == nil {
		r.lockCalls = map[model.PlanType]int{}
	}
	r.lockCalls[plan]++
	return nil
}

func (r *MockOrderRepo) ActiveSequences(ctx context.Context, tx repository.Tx, plan model.PlanType) ([]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []int
	for _, o := range r.db.orders {
		if o.PlanType == plan && o.Status.IsActive() {
			out = append(out, o.Sequence)
		}
	}
	return out, nil
}

func (r *MockOrderRepo) sorted(keep func(model.Order) bool) []*model.Order {
	var out []*model.Order
	for _, o := range r.db.orders {
		if keep(o) {
			cp := o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Sequence > out[j].Sequence
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *MockOrderRepo) ListReconcilable(ctx context.Context, tx repository.Tx) ([]*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.sorted(func(o model.Order) bool { return o.Status.IsActive() && !o.BankReconciled }), nil
}

func (r *MockOrderRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.OrderStatus, offset, limit int) ([]*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	all := r.sorted(func(o model.Order) bool { return o.Status == status })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *MockOrderRepo) SubmitClaim(ctx context.Context, tx repository.Tx, id, ref string, proofRef *string, at time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	for _, e := range r.db.orders {
		if e.ID != id && e.ClaimedTxnRef != nil && *e.ClaimedTxnRef == ref {
			return false, domain.ErrClaimRefTaken
		}
	}
	o.Status = model.OrderStatusSubmitted
	o.ClaimedTxnRef = &ref
	o.ProofRef = proofRef
	o.SubmittedAt = &at
	o.UpdatedAt = at
	r.db.orders[id] = o
	return true, nil
}

func (r *MockOrderRepo) Transition(ctx context.Context, tx repository.Tx, id string, from []model.OrderStatus, upd repository.OrderUpdate) (bool, error) {
	if r.TransitionFunc != nil {
		return r.TransitionFunc(ctx, tx, id, from, upd)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range from {
		if o.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	o.Status = upd.Status
	if upd.VerifiedAt != nil {
		o.VerifiedAt = upd.VerifiedAt
	}
	if upd.VerifiedBy != nil {
		o.VerifiedBy = upd.VerifiedBy
	}
	if upd.Notes != nil {
		o.Notes = *upd.Notes
	}
	if upd.BankReconciled != nil {
		o.BankReconciled = *upd.BankReconciled
	}
	if upd.Confidence != nil {
		o.ReconciliationConfidence = upd.Confidence
	}
	o.UpdatedAt = r.db.now()
	r.db.orders[id] = o
	return true, nil
}

func (r *MockOrderRepo) ExpireStale(ctx context.Context, tx repository.Tx, plan *model.PlanType, pendingBefore, submittedBefore time.Time) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for id, o := range r.db.orders {
		if plan != nil && o.PlanType != *plan {
			continue
		}
		stale := (o.Status == model.OrderStatusPending && o.ExpiresAt.Before(pendingBefore)) ||
			(o.Status == model.OrderStatusSubmitted && o.ExpiresAt.Before(submittedBefore))
		if !stale {
			continue
		}
		o.Status = model.OrderStatusExpired
		o.UpdatedAt = r.db.now()
		r.db.orders[id] = o
		n++
	}
	return n, nil
}

func (r *MockOrderRepo) DeleteTerminalBefore(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for id, o := range r.db.orders {
		if (o.Status == model.OrderStatusExpired || o.Status == model.OrderStatusFailed) && o.UpdatedAt.Before(cutoff) {
			delete(r.db.orders, id)
			n++
		}
	}
	return n, nil
}

// put seeds an order directly, bypassing uniqueness checks.
func (r *MockOrderRepo) put(o *model.Order) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.orders[o.ID] = *o
}

func (r *MockOrderRepo) get(id string) model.Order {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.orders[id]
}

// ---- Bank transactions ----

type MockTxnRepo struct {
	db *memDB

	BeforeInsert func(t *model.BankTransaction)
}

var _ repository.BankTransactionRepository = (*MockTxnRepo)(nil)

func (r *MockTxnRepo) Insert(ctx context.Context, tx repository.Tx, t *model.BankTransaction) (bool, error) {
	if r.BeforeInsert != nil {
		r.BeforeInsert(t)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range r.db.txns {
		if e.ExternalRef == t.ExternalRef {
			return false, nil
		}
	}
	r.db.txns[t.ID] = *t
	return true, nil
}

func (r *MockTxnRepo) ExistsByRef(ctx context.Context, tx repository.Tx, ref string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range r.db.txns {
		if e.ExternalRef == ref {
			return true, nil
		}
	}
	return false, nil
}

func (r *MockTxnRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.BankTransaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.txns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (r *MockTxnRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.ReconciliationStatus, orderID *string, confidence int, method model.MatchMethod) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.txns[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = status
	t.MatchedOrderID = orderID
	t.Confidence = confidence
	t.Method = method
	t.UpdatedAt = r.db.now()
	r.db.txns[id] = t
	return nil
}

func (r *MockTxnRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.ReconciliationStatus, offset, limit int) ([]*model.BankTransaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.BankTransaction
	for _, t := range r.db.txns {
		if t.Status == status {
			cp := t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalRef < out[j].ExternalRef })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockTxnRepo) all() []model.BankTransaction {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]model.BankTransaction, 0, len(r.db.txns))
	for _, t := range r.db.txns {
		out = append(out, t)
	}
	return out
}

func (r *MockTxnRepo) byRef(ref string) (model.BankTransaction, bool) {
	for _, t := range r.all() {
		if t.ExternalRef == ref {
			return t, true
		}
	}
	return model.BankTransaction{}, false
}

// ---- Users ----

type MockUserRepo struct {
	db *memDB

	SavePremiumFunc func(ctx context.Context, tx repository.Tx, u *model.User) error
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r *MockUserRepo) SavePremium(ctx context.Context, tx repository.Tx, u *model.User) error {
	if r.SavePremiumFunc != nil {
		if err := r.SavePremiumFunc(ctx, tx, u); err != nil {
			return err
		}
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.users[u.ID] = *u
	return nil
}

func (r *MockUserRepo) ListAdminIDs(ctx context.Context, tx repository.Tx) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var ids []string
	for _, u := range r.db.users {
		if u.IsAdmin {
			ids = append(ids, u.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *MockUserRepo) DemoteExpiredPremiums(ctx context.Context, tx repository.Tx, now time.Time, base model.Quotas) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for id, u := range r.db.users {
		if u.IsPremium && u.PremiumExpiresAt != nil && !u.PremiumExpiresAt.After(now) {
			u.IsPremium = false
			u.Quotas = base
			r.db.users[id] = u
			n++
		}
	}
	return n, nil
}

func (r *MockUserRepo) put(u *model.User) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.users[u.ID] = *u
}

func (r *MockUserRepo) get(id string) model.User {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.users[id]
}

// ---- Notifications ----

type MockNotificationRepo struct {
	db *memDB

	SaveFunc func(ctx context.Context, tx repository.Tx, n *model.Notification) error
}

var _ repository.NotificationRepository = (*MockNotificationRepo)(nil)

func (r *MockNotificationRepo) Save(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, n)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.notifs[n.ID] = *n
	return nil
}

func (r *MockNotificationRepo) ListByRecipient(ctx context.Context, tx repository.Tx, recipientID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.db.notifs {
		if n.RecipientID != recipientID || (unreadOnly && n.Read) {
			continue
		}
		cp := n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockNotificationRepo) MarkRead(ctx context.Context, tx repository.Tx, id, recipientID string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, ok := r.db.notifs[id]
	if !ok || n.RecipientID != recipientID {
		return domain.ErrNotFound
	}
	n.Read = true
	n.ReadAt = &at
	r.db.notifs[id] = n
	return nil
}

func (r *MockNotificationRepo) DeleteReadBefore(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for id, nt := range r.db.notifs {
		if nt.Read && nt.ReadAt != nil && nt.ReadAt.Before(cutoff) {
			delete(r.db.notifs, id)
			n++
		}
	}
	return n, nil
}

func (r *MockNotificationRepo) kinds(recipientID string) []model.NotificationKind {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.NotificationKind
	for _, n := range r.db.notifs {
		if n.RecipientID == recipientID {
			out = append(out, n.Kind)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// =============================
// Adapters
// =============================

type MockCodec struct {
	RenderErr error
}

var _ adapter.PaymentCodec = (*MockCodec)(nil)

func (c *MockCodec) Name() string { return "mock" }

func (c *MockCodec) BuildIdentifier(payeeHandle, payeeName string, amount decimal.Decimal, orderID string) string {
	return "upi://pay?pa=" + payeeHandle + "&am=" + amount.StringFixed(2) + "&tr=" + orderID
}

func (c *MockCodec) RenderCode(identifier string) ([]byte, error) {
	if c.RenderErr != nil {
		return nil, c.RenderErr
	}
	return []byte("png:" + identifier), nil
}

type MockNotifier struct {
	mu   sync.Mutex
	Sent []adapter.NotifyMessage

	DeliverFunc func(ctx context.Context, msg adapter.NotifyMessage) error
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (n *MockNotifier) Name() string { return "mock" }

func (n *MockNotifier) Deliver(ctx context.Context, msg adapter.NotifyMessage) error {
	if n.DeliverFunc != nil {
		return n.DeliverFunc(ctx, msg)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, msg)
	return nil
}

func (n *MockNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.Sent))
	for _, m := range n.Sent {
		out = append(out, m.Kind)
	}
	return out
}

type MockAdminDirectory struct {
	IDs []string
	Err error
}

func (d *MockAdminDirectory) ListAdminRecipients(ctx context.Context) ([]string, error) {
	return d.IDs, d.Err
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
	Err  error
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return "", l.Err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrLockNotAcquired
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

// ---- In-memory RateLimiter ----

type MockLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	Err    error
}

func (l *MockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.Err != nil {
		return false, l.Err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = map[string]int{}
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

// =============================
// Fixture
// =============================

type fixture struct {
	clock    *fakeClock
	db       *memDB
	tm       *MockTxManager
	orders   *MockOrderRepo
	txns     *MockTxnRepo
	users    *MockUserRepo
	notifs   *MockNotificationRepo
	notifier *MockNotifier
	locker   *MockLocker
	limiter  *MockLimiter
	codec    *MockCodec

	premium usecase.PremiumUseCase
	notify  usecase.NotificationUseCase
	orderUC usecase.OrderUseCase
	recon   usecase.ReconciliationUseCase
}

type fixtureConfig struct {
	poolSize  int
	claimRefs string
	settings  usecase.OrderSettings
}

func newFixture(t *testing.T, tweaks ...func(*fixtureConfig)) *fixture {
	t.Helper()
	cfg := fixtureConfig{
		poolSize:  99,
		claimRefs: usecase.ClaimRefStrict,
		settings: usecase.OrderSettings{
			PayeeVPA:       "typing@upi",
			PayeeName:      "Typing Premium",
			Window:         30 * time.Minute,
			SubmittedGrace: 72 * time.Hour,
		},
	}
	for _, fn := range tweaks {
		fn(&cfg)
	}

	f := &fixture{clock: newFakeClock()}
	f.db = newMemDB(f.clock.Now)
	f.tm = &MockTxManager{db: f.db}
	f.orders = &MockOrderRepo{db: f.db}
	f.txns = &MockTxnRepo{db: f.db}
	f.users = &MockUserRepo{db: f.db}
	f.notifs = &MockNotificationRepo{db: f.db}
	f.notifier = &MockNotifier{}
	f.locker = NewMockLocker()
	f.limiter = &MockLimiter{}
	f.codec = &MockCodec{}

	f.users.put(&model.User{ID: "admin-1", IsAdmin: true})

	logger := newTestLogger()
	clock := usecase.WithClock(f.clock.Now)
	catalog := testCatalog()
	validator, err := usecase.NewTxnRefValidator(cfg.claimRefs)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	f.premium = usecase.NewPremiumUseCase(f.users, f.tm, catalog, baseQuotas, logger, clock)
	f.notify = usecase.NewNotificationUseCase(f.notifs, &MockAdminDirectory{IDs: []string{"admin-1"}}, []adapter.Notifier{f.notifier}, nil, logger, clock)
	allocator := usecase.NewAmountAllocator(f.orders, catalog, cfg.poolSize)
	f.orderUC = usecase.NewOrderUseCase(f.orders, f.tm, catalog, allocator, f.codec, validator, f.limiter, f.premium, f.notify, cfg.settings, logger, clock)
	f.recon = usecase.NewReconciliationUseCase(f.txns, f.orders, f.tm, f.locker, f.premium, f.notify, usecase.ReconciliationSettings{
		FuzzyTolerance:      dec("0.02"),
		AutoVerifyThreshold: 95,
	}, logger, clock)
	return f
}

// addUser seeds a plain user.
func (f *fixture) addUser(id string) {
	f.users.put(&model.User{ID: id, Quotas: baseQuotas})
}

// submitted creates an order for userID and claims ref on it.
func (f *fixture) submitted(t *testing.T, userID string, plan model.PlanType, ref string) *model.Order {
	t.Helper()
	ctx := context.Background()
	o, err := f.orderUC.CreateOrder(ctx, userID, plan)
	if err != nil {
		t.Fatalf("CreateOrder(%s): %v", userID, err)
	}
	o, err = f.orderUC.SubmitClaim(ctx, o.ID, userID, ref, nil)
	if err != nil {
		t.Fatalf("SubmitClaim(%s): %v", userID, err)
	}
	return o
}
