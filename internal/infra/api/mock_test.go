package api_test

import (
	"context"
	"io"
	"time"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/usecase"
)

//
// -------------------- use-case stubs --------------------
//

type stubOrders struct {
	order    *model.Order
	view     *usecase.OrderView
	decision *usecase.Decision
	list     []*model.Order
	err      error

	lastCaller usecase.Caller
	lastUser   string
	lastRef    string
	lastAction usecase.DecisionAction
	lastStatus model.OrderStatus
}

func (s *stubOrders) CreateOrder(_ context.Context, userID string, _ model.PlanType) (*model.Order, error) {
	s.lastUser = userID
	return s.order, s.err
}

func (s *stubOrders) SubmitClaim(_ context.Context, _, userID, txnRef string, _ *string) (*model.Order, error) {
	s.lastUser, s.lastRef = userID, txnRef
	return s.order, s.err
}

func (s *stubOrders) Decide(_ context.Context, _, adminID string, action usecase.DecisionAction, _ string) (*usecase.Decision, error) {
	s.lastUser, s.lastAction = adminID, action
	return s.decision, s.err
}

func (s *stubOrders) SweepExpired(context.Context) (int, error) { return 0, nil }

func (s *stubOrders) GetOrder(_ context.Context, _ string, caller usecase.Caller) (*usecase.OrderView, error) {
	s.lastCaller = caller
	return s.view, s.err
}

func (s *stubOrders) ActiveOrderForUser(_ context.Context, userID string) (*usecase.OrderView, error) {
	s.lastUser = userID
	if s.view == nil && s.err == nil {
		return nil, domain.ErrNotFound
	}
	return s.view, s.err
}

func (s *stubOrders) ListOrders(_ context.Context, status model.OrderStatus, _, _ int) ([]*model.Order, error) {
	s.lastStatus = status
	return s.list, s.err
}

func (s *stubOrders) PurgeTerminal(context.Context, time.Duration) (int, error) { return 0, nil }

type stubRecon struct {
	result   *usecase.BatchResult
	decision *usecase.Decision
	txns     []*model.BankTransaction
	err      error

	body     string
	importer string
	ignored  string
}

func (s *stubRecon) ImportStatement(_ context.Context, r io.Reader, importer string) (*usecase.BatchResult, error) {
	b, _ := io.ReadAll(r)
	s.body, s.importer = string(b), importer
	return s.result, s.err
}

func (s *stubRecon) ImportBatch(context.Context, []usecase.StatementRow, string) (*usecase.BatchResult, error) {
	return s.result, s.err
}

func (s *stubRecon) LinkTransaction(context.Context, string, string, string) (*usecase.Decision, error) {
	return s.decision, s.err
}

func (s *stubRecon) IgnoreTransaction(_ context.Context, txnID, _ string) error {
	s.ignored = txnID
	return s.err
}

func (s *stubRecon) ListTransactions(context.Context, model.ReconciliationStatus, int, int) ([]*model.BankTransaction, error) {
	return s.txns, s.err
}

type stubInbox struct {
	items  []*model.Notification
	err    error
	read   string
	reader string
}

func (s *stubInbox) Notify(context.Context, usecase.Event) {}

func (s *stubInbox) ListInbox(context.Context, string, bool, int) ([]*model.Notification, error) {
	return s.items, s.err
}

func (s *stubInbox) MarkRead(_ context.Context, id, recipientID string) error {
	s.read, s.reader = id, recipientID
	return s.err
}

func (s *stubInbox) PurgeRead(context.Context, time.Duration) (int, error) { return 0, nil }
