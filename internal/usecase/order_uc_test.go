//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/domain/ports/repository"
	"typing-premium-payments/internal/usecase"
)

func TestOrderUseCase_CreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("should derive consecutive unique amounts per plan", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		f.addUser("u1")
		f.addUser("u2")

		// --- Act ---
		o1, err := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		o2, err := f.orderUC.CreateOrder(ctx, "u2", model.PlanMonthly)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}

		// --- Assert ---
		if got := o1.UniqueAmount.StringFixed(2); got != "69.01" {
			t.Errorf("expected first amount 69.01, but got %s", got)
		}
		if got := o2.UniqueAmount.StringFixed(2); got != "69.02" {
			t.Errorf("expected second amount 69.02, but got %s", got)
		}
		if o1.Status != model.OrderStatusPending {
			t.Errorf("expected status pending, but got %s", o1.Status)
		}
		if !o1.ExpiresAt.Equal(f.clock.Now().Add(30 * time.Minute)) {
			t.Errorf("expected expiry 30m ahead, but got %v", o1.ExpiresAt)
		}
		if !strings.Contains(o1.PaymentIdentifier, "am=69.01") {
			t.Errorf("expected identifier to carry the exact amount, got %q", o1.PaymentIdentifier)
		}
		if len(o1.RenderedCode) == 0 {
			t.Error("expected a rendered payment code")
		}
		if f.orders.lockCalls[model.PlanMonthly] != 2 {
			t.Errorf("expected the plan lock on every allocation, got %d", f.orders.lockCalls[model.PlanMonthly])
		}
	})

	t.Run("should keep sequences independent across plans", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		f.addUser("u2")

		m, _ := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly)
		y, err := f.orderUC.CreateOrder(ctx, "u2", model.PlanYearly)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if m.Sequence != 1 || y.Sequence != 1 {
			t.Errorf("expected sequence 1 on both plans, got %d and %d", m.Sequence, y.Sequence)
		}
		if got := y.UniqueAmount.StringFixed(2); got != "499.01" {
			t.Errorf("expected 499.01, got %s", got)
		}
	})

	t.Run("should hand out distinct sequences under concurrency and exhaust at the pool size", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		const n = 99
		for i := 0; i < n+1; i++ {
			f.addUser(fmt.Sprintf("user-%d", i))
		}

		// --- Act ---
		var wg sync.WaitGroup
		seqs := make([]int, n)
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				o, err := f.orderUC.CreateOrder(ctx, fmt.Sprintf("user-%d", i), model.PlanMonthly)
				errs[i] = err
				if err == nil {
					seqs[i] = o.Sequence
				}
			}(i)
		}
		wg.Wait()

		// --- Assert ---
		for i, err := range errs {
			if err != nil {
				t.Fatalf("order %d: expected no error, but got: %v", i, err)
			}
		}
		sort.Ints(seqs)
		for i, s := range seqs {
			if s != i+1 {
				t.Fatalf("expected sequences 1..99 without gaps, got %v", seqs)
			}
		}

		_, err := f.orderUC.CreateOrder(ctx, fmt.Sprintf("user-%d", n), model.PlanMonthly)
		var exhausted *domain.SequenceExhaustedError
		if !errors.As(err, &exhausted) {
			t.Fatalf("expected SequenceExhaustedError, got %v", err)
		}
		if !errors.Is(err, domain.ErrCapacity) {
			t.Error("expected exhaustion to be a capacity error")
		}
		if exhausted.PoolSize != 99 {
			t.Errorf("expected pool size 99, got %d", exhausted.PoolSize)
		}
	})

	t.Run("should recycle the lowest sequence once its order expires", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		f.addUser("u2")
		f.addUser("u3")

		first, _ := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly)
		f.clock.Advance(20 * time.Minute)
		if _, err := f.orderUC.CreateOrder(ctx, "u2", model.PlanMonthly); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		f.clock.Advance(11 * time.Minute)

		o, err := f.orderUC.CreateOrder(ctx, "u3", model.PlanMonthly)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if o.Sequence != 1 {
			t.Errorf("expected recycled sequence 1, got %d", o.Sequence)
		}
		if got := f.orders.get(first.ID).Status; got != model.OrderStatusExpired {
			t.Errorf("expected the lapsed order to be expired, got %s", got)
		}
	})

	t.Run("should free the slot of a verified order", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		f.addUser("u2")

		o := f.submitted(t, "u1", model.PlanMonthly, "123456789012")
		if _, err := f.orderUC.Decide(ctx, o.ID, "admin-1", usecase.ActionApprove, ""); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		next, err := f.orderUC.CreateOrder(ctx, "u2", model.PlanMonthly)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if next.Sequence != 1 {
			t.Errorf("expected sequence 1 after verification, got %d", next.Sequence)
		}
	})

	t.Run("should redirect to the existing active order", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")

		existing, _ := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly)
		_, err := f.orderUC.CreateOrder(ctx, "u1", model.PlanYearly)

		var dup *domain.DuplicatePendingOrderError
		if !errors.As(err, &dup) {
			t.Fatalf("expected DuplicatePendingOrderError, got %v", err)
		}
		if dup.OrderID != existing.ID {
			t.Errorf("expected redirect to %s, got %s", existing.ID, dup.OrderID)
		}
	})

	t.Run("should allow a new order once the previous one has lapsed", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")

		if _, err := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		f.clock.Advance(31 * time.Minute)
		if _, err := f.orderUC.CreateOrder(ctx, "u1", model.PlanYearly); err != nil {
			t.Fatalf("expected no error after expiry, but got: %v", err)
		}
	})

	t.Run("should retry when storage reports the sequence taken", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		calls := 0
		f.orders.CreateFunc = func(ctx context.Context, tx repository.Tx, o *model.Order) error {
			calls++
			if calls == 1 {
				return domain.ErrSequenceTaken
			}
			return nil
		}

		o, err := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if calls != 2 || o.Sequence != 1 {
			t.Errorf("expected one retry yielding sequence 1, got calls=%d seq=%d", calls, o.Sequence)
		}
	})

	t.Run("should reject unknown plans and missing users", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.orderUC.CreateOrder(ctx, "u1", model.PlanType("weekly")); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected validation error for unknown plan, got %v", err)
		}
		if _, err := f.orderUC.CreateOrder(ctx, "", model.PlanMonthly); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected validation error for empty user, got %v", err)
		}
	})

	t.Run("should rate limit order creation per user", func(t *testing.T) {
		f := newFixture(t, func(c *fixtureConfig) {
			c.settings.CreateLimit = 1
			c.settings.LimitWindow = time.Hour
		})
		f.addUser("u1")

		if _, err := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if _, err := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly); !errors.Is(err, domain.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("should fail open when the rate limiter is down", func(t *testing.T) {
		f := newFixture(t, func(c *fixtureConfig) { c.settings.CreateLimit = 1 })
		f.limiter.Err = errors.New("redis down")
		f.addUser("u1")

		if _, err := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
	})

	t.Run("should roll back when the payment code cannot be rendered", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		f.codec.RenderErr = errors.New("qr failure")

		if _, err := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly); err == nil {
			t.Fatal("expected an error, got nil")
		}
		if _, err := f.orderUC.ActiveOrderForUser(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected no active order after rollback, got %v", err)
		}
	})
}

func TestOrderUseCase_SubmitClaim(t *testing.T) {
	ctx := context.Background()

	t.Run("should accept a valid claim and notify admins and the user", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		f.addUser("u1")
		o, _ := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly)

		// --- Act ---
		got, err := f.orderUC.SubmitClaim(ctx, o.ID, "u1", " 1234 5678 9012 ", strPtr("proof.png"))

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if got.Status != model.OrderStatusSubmitted {
			t.Errorf("expected submitted, got %s", got.Status)
		}
		if got.ClaimedTxnRef == nil || *got.ClaimedTxnRef != "123456789012" {
			t.Errorf("expected normalized reference, got %v", got.ClaimedTxnRef)
		}
		if got.SubmittedAt == nil || !got.SubmittedAt.Equal(f.clock.Now()) {
			t.Errorf("expected submittedAt to be now, got %v", got.SubmittedAt)
		}
		if got.PaymentIdentifier != "" || got.RenderedCode != nil {
			t.Errorf("expected the payment identifier and code withheld once submitted, got %q / %d bytes", got.PaymentIdentifier, len(got.RenderedCode))
		}
		if stored := f.orders.get(o.ID); stored.PaymentIdentifier == "" {
			t.Error("expected the stored identifier to be kept for audit")
		}
		if kinds := f.notifs.kinds("admin-1"); len(kinds) != 1 || kinds[0] != model.NotificationPaymentSubmitted {
			t.Errorf("expected a payment_submitted admin notification, got %v", kinds)
		}
		if kinds := f.notifs.kinds("u1"); len(kinds) != 1 {
			t.Errorf("expected one user notification, got %v", kinds)
		}
		if len(f.notifier.kinds()) != 2 {
			t.Errorf("expected admin and user deliveries, got %v", f.notifier.kinds())
		}
	})

	t.Run("should reject malformed references without changing the order", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		o, _ := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly)

		for _, ref := range []string{"", "12345", "1234567890123", "ABCDEFGHIJKL"} {
			_, err := f.orderUC.SubmitClaim(ctx, o.ID, "u1", ref, nil)
			var inv *domain.InvalidTransactionIDError
			if !errors.As(err, &inv) {
				t.Errorf("ref %q: expected InvalidTransactionIDError, got %v", ref, err)
			}
		}
		if got := f.orders.get(o.ID).Status; got != model.OrderStatusPending {
			t.Errorf("expected order to stay pending, got %s", got)
		}
	})

	t.Run("should accept alphanumeric references when configured", func(t *testing.T) {
		f := newFixture(t, func(c *fixtureConfig) { c.claimRefs = usecase.ClaimRefAlphanumeric })
		f.addUser("u1")
		o, _ := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly)

		got, err := f.orderUC.SubmitClaim(ctx, o.ID, "u1", "axis12345abc", nil)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if *got.ClaimedTxnRef != "AXIS12345ABC" {
			t.Errorf("expected upper-cased reference, got %s", *got.ClaimedTxnRef)
		}
	})

	t.Run("should reject claims by another user and on unknown orders", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		o, _ := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly)

		if _, err := f.orderUC.SubmitClaim(ctx, o.ID, "intruder", "123456789012", nil); !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
		if _, err := f.orderUC.SubmitClaim(ctx, "missing", "u1", "123456789012", nil); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should refuse a reference already claimed on another order", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		f.addUser("u2")
		f.submitted(t, "u1", model.PlanMonthly, "123456789012")
		o2, _ := f.orderUC.CreateOrder(ctx, "u2", model.PlanMonthly)

		_, err := f.orderUC.SubmitClaim(ctx, o2.ID, "u2", "1234 5678 9012", nil)
		var dup *domain.DuplicateClaimError
		if !errors.As(err, &dup) {
			t.Fatalf("expected DuplicateClaimError, got %v", err)
		}
		if got := f.orders.get(o2.ID).Status; got != model.OrderStatusPending {
			t.Errorf("expected second order to stay pending, got %s", got)
		}
	})

	t.Run("should refuse a second claim on the same order", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		o := f.submitted(t, "u1", model.PlanMonthly, "123456789012")

		_, err := f.orderUC.SubmitClaim(ctx, o.ID, "u1", "999999999999", nil)
		var ns *domain.OrderNotSubmittableError
		if !errors.As(err, &ns) || ns.Reason != domain.ReasonWrongStatus {
			t.Fatalf("expected wrong_status, got %v", err)
		}
	})

	t.Run("should expire the order when the claim arrives late", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		o, _ := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly)
		f.clock.Advance(31 * time.Minute)

		_, err := f.orderUC.SubmitClaim(ctx, o.ID, "u1", "123456789012", nil)
		var ns *domain.OrderNotSubmittableError
		if !errors.As(err, &ns) || ns.Reason != domain.ReasonExpired {
			t.Fatalf("expected expired, got %v", err)
		}
		if got := f.orders.get(o.ID).Status; got != model.OrderStatusExpired {
			t.Errorf("expected stored status expired, got %s", got)
		}
	})

	t.Run("should rate limit claims per user", func(t *testing.T) {
		f := newFixture(t, func(c *fixtureConfig) {
			c.settings.ClaimLimit = 1
			c.settings.LimitWindow = time.Hour
		})
		f.addUser("u1")
		o, _ := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly)

		_, _ = f.orderUC.SubmitClaim(ctx, o.ID, "u1", "bad", nil)
		if _, err := f.orderUC.SubmitClaim(ctx, o.ID, "u1", "123456789012", nil); err != nil {
			t.Fatalf("expected malformed input not to consume the limit, got %v", err)
		}
		if _, err := f.orderUC.SubmitClaim(ctx, o.ID, "u1", "123456789013", nil); !errors.Is(err, domain.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})
}

func TestOrderUseCase_Decide(t *testing.T) {
	ctx := context.Background()

	t.Run("should verify the order and grant premium", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		f.addUser("u1")
		o := f.submitted(t, "u1", model.PlanMonthly, "123456789012")

		// --- Act ---
		dec, err := f.orderUC.Decide(ctx, o.ID, "admin-1", usecase.ActionApprove, "looks good")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if dec.Order.Status != model.OrderStatusVerified {
			t.Errorf("expected verified, got %s", dec.Order.Status)
		}
		if dec.Order.VerifiedBy == nil || *dec.Order.VerifiedBy != "admin-1" {
			t.Errorf("expected verifiedBy admin-1, got %v", dec.Order.VerifiedBy)
		}
		want := f.clock.Now().Add(30 * 24 * time.Hour)
		if !dec.Premium.ExpiresAt.Equal(want) {
			t.Errorf("expected premium until %v, got %v", want, dec.Premium.ExpiresAt)
		}
		u := f.users.get("u1")
		if !u.IsPremium || u.Quotas.AIFeedback != 100 {
			t.Errorf("expected premium user with monthly quotas, got %+v", u)
		}
		if kinds := f.notifs.kinds("u1"); !containsKind(kinds, model.NotificationPaymentVerified) {
			t.Errorf("expected payment_verified for the user, got %v", kinds)
		}
	})

	t.Run("should stack on a live premium grant", func(t *testing.T) {
		f := newFixture(t)
		until := f.clock.Now().Add(10 * 24 * time.Hour)
		f.users.put(&model.User{ID: "u1", IsPremium: true, PremiumExpiresAt: &until, Quotas: model.Quotas{AIFeedback: 100, Paragraphs: 100}})
		o := f.submitted(t, "u1", model.PlanMonthly, "123456789012")

		dec, err := f.orderUC.Decide(ctx, o.ID, "admin-1", usecase.ActionApprove, "")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		want := f.clock.Now().Add(40 * 24 * time.Hour)
		if !dec.Premium.ExpiresAt.Equal(want) || !dec.Premium.Stacked {
			t.Errorf("expected stacked expiry %v, got %+v", want, dec.Premium)
		}
	})

	t.Run("should approve a pending order confirmed by the admin", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		o, _ := f.orderUC.CreateOrder(ctx, "u1", model.PlanTrial)

		dec, err := f.orderUC.Decide(ctx, o.ID, "admin-1", usecase.ActionApprove, "")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if dec.Order.Status != model.OrderStatusVerified {
			t.Errorf("expected verified, got %s", dec.Order.Status)
		}
	})

	t.Run("should require notes to reject", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		o := f.submitted(t, "u1", model.PlanMonthly, "123456789012")

		if _, err := f.orderUC.Decide(ctx, o.ID, "admin-1", usecase.ActionReject, "  "); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		dec, err := f.orderUC.Decide(ctx, o.ID, "admin-1", usecase.ActionReject, "no such credit")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if dec.Order.Status != model.OrderStatusFailed || dec.Order.Notes != "no such credit" {
			t.Errorf("expected failed with notes, got %s %q", dec.Order.Status, dec.Order.Notes)
		}
		if f.users.get("u1").IsPremium {
			t.Error("expected no premium after rejection")
		}
	})

	t.Run("should reject unknown actions", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.orderUC.Decide(ctx, "x", "admin-1", usecase.DecisionAction("maybe"), ""); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("should report an already decided order", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		o := f.submitted(t, "u1", model.PlanMonthly, "123456789012")
		if _, err := f.orderUC.Decide(ctx, o.ID, "admin-1", usecase.ActionApprove, ""); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}

		_, err := f.orderUC.Decide(ctx, o.ID, "admin-2", usecase.ActionReject, "late")
		var ad *domain.AlreadyDecidedError
		if !errors.As(err, &ad) || ad.Status != string(model.OrderStatusVerified) {
			t.Fatalf("expected AlreadyDecidedError(verified), got %v", err)
		}
	})

	t.Run("should let exactly one of two racing approvals win", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		o := f.submitted(t, "u1", model.PlanMonthly, "123456789012")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.orderUC.Decide(ctx, o.ID, fmt.Sprintf("admin-%d", i), usecase.ActionApprove, "")
			}(i)
		}
		wg.Wait()

		ok, conflicts := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if ok != 1 || conflicts != 1 {
			t.Fatalf("expected one success and one conflict, got %d/%d", ok, conflicts)
		}
		want := f.clock.Now().Add(30 * 24 * time.Hour)
		if got := f.users.get("u1").PremiumExpiresAt; got == nil || !got.Equal(want) {
			t.Errorf("expected premium granted once until %v, got %v", want, got)
		}
	})

	t.Run("should not verify when the conditional write loses", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		o := f.submitted(t, "u1", model.PlanMonthly, "123456789012")
		f.orders.TransitionFunc = func(ctx context.Context, tx repository.Tx, id string, from []model.OrderStatus, upd repository.OrderUpdate) (bool, error) {
			return false, nil
		}

		_, err := f.orderUC.Decide(ctx, o.ID, "admin-1", usecase.ActionApprove, "")
		var ad *domain.AlreadyDecidedError
		if !errors.As(err, &ad) {
			t.Fatalf("expected AlreadyDecidedError, got %v", err)
		}
		if f.users.get("u1").IsPremium {
			t.Error("expected premium untouched")
		}
	})

	t.Run("should roll back the verification when premium activation fails", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		o := f.submitted(t, "u1", model.PlanMonthly, "123456789012")
		f.users.SavePremiumFunc = func(ctx context.Context, tx repository.Tx, u *model.User) error {
			return errors.New("disk full")
		}

		if _, err := f.orderUC.Decide(ctx, o.ID, "admin-1", usecase.ActionApprove, ""); err == nil {
			t.Fatal("expected an error, got nil")
		}
		if got := f.orders.get(o.ID).Status; got != model.OrderStatusSubmitted {
			t.Errorf("expected order to remain submitted, got %s", got)
		}
	})
}

func TestOrderUseCase_SweepExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("should expire pending orders at the window and claimed ones after the grace", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t)
		f.addUser("u1")
		f.addUser("u2")
		pending, _ := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly)
		claimed := f.submitted(t, "u2", model.PlanMonthly, "123456789012")

		// --- Act & Assert ---
		f.clock.Advance(31 * time.Minute)
		n, err := f.orderUC.SweepExpired(ctx)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if n != 1 || f.orders.get(pending.ID).Status != model.OrderStatusExpired {
			t.Errorf("expected only the pending order expired, n=%d", n)
		}
		if f.orders.get(claimed.ID).Status != model.OrderStatusSubmitted {
			t.Error("expected the claimed order to wait for review")
		}

		f.clock.Advance(72 * time.Hour)
		n, _ = f.orderUC.SweepExpired(ctx)
		if n != 1 || f.orders.get(claimed.ID).Status != model.OrderStatusExpired {
			t.Errorf("expected the claimed order expired after the grace, n=%d", n)
		}

		n, _ = f.orderUC.SweepExpired(ctx)
		if n != 0 {
			t.Errorf("expected an idempotent sweep, got %d", n)
		}
	})
}

func TestOrderUseCase_Reads(t *testing.T) {
	ctx := context.Background()

	t.Run("should hide other users' orders as not found", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		o, _ := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly)

		if _, err := f.orderUC.GetOrder(ctx, o.ID, usecase.Caller{UserID: "u2"}); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		v, err := f.orderUC.GetOrder(ctx, o.ID, usecase.Caller{UserID: "admin-1", IsAdmin: true})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if v.PaymentIdentifier == "" {
			t.Error("expected a pending order to expose its payment identifier")
		}
	})

	t.Run("should drop payment details once payment is no longer solicited", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		o := f.submitted(t, "u1", model.PlanMonthly, "123456789012")

		v, err := f.orderUC.GetOrder(ctx, o.ID, usecase.Caller{UserID: "u1"})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if v.PaymentIdentifier != "" || v.RenderedCode != nil {
			t.Error("expected payment identifier and code to be withheld")
		}
	})

	t.Run("should expire lazily on read", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		o, _ := f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly)
		f.clock.Advance(31 * time.Minute)

		v, err := f.orderUC.GetOrder(ctx, o.ID, usecase.Caller{UserID: "u1"})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if v.Status != model.OrderStatusExpired || !v.IsExpired {
			t.Errorf("expected expired view, got %s expired=%v", v.Status, v.IsExpired)
		}
		if _, err := f.orderUC.ActiveOrderForUser(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected no active order, got %v", err)
		}
	})

	t.Run("should list by status and purge old terminal orders", func(t *testing.T) {
		f := newFixture(t)
		f.addUser("u1")
		f.addUser("u2")
		f.orderUC.CreateOrder(ctx, "u1", model.PlanMonthly)
		f.submitted(t, "u2", model.PlanYearly, "123456789012")

		subs, err := f.orderUC.ListOrders(ctx, model.OrderStatusSubmitted, 0, 0)
		if err != nil || len(subs) != 1 {
			t.Fatalf("expected one submitted order, got %d (%v)", len(subs), err)
		}
		if _, err := f.orderUC.ListOrders(ctx, model.OrderStatus("bogus"), 0, 10); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}

		f.clock.Advance(31 * time.Minute)
		f.orderUC.SweepExpired(ctx)
		f.clock.Advance(91 * 24 * time.Hour)
		n, err := f.orderUC.PurgeTerminal(ctx, 90*24*time.Hour)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if n != 1 {
			t.Errorf("expected the expired order purged, got %d", n)
		}
	})
}

func containsKind(kinds []model.NotificationKind, k model.NotificationKind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}
