package repository

import (
	"context"
	"time"

	"typing-premium-payments/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// SavePremium persists the premium flag, expiry and quotas of u.
	SavePremium(ctx context.Context, tx Tx, u *model.User) error
	ListAdminIDs(ctx context.Context, tx Tx) ([]string, error)
	// DemoteExpiredPremiums clears premium for every grant that lapsed before
	// now and resets quotas to base. It returns the number of users demoted.
	DemoteExpiredPremiums(ctx context.Context, tx Tx, now time.Time, base model.Quotas) (int, error)
}
