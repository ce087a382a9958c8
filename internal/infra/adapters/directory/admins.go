package directory

import (
	"context"

	"typing-premium-payments/internal/domain/ports/adapter"
	"typing-premium-payments/internal/domain/ports/repository"
)

var _ adapter.AdminDirectory = (*UserAdminDirectory)(nil)

// UserAdminDirectory treats every user flagged is_admin as a notification recipient.
type UserAdminDirectory struct {
	users repository.UserRepository
}

func NewUserAdminDirectory(users repository.UserRepository) *UserAdminDirectory {
	return &UserAdminDirectory{users: users}
}

func (d *UserAdminDirectory) ListAdminRecipients(ctx context.Context) ([]string, error) {
	return d.users.ListAdminIDs(ctx, repository.NoTX)
}
