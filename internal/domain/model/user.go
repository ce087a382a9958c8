package model

import (
	"time"
)

// User is the subscription-relevant slice of an account. Identity and
// credentials live with the auth service.
type User struct {
	ID               string
	Email            string
	IsAdmin          bool
	IsPremium        bool
	PremiumExpiresAt *time.Time
	Quotas           Quotas
	UpdatedAt        time.Time
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// PremiumActive is true only while the grant's expiry is still ahead of now.
func (u *User) PremiumActive(now time.Time) bool {
	return u.IsPremium && u.PremiumExpiresAt != nil && u.PremiumExpiresAt.After(now)
}

// ExtendPremium stacks plan on top of a live grant, or starts a fresh one.
// The resulting expiry is never earlier than the current one.
func (u *User) ExtendPremium(plan Plan, now time.Time) time.Time {
	start := now
	if u.PremiumActive(now) {
		start = *u.PremiumExpiresAt
	}
	expires := start.Add(plan.Duration())
	u.IsPremium = true
	u.PremiumExpiresAt = &expires
	u.Quotas = u.Quotas.Raise(plan.Quotas)
	u.UpdatedAt = now
	return expires
}
