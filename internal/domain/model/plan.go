package model

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"typing-premium-payments/internal/domain"
)

type PlanType string

const (
	PlanTrial    PlanType = "trial"
	PlanMonthly  PlanType = "monthly"
	PlanYearly   PlanType = "yearly"
	PlanLifetime PlanType = "lifetime"
)

func (p PlanType) Valid() bool {
	switch p {
	case PlanTrial, PlanMonthly, PlanYearly, PlanLifetime:
		return true
	}
	return false
}

func ParsePlanType(s string) (PlanType, error) {
	p := PlanType(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", &domain.ValidationError{Field: "planType", Reason: "must be one of trial, monthly, yearly, lifetime"}
	}
	return p, nil
}

// UnlimitedQuota marks a feature quota that is never consumed.
const UnlimitedQuota = -1

// Quotas are the gated feature allowances carried on a user.
type Quotas struct {
	AIFeedback int `yaml:"ai_feedback" json:"aiFeedback"`
	Paragraphs int `yaml:"paragraphs" json:"paragraphs"`
}

// Raise returns the per-field maximum of q and other, treating UnlimitedQuota
// as larger than any finite value.
func (q Quotas) Raise(other Quotas) Quotas {
	return Quotas{
		AIFeedback: maxQuota(q.AIFeedback, other.AIFeedback),
		Paragraphs: maxQuota(q.Paragraphs, other.Paragraphs),
	}
}

func maxQuota(a, b int) int {
	if a == UnlimitedQuota || b == UnlimitedQuota {
		return UnlimitedQuota
	}
	if a > b {
		return a
	}
	return b
}

// Plan is a purchasable premium tier with a fixed base price and grant duration.
type Plan struct {
	Type         PlanType
	BaseAmount   decimal.Decimal
	DurationDays int
	Quotas       Quotas
}

func (p Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// PlanCatalog is the immutable set of plans offered.
type PlanCatalog struct {
	plans map[PlanType]Plan
}

func NewPlanCatalog(plans ...Plan) (*PlanCatalog, error) {
	c := &PlanCatalog{plans: make(map[PlanType]Plan, len(plans))}
	for _, p := range plans {
		if !p.Type.Valid() || p.DurationDays <= 0 || !p.BaseAmount.IsPositive() {
			return nil, domain.ErrInvalidArgument
		}
		if _, dup := c.plans[p.Type]; dup {
			return nil, domain.ErrAlreadyExists
		}
		p.BaseAmount = p.BaseAmount.Round(2)
		c.plans[p.Type] = p
	}
	return c, nil
}

func (c *PlanCatalog) Get(t PlanType) (Plan, error) {
	p, ok := c.plans[t]
	if !ok {
		return Plan{}, &domain.ValidationError{Field: "planType", Reason: "plan is not offered"}
	}
	return p, nil
}

// Types lists offered plans in a stable order.
func (c *PlanCatalog) Types() []PlanType {
	out := make([]PlanType, 0, len(c.plans))
	for t := range c.plans {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
