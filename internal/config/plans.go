package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"typing-premium-payments/internal/domain/model"
)

// PlanCatalog turns the plans section into the domain price list.
func (c *Config) PlanCatalog() (*model.PlanCatalog, error) {
	plans := make([]model.Plan, 0, len(c.Plans))
	for name, pc := range c.Plans {
		pt, err := model.ParsePlanType(name)
		if err != nil {
			return nil, fmt.Errorf("plans.%s: %w", name, err)
		}
		base, err := decimal.NewFromString(pc.BaseAmount)
		if err != nil {
			return nil, fmt.Errorf("plans.%s.base_amount: %w", name, err)
		}
		plans = append(plans, model.Plan{
			Type:         pt,
			BaseAmount:   base,
			DurationDays: pc.DurationDays,
			Quotas:       model.Quotas{AIFeedback: pc.AIFeedback, Paragraphs: pc.Paragraphs},
		})
	}
	return model.NewPlanCatalog(plans...)
}

// BaseQuotas is the free-tier allowance restored when premium lapses.
func (c *Config) BaseQuotas() model.Quotas {
	return model.Quotas{AIFeedback: c.Quotas.AIFeedback, Paragraphs: c.Quotas.Paragraphs}
}

// FuzzyTolerance parses reconciliation.fuzzy_tolerance.
func (c *Config) FuzzyTolerance() (decimal.Decimal, error) {
	return decimal.NewFromString(c.Reconciliation.FuzzyTolerance)
}
