package model

import (
	"time"

	"listing-assistant/internal/domain"
)

// SubscriptionPlan is a purchasable plan. CreditsIncluded is informational:
// an active subscription grants unlimited access regardless of it.
type SubscriptionPlan struct {
	ID              string
	Name            string
	CreditsIncluded int64
	PeriodDays      int
	PriceCents      int64
	Active          bool
	CreatedAt       time.Time
}

func (p *SubscriptionPlan) IsZero() bool { return p == nil || p.ID == "" }

// Period returns the billing period length.
func (p *SubscriptionPlan) Period() time.Duration {
	return time.Duration(p.PeriodDays) * 24 * time.Hour
}

// NewSubscriptionPlan validates and constructs a plan.
func NewSubscriptionPlan(id, name string, periodDays int, creditsIncluded, priceCents int64) (*SubscriptionPlan, error) {
	if id == "" || name == "" || periodDays <= 0 || creditsIncluded < 0 || priceCents < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &SubscriptionPlan{
		ID:              id,
		Name:            name,
		CreditsIncluded: creditsIncluded,
		PeriodDays:      periodDays,
		PriceCents:      priceCents,
		Active:          true,
		CreatedAt:       time.Now().UTC(),
	}, nil
}
