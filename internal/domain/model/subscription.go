package model

import (
	"time"

	"listing-assistant/internal/domain"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
	SubscriptionStatusExpired  SubscriptionStatus = "EXPIRED"
)

// UserSubscription is a user's current billing period.
type UserSubscription struct {
	ID                 string
	UserID             string
	PlanID             string
	Status             SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// Plan is joined on read; nil when the plan row is missing.
	Plan *SubscriptionPlan
}

// NewUserSubscription starts an ACTIVE period for plan beginning at start.
func NewUserSubscription(userID string, plan *SubscriptionPlan, start time.Time) (*UserSubscription, error) {
	if userID == "" || plan.IsZero() || plan.PeriodDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &UserSubscription{
		ID:                 uuid.NewString(),
		UserID:             userID,
		PlanID:             plan.ID,
		Status:             SubscriptionStatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.Add(plan.Period()),
		CreatedAt:          now,
		UpdatedAt:          now,
		Plan:               plan,
	}, nil
}

// IsActiveAt reports whether the record confers access at now. A stale
// ACTIVE status past its period end does not.
func (s *UserSubscription) IsActiveAt(now time.Time) bool {
	if s == nil || s.Status != SubscriptionStatusActive {
		return false
	}
	return !s.CurrentPeriodEnd.Before(now)
}

// PlanName returns the joined plan's display name, or "" when unknown.
func (s *UserSubscription) PlanName() string {
	if s == nil || s.Plan == nil {
		return ""
	}
	return s.Plan.Name
}
