package model

import "time"

// TrialPlanName is reported as the plan when access comes from trial credits.
const TrialPlanName = "Trial"

// Entitlement is the resolved access decision for a user at a point in time.
// It is a snapshot, not a reservation.
type Entitlement struct {
	HasAccess        bool       `json:"hasAccess"`
	RemainingCredits int64      `json:"remainingCredits"`
	TotalCredits     int64      `json:"totalCredits"`
	PlanName         *string    `json:"planName,omitempty"`
	IsTrial          bool       `json:"isTrial"`
	IsValid          bool       `json:"isValid"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
}

// NoAccess is the fail-closed result.
func NoAccess() Entitlement {
	return Entitlement{}
}

// Unlimited reports whether access comes from a subscription rather than metered credits.
func (e Entitlement) Unlimited() bool {
	return e.HasAccess && !e.IsTrial
}

// ConsumeResult is the outcome of a debit. Insufficient credits is a normal
// negative result, not an error.
type ConsumeResult struct {
	Success          bool   `json:"success"`
	RemainingCredits int64  `json:"remainingCredits"`
	Message          string `json:"message,omitempty"`
	Shortfall        int64  `json:"shortfall,omitempty"`
}

// CreditSummary is the balance view used by usage reporting.
type CreditSummary struct {
	Total     int64 `json:"total"`
	Used      int64 `json:"used"`
	Remaining int64 `json:"remaining"`
}

// SubscriptionView is the display form of an active subscription.
type SubscriptionView struct {
	PlanName         string    `json:"planName"`
	Status           string    `json:"status"`
	CreditsIncluded  int64     `json:"creditsIncluded"`
	CurrentPeriodEnd time.Time `json:"currentPeriodEnd"`
}

// UsageStats is the display summary combining ledger and usage history.
type UsageStats struct {
	TotalCreditsUsed int64             `json:"totalCreditsUsed"`
	TotalGenerations int64             `json:"totalGenerations"`
	Subscription     *SubscriptionView `json:"subscription"`
	Credits          CreditSummary     `json:"credits"`
}
