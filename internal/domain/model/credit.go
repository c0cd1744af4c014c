package model

import (
	"sort"
	"strings"
	"time"

	"listing-assistant/internal/domain"

	"github.com/google/uuid"
)

// CreditType is the provenance tag of a credit lot.
type CreditType string

// Declaration order is the selection order used when two lots expire at the
// same time. It must match the order of the credit_type enum in the schema.
const (
	CreditTypeTrial             CreditType = "TRIAL"
	CreditTypeSubscriptionGrant CreditType = "SUBSCRIPTION_GRANT"
	CreditTypePurchase          CreditType = "PURCHASE"
	CreditTypeBonus             CreditType = "BONUS"
	CreditTypeUsage             CreditType = "USAGE"
	CreditTypeRefund            CreditType = "REFUND"
)

var creditTypeRank = map[CreditType]int{
	CreditTypeTrial:             0,
	CreditTypeSubscriptionGrant: 1,
	CreditTypePurchase:          2,
	CreditTypeBonus:             3,
	CreditTypeUsage:             4,
	CreditTypeRefund:            5,
}

// CreditTypes lists every known provenance tag in selection order.
func CreditTypes() []CreditType {
	return []CreditType{
		CreditTypeTrial,
		CreditTypeSubscriptionGrant,
		CreditTypePurchase,
		CreditTypeBonus,
		CreditTypeUsage,
		CreditTypeRefund,
	}
}

// ParseCreditType accepts a tag case-insensitively and rejects anything outside the closed set.
func ParseCreditType(s string) (CreditType, error) {
	t := CreditType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := creditTypeRank[t]; !ok {
		return "", domain.ErrInvalidCreditType
	}
	return t, nil
}

func (t CreditType) Valid() bool {
	_, ok := creditTypeRank[t]
	return ok
}

// Rank is the ascending sort key for the type.
func (t CreditType) Rank() int {
	if r, ok := creditTypeRank[t]; ok {
		return r
	}
	return len(creditTypeRank)
}

// CreditLot is one discrete grant of usable capacity.
type CreditLot struct {
	ID             string
	UserID         string
	Amount         int64
	Used           int64
	Type           CreditType
	Description    *string
	ExpiresAt      *time.Time // nil = never expires
	IsActive       bool
	SubscriptionID *string
	ProcessID      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GrantOptions are the optional attributes of a new lot.
type GrantOptions struct {
	Description    *string
	ExpiresAt      *time.Time
	SubscriptionID *string
	ProcessID      *string
}

// NewCreditLot validates and constructs a fresh lot with used=0.
func NewCreditLot(userID string, t CreditType, amount int64, opts GrantOptions) (*CreditLot, error) {
	if strings.TrimSpace(userID) == "" || amount < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if !t.Valid() {
		return nil, domain.ErrInvalidCreditType
	}
	now := time.Now().UTC()
	return &CreditLot{
		ID:             uuid.NewString(),
		UserID:         userID,
		Amount:         amount,
		Used:           0,
		Type:           t,
		Description:    opts.Description,
		ExpiresAt:      opts.ExpiresAt,
		IsActive:       true,
		SubscriptionID: opts.SubscriptionID,
		ProcessID:      opts.ProcessID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Remaining is max(amount-used, 0).
func (l *CreditLot) Remaining() int64 {
	if l == nil || l.Used >= l.Amount {
		return 0
	}
	return l.Amount - l.Used
}

// IsUsable reports whether the lot counts towards a balance at now.
func (l *CreditLot) IsUsable(now time.Time) bool {
	if l == nil || !l.IsActive {
		return false
	}
	return l.ExpiresAt == nil || !l.ExpiresAt.Before(now)
}

// SortLots orders lots the way the store does: soonest expiry first with
// never-expiring lots last, then type rank, then creation time, then id.
func SortLots(lots []*CreditLot) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		switch {
		case a.ExpiresAt != nil && b.ExpiresAt == nil:
			return true
		case a.ExpiresAt == nil && b.ExpiresAt != nil:
			return false
		case a.ExpiresAt != nil && b.ExpiresAt != nil && !a.ExpiresAt.Equal(*b.ExpiresAt):
			return a.ExpiresAt.Before(*b.ExpiresAt)
		}
		if a.Type.Rank() != b.Type.Rank() {
			return a.Type.Rank() < b.Type.Rank()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// LotTotals sums amount and remaining capacity over lots.
func LotTotals(lots []*CreditLot) (total, remaining int64) {
	for _, l := range lots {
		total += l.Amount
		remaining += l.Remaining()
	}
	return total, remaining
}
