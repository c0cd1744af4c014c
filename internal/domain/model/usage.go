package model

import (
	"crypto/rand"
	"strings"
	"time"

	"listing-assistant/internal/domain"

	"github.com/oklog/ulid/v2"
)

// UsageAction tags what a debit paid for.
type UsageAction string

const (
	ActionGenerateDescription UsageAction = "GENERATE_DESCRIPTION"
	ActionRemoveBackground    UsageAction = "REMOVE_BACKGROUND"
)

func ParseUsageAction(s string) (UsageAction, error) {
	a := UsageAction(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case ActionGenerateDescription, ActionRemoveBackground:
		return a, nil
	}
	return "", domain.ErrInvalidAction
}

// UsageRecord is an immutable audit entry for one debit against one lot.
type UsageRecord struct {
	ID          string
	UserID      string
	Action      UsageAction
	CreditsUsed int64
	CreditID    string
	IsTrial     bool
	Metadata    map[string]any
	CreatedAt   time.Time
}

// NewUsageRecord records a draw of n credits from lot.
func NewUsageRecord(userID string, action UsageAction, lot *CreditLot, n int64, meta map[string]any, at time.Time) (*UsageRecord, error) {
	if userID == "" || lot == nil || n <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &UsageRecord{
		ID:          ulid.MustNew(ulid.Timestamp(at), rand.Reader).String(),
		UserID:      userID,
		Action:      action,
		CreditsUsed: n,
		CreditID:    lot.ID,
		IsTrial:     lot.Type == CreditTypeTrial,
		Metadata:    meta,
		CreatedAt:   at,
	}, nil
}

// UsageAggregate is the all-time summary of a user's usage records.
type UsageAggregate struct {
	TotalCreditsUsed int64
	TotalRecords     int64
}
