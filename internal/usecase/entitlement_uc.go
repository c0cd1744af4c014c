package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/model"
	"listing-assistant/internal/domain/ports/repository"
	ucport "listing-assistant/internal/domain/ports/usecase"
	"listing-assistant/internal/infra/logging"
	"listing-assistant/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ ucport.EntitlementResolver = (*entitlementUC)(nil)

type entitlementUC struct {
	subs    repository.SubscriptionRepository
	credits repository.CreditRepository
	log     *zerolog.Logger
	now     func() time.Time
}

func NewEntitlementUseCase(subs repository.SubscriptionRepository, credits repository.CreditRepository, logger *zerolog.Logger) *entitlementUC {
	l := logger.With().Str("component", "entitlement_uc").Logger()
	return &entitlementUC{
		subs:    subs,
		credits: credits,
		log:     &l,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (e *entitlementUC) WithClock(now func() time.Time) *entitlementUC {
	e.now = now
	return e
}

// Resolve decides access from the subscription registry and the ledger.
// It never returns an error: any store failure resolves to no access.
func (e *entitlementUC) Resolve(ctx context.Context, userID string) model.Entitlement {
	defer logging.TraceDuration(e.log, "EntitlementUC.Resolve")()

	if strings.TrimSpace(userID) == "" {
		metrics.IncEntitlementDecision("none")
		return model.NoAccess()
	}

	ent, err := e.resolve(ctx, userID, e.now())
	if err != nil {
		logging.With(ctx, e.log).Error().Err(err).Msg("entitlement resolution failed, denying access")
		metrics.IncEntitlementDecision("error")
		return model.NoAccess()
	}
	switch {
	case !ent.HasAccess:
		metrics.IncEntitlementDecision("none")
	case ent.IsTrial:
		metrics.IncEntitlementDecision("trial")
	default:
		metrics.IncEntitlementDecision("subscription")
	}
	return ent
}

func (e *entitlementUC) resolve(ctx context.Context, userID string, now time.Time) (model.Entitlement, error) {
	lots, err := e.credits.ListUsableByUser(ctx, repository.NoTX, userID, now, false)
	if err != nil {
		return model.Entitlement{}, err
	}
	total, remaining := model.LotTotals(lots)

	sub, err := e.subs.FindActiveByUser(ctx, repository.NoTX, userID, now)
	switch {
	case err == nil && sub.IsActiveAt(now):
		end := sub.CurrentPeriodEnd
		ent := model.Entitlement{
			HasAccess:        true,
			RemainingCredits: remaining,
			TotalCredits:     total,
			IsTrial:          false,
			IsValid:          true,
			ExpiresAt:        &end,
		}
		if name := sub.PlanName(); name != "" {
			ent.PlanName = &name
		}
		return ent, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return model.Entitlement{}, err
	}

	// lots arrive in selection order, so the first TRIAL lot with capacity is the one reported
	for _, lot := range lots {
		if lot.Type != model.CreditTypeTrial || lot.Remaining() <= 0 {
			continue
		}
		name := model.TrialPlanName
		return model.Entitlement{
			HasAccess:        true,
			RemainingCredits: remaining,
			TotalCredits:     lot.Amount,
			PlanName:         &name,
			IsTrial:          true,
			IsValid:          true,
			ExpiresAt:        lot.ExpiresAt,
		}, nil
	}

	return model.NoAccess(), nil
}
