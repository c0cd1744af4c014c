// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/model"
	"listing-assistant/internal/domain/ports/repository"
	ucport "listing-assistant/internal/domain/ports/usecase"
	"listing-assistant/internal/infra/logging"
	"listing-assistant/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time checks
var (
	_ SubscriptionUseCase        = (*subscriptionUC)(nil)
	_ ucport.SubscriptionExpirer = (*subscriptionUC)(nil)
)

// SubscriptionUseCase manages the subscription registry.
type SubscriptionUseCase interface {
	GetActive(ctx context.Context, userID string) (*model.UserSubscription, error)
	ListPlans(ctx context.Context) ([]*model.SubscriptionPlan, error)

	// Activate starts a period on planID, or extends the current one.
	// When the plan includes credits a SUBSCRIPTION_GRANT lot expiring at the
	// period end is granted in the same transaction.
	Activate(ctx context.Context, userID, planID string) (*model.UserSubscription, error)

	Cancel(ctx context.Context, userID string) error
	ExpireStale(ctx context.Context) (int, error)
}

// lotGranter is the part of the credit use case that subscriptions and onboarding need.
type lotGranter interface {
	GrantTx(ctx context.Context, tx repository.Tx, userID string, t model.CreditType, amount int64, opts model.GrantOptions) (*model.CreditLot, error)
}

type subscriptionUC struct {
	subs    repository.SubscriptionRepository
	plans   repository.PlanRepository
	granter lotGranter
	locker  repository.UserLocker
	tm      repository.TransactionManager
	log     *zerolog.Logger
	now     func() time.Time
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	granter lotGranter,
	locker repository.UserLocker,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *subscriptionUC {
	l := logger.With().Str("component", "subscription_uc").Logger()
	return &subscriptionUC{
		subs:    subs,
		plans:   plans,
		granter: granter,
		locker:  locker,
		tm:      tm,
		log:     &l,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (s *subscriptionUC) WithClock(now func() time.Time) *subscriptionUC {
	s.now = now
	return s
}

func (s *subscriptionUC) GetActive(ctx context.Context, userID string) (*model.UserSubscription, error) {
	defer logging.TraceDuration(s.log, "SubscriptionUC.GetActive")()
	sub, err := s.subs.FindActiveByUser(ctx, repository.NoTX, userID, s.now())
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoActiveSubscription
	}
	return sub, err
}

func (s *subscriptionUC) ListPlans(ctx context.Context) ([]*model.SubscriptionPlan, error) {
	defer logging.TraceDuration(s.log, "SubscriptionUC.ListPlans")()
	return s.plans.ListActive(ctx, repository.NoTX)
}

func (s *subscriptionUC) Activate(ctx context.Context, userID, planID string) (*model.UserSubscription, error) {
	defer logging.TraceDuration(s.log, "SubscriptionUC.Activate")()

	if strings.TrimSpace(userID) == "" || strings.TrimSpace(planID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	plan, err := s.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, fmt.Errorf("%w: plan %s is not available", domain.ErrInvalidArgument, planID)
	}

	now := s.now()
	var result *model.UserSubscription
	err = s.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		if err := s.locker.LockUser(ctx, tx, userID); err != nil {
			return err
		}

		cur, err := s.subs.FindActiveByUser(ctx, tx, userID, now)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if cur != nil {
			// renewal: the new period starts where the current one ends
			cur.PlanID = plan.ID
			cur.Plan = plan
			cur.CurrentPeriodStart = cur.CurrentPeriodEnd
			cur.CurrentPeriodEnd = cur.CurrentPeriodEnd.Add(plan.Period())
			cur.UpdatedAt = now
			if err := s.subs.Save(ctx, tx, cur); err != nil {
				return err
			}
			result = cur
		} else {
			// lapsed records may still carry ACTIVE; only one ACTIVE row per user is allowed
			if _, err := s.subs.ExpireStaleByUser(ctx, tx, userID, now); err != nil {
				return err
			}

			sub, err := model.NewUserSubscription(userID, plan, now)
			if err != nil {
				return err
			}
			sub.CreatedAt, sub.UpdatedAt = now, now
			if err := s.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			result = sub
		}

		if plan.CreditsIncluded > 0 {
			end := result.CurrentPeriodEnd
			id := result.ID
			desc := fmt.Sprintf("%s plan credits", plan.Name)
			_, err := s.granter.GrantTx(ctx, tx, userID, model.CreditTypeSubscriptionGrant, plan.CreditsIncluded, model.GrantOptions{
				Description:    &desc,
				ExpiresAt:      &end,
				SubscriptionID: &id,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Str("plan_id", planID).Msg("activate subscription failed")
		return nil, err
	}

	logging.With(ctx, s.log).Info().
		Str("subscription_id", result.ID).Str("plan_id", plan.ID).
		Time("period_end", result.CurrentPeriodEnd).
		Msg("subscription activated")
	return result, nil
}

func (s *subscriptionUC) Cancel(ctx context.Context, userID string) error {
	defer logging.TraceDuration(s.log, "SubscriptionUC.Cancel")()

	now := s.now()
	return s.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		if err := s.locker.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		cur, err := s.subs.FindActiveByUser(ctx, tx, userID, now)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNoActiveSubscription
		}
		if err != nil {
			return err
		}
		cur.Status = model.SubscriptionStatusCanceled
		cur.UpdatedAt = now
		if err := s.subs.Save(ctx, tx, cur); err != nil {
			return err
		}
		logging.With(ctx, s.log).Info().Str("subscription_id", cur.ID).Msg("subscription canceled")
		return nil
	})
}

// ExpireStale marks ACTIVE records whose period has ended as EXPIRED and
// refreshes the per-status gauge.
func (s *subscriptionUC) ExpireStale(ctx context.Context) (int, error) {
	defer logging.TraceDuration(s.log, "SubscriptionUC.ExpireStale")()

	n, err := s.subs.ExpireStale(ctx, repository.NoTX, s.now())
	if err != nil {
		return 0, err
	}
	if counts, err := s.subs.CountByStatus(ctx, repository.NoTX); err == nil {
		metrics.SetSubscriptionsTotal(counts)
	} else {
		s.log.Warn().Err(err).Msg("count subscriptions by status")
	}
	return n, nil
}
