package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/model"
	"listing-assistant/internal/domain/ports/repository"
	"listing-assistant/internal/infra/logging"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var _ UsageUseCase = (*usageUC)(nil)

// UsageUseCase reports derived usage figures. It never writes.
type UsageUseCase interface {
	GetUsageStats(ctx context.Context, userID string) (*model.UsageStats, error)
	GenerationsUsed(ctx context.Context, userID string) (int64, error)
}

type usageUC struct {
	credits repository.CreditRepository
	usage   repository.UsageRepository
	subs    repository.SubscriptionRepository
	log     *zerolog.Logger
	now     func() time.Time
}

func NewUsageUseCase(
	credits repository.CreditRepository,
	usage repository.UsageRepository,
	subs repository.SubscriptionRepository,
	logger *zerolog.Logger,
) *usageUC {
	l := logger.With().Str("component", "usage_uc").Logger()
	return &usageUC{
		credits: credits,
		usage:   usage,
		subs:    subs,
		log:     &l,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (u *usageUC) WithClock(now func() time.Time) *usageUC {
	u.now = now
	return u
}

func (u *usageUC) GetUsageStats(ctx context.Context, userID string) (*model.UsageStats, error) {
	defer logging.TraceDuration(u.log, "UsageUC.GetUsageStats")()

	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := u.now()

	var (
		lots []*model.CreditLot
		agg  model.UsageAggregate
		sub  *model.UserSubscription
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lots, err = u.credits.ListUsableByUser(gctx, repository.NoTX, userID, now, false)
		return err
	})
	g.Go(func() error {
		var err error
		agg, err = u.usage.Aggregate(gctx, repository.NoTX, userID)
		return err
	})
	g.Go(func() error {
		s, err := u.subs.FindActiveByUser(gctx, repository.NoTX, userID, now)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		sub = s
		return err
	})
	if err := g.Wait(); err != nil {
		logging.With(ctx, u.log).Error().Err(err).Msg("usage stats read failed")
		return nil, err
	}

	total, remaining := model.LotTotals(lots)
	stats := &model.UsageStats{
		TotalCreditsUsed: agg.TotalCreditsUsed,
		TotalGenerations: agg.TotalRecords,
		Credits: model.CreditSummary{
			Total:     total,
			Used:      total - remaining,
			Remaining: remaining,
		},
	}
	if sub != nil {
		view := &model.SubscriptionView{
			PlanName:         sub.PlanName(),
			Status:           string(sub.Status),
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
		}
		if sub.Plan != nil {
			view.CreditsIncluded = sub.Plan.CreditsIncluded
		}
		stats.Subscription = view
	}
	return stats, nil
}

// GenerationsUsed counts description generations ever recorded for the user.
func (u *usageUC) GenerationsUsed(ctx context.Context, userID string) (int64, error) {
	defer logging.TraceDuration(u.log, "UsageUC.GenerationsUsed")()
	if strings.TrimSpace(userID) == "" {
		return 0, domain.ErrInvalidArgument
	}
	return u.usage.CountByAction(ctx, repository.NoTX, userID, model.ActionGenerateDescription)
}
