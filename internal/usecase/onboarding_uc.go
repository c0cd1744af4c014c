package usecase

import (
	"context"
	"strings"
	"time"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/model"
	"listing-assistant/internal/domain/ports/repository"
	"listing-assistant/internal/infra/logging"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

var _ OnboardingUseCase = (*onboardingUC)(nil)

// OnboardingUseCase hands out the one-time free trial.
type OnboardingUseCase interface {
	// EnsureTrial grants the trial lot unless the user ever had one.
	// It reports whether a lot was created by this call.
	EnsureTrial(ctx context.Context, userID string) (bool, error)
}

type TrialPolicy struct {
	Credits int64
	Days    int
}

type onboardingUC struct {
	credits repository.CreditRepository
	granter lotGranter
	locker  repository.UserLocker
	tm      repository.TransactionManager
	policy  TrialPolicy
	log     *zerolog.Logger
	now     func() time.Time
}

func NewOnboardingUseCase(
	credits repository.CreditRepository,
	granter lotGranter,
	locker repository.UserLocker,
	tm repository.TransactionManager,
	policy TrialPolicy,
	logger *zerolog.Logger,
) *onboardingUC {
	l := logger.With().Str("component", "onboarding_uc").Logger()
	return &onboardingUC{
		credits: credits,
		granter: granter,
		locker:  locker,
		tm:      tm,
		policy:  policy,
		log:     &l,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (o *onboardingUC) WithClock(now func() time.Time) *onboardingUC {
	o.now = now
	return o
}

func (o *onboardingUC) EnsureTrial(ctx context.Context, userID string) (bool, error) {
	defer logging.TraceDuration(o.log, "OnboardingUC.EnsureTrial")()

	if strings.TrimSpace(userID) == "" {
		return false, domain.ErrInvalidArgument
	}
	if o.policy.Credits <= 0 {
		return false, nil
	}

	granted := false
	err := o.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		if err := o.locker.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		n, err := o.credits.CountByUserAndType(ctx, tx, userID, model.CreditTypeTrial)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		exp := o.now().AddDate(0, 0, o.policy.Days)
		desc := "Free trial"
		if _, err := o.granter.GrantTx(ctx, tx, userID, model.CreditTypeTrial, o.policy.Credits, model.GrantOptions{
			Description: &desc,
			ExpiresAt:   &exp,
		}); err != nil {
			return err
		}
		granted = true
		return nil
	})
	if err != nil {
		logging.With(ctx, o.log).Error().Err(err).Msg("ensure trial failed")
		return false, err
	}
	return granted, nil
}
