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
	_ CreditUseCase         = (*creditUC)(nil)
	_ ucport.CreditConsumer = (*creditUC)(nil)
)

// CreditUseCase debits and grants credits on the ledger.
type CreditUseCase interface {
	// Consume debits amount credits for action, drawing lots in selection
	// order. Running out of credits is reported with Success=false, not an error.
	Consume(ctx context.Context, userID string, action model.UsageAction, amount int64, meta map[string]any) (model.ConsumeResult, error)

	// Grant adds a new lot in its own transaction.
	Grant(ctx context.Context, userID string, t model.CreditType, amount int64, opts model.GrantOptions) (*model.CreditLot, error)

	// GrantTx adds a new lot inside the caller's transaction.
	GrantTx(ctx context.Context, tx repository.Tx, userID string, t model.CreditType, amount int64, opts model.GrantOptions) (*model.CreditLot, error)
}

type creditUC struct {
	credits repository.CreditRepository
	usage   repository.UsageRepository
	locker  repository.UserLocker
	tm      repository.TransactionManager
	log     *zerolog.Logger
	now     func() time.Time
}

func NewCreditUseCase(
	credits repository.CreditRepository,
	usage repository.UsageRepository,
	locker repository.UserLocker,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *creditUC {
	l := logger.With().Str("component", "credit_uc").Logger()
	return &creditUC{
		credits: credits,
		usage:   usage,
		locker:  locker,
		tm:      tm,
		log:     &l,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (c *creditUC) WithClock(now func() time.Time) *creditUC {
	c.now = now
	return c
}

func (c *creditUC) Consume(ctx context.Context, userID string, action model.UsageAction, amount int64, meta map[string]any) (model.ConsumeResult, error) {
	defer logging.TraceDuration(c.log, "CreditUC.Consume")()

	if strings.TrimSpace(userID) == "" || amount <= 0 {
		return model.ConsumeResult{}, domain.ErrInvalidArgument
	}
	if _, err := model.ParseUsageAction(string(action)); err != nil {
		return model.ConsumeResult{}, err
	}

	now := c.now()
	var res model.ConsumeResult
	err := c.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		if err := c.locker.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		lots, err := c.credits.ListUsableByUser(ctx, tx, userID, now, true)
		if err != nil {
			return err
		}

		_, available := model.LotTotals(lots)
		if available < amount {
			res = model.ConsumeResult{
				Success:          false,
				RemainingCredits: available,
				Message:          fmt.Sprintf("insufficient credits: %d required, %d available", amount, available),
				Shortfall:        amount - available,
			}
			return nil
		}

		need := amount
		drawn := make(map[model.CreditType]int64)
		for _, lot := range lots {
			if need == 0 {
				break
			}
			take := lot.Remaining()
			if take == 0 {
				continue
			}
			if take > need {
				take = need
			}
			if err := c.credits.IncrementUsed(ctx, tx, lot.ID, take, now); err != nil {
				return err
			}
			rec, err := model.NewUsageRecord(userID, action, lot, take, meta, now)
			if err != nil {
				return err
			}
			if err := c.usage.Insert(ctx, tx, rec); err != nil {
				return err
			}
			drawn[lot.Type] += take
			need -= take
		}
		if need != 0 {
			// lots changed under the lock; abort rather than commit a partial debit
			return fmt.Errorf("%w: ledger drained %d short", domain.ErrOperationFailed, need)
		}

		for t, n := range drawn {
			metrics.AddCreditsDrawn(string(t), n)
		}
		res = model.ConsumeResult{
			Success:          true,
			RemainingCredits: available - amount,
		}
		return nil
	})
	if err != nil {
		metrics.IncConsume(string(action), "error")
		logging.With(ctx, c.log).Error().Err(err).
			Str("action", string(action)).Int64("amount", amount).
			Msg("consume failed")
		return model.ConsumeResult{}, err
	}

	if res.Success {
		metrics.IncConsume(string(action), "success")
	} else {
		metrics.IncConsume(string(action), "insufficient")
		logging.With(ctx, c.log).Debug().
			Str("action", string(action)).Int64("shortfall", res.Shortfall).
			Msg("insufficient credits")
	}
	return res, nil
}

func (c *creditUC) Grant(ctx context.Context, userID string, t model.CreditType, amount int64, opts model.GrantOptions) (*model.CreditLot, error) {
	defer logging.TraceDuration(c.log, "CreditUC.Grant")()

	var lot *model.CreditLot
	err := c.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		lot, err = c.GrantTx(ctx, tx, userID, t, amount, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lot, nil
}

func (c *creditUC) GrantTx(ctx context.Context, tx repository.Tx, userID string, t model.CreditType, amount int64, opts model.GrantOptions) (*model.CreditLot, error) {
	lot, err := model.NewCreditLot(userID, t, amount, opts)
	if err != nil {
		return nil, err
	}
	now := c.now()
	lot.CreatedAt, lot.UpdatedAt = now, now
	if err := c.credits.Insert(ctx, tx, lot); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("grant %s credits: %w", t, err)
	}
	metrics.AddCreditsGranted(string(t), amount)
	logging.With(ctx, c.log).Info().
		Str("lot_id", lot.ID).Str("type", string(t)).Int64("amount", amount).
		Msg("credits granted")
	return lot, nil
}
