//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/model"
	"listing-assistant/internal/domain/ports/adapter"
	"listing-assistant/internal/usecase"
)

// raceConsumer loses every debit, as if another request spent the last credit first.
type raceConsumer struct{}

func (raceConsumer) Consume(ctx context.Context, userID string, action model.UsageAction, amount int64, meta map[string]any) (model.ConsumeResult, error) {
	return model.ConsumeResult{Success: false, Shortfall: amount}, nil
}

func TestListingUseCase(t *testing.T) {
	ctx := context.Background()
	exp := baseTime.Add(24 * time.Hour)
	brief := usecase.DescriptionInput{ProductName: "Ceramic Mug", KeyFeatures: "12oz, dishwasher safe", TargetAudience: "coffee lovers"}

	build := func(f *fixture, text *MockTextGenerator, img *MockBackgroundRemover) usecase.ListingUseCase {
		resolver := usecase.NewEntitlementUseCase(f.subs, f.credits, newTestLogger()).WithClock(fixedClock(baseTime))
		credits := usecase.NewCreditUseCase(f.credits, f.usage, f.locker, f.tm, newTestLogger()).WithClock(fixedClock(baseTime))
		return usecase.NewListingUseCase(resolver, credits, text, img, newTestLogger())
	}

	t.Run("should debit one trial credit after a successful generation", func(t *testing.T) {
		f := newFixture()
		f.lot("trial", "u1", model.CreditTypeTrial, 5, 0, &exp)
		text := &MockTextGenerator{GenerateFunc: func(ctx context.Context, p adapter.Prompt) (adapter.Generation, error) {
			if !strings.Contains(p.User, "Ceramic Mug") || !strings.Contains(p.User, "Target Audience: coffee lovers") {
				t.Errorf("prompt missing product details: %q", p.User)
			}
			if strings.Contains(p.User, "Category:") {
				t.Error("empty category should be omitted")
			}
			return adapter.Generation{Text: "  Sip in style.  ", Provider: "mock"}, nil
		}}
		uc := build(f, text, &MockBackgroundRemover{})

		desc, err := uc.GenerateDescription(ctx, "u1", brief)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if desc != "Sip in style." {
			t.Errorf("description = %q", desc)
		}
		if f.store.lot("trial").Used != 1 {
			t.Error("expected one credit to be consumed")
		}
		recs := f.store.records()
		if len(recs) != 1 || recs[0].Action != model.ActionGenerateDescription {
			t.Errorf("unexpected usage records: %+v", recs)
		}
	})

	t.Run("should require an upgrade without calling the provider", func(t *testing.T) {
		f := newFixture()
		text := &MockTextGenerator{}
		img := &MockBackgroundRemover{}
		uc := build(f, text, img)

		if _, err := uc.GenerateDescription(ctx, "u1", brief); !errors.Is(err, domain.ErrUpgradeRequired) {
			t.Errorf("expected ErrUpgradeRequired, got %v", err)
		}
		if _, err := uc.RemoveBackground(ctx, "u1", adapter.Image{Data: []byte{1}}); !errors.Is(err, domain.ErrUpgradeRequired) {
			t.Errorf("expected ErrUpgradeRequired, got %v", err)
		}
		if text.calls.Load() != 0 || img.calls.Load() != 0 {
			t.Error("providers must not be called without access")
		}
	})

	t.Run("should not charge for a failed provider call", func(t *testing.T) {
		f := newFixture()
		f.lot("trial", "u1", model.CreditTypeTrial, 5, 0, &exp)
		img := &MockBackgroundRemover{RemoveFunc: func(ctx context.Context, in adapter.Image) (adapter.Image, error) {
			return adapter.Image{}, &domain.ProviderError{Provider: "remove.bg", Status: 402, Message: "Insufficient credits"}
		}}
		uc := build(f, &MockTextGenerator{}, img)

		_, err := uc.RemoveBackground(ctx, "u1", adapter.Image{Filename: "a.jpg", Data: []byte{1, 2}})
		if !errors.Is(err, domain.ErrProviderFailed) {
			t.Fatalf("expected provider error, got %v", err)
		}
		if errors.Is(err, domain.ErrUpgradeRequired) {
			t.Error("provider failure must be distinct from credit errors")
		}
		if f.store.lot("trial").Used != 0 {
			t.Error("credit must not be consumed")
		}
	})

	t.Run("should treat an empty generation as a provider failure", func(t *testing.T) {
		f := newFixture()
		f.lot("trial", "u1", model.CreditTypeTrial, 5, 0, &exp)
		text := &MockTextGenerator{GenerateFunc: func(ctx context.Context, p adapter.Prompt) (adapter.Generation, error) {
			return adapter.Generation{Text: "   "}, nil
		}}
		uc := build(f, text, &MockBackgroundRemover{})

		if _, err := uc.GenerateDescription(ctx, "u1", brief); !errors.Is(err, domain.ErrProviderFailed) {
			t.Fatalf("expected provider error, got %v", err)
		}
		if f.store.lot("trial").Used != 0 {
			t.Error("credit must not be consumed")
		}
	})

	t.Run("should withhold the result when the debit loses a race", func(t *testing.T) {
		f := newFixture()
		f.lot("trial", "u1", model.CreditTypeTrial, 1, 0, &exp)
		resolver := usecase.NewEntitlementUseCase(f.subs, f.credits, newTestLogger()).WithClock(fixedClock(baseTime))
		uc := usecase.NewListingUseCase(resolver, raceConsumer{}, &MockTextGenerator{}, &MockBackgroundRemover{}, newTestLogger())

		desc, err := uc.GenerateDescription(ctx, "u1", brief)
		if !errors.Is(err, domain.ErrUpgradeRequired) {
			t.Fatalf("expected ErrUpgradeRequired, got %v", err)
		}
		if desc != "" {
			t.Error("result must be withheld")
		}
	})

	t.Run("should let subscribers through with an empty ledger", func(t *testing.T) {
		f := newFixture()
		f.activeSub("sub-1", "u1", f.proPlan(), exp)
		uc := build(f, &MockTextGenerator{}, &MockBackgroundRemover{})

		out, err := uc.RemoveBackground(ctx, "u1", adapter.Image{Data: []byte{1}})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.ContentType != "image/png" {
			t.Errorf("content type = %s", out.ContentType)
		}
		if len(f.store.records()) != 0 {
			t.Error("nothing to record without credits")
		}
	})

	t.Run("should record subscriber usage against plan credits", func(t *testing.T) {
		f := newFixture()
		f.activeSub("sub-1", "u1", f.proPlan(), exp)
		f.lot("grant", "u1", model.CreditTypeSubscriptionGrant, 100, 0, &exp)
		uc := build(f, &MockTextGenerator{}, &MockBackgroundRemover{})

		if _, err := uc.GenerateDescription(ctx, "u1", brief); err != nil {
			t.Fatal(err)
		}
		if f.store.lot("grant").Used != 1 {
			t.Error("expected subscriber usage to be recorded")
		}
	})

	t.Run("should validate the brief before anything else", func(t *testing.T) {
		f := newFixture()
		text := &MockTextGenerator{}
		uc := build(f, text, &MockBackgroundRemover{})

		_, err := uc.GenerateDescription(ctx, "u1", usecase.DescriptionInput{ProductName: "Mug"})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
		if _, err := uc.RemoveBackground(ctx, "u1", adapter.Image{}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
		if text.calls.Load() != 0 {
			t.Error("provider must not be called for invalid input")
		}
	})
}
