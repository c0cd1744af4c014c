package usecase

import (
	"context"
	"fmt"
	"strings"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/model"
	"listing-assistant/internal/domain/ports/adapter"
	ucport "listing-assistant/internal/domain/ports/usecase"
	"listing-assistant/internal/infra/logging"

	"github.com/rs/zerolog"
)

var _ ListingUseCase = (*listingUC)(nil)

// ListingUseCase runs the paid listing tools behind the credit gate.
type ListingUseCase interface {
	GenerateDescription(ctx context.Context, userID string, in DescriptionInput) (string, error)
	RemoveBackground(ctx context.Context, userID string, img adapter.Image) (adapter.Image, error)
}

// DescriptionInput is the product brief for a generated listing description.
type DescriptionInput struct {
	ProductName         string `json:"productName"`
	ProductCategory     string `json:"productCategory"`
	KeyFeatures         string `json:"keyFeatures"`
	TargetAudience      string `json:"targetAudience"`
	UniqueSellingPoints string `json:"uniqueSellingPoints"`
}

func (in DescriptionInput) Validate() error {
	if strings.TrimSpace(in.ProductName) == "" || strings.TrimSpace(in.KeyFeatures) == "" {
		return fmt.Errorf("%w: product name and key features are required", domain.ErrInvalidArgument)
	}
	return nil
}

type listingUC struct {
	resolver ucport.EntitlementResolver
	consumer ucport.CreditConsumer
	text     adapter.TextGenerator
	images   adapter.BackgroundRemover
	log      *zerolog.Logger
}

func NewListingUseCase(
	resolver ucport.EntitlementResolver,
	consumer ucport.CreditConsumer,
	text adapter.TextGenerator,
	images adapter.BackgroundRemover,
	logger *zerolog.Logger,
) *listingUC {
	l := logger.With().Str("component", "listing_uc").Logger()
	return &listingUC{
		resolver: resolver,
		consumer: consumer,
		text:     text,
		images:   images,
		log:      &l,
	}
}

func (l *listingUC) GenerateDescription(ctx context.Context, userID string, in DescriptionInput) (string, error) {
	defer logging.TraceDuration(l.log, "ListingUC.GenerateDescription")()

	if err := in.Validate(); err != nil {
		return "", err
	}

	var description string
	err := l.metered(ctx, userID, model.ActionGenerateDescription, func(ctx context.Context) (map[string]any, error) {
		gen, err := l.text.Generate(ctx, buildDescriptionPrompt(in))
		if err != nil {
			return nil, err
		}
		description = strings.TrimSpace(gen.Text)
		if description == "" {
			return nil, &domain.ProviderError{Provider: gen.Provider, Message: "empty description"}
		}
		return map[string]any{
			"provider": gen.Provider,
			"model":    gen.Model,
			"tokens":   gen.Usage.TotalTokens,
		}, nil
	})
	if err != nil {
		return "", err
	}
	return description, nil
}

func (l *listingUC) RemoveBackground(ctx context.Context, userID string, img adapter.Image) (adapter.Image, error) {
	defer logging.TraceDuration(l.log, "ListingUC.RemoveBackground")()

	if len(img.Data) == 0 {
		return adapter.Image{}, fmt.Errorf("%w: no image provided", domain.ErrInvalidArgument)
	}

	var out adapter.Image
	err := l.metered(ctx, userID, model.ActionRemoveBackground, func(ctx context.Context) (map[string]any, error) {
		res, err := l.images.RemoveBackground(ctx, img)
		if err != nil {
			return nil, err
		}
		out = res
		return map[string]any{
			"filename": img.Filename,
			"bytes":    len(img.Data),
		}, nil
	})
	if err != nil {
		return adapter.Image{}, err
	}
	return out, nil
}

// metered gates run behind the entitlement check and debits one credit only
// after run succeeds. A trial user whose debit fails gets no result.
// Subscribers are charged against whatever credits they hold so usage is
// still recorded, but running dry never blocks them.
func (l *listingUC) metered(ctx context.Context, userID string, action model.UsageAction, run func(ctx context.Context) (map[string]any, error)) error {
	if strings.TrimSpace(userID) == "" {
		return domain.ErrUnauthenticated
	}
	log := logging.With(ctx, l.log)

	ent := l.resolver.Resolve(ctx, userID)
	if !ent.HasAccess {
		return domain.ErrUpgradeRequired
	}

	meta, err := run(ctx)
	if err != nil {
		log.Warn().Err(err).Str("action", string(action)).Msg("provider call failed")
		return err
	}

	if ent.Unlimited() {
		if ent.RemainingCredits <= 0 {
			return nil
		}
		if _, err := l.consumer.Consume(ctx, userID, action, 1, meta); err != nil {
			log.Warn().Err(err).Str("action", string(action)).Msg("subscriber usage not recorded")
		}
		return nil
	}

	res, err := l.consumer.Consume(ctx, userID, action, 1, meta)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	if !res.Success {
		// another request spent the last credit between the check and the debit
		log.Info().Str("action", string(action)).Msg("credits exhausted after provider call, result withheld")
		return domain.ErrUpgradeRequired
	}
	return nil
}

const descriptionSystemPrompt = "You are an expert e-commerce copywriter specializing in SEO-optimized product descriptions that drive conversions."

func buildDescriptionPrompt(in DescriptionInput) adapter.Prompt {
	var b strings.Builder
	b.WriteString("Create an SEO-optimized product description for an e-commerce listing on platforms like Amazon, eBay, or Shopify.\n\n")
	b.WriteString("Product Information:\n")
	fmt.Fprintf(&b, "- Product Name: %s\n", strings.TrimSpace(in.ProductName))
	if v := strings.TrimSpace(in.ProductCategory); v != "" {
		fmt.Fprintf(&b, "- Category: %s\n", v)
	}
	fmt.Fprintf(&b, "- Key Features: %s\n", strings.TrimSpace(in.KeyFeatures))
	if v := strings.TrimSpace(in.TargetAudience); v != "" {
		fmt.Fprintf(&b, "- Target Audience: %s\n", v)
	}
	if v := strings.TrimSpace(in.UniqueSellingPoints); v != "" {
		fmt.Fprintf(&b, "- Unique Selling Points: %s\n", v)
	}
	b.WriteString("\nRequirements:\n")
	b.WriteString("1. Write a compelling, SEO-friendly description (150-200 words)\n")
	b.WriteString("2. Include relevant keywords naturally\n")
	b.WriteString("3. Highlight benefits, not just features\n")
	b.WriteString("4. Use persuasive language that converts browsers to buyers\n")
	b.WriteString("5. Structure with short paragraphs for readability\n")
	b.WriteString("6. End with a call-to-action\n\n")
	b.WriteString("Write ONLY the product description, no additional commentary.")

	return adapter.Prompt{System: descriptionSystemPrompt, User: b.String()}
}
