// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/ports/adapter"
)

var _ adapter.TextGenerator = (*FallbackGenerator)(nil)

// FallbackGenerator tries providers in order and returns the first non-empty
// generation. Invalid prompts and cancelled contexts are not retried on the
// next provider.
type FallbackGenerator struct {
	providers []adapter.TextGenerator
	log       *zerolog.Logger
}

func NewFallbackGenerator(logger *zerolog.Logger, providers ...adapter.TextGenerator) *FallbackGenerator {
	l := logger.With().Str("component", "FallbackGenerator").Logger()
	out := make([]adapter.TextGenerator, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			out = append(out, p)
		}
	}
	return &FallbackGenerator{providers: out, log: &l}
}

func (f *FallbackGenerator) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return strings.Join(names, ",")
}

func (f *FallbackGenerator) Generate(ctx context.Context, p adapter.Prompt) (adapter.Generation, error) {
	if len(f.providers) == 0 {
		return adapter.Generation{}, &domain.ProviderError{Provider: "none", Message: "no text provider configured"}
	}
	var errs []error
	for i, prov := range f.providers {
		// a model pinned for the primary provider means nothing to the others
		attempt := p
		if i > 0 {
			attempt.Model = ""
		}
		gen, err := prov.Generate(ctx, attempt)
		if err == nil && strings.TrimSpace(gen.Text) != "" {
			return gen, nil
		}
		if err == nil {
			err = &domain.ProviderError{Provider: prov.Name(), Message: "empty generation"}
		}
		if errors.Is(err, domain.ErrInvalidArgument) || ctx.Err() != nil {
			return adapter.Generation{}, err
		}
		f.log.Warn().Err(err).Str("provider", prov.Name()).Msg("text provider failed, trying next")
		errs = append(errs, err)
	}
	return adapter.Generation{}, errors.Join(errs...)
}
