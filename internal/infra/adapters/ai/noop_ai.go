package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"listing-assistant/internal/domain/ports/adapter"
)

var _ adapter.TextGenerator = (*NoopGenerator)(nil)

// NoopGenerator implements adapter.TextGenerator for local/dev runs.
// It logs the prompt instead of calling a provider.
type NoopGenerator struct {
	log *zerolog.Logger
}

func NewNoopGenerator(logger *zerolog.Logger) *NoopGenerator {
	l := logger.With().Str("component", "NoopGenerator").Logger()
	return &NoopGenerator{log: &l}
}

func (a *NoopGenerator) Name() string { return "noop" }

func (a *NoopGenerator) Generate(ctx context.Context, p adapter.Prompt) (adapter.Generation, error) {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return adapter.Generation{}, ctx.Err()
	}
	a.log.Debug().Int("prompt_len", len(p.User)).Msg("noop generation")
	return adapter.Generation{
		Text:     fmt.Sprintf("Placeholder description (%d characters of input).", len(p.User)),
		Provider: "noop",
		Model:    "noop-model",
	}, nil
}
