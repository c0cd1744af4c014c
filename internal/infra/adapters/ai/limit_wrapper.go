package ai

import (
	"context"

	"listing-assistant/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.TextGenerator = (*limitedGenerator)(nil)

type limitedGenerator struct {
	inner adapter.TextGenerator
	sem   chan struct{}
}

// NewLimited bounds the number of in-flight Generate calls. Waiters give up
// when their context ends.
func NewLimited(inner adapter.TextGenerator, maxConcurrent int) adapter.TextGenerator {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedGenerator{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedGenerator) Name() string { return l.inner.Name() }

func (l *limitedGenerator) Generate(ctx context.Context, p adapter.Prompt) (adapter.Generation, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return adapter.Generation{}, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Generate(ctx, p)
}
