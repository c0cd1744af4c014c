// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/ports/adapter"
	"listing-assistant/internal/infra/metrics"
)

const ProviderGemini = "gemini"

var _ adapter.TextGenerator = (*GeminiGenerator)(nil)

type GeminiGenerator struct {
	client       *genai.Client
	defaultModel string
	maxOut       int
}

// NewGeminiGenerator creates a Gemini generator using the official SDK.
// An empty baseURL keeps the SDK default endpoint.
func NewGeminiGenerator(ctx context.Context, apiKey, baseURL, defaultModel string, maxOut int) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.5-flash"
	}
	return &GeminiGenerator{client: c, defaultModel: defaultModel, maxOut: maxOut}, nil
}

func (g *GeminiGenerator) Name() string { return ProviderGemini }

func (g *GeminiGenerator) Generate(ctx context.Context, p adapter.Prompt) (adapter.Generation, error) {
	if strings.TrimSpace(p.User) == "" {
		return adapter.Generation{}, domain.ErrInvalidArgument
	}
	model := modelOrDefault(p.Model, g.defaultModel)

	cfg := &genai.GenerateContentConfig{}
	if g.maxOut > 0 {
		cfg.MaxOutputTokens = int32(g.maxOut)
	}
	if p.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: p.System}}}
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(p.User), cfg)
	metrics.ObserveProviderCall(ProviderGemini, time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return adapter.Generation{}, &domain.ProviderError{Provider: ProviderGemini, Message: "generation failed", Err: err}
	}

	out := adapter.Generation{Text: firstCandidateText(resp), Provider: ProviderGemini, Model: model}
	if resp != nil && resp.UsageMetadata != nil {
		out.Usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.Usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.Usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	metrics.AddProviderTokens(ProviderGemini, model, out.Usage.PromptTokens, out.Usage.CompletionTokens)
	return out, nil
}

// firstCandidateText joins the text parts of the first candidate.
func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}
