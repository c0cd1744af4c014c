package adapter

import "context"

// Prompt is a provider-agnostic text generation request.
type Prompt struct {
	System string
	User   string
	Model  string // empty = provider default
}

// Usage for a single generation call, as reported by the provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Generation is the provider's answer.
type Generation struct {
	Text     string
	Provider string
	Model    string
	Usage    Usage
}

// TextGenerator is the port for the generative-language provider.
type TextGenerator interface {
	Name() string
	Generate(ctx context.Context, p Prompt) (Generation, error)
}
