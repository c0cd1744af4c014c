package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/ports/adapter"
	"listing-assistant/internal/infra/metrics"
)

const ProviderOpenAI = "openai"

// Compile-time assurance this adapter satisfies the port
var _ adapter.TextGenerator = (*OpenAIGenerator)(nil)

// OpenAIGenerator implements adapter.TextGenerator using the Chat Completions API.
// Prompts larger than maxPrompt tokens are rejected before any request is sent.
type OpenAIGenerator struct {
	client    openai.Client
	model     string
	maxOut    int
	maxPrompt int

	countTokens func(model, text string) int
}

// NewOpenAIGenerator builds the generator. baseURL may be empty.
func NewOpenAIGenerator(apiKey, model, baseURL string, maxOut, maxPrompt int) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(45 * time.Second),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &OpenAIGenerator{
		client:      openai.NewClient(opts...),
		model:       model,
		maxOut:      maxOut,
		maxPrompt:   maxPrompt,
		countTokens: tiktokenCount,
	}, nil
}

func (o *OpenAIGenerator) Name() string { return ProviderOpenAI }

func (o *OpenAIGenerator) Generate(ctx context.Context, p adapter.Prompt) (adapter.Generation, error) {
	if strings.TrimSpace(p.User) == "" {
		return adapter.Generation{}, domain.ErrInvalidArgument
	}
	model := modelOrDefault(p.Model, o.model)

	if o.maxPrompt > 0 {
		if n := o.countTokens(model, p.System+"\n"+p.User); n > o.maxPrompt {
			metrics.PrecheckBlocked(ProviderOpenAI, model)
			return adapter.Generation{}, fmt.Errorf("%w: prompt is %d tokens, limit %d", domain.ErrInvalidArgument, n, o.maxPrompt)
		}
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if p.System != "" {
		msgs = append(msgs, openai.SystemMessage(p.System))
	}
	msgs = append(msgs, openai.UserMessage(p.User))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if o.maxOut > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.maxOut))
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	metrics.ObserveProviderCall(ProviderOpenAI, time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		pe := &domain.ProviderError{Provider: ProviderOpenAI, Message: "generation failed", Err: err}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			pe.Status = apiErr.StatusCode
		}
		return adapter.Generation{}, pe
	}

	out := adapter.Generation{Provider: ProviderOpenAI, Model: model}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			out.Text = strings.TrimSpace(c.Message.Content)
			break
		}
	}
	out.Usage = adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	metrics.AddProviderTokens(ProviderOpenAI, model, out.Usage.PromptTokens, out.Usage.CompletionTokens)
	return out, nil
}

var (
	encMu    sync.Mutex
	encCache = map[string]*tiktoken.Tiktoken{}
)

// tiktokenCount estimates prompt size. Unknown models use cl100k_base; if no
// encoding can be loaded it falls back to a chars/4 estimate.
func tiktokenCount(model, text string) int {
	encMu.Lock()
	enc, ok := encCache[model]
	if !ok {
		var err error
		enc, err = tiktoken.EncodingForModel(model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err != nil {
			enc = nil
		}
		encCache[model] = enc
	}
	encMu.Unlock()

	if enc == nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
