package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pelorus-ai/pelorus/provider"
)

// Name is the stable identifier this provider registers under.
const Name = "openai"

// Provider adapts OpenAI's chat completion API to the gateway's
// provider-neutral request and response types.
type Provider struct {
	client *openai.Client
	models []string
}

// New builds a provider backed by the official client. Request options carry
// the API key, base URL, and any per-client overrides.
func New(options ...option.RequestOption) *Provider {
	return &Provider{
		client: openai.NewClient(options...),
		models: []string{
			"gpt-4o",
			"gpt-4o-mini",
			"gpt-4-turbo",
			"gpt-3.5-turbo",
			"o1",
			"o1-mini",
		},
	}
}

func (p *Provider) Name() string { return Name }

// Complete performs one non-streaming chat completion call.
func (p *Provider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	chat, err := p.client.Chat.Completions.New(ctx, buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	return convertResponse(chat), nil
}

func buildParams(req *provider.Request) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case provider.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case provider.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages: openai.F(msgs),
		Model:    openai.F(req.Model),
		N:        openai.Int(1),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.F[openai.ChatCompletionNewParamsStopUnion](
			openai.ChatCompletionNewParamsStopArray(req.Stop))
	}
	return params
}

func convertResponse(chat *openai.ChatCompletion) *provider.Response {
	choices := make([]provider.Choice, len(chat.Choices))
	for i, c := range chat.Choices {
		choices[i] = provider.Choice{
			Index:        int(c.Index),
			Message:      provider.Assistant(c.Message.Content),
			FinishReason: convertFinishReason(c.FinishReason),
		}
	}
	return &provider.Response{
		ID:      chat.ID,
		Model:   chat.Model,
		Created: chat.Created,
		Choices: choices,
		Usage: provider.Usage{
			PromptTokens:     chat.Usage.PromptTokens,
			CompletionTokens: chat.Usage.CompletionTokens,
			TotalTokens:      chat.Usage.TotalTokens,
		},
	}
}

func convertFinishReason(r openai.ChatCompletionChoicesFinishReason) provider.FinishReason {
	switch r {
	case openai.ChatCompletionChoicesFinishReasonLength:
		return provider.FinishLength
	case openai.ChatCompletionChoicesFinishReasonContentFilter:
		return provider.FinishContentFilter
	default:
		return provider.FinishStop
	}
}

// Capabilities reports limits for the flagship models.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		MaxTokens:         16384,
		ContextWindow:     128000,
		SupportsStreaming: true,
		SupportsVision:    true,
		SupportsFunctions: true,
	}
}

// SupportedModels lists the model identifiers this provider accepts.
func (p *Provider) SupportedModels() []string {
	out := make([]string, len(p.models))
	copy(out, p.models)
	return out
}

// RateLimits reports tier-1 defaults; actual limits depend on the account.
func (p *Provider) RateLimits() provider.RateLimits {
	return provider.RateLimits{
		RequestsPerMinute: 500,
		TokensPerMinute:   200000,
	}
}
