package anthropic

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pelorus-ai/pelorus/provider"
	"github.com/tidwall/gjson"
)

// Name is the stable identifier this provider registers under.
const Name = "anthropic"

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"

	// defaultMaxTokens is used when the request leaves the budget unset; the
	// messages API requires an explicit value.
	defaultMaxTokens = 4096
)

// Provider adapts Anthropic's messages API to the gateway's provider-neutral
// request and response types.
type Provider struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	models  []string
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpc = c }
}

// New builds a provider that authenticates with the given API key.
func New(apiKey string, options ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: 2 * time.Minute},
		models: []string{
			"claude-3-5-sonnet-20241022",
			"claude-3-5-haiku-20241022",
			"claude-3-opus-20240229",
		},
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return Name }

type messageBody struct {
	Model       string        `json:"model"`
	MaxTokens   int64         `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []bodyMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop_sequences,omitempty"`
}

type bodyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete performs one messages API call. System messages are lifted into
// the top-level system field, which is where the API expects them.
func (p *Provider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	body := messageBody{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = defaultMaxTokens
	}
	for _, m := range req.Messages {
		if m.Role == provider.RoleSystem {
			body.System = m.Content
			continue
		}
		body.Messages = append(body.Messages, bodyMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("anthropic: %s (status %d)", msg, resp.StatusCode)
	}

	return parseResponse(raw), nil
}

// parseResponse maps a messages API result onto the neutral response shape.
// Text blocks are concatenated into a single assistant message.
func parseResponse(raw []byte) *provider.Response {
	var text string
	for _, block := range gjson.GetBytes(raw, "content").Array() {
		if block.Get("type").String() == "text" {
			text += block.Get("text").String()
		}
	}

	return &provider.Response{
		ID:      gjson.GetBytes(raw, "id").String(),
		Model:   gjson.GetBytes(raw, "model").String(),
		Created: time.Now().Unix(),
		Choices: []provider.Choice{
			{
				Message:      provider.Assistant(text),
				FinishReason: convertStopReason(gjson.GetBytes(raw, "stop_reason").String()),
			},
		},
		Usage: provider.Usage{
			PromptTokens:     gjson.GetBytes(raw, "usage.input_tokens").Int(),
			CompletionTokens: gjson.GetBytes(raw, "usage.output_tokens").Int(),
			TotalTokens:      gjson.GetBytes(raw, "usage.input_tokens").Int() + gjson.GetBytes(raw, "usage.output_tokens").Int(),
		},
	}
}

func convertStopReason(r string) provider.FinishReason {
	switch r {
	case "max_tokens":
		return provider.FinishLength
	default:
		return provider.FinishStop
	}
}

// Capabilities reports limits for the Claude 3.5 generation.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		MaxTokens:         8192,
		ContextWindow:     200000,
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

// RateLimits reports build-tier defaults; actual limits depend on the account.
func (p *Provider) RateLimits() provider.RateLimits {
	return provider.RateLimits{
		RequestsPerMinute: 50,
		TokensPerMinute:   100000,
	}
}
