package provider

import "context"

// Provider is the capability surface a concrete AI integration exposes to the
// gateway. Implementations handle the specifics of communicating with their
// service while keeping a consistent interface for orchestration, circuit
// breaking, and health tracking.
type Provider interface {
	// Name identifies the provider. It is used as the key for circuit
	// breakers, health trackers, and metrics labels, so it must be stable
	// and unique within a gateway.
	Name() string

	// Complete performs a single, non-streaming completion call.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Capabilities reports the static limits of the provider's models.
	Capabilities() Capabilities

	// SupportedModels lists the model identifiers this provider accepts.
	SupportedModels() []string

	// RateLimits reports the provider-side throttling limits.
	RateLimits() RateLimits
}

// Capabilities describes what a provider's models can do.
type Capabilities struct {
	MaxTokens         int64 `json:"max_tokens"`
	ContextWindow     int64 `json:"context_window"`
	SupportsStreaming bool  `json:"supports_streaming"`
	SupportsVision    bool  `json:"supports_vision"`
	SupportsFunctions bool  `json:"supports_functions"`
}

// RateLimits describes provider-side throttling.
type RateLimits struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	TokensPerMinute   int `json:"tokens_per_minute"`
}
