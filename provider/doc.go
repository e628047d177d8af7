// Package provider defines the capability interface implemented by concrete
// AI completion providers (OpenAI, Anthropic, ...) together with the request
// and response model shared by the whole gateway.
//
// The gateway never branches on a provider's concrete type. Everything it
// needs for dispatching, ranking, and rate limiting goes through the Provider
// interface, so new providers are added by implementing the interface and
// registering them with the gateway.
package provider
