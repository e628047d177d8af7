// Package anthropic implements the provider.Provider interface against
// Anthropic's messages API over plain HTTP. Requests are translated from the
// gateway's neutral types, and responses are parsed with gjson rather than a
// full response model since the gateway only needs text, stop reason, and
// token usage.
package anthropic
