// Package openai implements the provider.Provider interface on top of the
// official OpenAI Go client. It translates provider-neutral requests into
// chat completion parameters and maps responses, finish reasons, and token
// usage back into the gateway's types.
package openai
