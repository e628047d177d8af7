// Package slogx holds slog attribute helpers shared across the gateway.
package slogx

import (
	"fmt"
	"log/slog"
	"time"
)

// Error returns a slog.Attr with key "error" and the error's message.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Provider returns a slog.Attr identifying a provider by name.
func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// Breaker returns a slog.Attr identifying a circuit breaker by name.
func Breaker(name string) slog.Attr {
	return slog.String("breaker", name)
}

// Duration returns a slog.Attr with the duration rendered as a string,
// which reads better than nanosecond integers in JSON output.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.String(key, d.String())
}

// Stringer returns a slog.Attr with the string form of value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}
