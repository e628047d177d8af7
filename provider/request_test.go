package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintStable(t *testing.T) {
	a := NewRequest("gpt-4o", System("be brief"), User("hello")).WithMaxTokens(128).WithTemperature(0.2)
	b := NewRequest("gpt-4o", System("be brief"), User("hello")).WithMaxTokens(128).WithTemperature(0.2)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintIgnoresVolatileFields(t *testing.T) {
	a := NewRequest("gpt-4o", User("hello"))
	b := NewRequest("gpt-4o", User("hello")).WithPriority(PriorityCritical)
	b.Metadata = map[string]string{"request_id": "abc", "ts": "12345"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint(),
		"priority and metadata must not affect request identity")
}

func TestFingerprintSensitivity(t *testing.T) {
	base := NewRequest("gpt-4o", User("hello")).WithMaxTokens(64)

	tests := []struct {
		name string
		req  *Request
	}{
		{"different model", NewRequest("gpt-4o-mini", User("hello")).WithMaxTokens(64)},
		{"different content", NewRequest("gpt-4o", User("goodbye")).WithMaxTokens(64)},
		{"different role", NewRequest("gpt-4o", System("hello")).WithMaxTokens(64)},
		{"different max tokens", NewRequest("gpt-4o", User("hello")).WithMaxTokens(65)},
		{"different temperature", NewRequest("gpt-4o", User("hello")).WithMaxTokens(64).WithTemperature(0.9)},
		{"extra message", NewRequest("gpt-4o", User("hello"), User("again")).WithMaxTokens(64)},
		{"stop sequences", func() *Request {
			r := NewRequest("gpt-4o", User("hello")).WithMaxTokens(64)
			r.Stop = []string{"\n"}
			return r
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base.Fingerprint(), tt.req.Fingerprint())
		})
	}
}

func TestFingerprintMessageBoundaries(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must not collide
	a := NewRequest("m", User("ab"), User("c"))
	b := NewRequest("m", User("a"), User("bc"))
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestResponseText(t *testing.T) {
	var nilResp *Response
	assert.Empty(t, nilResp.Text())
	assert.Empty(t, (&Response{}).Text())

	resp := &Response{Choices: []Choice{{Message: Assistant("hi there")}}}
	require.NotEmpty(t, resp.Choices)
	assert.Equal(t, "hi there", resp.Text())
}
