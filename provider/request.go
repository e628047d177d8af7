package provider

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// System builds a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Priority orders requests within a batch and batches against each other.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "priority(" + strconv.Itoa(int(p)) + ")"
	}
}

// Request is a completion request as the calling application sees it.
//
// Metadata and Priority are volatile routing hints. They are deliberately
// excluded from Fingerprint so that two semantically identical requests
// deduplicate even when they arrive with different priorities or tracing
// metadata.
type Request struct {
	Messages    []Message         `json:"messages"`
	Model       string            `json:"model"`
	MaxTokens   int64             `json:"max_tokens,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	Priority    Priority          `json:"-"`
	Metadata    map[string]string `json:"-"`
}

// NewRequest builds a request with normal priority.
func NewRequest(model string, msgs ...Message) *Request {
	return &Request{Messages: msgs, Model: model, Priority: PriorityNormal}
}

// WithMaxTokens sets the completion token budget.
func (r *Request) WithMaxTokens(n int64) *Request {
	r.MaxTokens = n
	return r
}

// WithTemperature sets the sampling temperature.
func (r *Request) WithTemperature(t float64) *Request {
	r.Temperature = &t
	return r
}

// WithTopP sets nucleus sampling.
func (r *Request) WithTopP(p float64) *Request {
	r.TopP = &p
	return r
}

// WithPriority sets the scheduling priority.
func (r *Request) WithPriority(p Priority) *Request {
	r.Priority = p
	return r
}

// Fingerprint hashes the semantically meaningful fields of the request:
// model, token budget, sampling parameters, stop sequences, and the message
// list. Request identity, timestamps, priority, and metadata are excluded,
// so retries and duplicates collapse to the same key.
func (r *Request) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte

	_, _ = h.WriteString(r.Model)
	binary.LittleEndian.PutUint64(buf[:], uint64(r.MaxTokens))
	_, _ = h.Write(buf[:])
	if r.Temperature != nil {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(*r.Temperature))
		_, _ = h.Write(buf[:])
	}
	if r.TopP != nil {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(*r.TopP))
		_, _ = h.Write(buf[:])
	}
	for _, s := range r.Stop {
		_, _ = h.WriteString(s)
		_, _ = h.Write([]byte{0})
	}
	for _, m := range r.Messages {
		_, _ = h.WriteString(string(m.Role))
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(m.Content)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
