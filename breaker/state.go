package breaker

import "time"

// StateKind enumerates the three breaker states.
type StateKind int

const (
	Closed StateKind = iota
	Open
	HalfOpen
)

func (k StateKind) String() string {
	switch k {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// State is a snapshot of a breaker's state. OpenedAt is only meaningful while
// Kind is Open; Attempts counts admitted probes while Kind is HalfOpen.
type State struct {
	Kind     StateKind `json:"state"`
	OpenedAt time.Time `json:"opened_at,omitempty"`
	Attempts int       `json:"attempts,omitempty"`
}

// Metrics is a snapshot of a breaker's counters.
type Metrics struct {
	TotalRequests       uint64        `json:"total_requests"`
	SuccessfulRequests  uint64        `json:"successful_requests"`
	FailedRequests      uint64        `json:"failed_requests"`
	CircuitOpens        uint64        `json:"circuit_opens"`
	CircuitCloses       uint64        `json:"circuit_closes"`
	HalfOpenTransitions uint64        `json:"half_open_transitions"`
	RequestsBlocked     uint64        `json:"requests_blocked"`
	AvgResponseTime     time.Duration `json:"avg_response_time"`
	CurrentFailureRate  float64       `json:"current_failure_rate"`
}
