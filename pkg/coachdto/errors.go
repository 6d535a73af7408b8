package coachdto

// Error codes in caller-facing responses.
const (
	CodeInvalidInput         = "invalid_input"
	CodeEngineUnavailable    = "engine_unavailable"
	CodeRateLimited          = "rate_limited"
	CodeMalformedAgentOutput = "malformed_agent_output"
	CodeIllegalMove          = "illegal_move"
	CodeInternal             = "internal"
)

// DomainError is the caller-facing error shape. Retryable tells the boundary
// layer whether a wait-and-retry hint makes sense.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "coach service error"
}
