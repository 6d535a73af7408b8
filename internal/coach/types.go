// Package coach talks to the language-model coaching agent: it builds the
// instruction context, declares the board tool, issues the call, and parses
// the reply into text plus an optional validated board directive.
package coach

import (
	"context"
	"errors"
)

var (
	ErrMalformedToolCall = errors.New("coach: malformed tool call")
	ErrEmptyReply        = errors.New("coach: agent returned no content")
)

// Message is one role-tagged entry of the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolDefinition declares one capability offered to the agent.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolCall is one tool invocation the agent asked for, still untyped. The
// orchestrator validates it into a Directive before anything downstream
// sees it.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// AgentRequest is one complete call to the agent.
type AgentRequest struct {
	System   string
	Messages []Message
	Tools    []ToolDefinition
}

// AgentReply is the agent's parsed response: the concatenated text blocks
// and every tool invocation, in reply order.
type AgentReply struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
}

// AgentClient issues a single request to the coaching agent. Retry and
// backoff live outside, in the resilience layer.
type AgentClient interface {
	Complete(ctx context.Context, req AgentRequest) (*AgentReply, error)
}

// Directive is the validated result of a show_position tool call: the
// position to display, a caption, and an optional move sequence.
type Directive struct {
	FEN        string
	Annotation string
	Moves      []string
}

// Turn is one finished coaching exchange.
type Turn struct {
	Reply     string
	Directive *Directive
}
