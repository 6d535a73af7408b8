package coach

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kapu/chess-coach-go/internal/chess"
	"github.com/kapu/chess-coach-go/internal/coach/persona"
	"github.com/kapu/chess-coach-go/internal/resilience"
)

// ToolShowPosition is the single capability declared to the agent.
const ToolShowPosition = "show_position"

// CorpusProvider supplies the reference-text block for open conversation.
// Inclusion is best effort; a provider failure downgrades the prompt, it
// never fails the turn.
type CorpusProvider interface {
	Corpus(ctx context.Context) (string, error)
}

// Orchestrator mediates one coaching turn with the agent.
type Orchestrator struct {
	client  AgentClient
	catalog *persona.Catalog
	corpus  CorpusProvider
	policy  resilience.Policy
	logger  *zap.Logger
}

func NewOrchestrator(client AgentClient, catalog *persona.Catalog, corpus CorpusProvider, policy resilience.Policy, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		client:  client,
		catalog: catalog,
		corpus:  corpus,
		policy:  policy,
		logger:  logger,
	}
}

// ConverseRequest is one inbound coaching exchange. PositionContext is a
// pre-rendered description of the board situation and may be empty for pure
// chat. IncludeCorpus is switched off for high-frequency per-move calls to
// bound payload size.
type ConverseRequest struct {
	Message         string
	PositionContext string
	History         []Message
	IncludeCorpus   bool
}

// Converse runs a single coaching turn: one agent call, the reply parsed
// into text plus at most one board directive. A malformed tool invocation
// degrades to a text-only turn returned alongside ErrMalformedToolCall; the
// caller keeps the reply either way.
func (o *Orchestrator) Converse(ctx context.Context, req ConverseRequest) (Turn, error) {
	agentReq := AgentRequest{
		System:   o.buildSystem(ctx, req.IncludeCorpus),
		Messages: o.buildMessages(req),
		Tools:    []ToolDefinition{o.showPositionTool()},
	}

	var reply *AgentReply
	err := resilience.Do(ctx, o.policy, func(ctx context.Context) error {
		var callErr error
		reply, callErr = o.client.Complete(ctx, agentReq)
		return callErr
	})
	if err != nil {
		return Turn{}, err
	}

	turn := Turn{Reply: reply.Text}
	directive, dErr := o.extractDirective(reply.ToolCalls)
	if dErr != nil {
		o.logger.Warn("discarding malformed tool call", zap.Error(dErr))
		return turn, dErr
	}
	turn.Directive = directive
	return turn, nil
}

func (o *Orchestrator) buildSystem(ctx context.Context, includeCorpus bool) string {
	system := o.catalog.MustRender("coach.preamble", nil)
	if !includeCorpus || o.corpus == nil {
		return system
	}

	text, err := o.corpus.Corpus(ctx)
	if err != nil {
		o.logger.Warn("corpus unavailable, continuing without it", zap.Error(err))
		return system
	}
	if strings.TrimSpace(text) == "" {
		return system
	}
	block, err := o.catalog.Render("coach.corpus_header", map[string]any{"Corpus": text})
	if err != nil {
		o.logger.Warn("corpus template failed", zap.Error(err))
		return system
	}
	return system + "\n\n" + block
}

func (o *Orchestrator) buildMessages(req ConverseRequest) []Message {
	messages := make([]Message, 0, len(req.History)+1)
	messages = append(messages, req.History...)

	content := req.Message
	if strings.TrimSpace(req.PositionContext) != "" {
		content = req.PositionContext + "\n\n" + req.Message
	}
	return append(messages, Message{Role: RoleUser, Content: content})
}

func (o *Orchestrator) showPositionTool() ToolDefinition {
	return ToolDefinition{
		Name:        ToolShowPosition,
		Description: o.catalog.MustRender("tool.show_position.description", nil),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"position": map[string]any{
					"type":        "string",
					"description": "FEN of the position to display",
				},
				"annotation": map[string]any{
					"type":        "string",
					"description": "short caption shown with the position",
				},
				"moves": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "optional moves in SAN to play from the position",
				},
			},
			"required": []string{"position", "annotation"},
		},
	}
}

// extractDirective picks the first show_position invocation and validates it
// into a Directive. Further invocations in the same reply are logged and
// dropped; the agent is offered one board change per turn.
func (o *Orchestrator) extractDirective(calls []ToolCall) (*Directive, error) {
	var directive *Directive
	for _, call := range calls {
		if call.Name != ToolShowPosition {
			o.logger.Warn("agent invoked undeclared tool", zap.String("tool", call.Name))
			continue
		}
		if directive != nil {
			o.logger.Warn("ignoring extra board directive", zap.String("tool_use_id", call.ID))
			continue
		}
		d, err := parseDirective(call.Input)
		if err != nil {
			return nil, err
		}
		directive = d
	}
	return directive, nil
}

func parseDirective(input map[string]any) (*Directive, error) {
	fen, ok := input["position"].(string)
	if !ok || strings.TrimSpace(fen) == "" {
		return nil, fmt.Errorf("%w: missing position", ErrMalformedToolCall)
	}
	pos, err := chess.ParseFEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: unparsable position %q", ErrMalformedToolCall, fen)
	}

	annotation, ok := input["annotation"].(string)
	if !ok || strings.TrimSpace(annotation) == "" {
		return nil, fmt.Errorf("%w: missing annotation", ErrMalformedToolCall)
	}

	d := &Directive{FEN: pos.FEN(), Annotation: strings.TrimSpace(annotation)}
	if rawMoves, present := input["moves"]; present {
		list, ok := rawMoves.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: moves is not a list", ErrMalformedToolCall)
		}
		for _, item := range list {
			move, ok := item.(string)
			if !ok || strings.TrimSpace(move) == "" {
				return nil, fmt.Errorf("%w: bad move entry", ErrMalformedToolCall)
			}
			d.Moves = append(d.Moves, strings.TrimSpace(move))
		}
	}
	return d, nil
}
