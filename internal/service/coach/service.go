// Package coach is the application service behind the route layer: it wires
// position validation, engine analysis, move classification, the coaching
// agent and the per-session board state machine into the caller-facing
// operations.
package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapu/chess-coach-go/internal/board"
	corechess "github.com/kapu/chess-coach-go/internal/chess"
	"github.com/kapu/chess-coach-go/internal/classify"
	corecoach "github.com/kapu/chess-coach-go/internal/coach"
	"github.com/kapu/chess-coach-go/internal/engine"
	"github.com/kapu/chess-coach-go/internal/resilience"
	"github.com/kapu/chess-coach-go/internal/service/cache"
	"github.com/kapu/chess-coach-go/pkg/coachdto"
)

// Analyzer is the engine surface the service needs.
type Analyzer interface {
	Analyze(ctx context.Context, pos *corechess.Position, depth int) (engine.Evaluation, error)
	BestMove(ctx context.Context, pos *corechess.Position, depth int) (engine.BestMove, error)
}

// Agent runs one coaching turn against the language-model agent.
type Agent interface {
	Converse(ctx context.Context, req corecoach.ConverseRequest) (corecoach.Turn, error)
}

type Config struct {
	SearchDepth  int
	SessionTTL   time.Duration
	HistoryLimit int
	Thresholds   classify.Thresholds
}

type Service struct {
	engine     Analyzer
	agent      Agent
	classifier *classify.Classifier
	cache      *cache.CacheService
	repo       Repository
	cfg        Config
	logger     *zap.Logger
}

// sessionPayload is the cached state of one coaching session.
type sessionPayload struct {
	SessionUUID string              `json:"session_uuid"`
	Board       board.Snapshot      `json:"board"`
	History     []corecoach.Message `json:"history"`
	Turns       int                 `json:"turns"`
	MovesPlayed int                 `json:"moves_played"`
	Blunders    int                 `json:"blunders"`
	StartedAt   time.Time           `json:"started_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

const (
	defaultSearchDepth  = 14
	maxHistoryLimit     = 50
	defaultHistoryLimit = 20
)

func NewService(analyzer Analyzer, agent Agent, cacheSvc *cache.CacheService, repo Repository, cfg Config, logger *zap.Logger) (*Service, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("engine analyzer is required")
	}
	if agent == nil {
		return nil, fmt.Errorf("coaching agent is required")
	}
	if cacheSvc == nil {
		return nil, fmt.Errorf("cache service is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("session repository is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be greater than 0")
	}
	if cfg.SearchDepth <= 0 || cfg.SearchDepth > engine.MaxDepth {
		cfg.SearchDepth = defaultSearchDepth
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		engine:     analyzer,
		agent:      agent,
		classifier: classify.New(cfg.Thresholds),
		cache:      cacheSvc,
		repo:       repo,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// EvaluatePosition analyzes a single position. Malformed input is rejected
// before the engine is touched.
func (s *Service) EvaluatePosition(ctx context.Context, req coachdto.EvaluatePositionRequest) (*coachdto.EvaluatePositionResponse, error) {
	pos, err := corechess.ParseFEN(req.FEN)
	if err != nil {
		return nil, s.mapError(err)
	}
	depth := s.depthOrDefault(req.Depth)

	eval, err := s.engine.Analyze(ctx, pos, depth)
	if err != nil {
		return nil, s.mapError(err)
	}
	best, err := s.engine.BestMove(ctx, pos, depth)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &coachdto.EvaluatePositionResponse{
		Evaluation: evaluationDTO(eval),
		BestMove:   best.SAN,
	}, nil
}

// EvaluateMove plays a move, analyzes both sides of it and classifies the
// quality. Coaching commentary is attached best effort; a throttled agent
// does not fail the evaluation.
func (s *Service) EvaluateMove(ctx context.Context, req coachdto.EvaluateMoveRequest) (*coachdto.EvaluateMoveResponse, error) {
	pos, err := corechess.ParseFEN(req.FEN)
	if err != nil {
		return nil, s.mapError(err)
	}
	mv, err := pos.ParseMove(req.Move)
	if err != nil {
		return nil, s.mapError(err)
	}
	next, err := pos.Apply(mv)
	if err != nil {
		return nil, s.mapError(err)
	}
	depth := s.depthOrDefault(req.Depth)

	before, err := s.engine.Analyze(ctx, pos, depth)
	if err != nil {
		return nil, s.mapError(err)
	}
	best, err := s.engine.BestMove(ctx, pos, depth)
	if err != nil {
		return nil, s.mapError(err)
	}

	after, err := s.engine.Analyze(ctx, next, depth)
	if err != nil {
		return nil, s.mapError(err)
	}

	tier, err := s.classifier.Classify(before, after, pos.Turn(), mv.UCI == best.UCI)
	if err != nil {
		return nil, s.mapError(err)
	}

	resp := &coachdto.EvaluateMoveResponse{
		MoveSAN:        mv.SAN,
		MoveUCI:        mv.UCI,
		Classification: tier.String(),
		Before:         evaluationDTO(before),
		After:          evaluationDTO(after),
		BestMoveSAN:    best.SAN,
	}
	resp.Coaching = s.moveCommentary(ctx, pos, mv, tier, before, after, best)
	return resp, nil
}

// moveCommentary asks the agent for a short note on the move. The corpus is
// skipped here to keep the per-move payload small.
func (s *Service) moveCommentary(ctx context.Context, pos *corechess.Position, mv corechess.Move, tier classify.Tier, before, after engine.Evaluation, best engine.BestMove) string {
	turn, err := s.agent.Converse(ctx, corecoach.ConverseRequest{
		Message: fmt.Sprintf(
			"I played %s from %s. It was rated %s (before %s, after %s; engine preferred %s). One short tip?",
			mv.SAN, pos.FEN(), tier, before, after, best.SAN),
		IncludeCorpus: false,
	})
	if err != nil && !errors.Is(err, corecoach.ErrMalformedToolCall) {
		s.logger.Warn("move commentary unavailable", zap.Error(err))
		return ""
	}
	return turn.Reply
}

// Converse runs one open coaching exchange within a session. A directive
// returned by the agent is applied to the session's board; a malformed one
// degrades to a text-only reply.
func (s *Service) Converse(ctx context.Context, req coachdto.ConverseRequest) (*coachdto.ConverseResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, &coachdto.DomainError{Code: coachdto.CodeInvalidInput, Message: "message is required"}
	}

	payload, machine, err := s.loadOrCreateSession(ctx, req.SessionID)
	if err != nil {
		return nil, s.mapError(err)
	}

	history := payload.History
	if len(req.History) > 0 {
		history = fromDTOHistory(req.History)
	}

	turn, err := s.agent.Converse(ctx, corecoach.ConverseRequest{
		Message:         req.Message,
		PositionContext: positionContext(machine.Current()),
		History:         history,
		IncludeCorpus:   true,
	})
	if err != nil && !errors.Is(err, corecoach.ErrMalformedToolCall) {
		return nil, s.mapError(err)
	}
	if err != nil {
		s.logger.Warn("agent directive dropped", zap.String("session", payload.SessionUUID), zap.Error(err))
	}

	resp := &coachdto.ConverseResponse{Reply: turn.Reply}
	if turn.Directive != nil {
		if dErr := s.applyDirective(machine, turn.Directive); dErr != nil {
			s.logger.Warn("directive rejected", zap.String("session", payload.SessionUUID), zap.Error(dErr))
		} else {
			view := boardView(machine)
			resp.Board = &view
		}
	}

	payload.Turns++
	payload.History = s.trimHistory(append(history,
		corecoach.Message{Role: corecoach.RoleUser, Content: req.Message},
		corecoach.Message{Role: corecoach.RoleAssistant, Content: turn.Reply},
	))
	payload.Board = machine.Snapshot()
	if err := s.saveSession(ctx, req.SessionID, payload); err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *Service) applyDirective(machine *board.Machine, d *corecoach.Directive) error {
	pos, err := corechess.ParseFEN(d.FEN)
	if err != nil {
		return err
	}
	// Resolve the optional move sequence in full before touching the board.
	// A bad move anywhere in the line rejects the whole directive and leaves
	// the machine exactly as it was.
	cur := pos
	line := make([]*corechess.Position, 0, len(d.Moves))
	for _, text := range d.Moves {
		mv, err := cur.ParseMove(text)
		if err != nil {
			return fmt.Errorf("directive move %q: %w", text, err)
		}
		next, err := cur.Apply(mv)
		if err != nil {
			return fmt.Errorf("directive move %q: %w", text, err)
		}
		line = append(line, next)
		cur = next
	}

	if err := machine.ApplyDirective(pos, d.Annotation); err != nil {
		return err
	}
	// Each step of the line becomes its own navigation entry so the student
	// can walk through it.
	for _, next := range line {
		if err := machine.ApplyDirective(next, ""); err != nil {
			return err
		}
	}
	return nil
}

// SubmitDemoMove plays a user move on the demo board, classifies it against
// engine analysis and triggers a coaching round-trip on the new position.
func (s *Service) SubmitDemoMove(ctx context.Context, req coachdto.SubmitDemoMoveRequest) (*coachdto.SubmitDemoMoveResponse, error) {
	payload, machine, err := s.loadOrCreateSession(ctx, req.SessionID)
	if err != nil {
		return nil, s.mapError(err)
	}

	// A demo-move request always targets the demo board.
	machine.SwitchToCoachDemo()
	prev := machine.Current()
	entry, err := machine.SubmitUserMove(req.Move)
	if err != nil {
		return nil, s.mapError(err)
	}
	payload.MovesPlayed++

	depth := s.cfg.SearchDepth
	before, err := s.engine.Analyze(ctx, prev.Position, depth)
	if err != nil {
		return nil, s.mapError(err)
	}
	best, err := s.engine.BestMove(ctx, prev.Position, depth)
	if err != nil {
		return nil, s.mapError(err)
	}
	after, err := s.engine.Analyze(ctx, entry.Position, depth)
	if err != nil {
		return nil, s.mapError(err)
	}

	tier, err := s.classifier.Classify(before, after, prev.Position.Turn(), entry.MoveSAN == best.SAN)
	if err != nil {
		return nil, s.mapError(err)
	}
	if tier == classify.Blunder {
		payload.Blunders++
	}

	coaching := s.demoMoveCoaching(ctx, payload, entry, tier, after)

	payload.Board = machine.Snapshot()
	if err := s.saveSession(ctx, req.SessionID, payload); err != nil {
		return nil, s.mapError(err)
	}

	return &coachdto.SubmitDemoMoveResponse{
		Board:          boardView(machine),
		Classification: tier.String(),
		Evaluation:     evaluationDTO(after),
		Coaching:       coaching,
	}, nil
}

func (s *Service) demoMoveCoaching(ctx context.Context, payload *sessionPayload, entry board.Entry, tier classify.Tier, after engine.Evaluation) string {
	turn, err := s.agent.Converse(ctx, corecoach.ConverseRequest{
		Message:         fmt.Sprintf("I just played %s on the demonstration board. The move was rated %s and the engine now shows %s. What do you think?", entry.MoveSAN, tier, after),
		PositionContext: positionContext(entry),
		History:         payload.History,
		IncludeCorpus:   false,
	})
	if err != nil && !errors.Is(err, corecoach.ErrMalformedToolCall) {
		s.logger.Warn("demo move coaching unavailable", zap.String("session", payload.SessionUUID), zap.Error(err))
		return ""
	}
	payload.Turns++
	payload.History = s.trimHistory(append(payload.History,
		corecoach.Message{Role: corecoach.RoleUser, Content: "played " + entry.MoveSAN},
		corecoach.Message{Role: corecoach.RoleAssistant, Content: turn.Reply},
	))
	return turn.Reply
}

// SwitchMode toggles the visible board without touching either mode's state.
func (s *Service) SwitchMode(ctx context.Context, req coachdto.SwitchModeRequest) (*coachdto.BoardResponse, error) {
	payload, machine, err := s.loadOrCreateSession(ctx, req.SessionID)
	if err != nil {
		return nil, s.mapError(err)
	}

	switch board.Mode(req.Mode) {
	case board.ModeMyGame:
		machine.SwitchToMyGame()
	case board.ModeCoachDemo:
		machine.SwitchToCoachDemo()
	default:
		return nil, &coachdto.DomainError{Code: coachdto.CodeInvalidInput, Message: fmt.Sprintf("unknown mode %q", req.Mode)}
	}

	payload.Board = machine.Snapshot()
	if err := s.saveSession(ctx, req.SessionID, payload); err != nil {
		return nil, s.mapError(err)
	}
	return &coachdto.BoardResponse{Board: boardView(machine)}, nil
}

// Navigate steps the active mode's cursor. Stepping past either end keeps
// the cursor in place.
func (s *Service) Navigate(ctx context.Context, req coachdto.NavigateRequest) (*coachdto.BoardResponse, error) {
	payload, machine, err := s.loadOrCreateSession(ctx, req.SessionID)
	if err != nil {
		return nil, s.mapError(err)
	}

	switch req.Direction {
	case "back":
		machine.StepBack()
	case "forward":
		machine.StepForward()
	default:
		return nil, &coachdto.DomainError{Code: coachdto.CodeInvalidInput, Message: fmt.Sprintf("unknown direction %q", req.Direction)}
	}

	payload.Board = machine.Snapshot()
	if err := s.saveSession(ctx, req.SessionID, payload); err != nil {
		return nil, s.mapError(err)
	}
	return &coachdto.BoardResponse{Board: boardView(machine)}, nil
}

// EndSession archives the session summary and drops the cached state.
func (s *Service) EndSession(ctx context.Context, sessionID string) (*coachdto.SessionRecord, error) {
	payload, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, s.mapError(err)
	}
	if payload == nil {
		return nil, &coachdto.DomainError{Code: coachdto.CodeInvalidInput, Message: "unknown session"}
	}

	now := time.Now()
	record := &coachdto.SessionRecord{
		SessionUUID: payload.SessionUUID,
		StartedAt:   payload.StartedAt,
		EndedAt:     now,
		Duration:    now.Sub(payload.StartedAt),
		Turns:       payload.Turns,
		MovesPlayed: payload.MovesPlayed,
		Blunders:    payload.Blunders,
	}

	id, err := s.repo.InsertSession(ctx, sessionToDomain(record))
	if err != nil && !errors.Is(err, ErrDuplicateSession) {
		return nil, s.mapError(err)
	}
	record.ID = id

	if err := s.deleteSession(ctx, sessionID); err != nil {
		s.logger.Warn("failed to drop session cache entry", zap.Error(err))
	}
	return record, nil
}

// Sessions lists recently archived session summaries.
func (s *Service) Sessions(ctx context.Context, limit int) ([]coachdto.SessionRecord, error) {
	sessions, err := s.repo.RecentSessions(ctx, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	out := make([]coachdto.SessionRecord, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, coachdto.SessionRecord{
			ID:          sess.ID,
			SessionUUID: sess.SessionUUID,
			StartedAt:   sess.StartedAt,
			EndedAt:     sess.EndedAt,
			Duration:    sess.Duration,
			Turns:       sess.Turns,
			MovesPlayed: sess.MovesPlayed,
			Blunders:    sess.Blunders,
		})
	}
	return out, nil
}

func (s *Service) depthOrDefault(depth int) int {
	if depth == 0 {
		return s.cfg.SearchDepth
	}
	return depth
}

func (s *Service) trimHistory(history []corecoach.Message) []corecoach.Message {
	if len(history) <= s.cfg.HistoryLimit {
		return history
	}
	return history[len(history)-s.cfg.HistoryLimit:]
}

func (s *Service) sessionKey(sessionID string) string {
	return "coach:sessions:" + strings.TrimSpace(sessionID)
}

func (s *Service) loadSession(ctx context.Context, sessionID string) (*sessionPayload, error) {
	payload := &sessionPayload{}
	err := s.cache.Get(ctx, s.sessionKey(sessionID), payload)
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Service) loadOrCreateSession(ctx context.Context, sessionID string) (*sessionPayload, *board.Machine, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, nil, &coachdto.DomainError{Code: coachdto.CodeInvalidInput, Message: "session id is required"}
	}

	payload, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if payload == nil {
		machine := board.NewMachine(nil)
		payload = &sessionPayload{
			SessionUUID: uuid.NewString(),
			Board:       machine.Snapshot(),
			StartedAt:   time.Now(),
		}
		return payload, machine, nil
	}

	machine, err := board.FromSnapshot(payload.Board)
	if err != nil {
		return nil, nil, err
	}
	return payload, machine, nil
}

func (s *Service) saveSession(ctx context.Context, sessionID string, payload *sessionPayload) error {
	if payload == nil {
		return fmt.Errorf("cannot save nil session payload")
	}
	payload.UpdatedAt = time.Now()
	return s.cache.Set(ctx, s.sessionKey(sessionID), payload, s.cfg.SessionTTL)
}

func (s *Service) deleteSession(ctx context.Context, sessionID string) error {
	return s.cache.Del(ctx, s.sessionKey(sessionID))
}

// mapError translates internal failures into the caller-facing taxonomy.
func (s *Service) mapError(err error) error {
	var domErr *coachdto.DomainError
	if errors.As(err, &domErr) {
		return domErr
	}

	switch {
	case errors.Is(err, corechess.ErrInvalidPosition),
		errors.Is(err, corechess.ErrInvalidMove),
		errors.Is(err, engine.ErrInvalidDepth):
		return &coachdto.DomainError{Code: coachdto.CodeInvalidInput, Message: err.Error()}
	case errors.Is(err, board.ErrIllegalMove),
		errors.Is(err, board.ErrPassiveMode):
		return &coachdto.DomainError{Code: coachdto.CodeIllegalMove, Message: err.Error()}
	case errors.Is(err, engine.ErrEngineUnavailable):
		return &coachdto.DomainError{Code: coachdto.CodeEngineUnavailable, Message: err.Error(), Retryable: true}
	case errors.Is(err, resilience.ErrRateLimited), errors.Is(err, resilience.ErrThrottled):
		return &coachdto.DomainError{Code: coachdto.CodeRateLimited, Message: err.Error(), Retryable: true}
	case errors.Is(err, corecoach.ErrMalformedToolCall):
		return &coachdto.DomainError{Code: coachdto.CodeMalformedAgentOutput, Message: err.Error()}
	default:
		s.logger.Error("unclassified service failure", zap.Error(err))
		return &coachdto.DomainError{Code: coachdto.CodeInternal, Message: "internal error"}
	}
}
