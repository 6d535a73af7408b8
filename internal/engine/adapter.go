package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/kapu/chess-coach-go/internal/chess"
	"github.com/kapu/chess-coach-go/internal/chess/uci"
	"go.uber.org/zap"
)

// MaxDepth bounds caller-supplied search depth.
const MaxDepth = 30

var (
	ErrInvalidDepth      = errors.New("search depth out of range")
	ErrEngineUnavailable = errors.New("chess engine unavailable")
)

// Config configures the engine subprocess.
type Config struct {
	BinaryPath string
	Threads    int
	HashMB     int
}

// Adapter owns a single long-lived engine subprocess. Requests are serialized
// behind a mutex: the process is one shared, stateful resource and never runs
// two searches at once. A failed search discards the process; the adapter
// respawns it once for the current request and again lazily for the next one,
// so a crash never wedges the adapter.
type Adapter struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	session *uci.Session
}

func NewAdapter(cfg Config, logger *zap.Logger) (*Adapter, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("engine binary path required")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{cfg: cfg, logger: logger}, nil
}

// Analyze evaluates the position at the given depth. The returned Evaluation
// is from the perspective of the side to move in pos; the adapter never flips
// sign by color.
func (a *Adapter) Analyze(ctx context.Context, pos *chess.Position, depth int) (Evaluation, error) {
	resp, err := a.search(ctx, pos, depth)
	if err != nil {
		return Evaluation{}, err
	}

	eval := Evaluation{
		Centipawns: resp.Score.Centipawns,
		Mate:       resp.Score.Mate,
		Depth:      resp.Depth,
	}
	if !eval.Valid() {
		return Evaluation{}, fmt.Errorf("%w: engine reported no score", ErrEngineUnavailable)
	}
	return eval, nil
}

// BestMove returns the engine's preferred move for the position in both UCI
// and SAN form.
func (a *Adapter) BestMove(ctx context.Context, pos *chess.Position, depth int) (BestMove, error) {
	resp, err := a.search(ctx, pos, depth)
	if err != nil {
		return BestMove{}, err
	}
	if resp.BestMove == "" {
		return BestMove{}, fmt.Errorf("%w: engine returned no best move", ErrEngineUnavailable)
	}

	mv, err := pos.ParseMove(resp.BestMove)
	if err != nil {
		return BestMove{}, fmt.Errorf("decode engine move %q: %w", resp.BestMove, err)
	}
	return BestMove{UCI: mv.UCI, SAN: mv.SAN}, nil
}

func (a *Adapter) search(ctx context.Context, pos *chess.Position, depth int) (uci.SearchResponse, error) {
	if pos == nil {
		return uci.SearchResponse{}, chess.ErrInvalidPosition
	}
	if depth <= 0 || depth > MaxDepth {
		return uci.SearchResponse{}, fmt.Errorf("%w: %d (allowed 1-%d)", ErrInvalidDepth, depth, MaxDepth)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	req := uci.SearchRequest{FEN: pos.FEN(), Depth: depth}

	resp, err := a.searchLocked(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return uci.SearchResponse{}, ctx.Err()
	}

	// Self-heal: one restart, one retry. The discarded process may be mid
	// search; killing it is the only safe way to leave the engine ready for
	// the next request.
	a.logger.Warn("engine search failed, restarting process", zap.Error(err))
	a.discardLocked()
	resp, err = a.searchLocked(ctx, req)
	if err != nil {
		a.discardLocked()
		return uci.SearchResponse{}, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return resp, nil
}

func (a *Adapter) searchLocked(ctx context.Context, req uci.SearchRequest) (uci.SearchResponse, error) {
	session, err := a.sessionLocked(ctx)
	if err != nil {
		return uci.SearchResponse{}, err
	}
	if err := session.NewGame(ctx); err != nil {
		return uci.SearchResponse{}, err
	}
	resp, err := session.Search(ctx, req)
	if err != nil {
		a.discardLocked()
		return uci.SearchResponse{}, err
	}
	return resp, nil
}

func (a *Adapter) sessionLocked(ctx context.Context) (*uci.Session, error) {
	if a.session != nil {
		return a.session, nil
	}
	session, err := uci.NewSession(ctx, a.cfg.BinaryPath, uci.Options{
		Threads: a.cfg.Threads,
		HashMB:  a.cfg.HashMB,
	})
	if err != nil {
		return nil, fmt.Errorf("spawn engine: %w", err)
	}
	a.session = session
	return session, nil
}

func (a *Adapter) discardLocked() {
	if a.session == nil {
		return
	}
	_ = a.session.Close()
	a.session = nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil
	}
	err := a.session.Close()
	a.session = nil
	return err
}
