package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kapu/chess-coach-go/internal/chess"
	"go.uber.org/zap"
)

const steadyEngineScript = `#!/bin/sh
while read line; do
  case "$line" in
    uci) echo "id name fakefish"; echo "uciok" ;;
    isready) echo "readyok" ;;
    go*)
      echo "info depth 10 score cp 35 pv e2e4 e7e5"
      echo "info depth 12 score cp 28 pv e2e4 c7c5"
      echo "bestmove e2e4"
      ;;
  esac
done
`

// Answers one search, then the process exits.
const oneShotEngineScript = `#!/bin/sh
while read line; do
  case "$line" in
    uci) echo "uciok" ;;
    isready) echo "readyok" ;;
    go*)
      echo "info depth 8 score cp 10 pv e2e4"
      echo "bestmove e2e4"
      exit 0
      ;;
  esac
done
`

func newTestAdapter(t *testing.T, script string) *Adapter {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakefish")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake engine: %v", err)
	}
	adapter, err := NewAdapter(Config{BinaryPath: path}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	t.Cleanup(func() { _ = adapter.Close() })
	return adapter
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestAdapter_Analyze(t *testing.T) {
	adapter := newTestAdapter(t, steadyEngineScript)
	pos := chess.Starting()

	eval, err := adapter.Analyze(testContext(t), pos, 12)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !eval.Valid() {
		t.Fatalf("evaluation must have exactly one variant: %+v", eval)
	}
	if eval.Centipawns == nil || *eval.Centipawns != 28 {
		t.Fatalf("expected cp 28 from deepest line, got %+v", eval)
	}
	if eval.Depth != 12 {
		t.Fatalf("depth = %d, want 12", eval.Depth)
	}
}

func TestAdapter_AnalyzeIsDeterministic(t *testing.T) {
	adapter := newTestAdapter(t, steadyEngineScript)
	pos := chess.Starting()
	ctx := testContext(t)

	first, err := adapter.Analyze(ctx, pos, 12)
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	second, err := adapter.Analyze(ctx, pos, 12)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if first.Compare(second) != 0 || first.Depth != second.Depth {
		t.Fatalf("same position and depth diverged: %+v vs %+v", first, second)
	}
}

func TestAdapter_BestMove(t *testing.T) {
	adapter := newTestAdapter(t, steadyEngineScript)

	best, err := adapter.BestMove(testContext(t), chess.Starting(), 12)
	if err != nil {
		t.Fatalf("BestMove: %v", err)
	}
	if best.UCI != "e2e4" || best.SAN != "e4" {
		t.Fatalf("unexpected best move: %+v", best)
	}
}

func TestAdapter_DepthBounds(t *testing.T) {
	adapter := newTestAdapter(t, steadyEngineScript)
	pos := chess.Starting()
	ctx := testContext(t)

	for _, depth := range []int{0, -1, MaxDepth + 1} {
		if _, err := adapter.Analyze(ctx, pos, depth); !errors.Is(err, ErrInvalidDepth) {
			t.Errorf("depth %d: expected ErrInvalidDepth, got %v", depth, err)
		}
	}
}

func TestAdapter_RestartsAfterEngineDeath(t *testing.T) {
	adapter := newTestAdapter(t, oneShotEngineScript)
	pos := chess.Starting()
	ctx := testContext(t)

	if _, err := adapter.Analyze(ctx, pos, 8); err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	// The process exited after the first search; the adapter must respawn it
	// rather than fail or wedge.
	eval, err := adapter.Analyze(ctx, pos, 8)
	if err != nil {
		t.Fatalf("Analyze after engine death: %v", err)
	}
	if eval.Centipawns == nil || *eval.Centipawns != 10 {
		t.Fatalf("unexpected evaluation after restart: %+v", eval)
	}
}

func TestNewAdapter_MissingBinary(t *testing.T) {
	if _, err := NewAdapter(Config{BinaryPath: "/nonexistent/fakefish"}, zap.NewNop()); err == nil {
		t.Fatalf("expected error for missing binary")
	}
}
