package uci

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseInfo_Centipawns(t *testing.T) {
	info, ok := parseInfo("info depth 12 seldepth 18 multipv 1 score cp 35 nodes 90210 pv e2e4 e7e5 g1f3")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if info.Depth != 12 {
		t.Fatalf("depth = %d, want 12", info.Depth)
	}
	if info.Score.Centipawns == nil || *info.Score.Centipawns != 35 {
		t.Fatalf("unexpected cp score: %+v", info.Score)
	}
	if info.Score.Mate != nil {
		t.Fatalf("mate must not be set for a cp score")
	}
	if len(info.Principal) != 3 || info.Principal[0] != "e2e4" {
		t.Fatalf("unexpected pv: %v", info.Principal)
	}
}

func TestParseInfo_Mate(t *testing.T) {
	info, ok := parseInfo("info depth 20 score mate -3 pv d8h4")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if info.Score.Mate == nil || *info.Score.Mate != -3 {
		t.Fatalf("unexpected mate score: %+v", info.Score)
	}
	if info.Score.Centipawns != nil {
		t.Fatalf("cp must not be set for a mate score")
	}
}

func TestParseInfo_NoScore(t *testing.T) {
	if _, ok := parseInfo("info depth 5 currmove e2e4 currmovenumber 1"); ok {
		t.Fatalf("info line without score should not parse")
	}
}

const fakeEngineScript = `#!/bin/sh
while read line; do
  case "$line" in
    uci) echo "id name fakefish"; echo "uciok" ;;
    isready) echo "readyok" ;;
    go*)
      echo "info depth 10 score cp 35 pv e2e4 e7e5"
      echo "info string irrelevant chatter"
      echo "info depth 12 score cp 28 pv e2e4 c7c5"
      echo "bestmove e2e4 ponder c7c5"
      ;;
  esac
done
`

func writeFakeEngine(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakefish")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake engine: %v", err)
	}
	return path
}

func TestSession_SearchAgainstFakeEngine(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err := NewSession(ctx, writeFakeEngine(t, fakeEngineScript), Options{})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })

	resp, err := session.Search(ctx, SearchRequest{FEN: "startpos", Depth: 12})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.BestMove != "e2e4" {
		t.Fatalf("best move = %q, want e2e4", resp.BestMove)
	}
	if resp.Depth != 12 {
		t.Fatalf("depth = %d, want deepest info line 12", resp.Depth)
	}
	if resp.Score.Centipawns == nil || *resp.Score.Centipawns != 28 {
		t.Fatalf("score should come from the deepest info line: %+v", resp.Score)
	}
}

func TestSession_SearchRejectsNonPositiveDepth(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err := NewSession(ctx, writeFakeEngine(t, fakeEngineScript), Options{})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })

	if _, err := session.Search(ctx, SearchRequest{FEN: "startpos", Depth: 0}); err == nil {
		t.Fatalf("expected error for depth 0")
	}
}
