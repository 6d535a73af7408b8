package chess

import (
	"errors"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func TestParseFEN_RoundTrip(t *testing.T) {
	fens := []string{
		StartingFEN,
		"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
		"8/8/8/4k3/8/8/4K3/4R3 w - - 10 42",
	}
	for _, fen := range fens {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", fen, err)
		}
		reparsed, err := ParseFEN(pos.FEN())
		if err != nil {
			t.Fatalf("re-parse of %q failed: %v", pos.FEN(), err)
		}
		if reparsed.FEN() != pos.FEN() {
			t.Fatalf("FEN not stable: %q vs %q", pos.FEN(), reparsed.FEN())
		}
	}
}

func TestParseFEN_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"too few fields":  "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq",
		"bad side token":  "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1",
		"bad piece char":  "rnbqkbnr/ppppTppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"seven ranks":     "rnbqkbnr/pppppppp/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"nine per rank":   "rnbqkbnr/ppppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"garbage":         "not a position at all",
	}
	for name, fen := range cases {
		if _, err := ParseFEN(fen); !errors.Is(err, ErrInvalidPosition) {
			t.Errorf("%s: expected ErrInvalidPosition, got %v", name, err)
		}
	}
}

func TestParseMove_SANAndUCI(t *testing.T) {
	pos := Starting()

	sanMove, err := pos.ParseMove("e4")
	if err != nil {
		t.Fatalf("ParseMove(e4): %v", err)
	}
	if sanMove.UCI != "e2e4" || sanMove.SAN != "e4" {
		t.Fatalf("unexpected move encodings: uci=%q san=%q", sanMove.UCI, sanMove.SAN)
	}

	uciMove, err := pos.ParseMove("g1f3")
	if err != nil {
		t.Fatalf("ParseMove(g1f3): %v", err)
	}
	if uciMove.SAN != "Nf3" {
		t.Fatalf("expected SAN Nf3, got %q", uciMove.SAN)
	}
}

func TestParseMove_Illegal(t *testing.T) {
	pos := Starting()
	for _, text := range []string{"", "e2e5", "zz9", "Ke2"} {
		if _, err := pos.ParseMove(text); !errors.Is(err, ErrInvalidMove) {
			t.Errorf("ParseMove(%q): expected ErrInvalidMove, got %v", text, err)
		}
	}
}

func TestApply_AdvancesPosition(t *testing.T) {
	pos := Starting()
	mv, err := pos.ParseMove("e4")
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	next, err := pos.Apply(mv)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if next.Turn() != nchess.Black {
		t.Fatalf("expected black to move, got %v", next.Turn())
	}
	if !strings.Contains(next.FEN(), " b ") {
		t.Fatalf("FEN does not reflect black to move: %q", next.FEN())
	}
	// The original position is untouched.
	if pos.Turn() != nchess.White {
		t.Fatalf("source position mutated")
	}
}

func TestApply_RevalidatesAgainstPosition(t *testing.T) {
	pos := Starting()
	mv, err := pos.ParseMove("e2e4")
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	next, err := pos.Apply(mv)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// Same move replayed on the resulting position is no longer legal.
	if _, err := next.Apply(mv); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("expected ErrInvalidMove for stale move, got %v", err)
	}
}
