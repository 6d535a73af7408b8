package chess

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	ErrInvalidPosition = errors.New("invalid chess position")
	ErrInvalidMove     = errors.New("invalid chess move")
)

// StartingFEN is the standard initial position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

const fenFieldCount = 6

// Position is an immutable board position. It always round-trips through FEN:
// the string returned by FEN() parses back to an equal Position.
type Position struct {
	inner *nchess.Position
}

// ParseFEN validates and parses a FEN string. Structural validation runs
// before the notation library so malformed input is rejected with
// ErrInvalidPosition and never reaches an engine.
func ParseFEN(fen string) (*Position, error) {
	trimmed := strings.TrimSpace(fen)
	if err := validateFEN(trimmed); err != nil {
		return nil, err
	}

	opt, err := nchess.FEN(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	game := nchess.NewGame(opt)
	pos := game.Position()
	if pos == nil {
		return nil, ErrInvalidPosition
	}
	return &Position{inner: pos}, nil
}

// Starting returns the standard initial position.
func Starting() *Position {
	pos, err := ParseFEN(StartingFEN)
	if err != nil {
		panic(fmt.Sprintf("starting position failed to parse: %v", err))
	}
	return pos
}

// FEN serializes the position back to its notation string.
func (p *Position) FEN() string {
	return p.inner.String()
}

// Turn reports the side to move.
func (p *Position) Turn() nchess.Color {
	return p.inner.Turn()
}

// Move is a single move relative to a specific Position. UCI holds the
// coordinate form, SAN the algebraic form for the position the move was
// parsed against. Legality is only meaningful for that position; callers
// re-validate via Apply before trusting it anywhere else.
type Move struct {
	UCI string
	SAN string
}

// ParseMove decodes a move in SAN or UCI form against this position.
// SAN is tried first, matching how users type moves; the coordinate
// form is the fallback.
func (p *Position) ParseMove(text string) (Move, error) {
	moveText := strings.TrimSpace(text)
	if moveText == "" {
		return Move{}, ErrInvalidMove
	}

	san := nchess.AlgebraicNotation{}
	uci := nchess.UCINotation{}

	mv, err := san.Decode(p.inner, moveText)
	if err != nil {
		mv, err = uci.Decode(p.inner, strings.ToLower(moveText))
		if err != nil {
			return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, moveText)
		}
	}

	// The coordinate decoder is syntactic only; replay the move on a fresh
	// game so a well-formed but illegal move is rejected here.
	opt, err := nchess.FEN(p.FEN())
	if err != nil {
		return Move{}, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	if err := nchess.NewGame(opt).Move(mv, nil); err != nil {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, moveText)
	}

	return Move{
		UCI: strings.ToLower(uci.Encode(p.inner, mv)),
		SAN: san.Encode(p.inner, mv),
	}, nil
}

// Apply re-validates the move against this position and returns the
// resulting position. The move is never trusted from a prior parse: a Move
// carried across positions fails here with ErrInvalidMove.
func (p *Position) Apply(m Move) (*Position, error) {
	opt, err := nchess.FEN(p.FEN())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	game := nchess.NewGame(opt)

	notation := nchess.UCINotation{}
	mv, err := notation.Decode(game.Position(), strings.ToLower(strings.TrimSpace(m.UCI)))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMove, m.UCI)
	}
	if err := game.Move(mv, nil); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMove, m.UCI)
	}
	return &Position{inner: game.Position()}, nil
}

// validateFEN performs structural checks: field count, rank layout, piece
// characters, and the side-to-move token.
func validateFEN(fen string) error {
	if fen == "" {
		return ErrInvalidPosition
	}
	parts := strings.Fields(fen)
	if len(parts) != fenFieldCount {
		return fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidPosition, fenFieldCount, len(parts))
	}
	if !isValidPiecePlacement(parts[0]) {
		return fmt.Errorf("%w: bad piece placement", ErrInvalidPosition)
	}
	if parts[1] != "w" && parts[1] != "b" {
		return fmt.Errorf("%w: side to move %q", ErrInvalidPosition, parts[1])
	}
	return nil
}

func isValidPiecePlacement(placement string) bool {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return false
	}
	for _, rank := range ranks {
		squares := 0
		for _, ch := range rank {
			switch {
			case ch >= '1' && ch <= '8':
				squares += int(ch - '0')
			case ch == 'P', ch == 'N', ch == 'B', ch == 'R', ch == 'Q', ch == 'K',
				ch == 'p', ch == 'n', ch == 'b', ch == 'r', ch == 'q', ch == 'k':
				squares++
			default:
				return false
			}
		}
		if squares != 8 {
			return false
		}
	}
	return true
}
