package engine

import "strconv"

// mateHorizon is an effective value placed beyond any centipawn score so a
// forced mate always dominates positional scores in comparisons.
const mateHorizon = 1_000_000

// Evaluation is the engine's verdict for one position, strictly from the
// perspective of the side to move in the analyzed position. Exactly one of
// Centipawns or Mate is set. Mate is plies to mate; negative means the
// opponent delivers it.
type Evaluation struct {
	Centipawns *int
	Mate       *int
	Depth      int
}

// BestMove is the engine's preferred move in both textual encodings.
type BestMove struct {
	UCI string
	SAN string
}

// IsMate reports whether the evaluation is a forced mate.
func (e Evaluation) IsMate() bool {
	return e.Mate != nil
}

// Valid reports whether exactly one variant is populated.
func (e Evaluation) Valid() bool {
	return (e.Centipawns != nil) != (e.Mate != nil)
}

// Effective collapses the evaluation onto a single comparable scale.
// Mate scores sit beyond any centipawn score of the same sign; a shorter
// mate for the winner compares greater than a longer one.
func (e Evaluation) Effective() int {
	if e.Mate != nil {
		m := *e.Mate
		if m >= 0 {
			return mateHorizon - m
		}
		return -mateHorizon - m
	}
	if e.Centipawns != nil {
		return *e.Centipawns
	}
	return 0
}

// Compare orders two evaluations sharing the same perspective.
// Returns -1, 0, or 1.
func (e Evaluation) Compare(other Evaluation) int {
	a, b := e.Effective(), other.Effective()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String renders the score the way engine GUIs do: "+0.35", "-1.20", "#5",
// "#-2".
func (e Evaluation) String() string {
	if e.Mate != nil {
		return "#" + strconv.Itoa(*e.Mate)
	}
	if e.Centipawns == nil {
		return "?"
	}
	cp := *e.Centipawns
	sign := "+"
	if cp < 0 {
		sign = "-"
		cp = -cp
	}
	whole := cp / 100
	frac := cp % 100
	if frac < 10 {
		return sign + strconv.Itoa(whole) + ".0" + strconv.Itoa(frac)
	}
	return sign + strconv.Itoa(whole) + "." + strconv.Itoa(frac)
}

// Cp builds a centipawn evaluation. Test and call-site helper.
func Cp(value, depth int) Evaluation {
	v := value
	return Evaluation{Centipawns: &v, Depth: depth}
}

// MateIn builds a mate evaluation.
func MateIn(plies, depth int) Evaluation {
	m := plies
	return Evaluation{Mate: &m, Depth: depth}
}
