// Package classify buckets the evaluation swing of a played move into a
// quality tier.
package classify

import (
	"errors"

	nchess "github.com/corentings/chess/v2"

	"github.com/kapu/chess-coach-go/internal/engine"
)

var ErrClassificationUnavailable = errors.New("classify: evaluation unavailable")

// Tier is an ordered move-quality bucket. Higher is better.
type Tier int

const (
	Blunder Tier = iota
	Mistake
	Inaccuracy
	Good
	Excellent
	Best
)

func (t Tier) String() string {
	switch t {
	case Blunder:
		return "blunder"
	case Mistake:
		return "mistake"
	case Inaccuracy:
		return "inaccuracy"
	case Good:
		return "good"
	case Excellent:
		return "excellent"
	case Best:
		return "best"
	default:
		return "unknown"
	}
}

// Thresholds are centipawn cutoffs on the loss a move inflicts on the mover.
// The defaults follow the customary blunder/mistake/inaccuracy bands; callers
// tune them through config rather than editing call sites.
type Thresholds struct {
	BlunderLoss    int
	MistakeLoss    int
	InaccuracyLoss int
	ExcellentLoss  int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		BlunderLoss:    300,
		MistakeLoss:    100,
		InaccuracyLoss: 50,
		ExcellentLoss:  10,
	}
}

func (t Thresholds) valid() bool {
	return t.BlunderLoss >= t.MistakeLoss &&
		t.MistakeLoss >= t.InaccuracyLoss &&
		t.InaccuracyLoss >= t.ExcellentLoss &&
		t.ExcellentLoss >= 0
}

// Classifier derives a Tier from the evaluations surrounding one move.
type Classifier struct {
	thresholds Thresholds
}

func New(thresholds Thresholds) *Classifier {
	if !thresholds.valid() {
		thresholds = DefaultThresholds()
	}
	return &Classifier{thresholds: thresholds}
}

// Classify buckets a move played by mover. The before evaluation is from the
// position where mover was to move; the after evaluation is from the
// resulting position, where the opponent is to move. Both carry the engine's
// side-to-move sign convention and are normalized to a white-positive scale
// here, in one place, so no caller ever flips signs itself. playedEngineBest
// reports whether the move matched the engine's own top choice.
func (c *Classifier) Classify(before, after engine.Evaluation, mover nchess.Color, playedEngineBest bool) (Tier, error) {
	if !before.Valid() || !after.Valid() {
		return Blunder, ErrClassificationUnavailable
	}

	// In the after position the opponent is to move, so a positive mate
	// score there is a mate against the mover.
	if after.IsMate() {
		if *after.Mate <= 0 {
			return Best, nil
		}
		matedBefore := before.IsMate() && *before.Mate < 0
		if !matedBefore {
			return Blunder, nil
		}
	}

	whiteBefore := whitePOV(before, mover)
	whiteAfter := whitePOV(after, opponent(mover))

	loss := whiteBefore - whiteAfter
	if mover == nchess.Black {
		loss = -loss
	}

	switch {
	case loss >= c.thresholds.BlunderLoss:
		return Blunder, nil
	case loss >= c.thresholds.MistakeLoss:
		return Mistake, nil
	case loss >= c.thresholds.InaccuracyLoss:
		return Inaccuracy, nil
	case playedEngineBest:
		return Best, nil
	case loss <= c.thresholds.ExcellentLoss:
		return Excellent, nil
	default:
		return Good, nil
	}
}

func opponent(c nchess.Color) nchess.Color {
	if c == nchess.White {
		return nchess.Black
	}
	return nchess.White
}

// whitePOV collapses an evaluation onto the white-positive scale given the
// side the engine scored it for.
func whitePOV(e engine.Evaluation, sideToMove nchess.Color) int {
	v := e.Effective()
	if sideToMove == nchess.Black {
		return -v
	}
	return v
}
