package classify

import (
	"errors"
	"testing"

	nchess "github.com/corentings/chess/v2"

	"github.com/kapu/chess-coach-go/internal/engine"
)

func TestClassify_ThresholdBands(t *testing.T) {
	c := New(DefaultThresholds())

	cases := []struct {
		name       string
		before     engine.Evaluation
		after      engine.Evaluation
		mover      nchess.Color
		playedBest bool
		want       Tier
	}{
		// after evals are from the opponent's perspective, so a mover
		// loss shows up there as an opponent gain.
		{"white blunder", engine.Cp(50, 12), engine.Cp(260, 12), nchess.White, false, Blunder},
		{"white mistake", engine.Cp(50, 12), engine.Cp(80, 12), nchess.White, false, Mistake},
		{"white inaccuracy", engine.Cp(50, 12), engine.Cp(20, 12), nchess.White, false, Inaccuracy},
		{"white good", engine.Cp(50, 12), engine.Cp(-20, 12), nchess.White, false, Good},
		{"white excellent", engine.Cp(50, 12), engine.Cp(-45, 12), nchess.White, false, Excellent},
		{"white played engine best", engine.Cp(50, 12), engine.Cp(-20, 12), nchess.White, true, Best},
		{"black blunder", engine.Cp(30, 12), engine.Cp(340, 12), nchess.Black, false, Blunder},
		{"black excellent", engine.Cp(30, 12), engine.Cp(-25, 12), nchess.Black, false, Excellent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Classify(tc.before, tc.after, tc.mover, tc.playedBest)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassify_Monotonicity(t *testing.T) {
	c := New(DefaultThresholds())
	before := engine.Cp(0, 12)

	prev := Tier(int(Best) + 1)
	// Growing opponent gain after the move means growing mover loss.
	for gain := 0; gain <= 600; gain += 25 {
		got, err := c.Classify(before, engine.Cp(gain, 12), nchess.White, false)
		if err != nil {
			t.Fatalf("gain %d: %v", gain, err)
		}
		if got > prev {
			t.Fatalf("tier improved from %s to %s as loss grew to %d", prev, got, gain)
		}
		prev = got
	}
}

func TestClassify_MateDominance(t *testing.T) {
	c := New(DefaultThresholds())

	// Handing the opponent a forced mate is a blunder even when the
	// centipawn swing would be tiny.
	got, err := c.Classify(engine.Cp(5, 12), engine.MateIn(3, 12), nchess.White, false)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != Blunder {
		t.Fatalf("opponent mate classified %s, want blunder", got)
	}

	// Finding a forced mate is best even from a winning position where
	// the numeric delta is negative.
	got, err = c.Classify(engine.Cp(900, 12), engine.MateIn(-4, 12), nchess.Black, false)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != Best {
		t.Fatalf("mover mate classified %s, want best", got)
	}
}

func TestClassify_AlreadyMatedKeepsDeltaLogic(t *testing.T) {
	c := New(DefaultThresholds())

	// The mover was already lost to a forced mate. Staying mated is not
	// re-flagged as a fresh blunder when the mate got no shorter.
	got, err := c.Classify(engine.MateIn(-5, 12), engine.MateIn(5, 12), nchess.White, false)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got == Best {
		t.Fatalf("losing mate continuation classified best")
	}
}

func TestClassify_UnavailableEvaluations(t *testing.T) {
	c := New(DefaultThresholds())

	if _, err := c.Classify(engine.Evaluation{}, engine.Cp(0, 12), nchess.White, false); !errors.Is(err, ErrClassificationUnavailable) {
		t.Fatalf("empty before: got %v", err)
	}
	if _, err := c.Classify(engine.Cp(0, 12), engine.Evaluation{}, nchess.White, false); !errors.Is(err, ErrClassificationUnavailable) {
		t.Fatalf("empty after: got %v", err)
	}
}

func TestNew_RejectsInvertedThresholds(t *testing.T) {
	c := New(Thresholds{BlunderLoss: 10, MistakeLoss: 100, InaccuracyLoss: 50, ExcellentLoss: 10})
	if c.thresholds != DefaultThresholds() {
		t.Fatalf("inverted thresholds not replaced with defaults: %+v", c.thresholds)
	}
}
