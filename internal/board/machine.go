// Package board holds the two-mode board state machine: a passive viewer for
// a recorded game and an interactive coaching demonstration board. Every
// client-visible board mutation goes through one Machine so mode rules are
// enforced in a single place.
package board

import (
	"errors"
	"fmt"

	"github.com/kapu/chess-coach-go/internal/chess"
)

var (
	ErrIllegalMove = errors.New("board: illegal move")
	ErrPassiveMode = errors.New("board: moves are not accepted in this mode")
)

// Mode names one of the two boards. The values are stable because session
// snapshots carry them.
type Mode string

const (
	ModeMyGame    Mode = "my_game"
	ModeCoachDemo Mode = "coach_demo"
)

// Entry is one navigation stop in a mode's history: the position shown, the
// coach's annotation for it if any, and the move that produced it.
type Entry struct {
	Position   *chess.Position
	Annotation string
	MoveSAN    string
}

type modeState struct {
	entries     []Entry
	index       int
	interactive bool
}

func (s *modeState) current() Entry {
	return s.entries[s.index]
}

// push drops any forward entries past the cursor and appends a new one.
func (s *modeState) push(e Entry) {
	s.entries = append(s.entries[:s.index+1], e)
	s.index = len(s.entries) - 1
}

// Machine owns both boards and the active-mode flag. It is not safe for
// concurrent use; callers serialize access per session.
type Machine struct {
	active Mode
	myGame modeState
	demo   modeState
}

// NewMachine builds a machine whose MyGame board navigates the given
// recorded entries. An empty recording yields a single starting-position
// entry. The demo board starts at the initial position, interactive.
func NewMachine(recorded []Entry) *Machine {
	if len(recorded) == 0 {
		recorded = []Entry{{Position: chess.Starting()}}
	}
	return &Machine{
		active: ModeMyGame,
		myGame: modeState{entries: recorded},
		demo: modeState{
			entries:     []Entry{{Position: chess.Starting()}},
			interactive: true,
		},
	}
}

// Active reports which board the client currently sees.
func (m *Machine) Active() Mode {
	return m.active
}

// Current returns the active mode's entry at its navigation cursor.
func (m *Machine) Current() Entry {
	return m.activeState().current()
}

// Interactive reports whether the active mode accepts user moves.
func (m *Machine) Interactive() bool {
	return m.active == ModeCoachDemo && m.demo.interactive
}

func (m *Machine) activeState() *modeState {
	if m.active == ModeCoachDemo {
		return &m.demo
	}
	return &m.myGame
}

// ApplyDirective shows a coach-requested position. It always activates the
// demo board and pushes the position as the next navigation entry there; the
// viewer board keeps its state untouched.
func (m *Machine) ApplyDirective(pos *chess.Position, annotation string) error {
	if pos == nil {
		return chess.ErrInvalidPosition
	}
	m.active = ModeCoachDemo
	m.demo.push(Entry{Position: pos, Annotation: annotation})
	return nil
}

// SwitchToMyGame activates the viewer board. Neither board's position or
// cursor changes; switching back restores the demo exactly as left.
func (m *Machine) SwitchToMyGame() {
	m.active = ModeMyGame
}

// SwitchToCoachDemo activates the demo board.
func (m *Machine) SwitchToCoachDemo() {
	m.active = ModeCoachDemo
}

// SubmitUserMove plays a user move on the demo board. The move text is
// re-validated against the demo's current position regardless of any
// legality claim from the client. On failure nothing changes.
func (m *Machine) SubmitUserMove(moveText string) (Entry, error) {
	if m.active != ModeCoachDemo || !m.demo.interactive {
		return Entry{}, ErrPassiveMode
	}

	cur := m.demo.current()
	mv, err := cur.Position.ParseMove(moveText)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %q", ErrIllegalMove, moveText)
	}
	next, err := cur.Position.Apply(mv)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %q", ErrIllegalMove, moveText)
	}

	entry := Entry{Position: next, MoveSAN: mv.SAN}
	m.demo.push(entry)
	return entry, nil
}

// StepBack moves the active mode's cursor one entry back. It reports false
// at the start of that mode's history.
func (m *Machine) StepBack() (Entry, bool) {
	s := m.activeState()
	if s.index == 0 {
		return Entry{}, false
	}
	s.index--
	return s.current(), true
}

// StepForward moves the active mode's cursor one entry forward. It reports
// false at the end of that mode's history.
func (m *Machine) StepForward() (Entry, bool) {
	s := m.activeState()
	if s.index >= len(s.entries)-1 {
		return Entry{}, false
	}
	s.index++
	return s.current(), true
}

// ModeSnapshot is the serializable state of one board.
type ModeSnapshot struct {
	FENs        []string `json:"fens"`
	Annotations []string `json:"annotations"`
	MoveSANs    []string `json:"move_sans"`
	Index       int      `json:"index"`
	Interactive bool     `json:"interactive"`
}

// Snapshot is the serializable state of the whole machine, used to park a
// session in the cache between requests.
type Snapshot struct {
	Active Mode         `json:"active"`
	MyGame ModeSnapshot `json:"my_game"`
	Demo   ModeSnapshot `json:"demo"`
}

func snapshotMode(s modeState) ModeSnapshot {
	snap := ModeSnapshot{Index: s.index, Interactive: s.interactive}
	for _, e := range s.entries {
		snap.FENs = append(snap.FENs, e.Position.FEN())
		snap.Annotations = append(snap.Annotations, e.Annotation)
		snap.MoveSANs = append(snap.MoveSANs, e.MoveSAN)
	}
	return snap
}

func restoreMode(snap ModeSnapshot) (modeState, error) {
	if len(snap.FENs) == 0 || snap.Index < 0 || snap.Index >= len(snap.FENs) {
		return modeState{}, fmt.Errorf("%w: bad snapshot cursor", chess.ErrInvalidPosition)
	}
	s := modeState{index: snap.Index, interactive: snap.Interactive}
	for i, fen := range snap.FENs {
		pos, err := chess.ParseFEN(fen)
		if err != nil {
			return modeState{}, err
		}
		e := Entry{Position: pos}
		if i < len(snap.Annotations) {
			e.Annotation = snap.Annotations[i]
		}
		if i < len(snap.MoveSANs) {
			e.MoveSAN = snap.MoveSANs[i]
		}
		s.entries = append(s.entries, e)
	}
	return s, nil
}

// Snapshot captures both boards and the active mode.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Active: m.active,
		MyGame: snapshotMode(m.myGame),
		Demo:   snapshotMode(m.demo),
	}
}

// FromSnapshot rebuilds a machine from a stored snapshot, re-validating
// every position on the way in.
func FromSnapshot(snap Snapshot) (*Machine, error) {
	myGame, err := restoreMode(snap.MyGame)
	if err != nil {
		return nil, err
	}
	demo, err := restoreMode(snap.Demo)
	if err != nil {
		return nil, err
	}
	active := snap.Active
	if active != ModeMyGame && active != ModeCoachDemo {
		active = ModeMyGame
	}
	return &Machine{active: active, myGame: myGame, demo: demo}, nil
}
