package coachdto

import "time"

// Evaluation is the wire form of an engine verdict. Kind is "cp" or "mate";
// Value is centipawns or plies to mate accordingly. Display is the
// GUI-style rendering ("+0.35", "#-2").
type Evaluation struct {
	Kind    string `json:"kind"`
	Value   int    `json:"value"`
	Depth   int    `json:"depth"`
	Display string `json:"display"`
}

// BoardView is what the client should show: the active mode's position at
// its navigation cursor.
type BoardView struct {
	Mode        string `json:"mode"`
	FEN         string `json:"fen"`
	Annotation  string `json:"annotation,omitempty"`
	LastMoveSAN string `json:"last_move_san,omitempty"`
	Interactive bool   `json:"interactive"`
}

// ChatMessage is one entry of the conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type EvaluatePositionRequest struct {
	FEN   string `json:"fen"`
	Depth int    `json:"depth,omitempty"`
}

type EvaluatePositionResponse struct {
	Evaluation Evaluation `json:"evaluation"`
	BestMove   string     `json:"best_move_san"`
}

type EvaluateMoveRequest struct {
	FEN   string `json:"fen"`
	Move  string `json:"move"`
	Depth int    `json:"depth,omitempty"`
}

type EvaluateMoveResponse struct {
	MoveSAN        string     `json:"move_san"`
	MoveUCI        string     `json:"move_uci"`
	Classification string     `json:"classification"`
	Before         Evaluation `json:"before"`
	After          Evaluation `json:"after"`
	BestMoveSAN    string     `json:"best_move_san"`
	Coaching       string     `json:"coaching,omitempty"`
}

type ConverseRequest struct {
	SessionID string        `json:"session_id"`
	Message   string        `json:"message"`
	History   []ChatMessage `json:"history,omitempty"`
}

type ConverseResponse struct {
	Reply string     `json:"reply"`
	Board *BoardView `json:"board,omitempty"`
}

type SubmitDemoMoveRequest struct {
	SessionID string `json:"session_id"`
	Move      string `json:"move"`
}

type SubmitDemoMoveResponse struct {
	Board          BoardView  `json:"board"`
	Classification string     `json:"classification,omitempty"`
	Evaluation     Evaluation `json:"evaluation"`
	Coaching       string     `json:"coaching,omitempty"`
}

type SwitchModeRequest struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

type NavigateRequest struct {
	SessionID string `json:"session_id"`
	// Direction is "back" or "forward".
	Direction string `json:"direction"`
}

type BoardResponse struct {
	Board BoardView `json:"board"`
}

// SessionRecord is the archived summary of a finished coaching session.
type SessionRecord struct {
	ID          int64         `json:"id"`
	SessionUUID string        `json:"session_uuid"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at"`
	Duration    time.Duration `json:"duration"`
	Turns       int           `json:"turns"`
	MovesPlayed int           `json:"moves_played"`
	Blunders    int           `json:"blunders"`
}
