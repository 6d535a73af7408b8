package domain

import "time"

// CoachSession is the archived summary of one coaching session.
type CoachSession struct {
	ID          int64
	SessionUUID string
	StartedAt   time.Time
	EndedAt     time.Time
	Duration    time.Duration
	Turns       int
	MovesPlayed int
	Blunders    int
}
