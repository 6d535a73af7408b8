package coach

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kapu/chess-coach-go/internal/domain"
)

var ErrDuplicateSession = errors.New("coaching session already archived")

// Repository archives finished coaching sessions.
type Repository interface {
	InsertSession(ctx context.Context, session *domain.CoachSession) (int64, error)
	RecentSessions(ctx context.Context, limit int) ([]*domain.CoachSession, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) InsertSession(ctx context.Context, session *domain.CoachSession) (int64, error) {
	if session == nil {
		return 0, fmt.Errorf("nil coach session payload")
	}

	const query = `
		INSERT INTO coach_sessions (
			session_uuid,
			started_at,
			ended_at,
			duration_ms,
			turns,
			moves_played,
			blunders
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_uuid) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err := r.db.QueryRowContext(
		ctx,
		query,
		session.SessionUUID,
		session.StartedAt,
		session.EndedAt,
		session.Duration.Milliseconds(),
		session.Turns,
		session.MovesPlayed,
		session.Blunders,
	).Scan(&id)
	if err == sql.ErrNoRows || (err == nil && !id.Valid) {
		return 0, ErrDuplicateSession
	}
	if err != nil {
		return 0, fmt.Errorf("insert coach session: %w", err)
	}
	return id.Int64, nil
}

func (r *repository) RecentSessions(ctx context.Context, limit int) ([]*domain.CoachSession, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT
			id,
			session_uuid,
			started_at,
			ended_at,
			duration_ms,
			turns,
			moves_played,
			blunders
		FROM coach_sessions
		ORDER BY ended_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query coach sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.CoachSession
	for rows.Next() {
		s := &domain.CoachSession{}
		var durationMS int64
		if err := rows.Scan(
			&s.ID,
			&s.SessionUUID,
			&s.StartedAt,
			&s.EndedAt,
			&durationMS,
			&s.Turns,
			&s.MovesPlayed,
			&s.Blunders,
		); err != nil {
			return nil, fmt.Errorf("scan coach session: %w", err)
		}
		s.Duration = millisToDuration(durationMS)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coach sessions: %w", err)
	}
	return sessions, nil
}

func millisToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
