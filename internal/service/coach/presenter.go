package coach

import (
	"fmt"

	"github.com/kapu/chess-coach-go/internal/board"
	corecoach "github.com/kapu/chess-coach-go/internal/coach"
	"github.com/kapu/chess-coach-go/internal/domain"
	"github.com/kapu/chess-coach-go/internal/engine"
	"github.com/kapu/chess-coach-go/pkg/coachdto"
)

func evaluationDTO(eval engine.Evaluation) coachdto.Evaluation {
	dto := coachdto.Evaluation{Depth: eval.Depth, Display: eval.String()}
	switch {
	case eval.Mate != nil:
		dto.Kind = "mate"
		dto.Value = *eval.Mate
	case eval.Centipawns != nil:
		dto.Kind = "cp"
		dto.Value = *eval.Centipawns
	}
	return dto
}

func boardView(m *board.Machine) coachdto.BoardView {
	cur := m.Current()
	return coachdto.BoardView{
		Mode:        string(m.Active()),
		FEN:         cur.Position.FEN(),
		Annotation:  cur.Annotation,
		LastMoveSAN: cur.MoveSAN,
		Interactive: m.Interactive(),
	}
}

func positionContext(entry board.Entry) string {
	ctx := fmt.Sprintf("The board shows this position (FEN): %s", entry.Position.FEN())
	if entry.Annotation != "" {
		ctx += fmt.Sprintf("\nIt is annotated: %s", entry.Annotation)
	}
	if entry.MoveSAN != "" {
		ctx += fmt.Sprintf("\nThe last move played was %s.", entry.MoveSAN)
	}
	return ctx
}

func fromDTOHistory(history []coachdto.ChatMessage) []corecoach.Message {
	out := make([]corecoach.Message, 0, len(history))
	for _, m := range history {
		role := m.Role
		if role != corecoach.RoleUser && role != corecoach.RoleAssistant {
			role = corecoach.RoleUser
		}
		out = append(out, corecoach.Message{Role: role, Content: m.Content})
	}
	return out
}

func sessionToDomain(record *coachdto.SessionRecord) *domain.CoachSession {
	return &domain.CoachSession{
		SessionUUID: record.SessionUUID,
		StartedAt:   record.StartedAt,
		EndedAt:     record.EndedAt,
		Duration:    record.Duration,
		Turns:       record.Turns,
		MovesPlayed: record.MovesPlayed,
		Blunders:    record.Blunders,
	}
}
