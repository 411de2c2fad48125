package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/partwise/parts-assistant/internal/core/domain"
)

// ConversationRepository persists session metadata and turns. Turn indexes
// are assigned inside a transaction holding the session row lock, so they are
// gapless and strictly increasing even under concurrent writers.
type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) EnsureSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (id, turn_count, created_at, updated_at)
VALUES ($1, 0, $2, $2)
ON CONFLICT (id) DO NOTHING
`, sessionID, now)
	if err != nil {
		return nil, fmt.Errorf("ensure session insert: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
SELECT id, turn_count, created_at, updated_at
FROM sessions
WHERE id = $1
`, sessionID)

	var session domain.Session
	if err := row.Scan(&session.ID, &session.TurnCount, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return nil, fmt.Errorf("ensure session select: %w", err)
	}
	return &session, nil
}

func (r *ConversationRepository) Recent(ctx context.Context, sessionID string, n int) ([]domain.Turn, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT session_id, idx, role, content, entities, created_at
FROM session_turns
WHERE session_id = $1
ORDER BY idx DESC
LIMIT $2
`, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Turn, 0, n)
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent turns: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// AppendExchange writes the user and assistant turns of one exchange in a
// single transaction. Either both land or neither does.
func (r *ConversationRepository) AppendExchange(ctx context.Context, sessionID string, user, assistant domain.Turn) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	row := tx.QueryRowContext(ctx, `
SELECT turn_count FROM sessions WHERE id = $1 FOR UPDATE
`, sessionID)

	var turnCount int
	if err := row.Scan(&turnCount); err != nil {
		if err == sql.ErrNoRows {
			return domain.WrapError(domain.ErrSessionNotFound, "append exchange", fmt.Errorf("session %s", sessionID))
		}
		return fmt.Errorf("lock session row: %w", err)
	}

	user.Index = turnCount
	assistant.Index = turnCount + 1
	for _, turn := range []domain.Turn{user, assistant} {
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = now
		}
		entitiesJSON, err := json.Marshal(turn.Entities)
		if err != nil {
			return fmt.Errorf("marshal turn entities: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO session_turns (session_id, idx, role, content, entities, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, sessionID, turn.Index, string(turn.Role), turn.Text, entitiesJSON, turn.CreatedAt); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE sessions SET turn_count = $2, updated_at = $3 WHERE id = $1
`, sessionID, turnCount+2, now); err != nil {
		return fmt.Errorf("update session turn count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (r *ConversationRepository) Reset(ctx context.Context, sessionID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_turns WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete session turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE sessions SET turn_count = 0, updated_at = $2 WHERE id = $1
`, sessionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("reset session counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset tx: %w", err)
	}
	return nil
}

func scanTurn(rows *sql.Rows) (domain.Turn, error) {
	var turn domain.Turn
	var role string
	var entitiesRaw []byte
	if err := rows.Scan(&turn.SessionID, &turn.Index, &role, &turn.Text, &entitiesRaw, &turn.CreatedAt); err != nil {
		return domain.Turn{}, fmt.Errorf("scan turn: %w", err)
	}
	turn.Role = domain.TurnRole(role)
	if len(entitiesRaw) > 0 {
		if err := json.Unmarshal(entitiesRaw, &turn.Entities); err != nil {
			return domain.Turn{}, fmt.Errorf("unmarshal turn entities: %w", err)
		}
	}
	return turn, nil
}
