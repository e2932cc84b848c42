package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/stylematch/internal/matchmaking/domain"
)

// CreateRounds inserts a session's full round sequence as one atomic batch.
// Either every round commits or none do.
func (s *Store) CreateRounds(ctx context.Context, sessionID string, rounds []domain.Round) error {
	if err := s.ready(); err != nil {
		return err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if len(rounds) == 0 {
		return fmt.Errorf("at least one round is required")
	}
	for _, round := range rounds {
		if round.SessionID != sessionID {
			return fmt.Errorf("round %d session id mismatch", round.RoundNo)
		}
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, round := range rounds {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO rounds (id, session_id, round_no, topic, time_limit_seconds, started_at, ends_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
				round.ID,
				round.SessionID,
				round.RoundNo,
				round.Topic,
				round.TimeLimitSeconds,
				toMillis(round.StartedAt),
				toMillis(round.EndsAt),
			); err != nil {
				return fmt.Errorf("insert round %d: %w", round.RoundNo, err)
			}
		}
		return nil
	})
}

// ListRounds returns a session's rounds ordered by round number.
func (s *Store) ListRounds(ctx context.Context, sessionID string) ([]domain.Round, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, round_no, topic, time_limit_seconds, started_at, ends_at
FROM rounds
WHERE session_id = ?
ORDER BY round_no ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		var (
			round     domain.Round
			startedAt int64
			endsAt    int64
		)
		if err := rows.Scan(&round.ID, &round.SessionID, &round.RoundNo, &round.Topic, &round.TimeLimitSeconds, &startedAt, &endsAt); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		round.StartedAt = fromMillis(startedAt)
		round.EndsAt = fromMillis(endsAt)
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	return rounds, nil
}
