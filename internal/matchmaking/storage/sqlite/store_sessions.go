package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/stylematch/internal/matchmaking/domain"
	"github.com/louisbranch/stylematch/internal/matchmaking/storage"
)

const sessionColumns = `id, status, is_private, invite_code, created_at, activated_at, ended_at, timeout_notified_at`

func scanSession(row interface{ Scan(dest ...any) error }) (domain.Session, error) {
	var (
		session           domain.Session
		status            string
		isPrivate         int64
		inviteCode        sql.NullString
		createdAt         int64
		activatedAt       sql.NullInt64
		endedAt           sql.NullInt64
		timeoutNotifiedAt sql.NullInt64
	)
	if err := row.Scan(&session.ID, &status, &isPrivate, &inviteCode, &createdAt, &activatedAt, &endedAt, &timeoutNotifiedAt); err != nil {
		return domain.Session{}, err
	}
	session.Status = domain.StatusFromLabel(status)
	session.IsPrivate = isPrivate != 0
	session.InviteCode = inviteCode.String
	session.CreatedAt = fromMillis(createdAt)
	session.ActivatedAt = fromNullMillis(activatedAt)
	session.EndedAt = fromNullMillis(endedAt)
	session.TimeoutNotifiedAt = fromNullMillis(timeoutNotifiedAt)
	return session, nil
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

// CreateWaitingSession atomically inserts a waiting session and its role-A creator.
func (s *Store) CreateWaitingSession(ctx context.Context, session domain.Session, creator domain.Participant) error {
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if creator.Role != domain.RoleA {
		return fmt.Errorf("waiting session creator must hold role A")
	}
	if creator.SessionID != session.ID {
		return fmt.Errorf("creator session id mismatch")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		inviteCode := sql.NullString{String: session.InviteCode, Valid: session.InviteCode != ""}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO sessions (id, status, is_private, invite_code, created_at)
VALUES (?, ?, ?, ?, ?)`,
			session.ID,
			domain.StatusLabel(domain.StatusWaiting),
			boolToInt(session.IsPrivate),
			inviteCode,
			toMillis(session.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		if err := insertParticipant(ctx, tx, creator); err != nil {
			return err
		}
		return nil
	})
}

func insertParticipant(ctx context.Context, tx *sql.Tx, participant domain.Participant) error {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO participants (id, session_id, role, user_id, avatar_name, is_bot, joined_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		participant.ID,
		participant.SessionID,
		domain.RoleLabel(participant.Role),
		participant.UserID,
		participant.AvatarName,
		boolToInt(participant.IsBot),
		toMillis(participant.JoinedAt),
	); err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// FindJoinableWaitingSessions returns up to limit of the oldest public waiting
// sessions that currently hold exactly one participant.
//
// The bounded window is deliberate: fairness is a best-effort FIFO heuristic,
// not a strict global queue.
func (s *Store) FindJoinableWaitingSessions(ctx context.Context, limit int) ([]domain.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+sessionColumns+`
FROM sessions
WHERE status = 'waiting'
  AND is_private = 0
  AND (SELECT COUNT(*) FROM participants WHERE participants.session_id = sessions.id) = 1
ORDER BY created_at ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query waiting sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan waiting session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate waiting sessions: %w", err)
	}
	return sessions, nil
}

// FindByInviteCode resolves an invite code against currently-waiting sessions.
// Codes attached to active or archived sessions are dead and return ErrNotFound.
func (s *Store) FindByInviteCode(ctx context.Context, code string) (domain.Session, error) {
	if err := s.ready(); err != nil {
		return domain.Session{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Session{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+sessionColumns+`
FROM sessions
WHERE status = 'waiting' AND invite_code = ?`, code)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, storage.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("query invite code: %w", err)
	}
	return session, nil
}

// AtomicJoinAsB inserts the role-B joiner and activates the session in one
// transaction. The activation update carries the optimistic precondition:
// it only matches a session still waiting with exactly one participant, so
// of two concurrent joiners exactly one commits.
func (s *Store) AtomicJoinAsB(ctx context.Context, sessionID string, joiner domain.Participant, activatedAt time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if joiner.Role != domain.RoleB {
		return fmt.Errorf("joiner must hold role B")
	}
	if joiner.SessionID != sessionID {
		return fmt.Errorf("joiner session id mismatch")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
UPDATE sessions
SET status = 'active', activated_at = ?
WHERE id = ?
  AND status = 'waiting'
  AND (SELECT COUNT(*) FROM participants WHERE session_id = ?) = 1`,
			toMillis(activatedAt), sessionID, sessionID)
		if err != nil {
			return fmt.Errorf("activate session: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("activation rows affected: %w", err)
		}
		if affected != 1 {
			return storage.ErrJoinConflict
		}
		return insertParticipant(ctx, tx, joiner)
	})
}

// UpdateStatus advances a session's status along the monotonic ordering.
func (s *Store) UpdateStatus(ctx context.Context, sessionID string, to domain.Status, at time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if to == domain.StatusUnspecified {
		return fmt.Errorf("target status is required")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = ?`, sessionID)
		var current string
		if err := row.Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("read current status: %w", err)
		}
		from := domain.StatusFromLabel(current)
		if !domain.CanTransition(from, to) {
			return storage.ErrStatusRegression
		}

		endedAt := sql.NullInt64{}
		if to == domain.StatusFinished {
			endedAt = sql.NullInt64{Int64: toMillis(at), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE sessions SET status = ?, ended_at = COALESCE(?, ended_at) WHERE id = ?`,
			domain.StatusLabel(to), endedAt, sessionID); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		return nil
	})
}

// GetSession loads one session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if err := s.ready(); err != nil {
		return domain.Session{}, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Session{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, sessionID)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, storage.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("query session: %w", err)
	}
	return session, nil
}

// ListParticipants returns a session's participants ordered by role.
func (s *Store) ListParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, role, user_id, avatar_name, is_bot, joined_at
FROM participants
WHERE session_id = ?
ORDER BY role ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var (
			participant domain.Participant
			role        string
			isBot       int64
			joinedAt    int64
		)
		if err := rows.Scan(&participant.ID, &participant.SessionID, &role, &participant.UserID, &participant.AvatarName, &isBot, &joinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participant.Role = domain.RoleFromLabel(role)
		participant.IsBot = isBot != 0
		participant.JoinedAt = fromMillis(joinedAt)
		participants = append(participants, participant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return participants, nil
}

// ListWaitingTimeouts returns waiting sessions created at or before cutoff
// whose waiting-timeout has not fired yet.
func (s *Store) ListWaitingTimeouts(ctx context.Context, cutoff time.Time, limit int) ([]domain.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+sessionColumns+`
FROM sessions
WHERE status = 'waiting'
  AND timeout_notified_at IS NULL
  AND created_at <= ?
ORDER BY created_at ASC
LIMIT ?`, toMillis(cutoff), limit)
	if err != nil {
		return nil, fmt.Errorf("query waiting timeouts: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan waiting timeout: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate waiting timeouts: %w", err)
	}
	return sessions, nil
}

// MarkTimeoutNotified records the waiting-timeout firing exactly once.
// The conditional update makes concurrent supervisors and the sweep idempotent.
func (s *Store) MarkTimeoutNotified(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false, fmt.Errorf("session id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions
SET timeout_notified_at = ?
WHERE id = ? AND status = 'waiting' AND timeout_notified_at IS NULL`,
		toMillis(at), sessionID)
	if err != nil {
		return false, fmt.Errorf("mark timeout notified: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("timeout rows affected: %w", err)
	}
	return affected == 1, nil
}

// ArchiveStaleWaiting finishes sessions still waiting at or before cutoff.
func (s *Store) ArchiveStaleWaiting(ctx context.Context, cutoff time.Time, at time.Time) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions
SET status = 'finished', ended_at = ?
WHERE status = 'waiting' AND created_at <= ?`,
		toMillis(at), toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("archive stale waiting: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive rows affected: %w", err)
	}
	return int(affected), nil
}

// CountActivationsSince counts sessions activated after since.
func (s *Store) CountActivationsSince(ctx context.Context, since time.Time) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	var count int
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(*) FROM sessions WHERE activated_at IS NOT NULL AND activated_at > ?`,
		toMillis(since))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count activations: %w", err)
	}
	return count, nil
}
