// Package storage defines the session store consumed by the matchmaking
// engine. All cross-request coordination flows through these operations;
// the engine holds no in-process locks.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/stylematch/internal/matchmaking/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrJoinConflict indicates the join-as-B precondition failed at commit time:
// the session was no longer waiting with exactly one participant.
var ErrJoinConflict = errors.New("join precondition failed")

// ErrStatusRegression indicates a status update would move backwards in the
// waiting -> active -> reveal -> finished ordering.
var ErrStatusRegression = errors.New("status transition would regress")

// Store persists sessions, participants, and rounds with the atomicity the
// pairing algorithm depends on.
type Store interface {
	// CreateWaitingSession atomically inserts a waiting session and its
	// role-A creator.
	CreateWaitingSession(ctx context.Context, session domain.Session, creator domain.Participant) error

	// FindJoinableWaitingSessions returns up to limit of the oldest public
	// waiting sessions that currently have exactly one participant.
	FindJoinableWaitingSessions(ctx context.Context, limit int) ([]domain.Session, error)

	// FindByInviteCode resolves a code against currently-waiting sessions
	// only. Codes of active or archived sessions return ErrNotFound.
	FindByInviteCode(ctx context.Context, code string) (domain.Session, error)

	// AtomicJoinAsB inserts the role-B joiner and flips the session to
	// active in one transaction. It returns ErrJoinConflict when the
	// session is no longer waiting with exactly one participant.
	AtomicJoinAsB(ctx context.Context, sessionID string, joiner domain.Participant, activatedAt time.Time) error

	// CreateRounds inserts the full round sequence as one atomic batch.
	CreateRounds(ctx context.Context, sessionID string, rounds []domain.Round) error

	// UpdateStatus advances a session's status. Regressions return
	// ErrStatusRegression; finishing stamps ended_at.
	UpdateStatus(ctx context.Context, sessionID string, to domain.Status, at time.Time) error

	// GetSession loads one session.
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)

	// ListParticipants returns a session's participants ordered by role.
	ListParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error)

	// ListRounds returns a session's rounds ordered by round number.
	ListRounds(ctx context.Context, sessionID string) ([]domain.Round, error)

	// ListWaitingTimeouts returns waiting sessions created at or before
	// cutoff whose timeout has not been notified yet.
	ListWaitingTimeouts(ctx context.Context, cutoff time.Time, limit int) ([]domain.Session, error)

	// MarkTimeoutNotified records the waiting-timeout firing. It reports
	// false when the session is no longer waiting or was already notified,
	// making the fire path idempotent across supervisors and restarts.
	MarkTimeoutNotified(ctx context.Context, sessionID string, at time.Time) (bool, error)

	// ArchiveStaleWaiting finishes sessions still waiting at or before
	// cutoff and reports how many were archived.
	ArchiveStaleWaiting(ctx context.Context, cutoff time.Time, at time.Time) (int, error)

	// CountActivationsSince counts sessions activated after since. The
	// queue ETA hint is derived from it.
	CountActivationsSince(ctx context.Context, since time.Time) (int, error)
}
