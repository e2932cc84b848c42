package domain

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/stylematch/internal/platform/errors"
	"github.com/louisbranch/stylematch/internal/platform/id"
)

// Status describes the lifecycle state of a session.
type Status int

const (
	// StatusUnspecified represents an invalid session status value.
	StatusUnspecified Status = iota
	// StatusWaiting indicates the session has one participant awaiting a partner.
	StatusWaiting
	// StatusActive indicates both participants are paired and rounds exist.
	StatusActive
	// StatusReveal indicates the styling rounds ended and results are shown.
	StatusReveal
	// StatusFinished indicates the session is over or archived.
	StatusFinished
)

// StatusLabel returns the string label for a session status.
func StatusLabel(status Status) string {
	switch status {
	case StatusWaiting:
		return "waiting"
	case StatusActive:
		return "active"
	case StatusReveal:
		return "reveal"
	case StatusFinished:
		return "finished"
	default:
		return "unspecified"
	}
}

// StatusFromLabel converts a status label to a Status value.
func StatusFromLabel(label string) Status {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "waiting":
		return StatusWaiting
	case "active":
		return StatusActive
	case "reveal":
		return StatusReveal
	case "finished":
		return StatusFinished
	default:
		return StatusUnspecified
	}
}

// CanTransition reports whether moving from one status to another respects
// the monotonic ordering waiting -> active -> reveal -> finished.
// Skipping forward is allowed (waiting sessions are archived straight to
// finished); regression never is.
func CanTransition(from, to Status) bool {
	if from == StatusUnspecified || to == StatusUnspecified {
		return false
	}
	return to > from
}

// Session represents a paired styling session between two participants.
type Session struct {
	ID        string
	Status    Status
	IsPrivate bool
	// InviteCode is set while the session is waiting; dead afterwards.
	InviteCode  string
	CreatedAt   time.Time
	ActivatedAt *time.Time // nil until a partner joins
	EndedAt     *time.Time // nil until the session finishes
	// TimeoutNotifiedAt records when the waiting-timeout fired, if ever.
	TimeoutNotifiedAt *time.Time
}

// CreateSessionInput describes the metadata needed to create a waiting session.
type CreateSessionInput struct {
	IsPrivate  bool
	InviteCode string
}

// CreateSession creates a new waiting session with a generated ID and timestamps.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	code := strings.TrimSpace(input.InviteCode)
	if code == "" {
		return Session{}, apperrors.New(apperrors.CodeSessionMissingInviteCode, "invite code is required")
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, apperrors.Wrap(apperrors.CodeUnknown, "generate session id", err)
	}

	return Session{
		ID:         sessionID,
		Status:     StatusWaiting,
		IsPrivate:  input.IsPrivate,
		InviteCode: code,
		CreatedAt:  now().UTC(),
	}, nil
}
