package domain

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/stylematch/internal/platform/errors"
	"github.com/louisbranch/stylematch/internal/platform/id"
)

// Role identifies which side of the pairing a participant holds.
type Role int

const (
	// RoleUnspecified represents an invalid role value.
	RoleUnspecified Role = iota
	// RoleA is the session creator.
	RoleA
	// RoleB is the joiner.
	RoleB
)

// RoleLabel returns the string label for a participant role.
func RoleLabel(role Role) string {
	switch role {
	case RoleA:
		return "A"
	case RoleB:
		return "B"
	default:
		return "unspecified"
	}
}

// RoleFromLabel converts a role label to a Role value.
func RoleFromLabel(label string) Role {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "A":
		return RoleA
	case "B":
		return RoleB
	default:
		return RoleUnspecified
	}
}

// BotUserIDPrefix marks synthetic partner identities.
const BotUserIDPrefix = "bot:"

// Participant represents one side of a session pairing.
type Participant struct {
	ID        string
	SessionID string
	Role      Role
	UserID    string
	// AvatarName is the generated display alias, never user-supplied.
	AvatarName string
	IsBot      bool
	JoinedAt   time.Time
}

// CreateParticipantInput describes the metadata needed to create a participant.
type CreateParticipantInput struct {
	SessionID  string
	Role       Role
	UserID     string
	AvatarName string
	IsBot      bool
}

// CreateParticipant creates a participant record with a generated ID and timestamp.
func CreateParticipant(input CreateParticipantInput, now func() time.Time, idGenerator func() (string, error)) (Participant, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.SessionID = strings.TrimSpace(input.SessionID)
	if input.SessionID == "" {
		return Participant{}, apperrors.New(apperrors.CodeParticipantEmptySessionID, "session id is required")
	}
	if input.Role != RoleA && input.Role != RoleB {
		return Participant{}, apperrors.New(apperrors.CodeParticipantInvalidRole, "participant role is invalid")
	}
	input.UserID = strings.TrimSpace(input.UserID)
	if input.UserID == "" {
		return Participant{}, apperrors.New(apperrors.CodeParticipantEmptyUserID, "user id is required")
	}

	participantID, err := idGenerator()
	if err != nil {
		return Participant{}, apperrors.Wrap(apperrors.CodeUnknown, "generate participant id", err)
	}

	avatarName := strings.TrimSpace(input.AvatarName)
	if avatarName == "" {
		avatarName = NewAvatarName()
	}

	return Participant{
		ID:         participantID,
		SessionID:  input.SessionID,
		Role:       input.Role,
		UserID:     input.UserID,
		AvatarName: avatarName,
		IsBot:      input.IsBot,
		JoinedAt:   now().UTC(),
	}, nil
}

// NewBotIdentity returns a synthetic partner identity for bot pairings.
func NewBotIdentity(idGenerator func() (string, error)) (string, error) {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	value, err := idGenerator()
	if err != nil {
		return "", err
	}
	return BotUserIDPrefix + value, nil
}

// IsBotIdentity reports whether a user id names a synthetic partner.
func IsBotIdentity(userID string) bool {
	return strings.HasPrefix(userID, BotUserIDPrefix)
}
