package domain

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/stylematch/internal/platform/errors"
	"github.com/louisbranch/stylematch/internal/platform/id"
)

// Round is a fixed-duration phase of a session with an assigned topic.
type Round struct {
	ID               string
	SessionID        string
	RoundNo          int
	Topic            string
	TimeLimitSeconds int
	StartedAt        time.Time
	EndsAt           time.Time
}

// RoundTemplateEntry is one step of the fixed round sequence.
type RoundTemplateEntry struct {
	Topic            string
	TimeLimitSeconds int
}

// RoundTemplate is the deterministic round sequence applied to every session.
func RoundTemplate() []RoundTemplateEntry {
	return []RoundTemplateEntry{
		{Topic: "attire", TimeLimitSeconds: 180},
		{Topic: "hair", TimeLimitSeconds: 180},
		{Topic: "location", TimeLimitSeconds: 120},
	}
}

// BuildRounds materializes the template into absolute-instant rounds.
// Round 1 starts grace after activation; each later round starts exactly when
// the previous one ends, so start times are strictly increasing with no gaps.
func BuildRounds(sessionID string, activatedAt time.Time, grace time.Duration, idGenerator func() (string, error)) ([]Round, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperrors.New(apperrors.CodeRoundEmptySessionID, "session id is required")
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	start := activatedAt.UTC().Add(grace)
	template := RoundTemplate()
	rounds := make([]Round, 0, len(template))
	for i, entry := range template {
		roundID, err := idGenerator()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeUnknown, "generate round id", err)
		}
		ends := start.Add(time.Duration(entry.TimeLimitSeconds) * time.Second)
		rounds = append(rounds, Round{
			ID:               roundID,
			SessionID:        sessionID,
			RoundNo:          i + 1,
			Topic:            entry.Topic,
			TimeLimitSeconds: entry.TimeLimitSeconds,
			StartedAt:        start,
			EndsAt:           ends,
		})
		start = ends
	}
	return rounds, nil
}
