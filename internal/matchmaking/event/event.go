// Package event defines the closed set of session-lifecycle events published
// to subscribers. Each variant carries its own strongly-typed payload; there
// are no free-form payloads. Delivery is best-effort, at-most-once.
package event

import "time"

// Name identifies an event variant on the wire.
type Name string

const (
	// NameParticipantJoined fires when role B attaches to a waiting session.
	NameParticipantJoined Name = "participant_joined"
	// NameStatusChanged fires on every session status transition.
	NameStatusChanged Name = "status_changed"
	// NameRoundStarted fires when a round becomes current.
	NameRoundStarted Name = "round_started"
	// NameBotAttached fires when a synthetic partner is paired.
	NameBotAttached Name = "bot_attached"
	// NameWaitingTimeout fires when no partner arrived within the match wait.
	NameWaitingTimeout Name = "waiting_timeout"
)

// Event is one variant of the closed event set.
type Event interface {
	// EventName returns the wire name of the variant.
	EventName() Name
	// Session returns the session the event belongs to.
	Session() string
}

// ParticipantJoined announces a new participant on a session.
type ParticipantJoined struct {
	SessionID  string `json:"session_id"`
	Role       string `json:"role"`
	AvatarName string `json:"avatar_name"`
}

func (e ParticipantJoined) EventName() Name { return NameParticipantJoined }
func (e ParticipantJoined) Session() string { return e.SessionID }

// StatusChanged announces a session lifecycle transition.
type StatusChanged struct {
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

func (e StatusChanged) EventName() Name { return NameStatusChanged }
func (e StatusChanged) Session() string { return e.SessionID }

// RoundStarted announces the current round and its deadline.
type RoundStarted struct {
	SessionID string    `json:"session_id"`
	RoundID   string    `json:"round_id"`
	RoundNo   int       `json:"round_no"`
	Topic     string    `json:"topic"`
	EndsAt    time.Time `json:"ends_at"`
}

func (e RoundStarted) EventName() Name { return NameRoundStarted }
func (e RoundStarted) Session() string { return e.SessionID }

// BotAttached announces a synthetic partner pairing.
type BotAttached struct {
	SessionID  string `json:"session_id"`
	AvatarName string `json:"avatar_name"`
}

func (e BotAttached) EventName() Name { return NameBotAttached }
func (e BotAttached) Session() string { return e.SessionID }

// WaitingTimeout offers fallback options to an unmatched waiter.
type WaitingTimeout struct {
	SessionID  string   `json:"session_id"`
	InviteCode string   `json:"invite_code"`
	Options    []string `json:"options"`
}

func (e WaitingTimeout) EventName() Name { return NameWaitingTimeout }
func (e WaitingTimeout) Session() string { return e.SessionID }

// WaitingTimeoutOptions is the fixed fallback menu offered on timeout.
func WaitingTimeoutOptions() []string {
	return []string{"pair_with_bot", "share_invite", "retry"}
}

// Broadcaster publishes events to session subscribers.
//
// Implementations must be non-blocking on the caller's path; a slow or absent
// subscriber never stalls matchmaking.
type Broadcaster interface {
	Publish(evt Event)
}

// NopBroadcaster discards all events.
type NopBroadcaster struct{}

// Publish implements Broadcaster.
func (NopBroadcaster) Publish(Event) {}
