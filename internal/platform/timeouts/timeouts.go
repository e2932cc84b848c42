// Package timeouts defines shared timeout constants used across the service.
// Centralizing these values prevents drift between components and makes the
// durations discoverable.
package timeouts

import "time"

// MatchWait is how long a waiting session sits unmatched before the timeout
// supervisor fires a waiting_timeout notification.
const MatchWait = 45 * time.Second

// StaleWaiting is the staleness threshold past which the periodic sweep
// archives sessions still waiting. It backstops supervisors that never fired.
const StaleWaiting = 10 * time.Minute

// RoundGrace is the delay between session activation and the start of the
// first round, giving both participants time to see the pairing.
const RoundGrace = 5 * time.Second

// SweepInterval is how often the supervisor sweep re-checks waiting sessions.
const SweepInterval = 5 * time.Second

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
