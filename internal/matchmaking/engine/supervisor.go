package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/louisbranch/stylematch/internal/matchmaking/event"
	"github.com/louisbranch/stylematch/internal/matchmaking/storage"
	"github.com/louisbranch/stylematch/internal/platform/timeouts"
)

// sweepBatch caps how many due sessions one sweep pass notifies.
const sweepBatch = 50

// Supervisor re-checks waiting sessions after a bounded wait and offers
// fallback options when no partner arrived.
//
// Firing never forces a status transition; it only notifies. The durable
// notified marker in the store makes the armed timer, concurrent supervisors,
// and the sweep collectively emit each session's timeout at most once, even
// across process restarts.
type Supervisor struct {
	store       storage.Store
	broadcaster event.Broadcaster
	wait        time.Duration
	stale       time.Duration
	interval    time.Duration
	clock       func() time.Time
}

// SupervisorConfig carries the supervisor's collaborators and tunables.
type SupervisorConfig struct {
	Store       storage.Store
	Broadcaster event.Broadcaster
	Wait        time.Duration
	Stale       time.Duration
	Interval    time.Duration
}

// NewSupervisor creates a Supervisor with defaults filled in.
func NewSupervisor(cfg SupervisorConfig) (*Supervisor, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	s := &Supervisor{
		store:       cfg.Store,
		broadcaster: cfg.Broadcaster,
		wait:        cfg.Wait,
		stale:       cfg.Stale,
		interval:    cfg.Interval,
		clock:       time.Now,
	}
	if s.broadcaster == nil {
		s.broadcaster = event.NopBroadcaster{}
	}
	if s.wait <= 0 {
		s.wait = timeouts.MatchWait
	}
	if s.stale <= 0 {
		s.stale = timeouts.StaleWaiting
	}
	if s.interval <= 0 {
		s.interval = timeouts.SweepInterval
	}
	return s, nil
}

// Arm schedules the deferred timeout check for a waiting session. The timer
// holds no resources while dormant; if the process restarts before it fires,
// the sweep covers the session instead.
func (s *Supervisor) Arm(sessionID string) {
	if s == nil || sessionID == "" {
		return
	}
	time.AfterFunc(s.wait, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if _, err := s.CheckSession(ctx, sessionID); err != nil {
			log.Printf("waiting timeout check for session %s: %v", sessionID, err)
		}
	})
}

// CheckSession fires the waiting-timeout for one session if it is still
// waiting and not yet notified. It reports whether the event was emitted.
// Checking an already-active or already-notified session is a no-op.
func (s *Supervisor) CheckSession(ctx context.Context, sessionID string) (bool, error) {
	marked, err := s.store.MarkTimeoutNotified(ctx, sessionID, s.clock().UTC())
	if err != nil {
		return false, err
	}
	if !marked {
		return false, nil
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		// The marker committed; emit with what we know rather than dropping.
		s.broadcaster.Publish(event.WaitingTimeout{
			SessionID: sessionID,
			Options:   event.WaitingTimeoutOptions(),
		})
		return true, nil
	}

	s.broadcaster.Publish(event.WaitingTimeout{
		SessionID:  sessionID,
		InviteCode: session.InviteCode,
		Options:    event.WaitingTimeoutOptions(),
	})
	return true, nil
}

// Sweep notifies every due waiting session and archives those past the
// staleness threshold. It backstops armed timers lost to process restarts.
func (s *Supervisor) Sweep(ctx context.Context) error {
	now := s.clock().UTC()

	due, err := s.store.ListWaitingTimeouts(ctx, now.Add(-s.wait), sweepBatch)
	if err != nil {
		return err
	}
	for _, session := range due {
		if _, err := s.CheckSession(ctx, session.ID); err != nil {
			log.Printf("sweep timeout check for session %s: %v", session.ID, err)
		}
	}

	archived, err := s.store.ArchiveStaleWaiting(ctx, now.Add(-s.stale), now)
	if err != nil {
		return err
	}
	if archived > 0 {
		log.Printf("archived %d stale waiting sessions", archived)
	}
	return nil
}

// Run sweeps periodically until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("supervisor sweep: %v", err)
			}
		}
	}
}
