// Package engine implements the matchmaking state machine: pairing join
// requests into sessions, scheduling rounds, and notifying subscribers.
//
// Handlers calling into the engine are stateless and run concurrently; every
// correctness guarantee rests on the store's transactional preconditions, not
// on in-process locks.
package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/stylematch/internal/genjobs"
	"github.com/louisbranch/stylematch/internal/matchmaking/domain"
	"github.com/louisbranch/stylematch/internal/matchmaking/event"
	"github.com/louisbranch/stylematch/internal/matchmaking/storage"
	apperrors "github.com/louisbranch/stylematch/internal/platform/errors"
	"github.com/louisbranch/stylematch/internal/platform/id"
	"github.com/louisbranch/stylematch/internal/platform/retry"
	"github.com/louisbranch/stylematch/internal/platform/timeouts"
)

// DefaultScanWindow bounds the public-matchmaking FIFO scan. A session outside
// the window can starve under sustained contention; the bounded scan is a
// deliberate fairness heuristic, not a strict queue.
const DefaultScanWindow = 5

// etaWindow is the lookback used for the advisory queue ETA hint.
const etaWindow = 5 * time.Minute

// WaitArmer registers a deferred timeout check for a freshly-created waiting
// session.
type WaitArmer interface {
	Arm(sessionID string)
}

// NopWaitArmer ignores arm requests. The sweep still covers such sessions.
type NopWaitArmer struct{}

// Arm implements WaitArmer.
func (NopWaitArmer) Arm(string) {}

// Config carries the engine's collaborators and tunables.
type Config struct {
	Store       storage.Store
	Broadcaster event.Broadcaster
	Jobs        genjobs.Queue
	Armer       WaitArmer
	RetryPolicy retry.Policy
	ScanWindow  int
	RoundGrace  time.Duration
}

// Engine pairs join requests into sessions and drives their lifecycle.
type Engine struct {
	store         storage.Store
	broadcaster   event.Broadcaster
	jobs          genjobs.Queue
	armer         WaitArmer
	policy        retry.Policy
	scanWindow    int
	roundGrace    time.Duration
	clock         func() time.Time
	idGenerator   func() (string, error)
	codeGenerator func() (string, error)
	tracer        trace.Tracer
}

// New creates an Engine with defaults filled in.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	eng := &Engine{
		store:         cfg.Store,
		broadcaster:   cfg.Broadcaster,
		jobs:          cfg.Jobs,
		armer:         cfg.Armer,
		policy:        cfg.RetryPolicy,
		scanWindow:    cfg.ScanWindow,
		roundGrace:    cfg.RoundGrace,
		clock:         time.Now,
		idGenerator:   id.NewID,
		codeGenerator: domain.NewInviteCode,
		tracer:        otel.Tracer("matchmaking"),
	}
	if eng.broadcaster == nil {
		eng.broadcaster = event.NopBroadcaster{}
	}
	if eng.jobs == nil {
		eng.jobs = genjobs.NopQueue{}
	}
	if eng.armer == nil {
		eng.armer = NopWaitArmer{}
	}
	if eng.policy.MaxAttempts == 0 {
		eng.policy = retry.DefaultPolicy()
	}
	if eng.scanWindow <= 0 {
		eng.scanWindow = DefaultScanWindow
	}
	if eng.roundGrace <= 0 {
		eng.roundGrace = timeouts.RoundGrace
	}
	return eng, nil
}

// JoinInput describes one join request.
type JoinInput struct {
	UserID     string
	IsPrivate  bool
	InviteCode string
}

// JoinResult is what the caller sees after a join resolves.
type JoinResult struct {
	SessionID  string
	Role       domain.Role
	Status     domain.Status
	InviteCode string
	AvatarName string
	QueueETA   time.Duration
	BotDemo    bool
}

// Join resolves a join request: attach to a compatible waiting session if one
// exists, otherwise create a new waiting session owned by the caller.
//
// Losing the join-as-B race is never surfaced; the loser transparently becomes
// the creator of a fresh waiting session. Invalid or expired invite codes
// silently degrade to a fresh private session.
func (e *Engine) Join(ctx context.Context, input JoinInput) (JoinResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Join")
	defer span.End()

	if input.UserID == "" {
		return JoinResult{}, apperrors.New(apperrors.CodeAuthRequired, "user identity is required")
	}

	if input.InviteCode != "" {
		return e.joinWithInvite(ctx, input)
	}
	if input.IsPrivate {
		return e.createWaiting(ctx, input.UserID, true)
	}
	return e.joinPublic(ctx, input.UserID)
}

// joinWithInvite resolves an invite-code join. A dead code never errors; the
// caller falls back to owning a fresh private session with a fresh code.
func (e *Engine) joinWithInvite(ctx context.Context, input JoinInput) (JoinResult, error) {
	session, err := retry.Do(ctx, e.policy, func() (domain.Session, error) {
		found, err := e.store.FindByInviteCode(ctx, input.InviteCode)
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Session{}, retry.Permanent(err)
		}
		return found, err
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return e.createWaiting(ctx, input.UserID, true)
		}
		return JoinResult{}, apperrors.Wrap(apperrors.CodeMatchmakingUnavailable, "matchmaking unavailable", err)
	}

	result, err := e.tryJoinAsB(ctx, session, input.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrJoinConflict) {
			// The code raced away; recover with a fresh private session.
			return e.createWaiting(ctx, input.UserID, true)
		}
		return JoinResult{}, err
	}
	return result, nil
}

// joinPublic scans the bounded FIFO window and attempts to attach to the
// oldest eligible waiting session.
func (e *Engine) joinPublic(ctx context.Context, userID string) (JoinResult, error) {
	candidates, err := retry.Do(ctx, e.policy, func() ([]domain.Session, error) {
		return e.store.FindJoinableWaitingSessions(ctx, e.scanWindow)
	})
	if err != nil {
		return JoinResult{}, apperrors.Wrap(apperrors.CodeMatchmakingUnavailable, "matchmaking unavailable", err)
	}

	for _, candidate := range candidates {
		if candidate.IsPrivate {
			continue
		}
		result, err := e.tryJoinAsB(ctx, candidate, userID)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, storage.ErrJoinConflict) {
			// Another joiner won this session; fall through to creating our own.
			break
		}
		return JoinResult{}, err
	}

	return e.createWaiting(ctx, userID, false)
}

// tryJoinAsB attaches userID to session as role B and completes activation.
// Returns storage.ErrJoinConflict when the optimistic precondition fails.
func (e *Engine) tryJoinAsB(ctx context.Context, session domain.Session, userID string) (JoinResult, error) {
	joiner, err := domain.CreateParticipant(domain.CreateParticipantInput{
		SessionID: session.ID,
		Role:      domain.RoleB,
		UserID:    userID,
		IsBot:     domain.IsBotIdentity(userID),
	}, e.clock, e.idGenerator)
	if err != nil {
		return JoinResult{}, err
	}

	activatedAt := e.clock().UTC()
	_, err = retry.Do(ctx, e.policy, func() (struct{}, error) {
		joinErr := e.store.AtomicJoinAsB(ctx, session.ID, joiner, activatedAt)
		if errors.Is(joinErr, storage.ErrJoinConflict) {
			return struct{}{}, retry.Permanent(joinErr)
		}
		return struct{}{}, joinErr
	})
	if err != nil {
		if errors.Is(err, storage.ErrJoinConflict) {
			return JoinResult{}, err
		}
		return JoinResult{}, apperrors.Wrap(apperrors.CodeMatchmakingUnavailable, "matchmaking unavailable", err)
	}

	e.broadcaster.Publish(event.ParticipantJoined{
		SessionID:  session.ID,
		Role:       domain.RoleLabel(domain.RoleB),
		AvatarName: joiner.AvatarName,
	})
	e.broadcaster.Publish(event.StatusChanged{
		SessionID: session.ID,
		From:      domain.StatusLabel(domain.StatusWaiting),
		To:        domain.StatusLabel(domain.StatusActive),
	})
	if joiner.IsBot {
		e.broadcaster.Publish(event.BotAttached{
			SessionID:  session.ID,
			AvatarName: joiner.AvatarName,
		})
	}

	if err := e.scheduleRounds(ctx, session.ID, activatedAt); err != nil {
		return JoinResult{}, err
	}

	return JoinResult{
		SessionID:  session.ID,
		Role:       domain.RoleB,
		Status:     domain.StatusActive,
		AvatarName: joiner.AvatarName,
	}, nil
}

// createWaiting creates a fresh waiting session owned by userID, arms the
// timeout supervisor, and returns the shareable invite code.
func (e *Engine) createWaiting(ctx context.Context, userID string, isPrivate bool) (JoinResult, error) {
	var (
		session domain.Session
		creator domain.Participant
	)
	_, err := retry.Do(ctx, e.policy, func() (struct{}, error) {
		code, codeErr := e.codeGenerator()
		if codeErr != nil {
			return struct{}{}, codeErr
		}
		created, createErr := domain.CreateSession(domain.CreateSessionInput{
			IsPrivate:  isPrivate,
			InviteCode: code,
		}, e.clock, e.idGenerator)
		if createErr != nil {
			return struct{}{}, retry.Permanent(createErr)
		}
		participant, participantErr := domain.CreateParticipant(domain.CreateParticipantInput{
			SessionID: created.ID,
			Role:      domain.RoleA,
			UserID:    userID,
		}, e.clock, e.idGenerator)
		if participantErr != nil {
			return struct{}{}, retry.Permanent(participantErr)
		}
		// A fresh session and code are generated per attempt so an invite
		// code collision with another waiting session resolves itself.
		if storeErr := e.store.CreateWaitingSession(ctx, created, participant); storeErr != nil {
			return struct{}{}, storeErr
		}
		session = created
		creator = participant
		return struct{}{}, nil
	})
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return JoinResult{}, err
		}
		return JoinResult{}, apperrors.Wrap(apperrors.CodeMatchmakingUnavailable, "matchmaking unavailable", err)
	}

	e.armer.Arm(session.ID)

	eta := e.queueETA(ctx)
	return JoinResult{
		SessionID:  session.ID,
		Role:       domain.RoleA,
		Status:     domain.StatusWaiting,
		InviteCode: session.InviteCode,
		AvatarName: creator.AvatarName,
		QueueETA:   eta,
	}, nil
}

// BotDemo creates an immediately-active session pairing userID with a
// synthetic partner. It runs the same join-as-B transaction and round
// scheduling as human pairing.
func (e *Engine) BotDemo(ctx context.Context, userID string) (JoinResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.BotDemo",
		trace.WithAttributes(attribute.Bool("matchmaking.bot_demo", true)))
	defer span.End()

	if userID == "" {
		return JoinResult{}, apperrors.New(apperrors.CodeAuthRequired, "user identity is required")
	}

	waiting, err := e.createWaiting(ctx, userID, true)
	if err != nil {
		return JoinResult{}, err
	}

	botIdentity, err := domain.NewBotIdentity(e.idGenerator)
	if err != nil {
		return JoinResult{}, apperrors.Wrap(apperrors.CodeUnknown, "generate bot identity", err)
	}

	session := domain.Session{ID: waiting.SessionID}
	if _, err := e.tryJoinAsB(ctx, session, botIdentity); err != nil {
		return JoinResult{}, err
	}

	return JoinResult{
		SessionID:  waiting.SessionID,
		Role:       domain.RoleA,
		Status:     domain.StatusActive,
		AvatarName: waiting.AvatarName,
		BotDemo:    true,
	}, nil
}

// queueETA estimates the wait for a fresh waiter from recent match activity.
// Advisory only; failures degrade to zero rather than failing the join.
func (e *Engine) queueETA(ctx context.Context) time.Duration {
	count, err := e.store.CountActivationsSince(ctx, e.clock().Add(-etaWindow))
	if err != nil {
		return 0
	}
	if count <= 0 {
		return timeouts.MatchWait
	}
	eta := etaWindow / time.Duration(count+1)
	if eta > timeouts.MatchWait {
		eta = timeouts.MatchWait
	}
	if eta < time.Second {
		eta = time.Second
	}
	return eta
}

// AdvanceStatus moves a session forward in the lifecycle ordering and
// announces the transition.
func (e *Engine) AdvanceStatus(ctx context.Context, sessionID string, to domain.Status) error {
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeSessionNotFound, "session not found")
		}
		return apperrors.Wrap(apperrors.CodeMatchmakingUnavailable, "matchmaking unavailable", err)
	}

	if err := e.store.UpdateStatus(ctx, sessionID, to, e.clock().UTC()); err != nil {
		if errors.Is(err, storage.ErrStatusRegression) {
			return apperrors.New(apperrors.CodeSessionStatusRegression, "status transition would regress")
		}
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeSessionNotFound, "session not found")
		}
		return apperrors.Wrap(apperrors.CodeMatchmakingUnavailable, "matchmaking unavailable", err)
	}

	e.broadcaster.Publish(event.StatusChanged{
		SessionID: sessionID,
		From:      domain.StatusLabel(session.Status),
		To:        domain.StatusLabel(to),
	})
	return nil
}

// CompleteRound hands the finished round's design to the generation queue and
// announces the next round when one exists.
func (e *Engine) CompleteRound(ctx context.Context, sessionID string, roundNo int) error {
	rounds, err := e.store.ListRounds(ctx, sessionID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeMatchmakingUnavailable, "matchmaking unavailable", err)
	}

	var completed *domain.Round
	var next *domain.Round
	for i := range rounds {
		switch rounds[i].RoundNo {
		case roundNo:
			completed = &rounds[i]
		case roundNo + 1:
			next = &rounds[i]
		}
	}
	if completed == nil {
		return apperrors.New(apperrors.CodeRoundInvalidNumber, "round not found")
	}

	e.enqueueDesign(ctx, *completed)

	if next != nil {
		e.broadcaster.Publish(event.RoundStarted{
			SessionID: sessionID,
			RoundID:   next.ID,
			RoundNo:   next.RoundNo,
			Topic:     next.Topic,
			EndsAt:    next.EndsAt,
		})
	}
	return nil
}

// scheduleRounds materializes the fixed round sequence for an activated
// session. The session is already committed active, so failures retry in
// place on the same session instead of creating a duplicate.
func (e *Engine) scheduleRounds(ctx context.Context, sessionID string, activatedAt time.Time) error {
	rounds, err := domain.BuildRounds(sessionID, activatedAt, e.roundGrace, e.idGenerator)
	if err != nil {
		return err
	}

	_, err = retry.Do(ctx, e.policy, func() (struct{}, error) {
		return struct{}{}, e.store.CreateRounds(ctx, sessionID, rounds)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeMatchmakingUnavailable, "round creation failed", err)
	}

	first := rounds[0]
	e.broadcaster.Publish(event.RoundStarted{
		SessionID: sessionID,
		RoundID:   first.ID,
		RoundNo:   first.RoundNo,
		Topic:     first.Topic,
		EndsAt:    first.EndsAt,
	})
	e.enqueueDesign(ctx, first)
	return nil
}

// enqueueDesign hands one round's design work to the generation queue.
// The queue consumer owns retries; failures here are logged and dropped.
func (e *Engine) enqueueDesign(ctx context.Context, round domain.Round) {
	designID, err := e.idGenerator()
	if err != nil {
		log.Printf("generate design id for session %s round %d: %v", round.SessionID, round.RoundNo, err)
		return
	}
	job := genjobs.Job{
		SessionID:  round.SessionID,
		RoundID:    round.ID,
		DesignID:   designID,
		Topic:      round.Topic,
		EnqueuedAt: e.clock().UTC(),
	}
	if err := e.jobs.EnqueueRoundDesign(ctx, job); err != nil {
		log.Printf("enqueue round design for session %s round %d: %v", round.SessionID, round.RoundNo, err)
	}
}
