package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/stylematch/internal/genjobs"
	"github.com/louisbranch/stylematch/internal/matchmaking/domain"
	"github.com/louisbranch/stylematch/internal/matchmaking/event"
	"github.com/louisbranch/stylematch/internal/matchmaking/storage"
)

// fakeStore is an in-memory storage.Store with injectable failures.
type fakeStore struct {
	mu           sync.Mutex
	sessions     map[string]domain.Session
	participants map[string][]domain.Participant
	rounds       map[string][]domain.Round

	// failNext drains one injected error per matching operation call.
	failNext map[string][]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:     make(map[string]domain.Session),
		participants: make(map[string][]domain.Participant),
		rounds:       make(map[string][]domain.Round),
		failNext:     make(map[string][]error),
	}
}

func (f *fakeStore) failOnce(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[op] = append(f.failNext[op], err)
}

func (f *fakeStore) takeFailure(op string) error {
	queue := f.failNext[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	f.failNext[op] = queue[1:]
	return err
}

func (f *fakeStore) CreateWaitingSession(_ context.Context, session domain.Session, creator domain.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("CreateWaitingSession"); err != nil {
		return err
	}
	f.sessions[session.ID] = session
	f.participants[session.ID] = []domain.Participant{creator}
	return nil
}

func (f *fakeStore) FindJoinableWaitingSessions(_ context.Context, limit int) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("FindJoinableWaitingSessions"); err != nil {
		return nil, err
	}
	var found []domain.Session
	for id, session := range f.sessions {
		if session.Status == domain.StatusWaiting && !session.IsPrivate && len(f.participants[id]) == 1 {
			found = append(found, session)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].CreatedAt.Before(found[j].CreatedAt) })
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (f *fakeStore) FindByInviteCode(_ context.Context, code string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("FindByInviteCode"); err != nil {
		return domain.Session{}, err
	}
	for _, session := range f.sessions {
		if session.Status == domain.StatusWaiting && session.InviteCode == code {
			return session, nil
		}
	}
	return domain.Session{}, storage.ErrNotFound
}

func (f *fakeStore) AtomicJoinAsB(_ context.Context, sessionID string, joiner domain.Participant, activatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("AtomicJoinAsB"); err != nil {
		return err
	}
	session, ok := f.sessions[sessionID]
	if !ok || session.Status != domain.StatusWaiting || len(f.participants[sessionID]) != 1 {
		return storage.ErrJoinConflict
	}
	session.Status = domain.StatusActive
	at := activatedAt
	session.ActivatedAt = &at
	f.sessions[sessionID] = session
	f.participants[sessionID] = append(f.participants[sessionID], joiner)
	return nil
}

func (f *fakeStore) CreateRounds(_ context.Context, sessionID string, rounds []domain.Round) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("CreateRounds"); err != nil {
		return err
	}
	f.rounds[sessionID] = append([]domain.Round(nil), rounds...)
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, sessionID string, to domain.Status, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("UpdateStatus"); err != nil {
		return err
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return storage.ErrNotFound
	}
	if !domain.CanTransition(session.Status, to) {
		return storage.ErrStatusRegression
	}
	session.Status = to
	if to == domain.StatusFinished {
		ended := at
		session.EndedAt = &ended
	}
	f.sessions[sessionID] = session
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("GetSession"); err != nil {
		return domain.Session{}, err
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return domain.Session{}, storage.ErrNotFound
	}
	return session, nil
}

func (f *fakeStore) ListParticipants(_ context.Context, sessionID string) ([]domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Participant(nil), f.participants[sessionID]...), nil
}

func (f *fakeStore) ListRounds(_ context.Context, sessionID string) ([]domain.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("ListRounds"); err != nil {
		return nil, err
	}
	return append([]domain.Round(nil), f.rounds[sessionID]...), nil
}

func (f *fakeStore) ListWaitingTimeouts(_ context.Context, cutoff time.Time, limit int) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("ListWaitingTimeouts"); err != nil {
		return nil, err
	}
	var due []domain.Session
	for _, session := range f.sessions {
		if session.Status == domain.StatusWaiting && session.TimeoutNotifiedAt == nil && !session.CreatedAt.After(cutoff) {
			due = append(due, session)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *fakeStore) MarkTimeoutNotified(_ context.Context, sessionID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("MarkTimeoutNotified"); err != nil {
		return false, err
	}
	session, ok := f.sessions[sessionID]
	if !ok || session.Status != domain.StatusWaiting || session.TimeoutNotifiedAt != nil {
		return false, nil
	}
	notified := at
	session.TimeoutNotifiedAt = &notified
	f.sessions[sessionID] = session
	return true, nil
}

func (f *fakeStore) ArchiveStaleWaiting(_ context.Context, cutoff time.Time, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("ArchiveStaleWaiting"); err != nil {
		return 0, err
	}
	archived := 0
	for id, session := range f.sessions {
		if session.Status == domain.StatusWaiting && !session.CreatedAt.After(cutoff) {
			session.Status = domain.StatusFinished
			ended := at
			session.EndedAt = &ended
			f.sessions[id] = session
			archived++
		}
	}
	return archived, nil
}

func (f *fakeStore) CountActivationsSince(_ context.Context, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("CountActivationsSince"); err != nil {
		return 0, err
	}
	count := 0
	for _, session := range f.sessions {
		if session.ActivatedAt != nil && session.ActivatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

var _ storage.Store = (*fakeStore)(nil)

// recordingBroadcaster captures published events in order.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []event.Event
}

func (b *recordingBroadcaster) Publish(evt event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

func (b *recordingBroadcaster) named(name event.Name) []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var matched []event.Event
	for _, evt := range b.events {
		if evt.EventName() == name {
			matched = append(matched, evt)
		}
	}
	return matched
}

// recordingQueue captures enqueued generation jobs.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []genjobs.Job
}

func (q *recordingQueue) EnqueueRoundDesign(_ context.Context, job genjobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

// recordingArmer captures armed session ids.
type recordingArmer struct {
	mu    sync.Mutex
	armed []string
}

func (a *recordingArmer) Arm(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.armed = append(a.armed, sessionID)
}
