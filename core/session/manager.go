package session

import (
	"context"
	"sync"

	"tunevault/errs"
	"tunevault/logger"
	"tunevault/model"
)

// Manager owns the session registry and drives each session's state
// machine. Queue mutations for a session run under that session's lock
// for their whole duration, streamer calls included, so concurrent
// callers can never interleave into a corrupt queue or double-join.
// Sessions are fully independent of each other.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	loop     *Loop
	streamer Streamer

	notify        func(Snapshot)
	notifications chan Snapshot
	forwardDone   chan struct{}
	closeOnce     sync.Once
}

// NewManager creates a manager that reaches the streamer through loop.
// notify, when non-nil, receives a snapshot after every state change,
// decoupled from the session lock so a slow observer never stalls queue
// operations.
func NewManager(loop *Loop, streamer Streamer, notify func(Snapshot)) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		loop:     loop,
		streamer: streamer,
		notify:   notify,
	}
	if notify != nil {
		m.notifications = make(chan Snapshot, 64)
		m.forwardDone = make(chan struct{})
		go m.forward()
	}
	return m
}

// Close stops the notification forwarder after flushing pending
// snapshots. Call it only once the last queue operation has returned.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.notifications == nil {
			return
		}
		close(m.notifications)
		<-m.forwardDone
	})
}

func (m *Manager) forward() {
	defer close(m.forwardDone)
	for snapshot := range m.notifications {
		m.notify(snapshot)
	}
}

// session returns the session for id, creating an idle one on first use.
// An empty queue is a valid inert state, so sessions are never destroyed.
func (m *Manager) session(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.sessions[id]; ok {
		return s
	}
	s = newSession(id)
	m.sessions[id] = s
	return s
}

// Enqueue appends item to the session's queue. When the queue was empty
// and the session idle, the item becomes the head and streaming starts;
// otherwise the current stream is never interrupted and the item just
// waits its turn. The returned position is zero-based.
//
// If the join fails the item stays queued as head (skippable), the session
// returns to idle, and the error is an *errs.SessionError.
func (m *Manager) Enqueue(ctx context.Context, sessionID string, item model.QueueItem) (int, error) {
	s := m.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	startHead := len(s.queue) == 0 && s.state == StateIdle
	s.queue = append(s.queue, item)
	position := len(s.queue) - 1

	if startHead {
		s.state = StateJoining
		err := m.loop.Submit(ctx, func() error {
			return m.streamer.JoinAndPlay(sessionID, item.LocalPath)
		})
		if err != nil {
			s.state = StateIdle
			m.notifyLocked(s)
			return position, &errs.SessionError{SessionID: sessionID, Op: "join", Cause: err}
		}
		s.state = StatePlaying
		logger.Info("session started playing",
			logger.String("sessionId", sessionID),
			logger.String("title", item.Title))
	}

	m.notifyLocked(s)
	return position, nil
}

// Advance pops the head of the queue. With items remaining, the new head
// starts streaming; on exhaustion the session goes idle and the live
// stream is released. Advancing an empty queue routes through the
// exhaustion path rather than pretending there is a next item.
//
// A failed join leaves the failed item as head (skippable) and the
// session idle. A failed leave on exhaustion is logged and the session
// still goes idle.
func (m *Manager) Advance(ctx context.Context, sessionID string) (*model.QueueItem, error) {
	s := m.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) > 0 {
		s.queue = s.queue[1:]
	}

	if len(s.queue) == 0 {
		m.releaseLocked(ctx, s)
		m.notifyLocked(s)
		return nil, nil
	}

	next := s.queue[0]
	s.state = StateJoining
	err := m.loop.Submit(ctx, func() error {
		return m.streamer.JoinAndPlay(sessionID, next.LocalPath)
	})
	if err != nil {
		s.state = StateIdle
		m.notifyLocked(s)
		return nil, &errs.SessionError{SessionID: sessionID, Op: "join", Cause: err}
	}
	s.state = StatePlaying
	m.notifyLocked(s)

	logger.Info("session advanced",
		logger.String("sessionId", sessionID),
		logger.String("title", next.Title))
	return &next, nil
}

// Stop clears the queue unconditionally and returns the session to idle,
// releasing the live stream regardless of current state. It always
// succeeds: a leave error is logged and swallowed, because a stuck
// "can't stop" session is worse than an unclean leave. Calling Stop on an
// idle session is a no-op beyond ensuring the cleared state.
func (m *Manager) Stop(ctx context.Context, sessionID string) {
	s := m.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = nil
	m.releaseLocked(ctx, s)
	m.notifyLocked(s)
}

// releaseLocked moves the session to idle and leaves the live stream if
// one was held. Leave errors never block the transition.
func (m *Manager) releaseLocked(ctx context.Context, s *Session) {
	wasActive := s.state != StateIdle
	s.state = StateIdle
	if !wasActive {
		return
	}
	err := m.loop.Submit(ctx, func() error {
		return m.streamer.Leave(s.ID)
	})
	if err != nil {
		logger.Warn("failed to leave live stream, session is idle anyway",
			logger.String("sessionId", s.ID),
			logger.ErrorField(err))
	}
}

// Snapshot returns a point-in-time copy of one session.
func (m *Manager) Snapshot(sessionID string) Snapshot {
	s := m.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Snapshots returns a copy of every known session.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		snapshots = append(snapshots, s.snapshotLocked())
		s.mu.Unlock()
	}
	return snapshots
}

// notifyLocked hands the snapshot to the forwarder without blocking.
// Observers are advisory: a slow one gets gaps, never a stalled queue.
func (m *Manager) notifyLocked(s *Session) {
	if m.notifications == nil {
		return
	}
	select {
	case m.notifications <- s.snapshotLocked():
	default:
		logger.Debug("dropping status snapshot, observer backlog full",
			logger.String("sessionId", s.ID))
	}
}
