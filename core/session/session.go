package session

import (
	"sync"

	"tunevault/model"
)

// State is the lifecycle of one live-streaming session.
type State string

const (
	// StateIdle means no queue activity and no live stream held.
	StateIdle State = "idle"
	// StateJoining means a join-and-play call is in flight for the head.
	StateJoining State = "joining"
	// StatePlaying means the head of the queue is actively streaming.
	StatePlaying State = "playing"
)

// Session is one live-room context: its state and its FIFO playback
// queue. The head of the queue is the active stream target while playing;
// everything behind it is inert. All mutation happens under mu, which the
// Manager holds for the whole of each operation.
type Session struct {
	ID string

	mu    sync.Mutex
	state State
	queue []model.QueueItem
}

func newSession(id string) *Session {
	return &Session{ID: id, state: StateIdle}
}

// Snapshot is a point-in-time copy of a session for status surfaces.
type Snapshot struct {
	SessionID string            `json:"sessionId"`
	State     State             `json:"state"`
	Queue     []model.QueueItem `json:"queue"`
}

// snapshotLocked copies the session; callers must hold s.mu.
func (s *Session) snapshotLocked() Snapshot {
	queue := make([]model.QueueItem, len(s.queue))
	copy(queue, s.queue)
	return Snapshot{SessionID: s.ID, State: s.state, Queue: queue}
}
