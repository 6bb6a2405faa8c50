package session

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrLoopStopped is returned by Submit after the loop has shut down.
var ErrLoopStopped = errors.New("streamer loop stopped")

// Streamer is the live-streaming collaborator. Its calls are not safe for
// concurrent invocation on the same session; every call is serialized
// onto the Loop, never made directly from an arbitrary goroutine.
type Streamer interface {
	JoinAndPlay(sessionID string, localPath string) error
	Leave(sessionID string) error
}

const (
	taskPending int32 = iota
	taskRunning
	taskAbandoned
)

// task carries one streamer call through the loop. state settles the race
// between a cancelled submitter and the loop picking the task up: exactly
// one side wins, so an accepted task either never touches the streamer or
// has its result delivered to the submitter.
type task struct {
	fn    func() error
	resp  chan error
	state atomic.Int32
}

func (t *task) execute() {
	if !t.state.CompareAndSwap(taskPending, taskRunning) {
		return
	}
	t.resp <- t.fn()
}

// Loop is the single goroutine that owns the Streamer. Other goroutines
// reach the streamer only through Submit.
type Loop struct {
	tasks chan *task
	quit  chan struct{}
	done  chan struct{}
}

// NewLoop creates a loop with the given task buffer.
func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 16
	}
	return &Loop{
		tasks: make(chan *task, buffer),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start runs the loop goroutine.
func (l *Loop) Start() {
	go l.run()
}

// Stop drains queued tasks and stops the loop.
func (l *Loop) Stop() {
	close(l.quit)
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case t := <-l.tasks:
			t.execute()
		case <-l.quit:
			for {
				select {
				case t := <-l.tasks:
					t.execute()
				default:
					return
				}
			}
		}
	}
}

// Submit schedules fn on the loop and waits for its result. Cancellation
// before the loop starts the call aborts cleanly: the task is marked
// abandoned and will never run. Once the call is in flight it is waited
// out regardless of ctx; returning early would leave the caller's state
// tracking disagreeing with what the streamer actually did.
func (l *Loop) Submit(ctx context.Context, fn func() error) error {
	t := &task{fn: fn, resp: make(chan error, 1)}
	select {
	case l.tasks <- t:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.resp:
		return err
	case <-l.done:
		// The loop exited; the drain either ran the task or never will.
		select {
		case err := <-t.resp:
			return err
		default:
			t.state.CompareAndSwap(taskPending, taskAbandoned)
			return ErrLoopStopped
		}
	case <-ctx.Done():
		if t.state.CompareAndSwap(taskPending, taskAbandoned) {
			return ctx.Err()
		}
		return <-t.resp
	}
}
