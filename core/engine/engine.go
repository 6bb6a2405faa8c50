package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tunevault/core/dispatch"
	"tunevault/core/fetch"
	"tunevault/core/resolve"
	"tunevault/core/session"
	"tunevault/errs"
	"tunevault/logger"
	"tunevault/model"
)

// Messenger delivers user-visible notices that arrive after a command has
// already been acknowledged (download failures, queue placement, delivery
// errors). The chat platform client implements this.
type Messenger interface {
	Notify(target string, text string)
}

// Engine is the command surface: it wires resolver, fetch pipeline,
// delivery dispatcher and session manager behind the handful of
// user-issued commands. Commands acknowledge immediately; the blocking
// download/transcode work runs on the engine's bounded worker pool, never
// on the caller's goroutine, so the surface that delivers chat events
// stays responsive during long downloads.
type Engine struct {
	resolver   *resolve.Resolver
	pipeline   *fetch.Pipeline
	dispatcher *dispatch.Dispatcher
	sessions   *session.Manager
	messenger  Messenger
	timeout    time.Duration

	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

// NewEngine wires the engine. workers bounds concurrent downloads;
// timeout bounds each download, zero meaning no deadline beyond the
// downloader's own retry budget.
func NewEngine(
	resolver *resolve.Resolver,
	pipeline *fetch.Pipeline,
	dispatcher *dispatch.Dispatcher,
	sessions *session.Manager,
	messenger Messenger,
	workers int,
	timeout time.Duration,
) *Engine {
	if workers <= 0 {
		workers = 4
	}
	e := &Engine{
		resolver:   resolver,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		sessions:   sessions,
		messenger:  messenger,
		timeout:    timeout,
		tasks:      make(chan func(), workers*8),
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// Close stops accepting work and waits for in-flight tasks.
func (e *Engine) Close() {
	e.once.Do(func() {
		close(e.tasks)
	})
	e.wg.Wait()
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for task := range e.tasks {
		task()
	}
}

// submit queues background work; blocks only when the pool is saturated,
// which is the intended backpressure point.
func (e *Engine) submit(task func()) {
	e.tasks <- task
}

// Song resolves query, fetches the audio variant and queues it for
// delivery to target. The acknowledgement distinguishes a cached send
// from a fresh download; the download itself happens in the background.
func (e *Engine) Song(ctx context.Context, target, query string) (string, error) {
	return e.fetchAndDeliver(ctx, target, query, model.VariantAudio)
}

// Video is Song for the video variant.
func (e *Engine) Video(ctx context.Context, target, query string) (string, error) {
	return e.fetchAndDeliver(ctx, target, query, model.VariantVideo)
}

func (e *Engine) fetchAndDeliver(ctx context.Context, target, query string, variant model.Variant) (string, error) {
	ref, err := e.resolveOne(ctx, query)
	if err != nil {
		return "", err
	}

	cached := e.pipeline.Cached(ctx, ref.ID, variant)
	ack := fmt.Sprintf("Downloading %s ...", ref.Title)
	if cached {
		ack = fmt.Sprintf("Sending cached %s: %s", variant, ref.Title)
	}

	e.submit(func() {
		artifact, err := e.fetch(ref, variant)
		if err != nil {
			e.messenger.Notify(target, "Download failed: "+err.Error())
			return
		}
		e.dispatcher.Submit(dispatch.Job{
			Target:   target,
			Artifact: *artifact,
			Variant:  variant,
			OnError: func(err error) {
				e.messenger.Notify(target, "Error sending file: "+err.Error())
			},
		})
	})

	return ack, nil
}

// Queue resolves query, fetches the audio variant in the background and
// enqueues it into the session's playback queue, starting the stream when
// the session was idle with an empty queue. Placement is reported through
// the Messenger once the item is actually queued.
func (e *Engine) Queue(ctx context.Context, sessionID, query string) (string, error) {
	ref, err := e.resolveOne(ctx, query)
	if err != nil {
		return "", err
	}

	e.submit(func() {
		artifact, err := e.fetch(ref, model.VariantAudio)
		if err != nil {
			e.messenger.Notify(sessionID, "Download failed: "+err.Error())
			return
		}

		position, err := e.sessions.Enqueue(context.Background(), sessionID, model.QueueItem{
			LocalPath: artifact.Path,
			Title:     artifact.Title,
		})
		if err != nil {
			e.messenger.Notify(sessionID, "Playback failed: "+err.Error())
			return
		}
		if position == 0 {
			e.messenger.Notify(sessionID, "Now playing: "+artifact.Title)
		} else {
			e.messenger.Notify(sessionID, fmt.Sprintf("Queued at position %d: %s", position, artifact.Title))
		}
	})

	return fmt.Sprintf("Fetching %s ...", ref.Title), nil
}

// Skip advances the session's queue past the current head.
func (e *Engine) Skip(ctx context.Context, sessionID string) (string, error) {
	next, err := e.sessions.Advance(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if next == nil {
		return "Queue is empty, leaving the stream.", nil
	}
	return "Now playing: " + next.Title, nil
}

// Stop clears the session's queue and releases the stream. It never fails.
func (e *Engine) Stop(ctx context.Context, sessionID string) string {
	e.sessions.Stop(ctx, sessionID)
	return "Stopped and cleared the queue."
}

func (e *Engine) resolveOne(ctx context.Context, query string) (model.AssetReference, error) {
	refs := e.resolver.Resolve(ctx, query, 1)
	if len(refs) == 0 {
		return model.AssetReference{}, errs.ErrNoResults
	}
	return refs[0], nil
}

// fetch runs on a pool worker, detached from the request context: an
// impatient caller must not cancel a download another request may be
// waiting on.
func (e *Engine) fetch(ref model.AssetReference, variant model.Variant) (*model.LocalArtifact, error) {
	ctx := context.Background()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	artifact, err := e.pipeline.Fetch(ctx, ref, variant)
	if err != nil {
		logger.Warn("fetch failed",
			logger.String("assetId", ref.ID),
			logger.String("variant", string(variant)),
			logger.ErrorField(err))
		return nil, err
	}
	return artifact, nil
}
