package dispatch

import (
	"context"
	"fmt"
	"os"
	"sync"

	"tunevault/errs"
	"tunevault/logger"
	"tunevault/model"

	"github.com/google/uuid"
)

// Sender is the outward send collaborator (the chat platform). It may
// fail on I/O errors or when the artifact exceeds the platform ceiling.
type Sender interface {
	SendAudio(ctx context.Context, target string, localPath, title string) error
	SendVideo(ctx context.Context, target string, localPath, caption string) error
}

// Job is one delivery request. OnError, when set, receives the
// user-visible failure; deliveries are never retried automatically.
type Job struct {
	ID       string
	Target   string
	Artifact model.LocalArtifact
	Variant  model.Variant
	OnError  func(err error)
}

// Dispatcher hands artifacts to the sender on a bounded worker pool, so
// the caller's control flow is never blocked by a slow send. The job
// buffer gives backpressure instead of unbounded goroutine creation.
type Dispatcher struct {
	sender   Sender
	maxBytes int64

	jobs chan Job
	wg   sync.WaitGroup
	once sync.Once
}

// NewDispatcher creates a dispatcher with the given worker count.
// maxBytes of 0 disables the size ceiling check.
func NewDispatcher(sender Sender, workers int, maxBytes int64) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	d := &Dispatcher{
		sender:   sender,
		maxBytes: maxBytes,
		jobs:     make(chan Job, workers*16),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit queues the job for delivery. It only blocks when the buffer is
// full, which is the intended backpressure point.
func (d *Dispatcher) Submit(job Job) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	d.jobs <- job
}

// Close stops accepting jobs and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.jobs)
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		if err := d.deliver(job); err != nil {
			logger.Error("delivery failed",
				logger.String("jobId", job.ID),
				logger.String("target", job.Target),
				logger.String("path", job.Artifact.Path),
				logger.ErrorField(err))
			if job.OnError != nil {
				job.OnError(err)
			}
		}
	}
}

func (d *Dispatcher) deliver(job Job) error {
	info, err := os.Stat(job.Artifact.Path)
	if err != nil {
		return &errs.DeliveryError{Path: job.Artifact.Path, Cause: err}
	}
	if d.maxBytes > 0 && info.Size() > d.maxBytes {
		return &errs.DeliveryError{
			Path:  job.Artifact.Path,
			Cause: fmt.Errorf("artifact is %d bytes, over the %d byte send limit", info.Size(), d.maxBytes),
		}
	}

	ctx := context.Background()
	switch job.Variant {
	case model.VariantVideo:
		err = d.sender.SendVideo(ctx, job.Target, job.Artifact.Path, job.Artifact.Title)
	default:
		err = d.sender.SendAudio(ctx, job.Target, job.Artifact.Path, job.Artifact.Title)
	}
	if err != nil {
		return &errs.DeliveryError{Path: job.Artifact.Path, Cause: err}
	}

	logger.Info("delivery complete",
		logger.String("jobId", job.ID),
		logger.String("target", job.Target),
		logger.String("variant", string(job.Variant)),
		logger.Int64("bytes", info.Size()))
	return nil
}
