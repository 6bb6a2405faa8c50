package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tunevault/errs"
	"tunevault/model"

	"github.com/stretchr/testify/require"
)

type sentFile struct {
	kind   string
	target string
	path   string
	title  string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentFile
	err  error
}

func (s *fakeSender) SendAudio(ctx context.Context, target string, localPath, title string) error {
	return s.record("audio", target, localPath, title)
}

func (s *fakeSender) SendVideo(ctx context.Context, target string, localPath, caption string) error {
	return s.record("video", target, localPath, caption)
}

func (s *fakeSender) record(kind, target, path, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentFile{kind: kind, target: target, path: path, title: title})
	return nil
}

func (s *fakeSender) all() []sentFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentFile(nil), s.sent...)
}

func writeArtifact(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.mp3")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	return path
}

func TestDispatcherDeliversAudioAndVideo(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 2, 0)

	path := writeArtifact(t, 128)
	d.Submit(Job{Target: "chat1", Artifact: model.LocalArtifact{Path: path, Title: "Song"}, Variant: model.VariantAudio})
	d.Submit(Job{Target: "chat2", Artifact: model.LocalArtifact{Path: path, Title: "Clip"}, Variant: model.VariantVideo})
	d.Close()

	sent := sender.all()
	require.Len(t, sent, 2)
	kinds := map[string]sentFile{}
	for _, f := range sent {
		kinds[f.kind] = f
	}
	require.Equal(t, "chat1", kinds["audio"].target)
	require.Equal(t, "Song", kinds["audio"].title)
	require.Equal(t, "chat2", kinds["video"].target)
}

func TestDispatcherRejectsOversizeArtifact(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 1, 64)

	var gotErr error
	var wg sync.WaitGroup
	wg.Add(1)
	d.Submit(Job{
		Target:   "chat1",
		Artifact: model.LocalArtifact{Path: writeArtifact(t, 128), Title: "Big"},
		Variant:  model.VariantAudio,
		OnError: func(err error) {
			gotErr = err
			wg.Done()
		},
	})
	wg.Wait()
	d.Close()

	var deliveryErr *errs.DeliveryError
	require.ErrorAs(t, gotErr, &deliveryErr)
	require.Empty(t, sender.all(), "oversize artifacts never reach the sender")
}

func TestDispatcherReportsMissingArtifact(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 1, 0)

	errCh := make(chan error, 1)
	d.Submit(Job{
		Target:   "chat1",
		Artifact: model.LocalArtifact{Path: filepath.Join(t.TempDir(), "missing.mp3")},
		Variant:  model.VariantAudio,
		OnError:  func(err error) { errCh <- err },
	})
	d.Close()

	select {
	case err := <-errCh:
		var deliveryErr *errs.DeliveryError
		require.ErrorAs(t, err, &deliveryErr)
	case <-time.After(time.Second):
		t.Fatal("no delivery error reported")
	}
}

func TestDispatcherReportsSendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection reset")}
	d := NewDispatcher(sender, 1, 0)

	errCh := make(chan error, 1)
	d.Submit(Job{
		Target:   "chat1",
		Artifact: model.LocalArtifact{Path: writeArtifact(t, 16)},
		Variant:  model.VariantAudio,
		OnError:  func(err error) { errCh <- err },
	})
	d.Close()

	err := <-errCh
	var deliveryErr *errs.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
}

func TestDispatcherAssignsJobIDs(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 1, 0)
	// Submit mutates a copy; the generated id only shows up in logs, so
	// all we verify here is that delivery still works without one.
	d.Submit(Job{Target: "chat1", Artifact: model.LocalArtifact{Path: writeArtifact(t, 16)}, Variant: model.VariantAudio})
	d.Close()
	require.Len(t, sender.all(), 1)
}
