package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tunevault/cache"
	"tunevault/core/dispatch"
	"tunevault/core/fetch"
	"tunevault/core/resolve"
	"tunevault/core/session"
	"tunevault/errs"
	"tunevault/model"
	"tunevault/repository"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	refs map[string]model.AssetReference
}

func (f *fakeProvider) Search(ctx context.Context, query string, maxResults int) ([]model.AssetReference, error) {
	ref, ok := f.refs[query]
	if !ok {
		return nil, nil
	}
	return []model.AssetReference{ref}, nil
}

type fakeDownloader struct{}

func (f *fakeDownloader) Download(ctx context.Context, sourceURL string, variant model.Variant, outDir string) (*fetch.DownloadResult, error) {
	id := filepath.Base(sourceURL)
	path := filepath.Join(outDir, id+variant.Ext())
	if err := os.WriteFile(path, []byte("artifact"), 0o644); err != nil {
		return nil, err
	}
	return &fetch.DownloadResult{LocalPath: path, AssetID: id, Title: "Title " + id}, nil
}

type delivery struct {
	target  string
	path    string
	title   string
	variant model.Variant
}

type fakeSender struct {
	deliveries chan delivery
}

func (f *fakeSender) SendAudio(ctx context.Context, target, localPath, title string) error {
	f.deliveries <- delivery{target: target, path: localPath, title: title, variant: model.VariantAudio}
	return nil
}

func (f *fakeSender) SendVideo(ctx context.Context, target, localPath, caption string) error {
	f.deliveries <- delivery{target: target, path: localPath, title: caption, variant: model.VariantVideo}
	return nil
}

type fakeMessenger struct {
	notices chan string
}

func (f *fakeMessenger) Notify(target, text string) {
	f.notices <- text
}

type fakeStreamer struct {
	mu     sync.Mutex
	joins  []string
	leaves []string
}

func (f *fakeStreamer) JoinAndPlay(sessionID, localPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, localPath)
	return nil
}

func (f *fakeStreamer) Leave(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, sessionID)
	return nil
}

type harness struct {
	engine    *Engine
	sender    *fakeSender
	messenger *fakeMessenger
	streamer  *fakeStreamer
	sessions  *session.Manager
}

func newHarness(t *testing.T, refs ...model.AssetReference) *harness {
	t.Helper()

	byQuery := make(map[string]model.AssetReference, len(refs))
	for _, ref := range refs {
		byQuery["find "+ref.ID] = ref
	}

	repo := repository.NewMemoryCacheRecordRepository()
	index := cache.NewIndex(repo, nil, time.Hour)
	pipeline := fetch.NewPipeline(index, repo, &fakeDownloader{}, t.TempDir(), nil)

	sender := &fakeSender{deliveries: make(chan delivery, 16)}
	dispatcher := dispatch.NewDispatcher(sender, 2, 0)

	loop := session.NewLoop(0)
	loop.Start()
	streamer := &fakeStreamer{}
	sessions := session.NewManager(loop, streamer, nil)

	messenger := &fakeMessenger{notices: make(chan string, 16)}
	engine := NewEngine(
		resolve.NewResolver(&fakeProvider{refs: byQuery}),
		pipeline, dispatcher, sessions, messenger, 2, 0,
	)

	t.Cleanup(func() {
		engine.Close()
		dispatcher.Close()
		loop.Stop()
	})

	return &harness{engine: engine, sender: sender, messenger: messenger, streamer: streamer, sessions: sessions}
}

func waitDelivery(t *testing.T, h *harness) delivery {
	t.Helper()
	select {
	case d := <-h.sender.deliveries:
		return d
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return delivery{}
	}
}

func waitNotice(t *testing.T, h *harness) string {
	t.Helper()
	select {
	case text := <-h.messenger.notices:
		return text
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for notice")
		return ""
	}
}

func TestSongDownloadsThenDelivers(t *testing.T) {
	h := newHarness(t, model.AssetReference{ID: "v1", Title: "Lofi Beats", SourceURL: "https://example.test/v1"})

	ack, err := h.engine.Song(context.Background(), "chat-1", "find v1")
	require.NoError(t, err)
	require.Equal(t, "Downloading Lofi Beats ...", ack)

	d := waitDelivery(t, h)
	require.Equal(t, "chat-1", d.target)
	require.Equal(t, model.VariantAudio, d.variant)
	require.FileExists(t, d.path)
}

func TestSongAcknowledgesCachedArtifact(t *testing.T) {
	h := newHarness(t, model.AssetReference{ID: "v1", Title: "Lofi Beats", SourceURL: "https://example.test/v1"})

	_, err := h.engine.Song(context.Background(), "chat-1", "find v1")
	require.NoError(t, err)
	waitDelivery(t, h)

	ack, err := h.engine.Song(context.Background(), "chat-1", "find v1")
	require.NoError(t, err)
	require.Equal(t, "Sending cached audio: Lofi Beats", ack)
	waitDelivery(t, h)
}

func TestVideoUsesVideoVariant(t *testing.T) {
	h := newHarness(t, model.AssetReference{ID: "v2", Title: "Live Set", SourceURL: "https://example.test/v2"})

	ack, err := h.engine.Video(context.Background(), "chat-1", "find v2")
	require.NoError(t, err)
	require.Equal(t, "Downloading Live Set ...", ack)

	d := waitDelivery(t, h)
	require.Equal(t, model.VariantVideo, d.variant)
	require.Equal(t, ".mp4", filepath.Ext(d.path))
}

func TestSongNoResults(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Song(context.Background(), "chat-1", "find nothing")
	require.ErrorIs(t, err, errs.ErrNoResults)
}

func TestQueueStartsStreamThenAppends(t *testing.T) {
	h := newHarness(t,
		model.AssetReference{ID: "a", Title: "Track A", SourceURL: "https://example.test/a"},
		model.AssetReference{ID: "b", Title: "Track B", SourceURL: "https://example.test/b"},
	)
	ctx := context.Background()

	ack, err := h.engine.Queue(ctx, "room-1", "find a")
	require.NoError(t, err)
	require.Equal(t, "Fetching Track A ...", ack)
	require.Equal(t, "Now playing: Title a", waitNotice(t, h))

	ack, err = h.engine.Queue(ctx, "room-1", "find b")
	require.NoError(t, err)
	require.Equal(t, "Fetching Track B ...", ack)
	require.Equal(t, "Queued at position 1: Title b", waitNotice(t, h))

	snap := h.sessions.Snapshot("room-1")
	require.Equal(t, session.StatePlaying, snap.State)
	require.Len(t, snap.Queue, 2)
}

func TestSkipAdvancesAndReportsNext(t *testing.T) {
	h := newHarness(t,
		model.AssetReference{ID: "a", Title: "Track A", SourceURL: "https://example.test/a"},
		model.AssetReference{ID: "b", Title: "Track B", SourceURL: "https://example.test/b"},
	)
	ctx := context.Background()

	_, err := h.engine.Queue(ctx, "room-1", "find a")
	require.NoError(t, err)
	waitNotice(t, h)
	_, err = h.engine.Queue(ctx, "room-1", "find b")
	require.NoError(t, err)
	waitNotice(t, h)

	ack, err := h.engine.Skip(ctx, "room-1")
	require.NoError(t, err)
	require.Equal(t, "Now playing: Title b", ack)

	ack, err = h.engine.Skip(ctx, "room-1")
	require.NoError(t, err)
	require.Equal(t, "Queue is empty, leaving the stream.", ack)
}

func TestStopClearsQueue(t *testing.T) {
	h := newHarness(t, model.AssetReference{ID: "a", Title: "Track A", SourceURL: "https://example.test/a"})
	ctx := context.Background()

	_, err := h.engine.Queue(ctx, "room-1", "find a")
	require.NoError(t, err)
	waitNotice(t, h)

	require.Equal(t, "Stopped and cleared the queue.", h.engine.Stop(ctx, "room-1"))

	snap := h.sessions.Snapshot("room-1")
	require.Equal(t, session.StateIdle, snap.State)
	require.Empty(t, snap.Queue)

	// Stopping an already idle session is still fine.
	require.Equal(t, "Stopped and cleared the queue.", h.engine.Stop(ctx, "room-1"))
}
