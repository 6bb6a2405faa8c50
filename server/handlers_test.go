package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tunevault/cache"
	"tunevault/core/dispatch"
	"tunevault/core/engine"
	"tunevault/core/fetch"
	"tunevault/core/resolve"
	"tunevault/core/session"
	"tunevault/model"
	"tunevault/repository"

	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	refs map[string]model.AssetReference
}

func (s *stubProvider) Search(ctx context.Context, query string, maxResults int) ([]model.AssetReference, error) {
	ref, ok := s.refs[query]
	if !ok {
		return nil, nil
	}
	return []model.AssetReference{ref}, nil
}

type stubDownloader struct{}

func (s *stubDownloader) Download(ctx context.Context, sourceURL string, variant model.Variant, outDir string) (*fetch.DownloadResult, error) {
	id := filepath.Base(sourceURL)
	path := filepath.Join(outDir, id+variant.Ext())
	if err := os.WriteFile(path, []byte("artifact"), 0o644); err != nil {
		return nil, err
	}
	return &fetch.DownloadResult{LocalPath: path, AssetID: id, Title: "Title " + id}, nil
}

type stubSender struct{}

func (s *stubSender) SendAudio(ctx context.Context, target, localPath, title string) error { return nil }
func (s *stubSender) SendVideo(ctx context.Context, target, localPath, caption string) error {
	return nil
}

type stubStreamer struct{}

func (s *stubStreamer) JoinAndPlay(sessionID, localPath string) error { return nil }
func (s *stubStreamer) Leave(sessionID string) error                  { return nil }

type stubMessenger struct {
	notices chan string
}

func (s *stubMessenger) Notify(target, text string) { s.notices <- text }

func newTestServer(t *testing.T) (http.Handler, *stubMessenger) {
	t.Helper()

	refs := map[string]model.AssetReference{
		"lofi": {ID: "v1", Title: "Lofi Beats", SourceURL: "https://example.test/v1"},
	}

	repo := repository.NewMemoryCacheRecordRepository()
	index := cache.NewIndex(repo, nil, time.Hour)
	pipeline := fetch.NewPipeline(index, repo, &stubDownloader{}, t.TempDir(), nil)
	dispatcher := dispatch.NewDispatcher(&stubSender{}, 2, 0)

	loop := session.NewLoop(0)
	loop.Start()
	hub := NewStatusHub()
	sessions := session.NewManager(loop, &stubStreamer{}, hub.Broadcast)

	messenger := &stubMessenger{notices: make(chan string, 16)}
	eng := engine.NewEngine(
		resolve.NewResolver(&stubProvider{refs: refs}),
		pipeline, dispatcher, sessions, messenger, 2, 0,
	)

	t.Cleanup(func() {
		eng.Close()
		sessions.Close()
		dispatcher.Close()
		loop.Stop()
	})

	return New(":0", eng, sessions, hub).Handler(), messenger
}

func postJSON(t *testing.T, handler http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	handler, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRootLiveness(t *testing.T) {
	handler, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "tunevault is running", rec.Body.String())
}

func TestSongCommandAccepted(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := postJSON(t, handler, "/api/commands/song", map[string]string{"target": "chat-1", "query": "lofi"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Downloading Lofi Beats ...", resp.Message)
}

func TestSongCommandRequiresQuery(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := postJSON(t, handler, "/api/commands/song", map[string]string{"target": "chat-1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/commands/song", strings.NewReader("not json"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSongCommandNoResults(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := postJSON(t, handler, "/api/commands/song", map[string]string{"target": "chat-1", "query": "nothing here"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueueThenSessionStatus(t *testing.T) {
	handler, messenger := newTestServer(t)

	rec := postJSON(t, handler, "/api/sessions/room-1/queue", map[string]string{"query": "lofi"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case notice := <-messenger.notices:
		require.Equal(t, "Now playing: Title v1", notice)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for queue placement notice")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/room-1", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	require.Equal(t, "room-1", snap.SessionID)
	require.Equal(t, session.StatePlaying, snap.State)
	require.Len(t, snap.Queue, 1)
}

func TestStopAlwaysSucceeds(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := postJSON(t, handler, "/api/sessions/room-1/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Stopped and cleared the queue.")
}

func TestSkipOnEmptyQueue(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := postJSON(t, handler, "/api/sessions/room-1/skip", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Queue is empty, leaving the stream.")
}
