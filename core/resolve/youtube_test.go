package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestYouTubeProviderSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "snippet", q.Get("part"))
		require.Equal(t, "video", q.Get("type"))
		require.Equal(t, "lofi beats", q.Get("q"))
		require.Equal(t, "2", q.Get("maxResults"))
		require.Equal(t, "test-key", q.Get("key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"items": [
				{"id": {"videoId": "v123"}, "snippet": {"title": "Lofi Beats"}},
				{"id": {"videoId": "v456"}, "snippet": {"title": "More Lofi"}},
				{"id": {}, "snippet": {"title": "not a video"}}
			]
		}`))
	}))
	defer srv.Close()

	provider := NewYouTubeProvider(srv.URL, "test-key")
	refs, err := provider.Search(context.Background(), "lofi beats", 2)
	require.NoError(t, err)
	require.Len(t, refs, 2, "items without a videoId are dropped")
	require.Equal(t, "v123", refs[0].ID)
	require.Equal(t, "Lofi Beats", refs[0].Title)
	require.Equal(t, "https://www.youtube.com/watch?v=v123", refs[0].SourceURL)
}

func TestYouTubeProviderSearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	provider := NewYouTubeProvider(srv.URL, "bad-key")
	_, err := provider.Search(context.Background(), "q", 1)
	require.Error(t, err)
}
