package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tunevault/model"
)

// YouTubeProvider implements SearchProvider against the YouTube Data API
// v3 search endpoint.
type YouTubeProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewYouTubeProvider creates a provider. baseURL defaults to the public
// API host when empty.
func NewYouTubeProvider(baseURL, apiKey string) *YouTubeProvider {
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/youtube/v3"
	}
	return &YouTubeProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
	}
}

// SetTimeout adjusts the request timeout.
func (p *YouTubeProvider) SetTimeout(timeout time.Duration) {
	p.httpClient.Timeout = timeout
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

// Search queries the search endpoint once and maps the items to asset
// references in returned order.
func (p *YouTubeProvider) Search(ctx context.Context, query string, maxResults int) ([]model.AssetReference, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("key", p.apiKey)

	endpoint := fmt.Sprintf("%s/search?%s", p.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	refs := make([]model.AssetReference, 0, len(result.Items))
	for _, item := range result.Items {
		if item.ID.VideoID == "" {
			continue
		}
		refs = append(refs, model.AssetReference{
			ID:        item.ID.VideoID,
			Title:     item.Snippet.Title,
			SourceURL: "https://www.youtube.com/watch?v=" + item.ID.VideoID,
		})
	}
	return refs, nil
}
