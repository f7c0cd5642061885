package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const hnBaseURL = "https://hn.algolia.com/api/v1"

// HackerNews searches Hacker News stories through the Algolia search API.
type HackerNews struct {
	client  *http.Client
	baseURL string
	limit   int
}

// NewHackerNews creates a new HN adapter.
func NewHackerNews(limit int) *HackerNews {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &HackerNews{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: hnBaseURL,
		limit:   limit,
	}
}

// WithBaseURL points the adapter at a different API host.
func (h *HackerNews) WithBaseURL(u string) *HackerNews {
	h.baseURL = strings.TrimRight(u, "/")
	return h
}

func (h *HackerNews) Name() SourceType { return SourceHackerNews }

func (h *HackerNews) Search(ctx context.Context, keywords []string) ([]Record, error) {
	terms := queryTerms(keywords, 4)
	if terms == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", terms)
	params.Set("tags", "story")
	params.Set("hitsPerPage", strconv.Itoa(h.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create hn request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search hn: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hn search status %d", resp.StatusCode)
	}

	var result hnSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode hn search: %w", err)
	}

	records := make([]Record, 0, len(result.Hits))
	for _, hit := range result.Hits {
		link := hit.URL
		if link == "" {
			link = "https://news.ycombinator.com/item?id=" + hit.ObjectID
		}

		records = append(records, Record{
			Source:      SourceHackerNews,
			Name:        hit.Title,
			URL:         link,
			Description: truncate(hit.StoryText, 500),
			Metric:      hit.Points,
			Published:   time.Unix(hit.CreatedAtI, 0).UTC(),
		})
	}

	return capRecords(records, h.limit), nil
}

type hnSearchResult struct {
	Hits []hnHit `json:"hits"`
}

type hnHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	StoryText   string `json:"story_text"`
	CreatedAtI  int64  `json:"created_at_i"`
}
