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

const githubBaseURL = "https://api.github.com"

// GitHub searches public repositories on GitHub.
type GitHub struct {
	client  *http.Client
	baseURL string
	token   string
	limit   int
}

// NewGitHub creates a new GitHub adapter. The token is optional; without it
// the unauthenticated search rate limit applies.
func NewGitHub(token string, limit int) *GitHub {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &GitHub{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: githubBaseURL,
		token:   token,
		limit:   limit,
	}
}

// WithBaseURL points the adapter at a different API host.
func (g *GitHub) WithBaseURL(u string) *GitHub {
	g.baseURL = strings.TrimRight(u, "/")
	return g
}

func (g *GitHub) Name() SourceType { return SourceGitHub }

func (g *GitHub) Search(ctx context.Context, keywords []string) ([]Record, error) {
	terms := queryTerms(keywords, 3)
	if terms == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", terms+" in:name,description,readme")
	params.Set("sort", "stars")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(g.limit))

	reqURL := g.baseURL + "/search/repositories?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create github request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "realitycheck/1.0")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search github repos: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github API status %d", resp.StatusCode)
	}

	var result ghSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode github response: %w", err)
	}

	records := make([]Record, 0, len(result.Items))
	for _, repo := range result.Items {
		records = append(records, Record{
			Source:      SourceGitHub,
			Name:        repo.FullName,
			URL:         repo.HTMLURL,
			Description: truncate(repo.Description, 500),
			Metric:      repo.Stars,
			Published:   repo.UpdatedAt,
		})
	}

	return capRecords(records, g.limit), nil
}

type ghSearchResult struct {
	TotalCount int      `json:"total_count"`
	Items      []ghRepo `json:"items"`
}

type ghRepo struct {
	FullName    string    `json:"full_name"`
	HTMLURL     string    `json:"html_url"`
	Description string    `json:"description"`
	Stars       int       `json:"stargazers_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// queryTerms joins the first n keywords into a search string.
func queryTerms(keywords []string, n int) string {
	var terms []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		terms = append(terms, kw)
		if len(terms) == n {
			break
		}
	}
	return strings.Join(terms, " ")
}
