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

const npmBaseURL = "https://registry.npmjs.org"

// NPM searches packages on the npm registry.
type NPM struct {
	client  *http.Client
	baseURL string
	limit   int
}

// NewNPM creates a new npm registry adapter.
func NewNPM(limit int) *NPM {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &NPM{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: npmBaseURL,
		limit:   limit,
	}
}

// WithBaseURL points the adapter at a different registry.
func (n *NPM) WithBaseURL(u string) *NPM {
	n.baseURL = strings.TrimRight(u, "/")
	return n
}

func (n *NPM) Name() SourceType { return SourceNPM }

func (n *NPM) Search(ctx context.Context, keywords []string) ([]Record, error) {
	terms := queryTerms(keywords, 4)
	if terms == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("text", terms)
	params.Set("size", strconv.Itoa(n.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/-/v1/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create npm request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search npm: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("npm search status %d", resp.StatusCode)
	}

	var result npmSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode npm search: %w", err)
	}

	records := make([]Record, 0, len(result.Objects))
	for _, obj := range result.Objects {
		pkg := obj.Package
		link := pkg.Links.NPM
		if link == "" && pkg.Name != "" {
			link = "https://www.npmjs.com/package/" + pkg.Name
		}

		records = append(records, Record{
			Source:      SourceNPM,
			Name:        pkg.Name,
			URL:         link,
			Description: truncate(pkg.Description, 500),
			Metric:      obj.weeklyDownloads(),
			Published:   pkg.Date,
		})
	}

	return capRecords(records, n.limit), nil
}

type npmSearchResult struct {
	Objects []npmObject `json:"objects"`
}

type npmObject struct {
	Package   npmPackage    `json:"package"`
	Downloads *npmDownloads `json:"downloads"`
	Score     struct {
		Detail struct {
			Popularity float64 `json:"popularity"`
		} `json:"detail"`
	} `json:"score"`
}

type npmPackage struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Links       struct {
		NPM string `json:"npm"`
	} `json:"links"`
}

type npmDownloads struct {
	Weekly  int `json:"weekly"`
	Monthly int `json:"monthly"`
}

// weeklyDownloads prefers the registry's download counts. Older registry
// responses only carry a 0-1 popularity detail, which is mapped onto the
// same scale the normalizer saturates at.
func (o npmObject) weeklyDownloads() int {
	if o.Downloads != nil {
		if o.Downloads.Weekly > 0 {
			return o.Downloads.Weekly
		}
		if o.Downloads.Monthly > 0 {
			return o.Downloads.Monthly / 4
		}
	}
	p := o.Score.Detail.Popularity
	if p <= 0 {
		return 0
	}
	if p > 1 {
		p = 1
	}
	return int(p * 100000)
}
