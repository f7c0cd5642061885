package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

const (
	pypiBaseURL  = "https://pypi.org"
	pypiStatsURL = "https://pypistats.org/api"

	// pypiStatsLookups bounds the per-package download lookups per search.
	pypiStatsLookups = 5
)

// PyPI searches the Python Package Index. The index has no JSON search
// endpoint, so the HTML results page is parsed; weekly downloads for the
// leading packages come from pypistats.
type PyPI struct {
	client   *http.Client
	baseURL  string
	statsURL string
	limit    int
}

// NewPyPI creates a new PyPI adapter.
func NewPyPI(limit int) *PyPI {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &PyPI{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  pypiBaseURL,
		statsURL: pypiStatsURL,
		limit:    limit,
	}
}

// WithBaseURL points the adapter at a different index and stats host. An
// empty statsURL disables download lookups.
func (p *PyPI) WithBaseURL(index, stats string) *PyPI {
	p.baseURL = strings.TrimRight(index, "/")
	p.statsURL = strings.TrimRight(stats, "/")
	return p
}

func (p *PyPI) Name() SourceType { return SourcePyPI }

func (p *PyPI) Search(ctx context.Context, keywords []string) ([]Record, error) {
	terms := queryTerms(keywords, 4)
	if terms == "" {
		return nil, nil
	}

	reqURL := p.baseURL + "/search/?q=" + url.QueryEscape(terms)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create pypi request: %w", err)
	}
	req.Header.Set("User-Agent", "realitycheck/1.0")
	req.Header.Set("Accept", "text/html")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search pypi: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pypi search status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse pypi search page: %w", err)
	}

	var records []Record
	doc.Find("a.package-snippet").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name := strings.TrimSpace(s.Find(".package-snippet__name").First().Text())
		href, _ := s.Attr("href")
		if name == "" || href == "" {
			return true
		}

		var published time.Time
		if dt, ok := s.Find(".package-snippet__created time").Attr("datetime"); ok {
			published, _ = time.Parse("2006-01-02T15:04:05-0700", dt)
		}

		records = append(records, Record{
			Source:      SourcePyPI,
			Name:        name,
			URL:         p.absURL(href),
			Description: truncate(strings.TrimSpace(s.Find(".package-snippet__description").Text()), 500),
			Published:   published,
		})
		return len(records) < p.limit
	})

	p.fillDownloads(ctx, records)
	return records, nil
}

func (p *PyPI) absURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return p.baseURL + "/" + strings.TrimLeft(href, "/")
}

// fillDownloads looks up last-week downloads for the first few packages.
// Lookup failures leave the metric at zero.
func (p *PyPI) fillDownloads(ctx context.Context, records []Record) {
	if p.statsURL == "" {
		return
	}

	n := min(len(records), pypiStatsLookups)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pypiStatsLookups)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if d, err := p.lastWeek(gctx, records[i].Name); err == nil {
				records[i].Metric = d
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (p *PyPI) lastWeek(ctx context.Context, pkg string) (int, error) {
	reqURL := fmt.Sprintf("%s/packages/%s/recent", p.statsURL, url.PathEscape(strings.ToLower(pkg)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch pypistats %s: %w", pkg, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("pypistats %s status %d", pkg, resp.StatusCode)
	}

	var stats struct {
		Data struct {
			LastWeek int `json:"last_week"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return 0, fmt.Errorf("decode pypistats %s: %w", pkg, err)
	}
	return stats.Data.LastWeek, nil
}
