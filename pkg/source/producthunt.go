package source

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const productHuntFeedURL = "https://www.producthunt.com/feed"

// ProductHunt matches recent Product Hunt launches against the keywords.
// The public feed carries no vote counts, so records have a zero metric and
// contribute to coverage rather than popularity.
type ProductHunt struct {
	client  *http.Client
	parser  *gofeed.Parser
	feedURL string
	exclude []string
	limit   int
}

// NewProductHunt creates a new Product Hunt adapter.
func NewProductHunt(feedURL string, exclude []string, limit int) *ProductHunt {
	if feedURL == "" {
		feedURL = productHuntFeedURL
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &ProductHunt{
		client:  &http.Client{Timeout: 30 * time.Second},
		parser:  gofeed.NewParser(),
		feedURL: feedURL,
		exclude: exclude,
		limit:   limit,
	}
}

func (p *ProductHunt) Name() SourceType { return SourceProductHunt }

func (p *ProductHunt) Search(ctx context.Context, keywords []string) ([]Record, error) {
	filter := NewFilter(keywords, p.exclude)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create producthunt request: %w", err)
	}
	req.Header.Set("User-Agent", "realitycheck/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch producthunt feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("producthunt feed status %d", resp.StatusCode)
	}

	parsed, err := p.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse producthunt feed: %w", err)
	}

	type match struct {
		rec  Record
		hits int
	}
	var matches []match

	for _, entry := range parsed.Items {
		desc := entry.Description
		if desc == "" {
			desc = entry.Content
		}
		desc = stripTags(desc)

		hits := filter.MatchCount(entry.Title + " " + desc)
		if hits == 0 {
			continue
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		var published time.Time
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}

		matches = append(matches, match{
			rec: Record{
				Source:      SourceProductHunt,
				Name:        strings.TrimSpace(entry.Title),
				URL:         link,
				Description: truncate(strings.TrimSpace(desc), 500),
				Published:   published,
			},
			hits: hits,
		})
	}

	// Best keyword matches first; the feed order breaks ties.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].hits > matches[j].hits
	})

	records := make([]Record, 0, len(matches))
	for _, m := range matches {
		records = append(records, m.rec)
	}
	return capRecords(records, p.limit), nil
}

// stripTags drops HTML markup from feed descriptions.
func stripTags(s string) string {
	if !strings.Contains(s, "<") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
