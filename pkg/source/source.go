package source

import (
	"context"
	"time"
	"unicode/utf8"
)

// SourceType identifies which catalog a record came from.
type SourceType string

const (
	SourceGitHub      SourceType = "github"
	SourceHackerNews  SourceType = "hackernews"
	SourceNPM         SourceType = "npm"
	SourcePyPI        SourceType = "pypi"
	SourceProductHunt SourceType = "producthunt"
)

// DefaultLimit caps how many records a single adapter returns.
const DefaultLimit = 20

// Record is the raw shape every adapter emits. Metric is the catalog's own
// popularity unit (stars, points, weekly downloads, votes).
type Record struct {
	Source      SourceType `json:"source"`
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Description string     `json:"description"`
	Metric      int        `json:"metric"`
	Published   time.Time  `json:"published"`
}

// Source is the interface every catalog adapter must implement.
type Source interface {
	Name() SourceType
	Search(ctx context.Context, keywords []string) ([]Record, error)
}

// AllSourceTypes returns all known source types in query order.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceGitHub,
		SourceHackerNews,
		SourceNPM,
		SourcePyPI,
		SourceProductHunt,
	}
}

// ShortName returns the CLI alias for a source type.
func ShortName(st SourceType) string {
	switch st {
	case SourceHackerNews:
		return "hn"
	case SourceProductHunt:
		return "ph"
	}
	return string(st)
}

// truncate cuts s to at most maxLen runes.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen]) + "..."
}

func capRecords(records []Record, limit int) []Record {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
