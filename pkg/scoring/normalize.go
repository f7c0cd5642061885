package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/elonfeng/realitycheck/pkg/source"
)

// Candidate is one existing project found in a catalog, in a shape that is
// comparable across sources.
type Candidate struct {
	Name        string
	URL         string
	Description string
	// Source is the catalog the displayed metrics come from; Sources lists
	// every catalog the project was found in.
	Source  source.SourceType
	Sources []source.SourceType
	// Popularity is the source metric compressed onto 0-1.
	Popularity float64
	// RawPopularity is the metric in the source's own unit, kept for display.
	RawPopularity int
	Published     time.Time
	// Relevance is assigned by Rank.
	Relevance float64
	// Evidence holds one entry per catalog hit merged into this candidate.
	Evidence []Evidence
}

// Evidence is a single catalog hit as scored before deduplication. Merging
// candidates concatenates their evidence, so the signal never loses a hit
// when two projects turn out to be the same.
type Evidence struct {
	Source     source.SourceType
	Key        string
	Relevance  float64
	Popularity float64
}

func (e Evidence) weight() float64 {
	return clamp01(e.Relevance) * (1 + clamp01(e.Popularity)) / 2
}

// evidence returns the candidate's hits, or the candidate itself as a
// single hit when it was not produced by Rank.
func (c Candidate) evidence() []Evidence {
	if len(c.Evidence) > 0 {
		return c.Evidence
	}
	return []Evidence{c.ownEvidence()}
}

func (c Candidate) ownEvidence() Evidence {
	src := c.Source
	if src == "" && len(c.Sources) > 0 {
		src = c.Sources[0]
	}
	key := URLKey(c.URL)
	if key == "" {
		key = NameKey(c.Name)
	}
	return Evidence{Source: src, Key: key, Relevance: c.Relevance, Popularity: c.Popularity}
}

// Saturation is the metric at which a source's popularity reaches 1. The
// scales differ by orders of magnitude: a few hundred HN points is a big
// story, while a package needs tens of thousands of weekly downloads.
var Saturation = map[source.SourceType]float64{
	source.SourceGitHub:      10000,
	source.SourceHackerNews:  500,
	source.SourceNPM:         100000,
	source.SourcePyPI:        100000,
	source.SourceProductHunt: 1000,
}

const defaultSaturation = 1000

// Normalize maps raw records from one source into candidates. Records
// without a name or URL are skipped.
func Normalize(src source.SourceType, records []source.Record) []Candidate {
	candidates := make([]Candidate, 0, len(records))
	for _, r := range records {
		name := strings.TrimSpace(r.Name)
		link := strings.TrimSpace(r.URL)
		if name == "" || link == "" {
			continue
		}

		metric := max(r.Metric, 0)
		candidates = append(candidates, Candidate{
			Name:          name,
			URL:           link,
			Description:   strings.TrimSpace(r.Description),
			Source:        src,
			Sources:       []source.SourceType{src},
			Popularity:    ScalePopularity(src, metric),
			RawPopularity: metric,
			Published:     r.Published,
		})
	}
	return candidates
}

// ScalePopularity compresses a raw metric logarithmically onto 0-1.
func ScalePopularity(src source.SourceType, metric int) float64 {
	if metric <= 0 {
		return 0
	}
	sat, ok := Saturation[src]
	if !ok || sat <= 0 {
		sat = defaultSaturation
	}
	p := math.Log1p(float64(metric)) / math.Log1p(sat)
	return math.Min(p, 1)
}
