package scoring

import (
	"fmt"

	"github.com/elonfeng/realitycheck/pkg/source"
)

// DisplayLimit caps the similars shown in a report.
const DisplayLimit = 5

// Similar is the display view of a ranked candidate.
type Similar struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Stars int    `json:"stars"`
}

// Report is the single artifact returned for one idea.
type Report struct {
	RealitySignal       int                       `json:"reality_signal"`
	DuplicateLikelihood Likelihood                `json:"duplicate_likelihood"`
	TopSimilars         []Similar                 `json:"top_similars"`
	PivotHints          []string                  `json:"pivot_hints"`
	Keywords            []string                  `json:"keywords"`
	Depth               Depth                     `json:"depth"`
	SourceCounts        map[source.SourceType]int `json:"source_counts"`
}

// Assemble packages the computed parts into a Report, keeping only the
// first DisplayLimit similars.
func Assemble(score int, ranked Ranked, hints, keywords []string, depth Depth, counts map[source.SourceType]int) *Report {
	score = clampScore(score)

	similars := make([]Similar, 0, DisplayLimit)
	for _, c := range ranked[:min(DisplayLimit, len(ranked))] {
		similars = append(similars, Similar{
			Name:  c.Name,
			URL:   c.URL,
			Stars: c.RawPopularity,
		})
	}

	if hints == nil {
		hints = []string{}
	}
	kws := append([]string{}, keywords...)

	sc := make(map[source.SourceType]int, len(counts))
	for k, v := range counts {
		sc[k] = v
	}

	return &Report{
		RealitySignal:       score,
		DuplicateLikelihood: LikelihoodFor(score),
		TopSimilars:         similars,
		PivotHints:          append([]string{}, hints...),
		Keywords:            kws,
		Depth:               depth,
		SourceCounts:        sc,
	}
}

// TopCompetitor describes the best match as "<name> (<n> stars)", or
// "None found" when there are no similars.
func (r *Report) TopCompetitor() string {
	if r == nil || len(r.TopSimilars) == 0 {
		return "None found"
	}
	top := r.TopSimilars[0]
	return fmt.Sprintf("%s (%d stars)", top.Name, top.Stars)
}
