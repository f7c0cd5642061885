package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/elonfeng/realitycheck/pkg/source"
)

const (
	// RelevanceThreshold is the relevance at which a candidate counts as
	// evidence that the idea already exists.
	RelevanceThreshold = 0.3

	// TopK is how many ranked candidates contribute popularity mass.
	TopK = 10

	// corroborationSources is the number of distinct catalogs at which the
	// source part of coverage saturates.
	corroborationSources = 3

	coverageWeight = 0.45
	massWeight     = 0.55

	maxPivotHints = 5
	staleAfter    = 2 * 365 * 24 * time.Hour
)

// Likelihood is the discrete duplicate-likelihood bucket.
type Likelihood string

const (
	LikelihoodNone     Likelihood = "none"
	LikelihoodLow      Likelihood = "low"
	LikelihoodModerate Likelihood = "moderate"
	LikelihoodHigh     Likelihood = "high"
	LikelihoodVeryHigh Likelihood = "very-high"
)

// Depth selects which catalogs are queried.
type Depth string

const (
	DepthQuick Depth = "quick"
	DepthDeep  Depth = "deep"
)

// ParseDepth maps user input onto a depth; anything but "deep" is quick.
func ParseDepth(s string) Depth {
	if Depth(strings.ToLower(strings.TrimSpace(s))) == DepthDeep {
		return DepthDeep
	}
	return DepthQuick
}

// Sources returns the catalogs queried at this depth.
func (d Depth) Sources() []source.SourceType {
	if d == DepthDeep {
		return source.AllSourceTypes()
	}
	return []source.SourceType{source.SourceGitHub, source.SourceHackerNews}
}

// now is replaced in tests.
var now = time.Now

// ComputeSignal normalizes and ranks the raw results of every queried
// source and derives the report. It never fails: no results at all yields a
// zero report. Depth is recorded but does not change the arithmetic.
func ComputeSignal(idea string, keywords []string, results map[source.SourceType][]source.Record, depth Depth) *Report {
	if len(keywords) == 0 {
		keywords = ExtractKeywords(idea)
	}

	counts := make(map[source.SourceType]int, len(results))
	var pool []Candidate
	for _, st := range sourceOrder(results) {
		records := results[st]
		counts[st] = len(records)
		pool = append(pool, Normalize(st, records)...)
	}

	ranked := Rank(idea, keywords, pool)
	return ComputeFromRanked(keywords, ranked, depth, counts)
}

// ComputeFromRanked derives the report from an already ranked set.
func ComputeFromRanked(keywords []string, ranked Ranked, depth Depth, counts map[source.SourceType]int) *Report {
	score := Signal(ranked)
	return Assemble(score, ranked, PivotHints(keywords, ranked), keywords, depth, counts)
}

// Signal combines coverage and popularity mass into the 0-100 reality
// signal. Only hits at or above RelevanceThreshold count; adding
// candidates, or raising their relevance or popularity, never lowers it.
// The signal is computed over the catalog hits behind the ranked entries,
// so merging duplicates changes what is displayed but not the evidence.
func Signal(ranked Ranked) int {
	hits := relevantEvidence(ranked)
	if len(hits) == 0 {
		return 0
	}

	raw := 100 * (coverageWeight*Coverage(hits) + massWeight*Mass(hits))
	return clampScore(int(math.Round(raw)))
}

// Coverage rewards corroboration across catalogs and the number of
// relevant hits. Result is in [0,1].
func Coverage(hits []Evidence) float64 {
	if len(hits) == 0 {
		return 0
	}
	seen := make(map[source.SourceType]bool)
	for _, h := range hits {
		seen[h.Source] = true
	}
	sourcePart := math.Min(1, float64(len(seen))/corroborationSources)
	countPart := 1 - math.Exp(-float64(len(hits))/5)
	return 0.5*sourcePart + 0.5*countPart
}

// Mass is the saturated popularity-weighted relevance of the top TopK
// hits. A single perfect match reaches about 0.39, so popularity alone
// cannot max out the signal. Result is in [0,1).
func Mass(hits []Evidence) float64 {
	weights := make([]float64, len(hits))
	for i, h := range hits {
		weights[i] = h.weight()
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(weights)))
	if len(weights) > TopK {
		weights = weights[:TopK]
	}

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	return 1 - math.Exp(-sum/2)
}

// relevantEvidence flattens the hits behind ranked, keeping the strongest
// hit per catalog and identity, and drops those below RelevanceThreshold.
func relevantEvidence(ranked Ranked) []Evidence {
	type hitKey struct {
		src source.SourceType
		key string
	}
	best := make(map[hitKey]int)
	var hits []Evidence
	for _, c := range ranked {
		for _, e := range c.evidence() {
			if e.Relevance < RelevanceThreshold {
				continue
			}
			k := hitKey{e.Source, e.Key}
			if i, ok := best[k]; ok {
				if e.weight() > hits[i].weight() {
					hits[i] = e
				}
				continue
			}
			best[k] = len(hits)
			hits = append(hits, e)
		}
	}
	return hits
}

// LikelihoodFor buckets a reality signal.
func LikelihoodFor(score int) Likelihood {
	switch {
	case score <= 20:
		return LikelihoodNone
	case score <= 40:
		return LikelihoodLow
	case score <= 60:
		return LikelihoodModerate
	case score <= 80:
		return LikelihoodHigh
	default:
		return LikelihoodVeryHigh
	}
}

// PivotHints suggests differentiation angles from gaps between the idea's
// keywords and the closest projects. Empty when nothing was found.
func PivotHints(keywords []string, ranked Ranked) []string {
	hints := []string{}
	if len(ranked) == 0 {
		return hints
	}

	top := ranked[:min(DisplayLimit, len(ranked))]
	var missing []string
	for _, kw := range lowerAll(keywords) {
		found := false
		for _, c := range top {
			nameTokens := tokenize(c.Name)
			all := append(tokenize(c.Description), nameTokens...)
			if matchKeyword(kw, all, " "+strings.Join(all, " ")+" ") {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, kw)
		}
	}

	for _, kw := range missing[:min(3, len(missing))] {
		hints = append(hints, fmt.Sprintf("None of the closest projects mention %q; build the differentiation around it.", kw))
	}
	if len(missing) == 0 && len(keywords) > 0 {
		hints = append(hints, "The closest projects already cover every core keyword; compete on UX, integrations or a narrower audience.")
	}

	leader := ranked[0]
	if leader.Relevance >= RelevanceThreshold && leader.Popularity >= 0.8 {
		hints = append(hints, fmt.Sprintf("%s is an established leader (%d %s); consider integrating with it or targeting a niche it ignores.",
			leader.Name, leader.RawPopularity, metricUnit(leader.Source)))
	}
	if leader.Relevance >= RelevanceThreshold && tracksUpdates(leader.Source) &&
		!leader.Published.IsZero() && now().Sub(leader.Published) > staleAfter {
		hints = append(hints, fmt.Sprintf("%s has not been updated since %s; a maintained alternative could win its users.",
			leader.Name, leader.Published.Format("2006-01")))
	}

	relevant := relevantOnly(ranked)
	if srcs := distinctSources(relevant); len(srcs) == 1 {
		hints = append(hints, fmt.Sprintf("All close matches come from %s; the idea may be unaddressed on other platforms.", displayName(srcs[0])))
	}

	if len(hints) > maxPivotHints {
		hints = hints[:maxPivotHints]
	}
	return hints
}

func relevantOnly(ranked Ranked) Ranked {
	var out Ranked
	for _, c := range ranked {
		if c.Relevance >= RelevanceThreshold {
			out = append(out, c)
		}
	}
	return out
}

func distinctSources(cands Ranked) []source.SourceType {
	seen := make(map[source.SourceType]bool)
	for _, c := range cands {
		for _, s := range c.Sources {
			seen[s] = true
		}
	}
	return orderedSources(seen)
}

func sourceOrder(results map[source.SourceType][]source.Record) []source.SourceType {
	present := make(map[source.SourceType]bool, len(results))
	for st := range results {
		present[st] = true
	}
	return orderedSources(present)
}

// tracksUpdates reports whether a source's Published date is the last
// update of the project rather than the date a post was made.
func tracksUpdates(st source.SourceType) bool {
	switch st {
	case source.SourceGitHub, source.SourceNPM, source.SourcePyPI:
		return true
	}
	return false
}

func metricUnit(st source.SourceType) string {
	switch st {
	case source.SourceHackerNews:
		return "points"
	case source.SourceNPM, source.SourcePyPI:
		return "weekly downloads"
	case source.SourceProductHunt:
		return "votes"
	}
	return "stars"
}

func displayName(st source.SourceType) string {
	switch st {
	case source.SourceGitHub:
		return "GitHub"
	case source.SourceHackerNews:
		return "Hacker News"
	case source.SourceNPM:
		return "npm"
	case source.SourcePyPI:
		return "PyPI"
	case source.SourceProductHunt:
		return "Product Hunt"
	}
	return string(st)
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
