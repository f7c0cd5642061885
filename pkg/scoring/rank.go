package scoring

import (
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/elonfeng/realitycheck/pkg/source"
)

// Ranked is an ordered candidate list, best match first, in which no two
// entries refer to the same project.
type Ranked []Candidate

// Weight is the ranking key: relevance boosted by popularity.
func (c Candidate) Weight() float64 {
	return c.Relevance * (1 + c.Popularity)
}

// Rank scores every candidate against the keywords, merges candidates that
// refer to the same project and sorts the result. When keywords is empty
// they are extracted from idea.
func Rank(idea string, keywords []string, candidates []Candidate) Ranked {
	if len(keywords) == 0 {
		keywords = ExtractKeywords(idea)
	}
	kws := lowerAll(keywords)

	scored := make([]Candidate, len(candidates))
	for i, c := range candidates {
		c.Sources = append([]source.SourceType(nil), c.Sources...)
		if c.Source == "" && len(c.Sources) > 0 {
			c.Source = c.Sources[0]
		}
		c.Relevance = Relevance(kws, c.Name, c.Description)
		c.Evidence = []Evidence{c.ownEvidence()}
		scored[i] = c
	}

	ranked := Ranked(dedupe(scored))
	sort.Slice(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})
	return ranked
}

func less(a, b Candidate) bool {
	if wa, wb := a.Weight(), b.Weight(); wa != wb {
		return wa > wb
	}
	if a.RawPopularity != b.RawPopularity {
		return a.RawPopularity > b.RawPopularity
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.URL < b.URL
}

// Relevance returns the share of keywords found in the candidate's text,
// with a bonus for keywords that appear in the name itself. It never
// decreases when more matching text is added.
func Relevance(keywords []string, name, description string) float64 {
	if len(keywords) == 0 {
		return 0
	}

	nameTokens := tokenize(name)
	allTokens := append(tokenize(description), nameTokens...)
	nameText := " " + strings.Join(nameTokens, " ") + " "
	allText := " " + strings.Join(allTokens, " ") + " "

	var inText, inName int
	for _, kw := range keywords {
		if matchKeyword(kw, allTokens, allText) {
			inText++
		}
		if matchKeyword(kw, nameTokens, nameText) {
			inName++
		}
	}

	n := float64(len(keywords))
	rel := 0.7*float64(inText)/n + 0.3*float64(inName)/n
	return clamp01(rel)
}

// matchKeyword reports whether kw occurs in the tokens. Single-word
// keywords of four or more letters also match inside compound tokens
// ("figma" in "figma2github"); multi-word keywords match as a phrase.
func matchKeyword(kw string, tokens []string, text string) bool {
	parts := tokenize(kw)
	switch len(parts) {
	case 0:
		return false
	case 1:
	default:
		return strings.Contains(text, " "+strings.Join(parts, " ")+" ")
	}

	word := parts[0]
	for _, t := range tokens {
		if t == word {
			return true
		}
		if len([]rune(word)) >= 4 && strings.Contains(t, word) {
			return true
		}
	}
	return false
}

// dedupe merges candidates that share a normalized URL or name. Groups are
// formed with union-find so that chains (A~B by URL, B~C by name) collapse
// into one project. A shared name only joins groups found in different
// catalogs: two GitHub repos named figma-sync under different owners are
// different projects.
func dedupe(candidates []Candidate) []Candidate {
	n := len(candidates)
	parent := make([]int, n)
	srcs := make([]map[source.SourceType]bool, n)
	for i, c := range candidates {
		parent[i] = i
		srcs[i] = make(map[source.SourceType]bool, len(c.Sources))
		for _, s := range c.Sources {
			srcs[i][s] = true
		}
	}

	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(x, y int) {
		px, py := find(x), find(y)
		if px == py {
			return
		}
		parent[px] = py
		for s := range srcs[px] {
			srcs[py][s] = true
		}
	}
	disjoint := func(x, y int) bool {
		sx, sy := srcs[find(x)], srcs[find(y)]
		for s := range sx {
			if sy[s] {
				return false
			}
		}
		return true
	}

	byURL := make(map[string]int)
	byName := make(map[string][]int)
	for i, c := range candidates {
		if k := URLKey(c.URL); k != "" {
			if j, ok := byURL[k]; ok {
				union(i, j)
			} else {
				byURL[k] = i
			}
		}
		if k := NameKey(c.Name); k != "" {
			for _, j := range byName[k] {
				if find(i) != find(j) && disjoint(i, j) {
					union(i, j)
				}
			}
			byName[k] = append(byName[k], i)
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		root := find(i)
		if _, ok := groups[root]; !ok {
			roots = append(roots, root)
		}
		groups[root] = append(groups[root], i)
	}

	merged := make([]Candidate, 0, len(roots))
	for _, root := range roots {
		members := groups[root]
		best := candidates[members[0]]
		rel := best.Relevance
		seen := make(map[source.SourceType]bool)
		var evidence []Evidence
		for _, idx := range members {
			c := candidates[idx]
			if preferred(c, best) {
				best = c
			}
			rel = max(rel, c.Relevance)
			for _, s := range c.Sources {
				seen[s] = true
			}
			evidence = append(evidence, c.evidence()...)
		}

		best.Relevance = rel
		best.Sources = orderedSources(seen)
		best.Evidence = evidence
		merged = append(merged, best)
	}
	return merged
}

// preferred reports whether a should represent a duplicate group over b.
func preferred(a, b Candidate) bool {
	if a.Popularity != b.Popularity {
		return a.Popularity > b.Popularity
	}
	if a.RawPopularity != b.RawPopularity {
		return a.RawPopularity > b.RawPopularity
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.URL < b.URL
}

func orderedSources(seen map[source.SourceType]bool) []source.SourceType {
	var out []source.SourceType
	for _, st := range source.AllSourceTypes() {
		if seen[st] {
			out = append(out, st)
			delete(seen, st)
		}
	}
	var rest []string
	for st := range seen {
		rest = append(rest, string(st))
	}
	sort.Strings(rest)
	for _, st := range rest {
		out = append(out, source.SourceType(st))
	}
	return out
}

// URLKey normalizes a URL for identity checks: scheme, "www.", fragment,
// tracking parameters and trailing slashes are ignored, case is folded.
func URLKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimRight(raw, "/"))
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimRight(strings.ToLower(u.Path), "/")

	// Some catalogs identify pages by query ("item?id=1"); keep those
	// parameters and drop tracking ones.
	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || lk == "ref" || lk == "source" {
			q.Del(k)
		}
	}
	if enc := q.Encode(); enc != "" {
		return host + path + "?" + enc
	}
	return host + path
}

// NameKey normalizes a project name: for slug-like names only the last
// path segment counts ("owner/repo" and "@scope/repo" both become "repo"),
// and only letters and digits are kept.
func NameKey(name string) string {
	name = strings.TrimRight(strings.TrimSpace(name), "/")
	if !strings.ContainsAny(name, " \t") {
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
	}
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
