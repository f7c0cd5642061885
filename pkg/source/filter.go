package source

import "strings"

// Filter matches free text against a keyword set. Adapters whose upstream
// cannot search (feeds) use it to keep only entries related to the idea.
type Filter struct {
	keywords []string
	exclude  []string
}

// NewFilter creates a filter from the query keywords plus optional excludes.
func NewFilter(keywords, excludeKeywords []string) *Filter {
	kws := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			kws = append(kws, kw)
		}
	}

	exclude := make([]string, 0, len(excludeKeywords))
	for _, kw := range excludeKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			exclude = append(exclude, kw)
		}
	}

	return &Filter{keywords: kws, exclude: exclude}
}

// Matches returns true if text contains any keyword and no excluded term.
func (f *Filter) Matches(text string) bool {
	return f.MatchCount(text) > 0
}

// MatchCount returns how many distinct keywords occur in text, or 0 when an
// excluded term is present.
func (f *Filter) MatchCount(text string) int {
	lower := strings.ToLower(text)

	for _, ex := range f.exclude {
		if strings.Contains(lower, ex) {
			return 0
		}
	}

	n := 0
	for _, kw := range f.keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}
