package scoring

import (
	"sort"
	"strings"
	"unicode"
)

const (
	// MaxKeywords bounds the extracted keyword set.
	MaxKeywords = 8

	minTokenLen = 2
	maxTokenLen = 30
)

var stopwords = toSet(
	"a", "an", "the", "and", "or", "but", "in", "on", "at", "to",
	"for", "of", "with", "by", "from", "into", "onto", "via", "as",
	"is", "are", "was", "were", "be", "been", "being", "have", "has", "had",
	"do", "does", "did", "will", "would", "could", "should", "may", "might",
	"this", "that", "these", "those", "there", "here", "then", "them",
	"it", "its", "i", "me", "we", "us", "our", "you", "he", "she", "they",
	"my", "your", "their", "his", "her", "which", "who", "whom",
	"how", "what", "when", "where", "why", "not", "no", "new", "just",
	"about", "up", "out", "if", "so", "can", "all", "more", "also",
	"than", "very", "any", "some", "each", "every", "other", "such",
	"like", "want", "need", "using", "use", "used", "make", "makes",
	"let", "lets", "get", "gets", "help", "helps", "allow", "allows",
	"simple", "easy", "based", "way", "ways", "thing", "things",
	"tool", "tools", "app", "apps", "application", "platform", "service",
	"idea", "project", "build", "building", "create", "one", "two",
)

// ExtractKeywords returns up to MaxKeywords salient lowercase terms from
// text, most frequent first and earlier terms winning ties. The result is
// never empty for text that contains any non-space character.
func ExtractKeywords(text string) []string {
	tokens := tokenize(text)

	var salient []string
	for _, t := range tokens {
		if len(t) >= minTokenLen && len(t) <= maxTokenLen && !stopwords[t] && !isNumber(t) {
			salient = append(salient, t)
		}
	}

	if kws := rankByFrequency(salient); len(kws) > 0 {
		return kws
	}

	// Everything was filtered; keep the most frequent raw tokens instead.
	var bounded []string
	for _, t := range tokens {
		if len(t) <= maxTokenLen {
			bounded = append(bounded, t)
		}
	}
	if kws := rankByFrequency(bounded); len(kws) > 0 {
		return kws
	}

	fallback := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if fallback == "" {
		return nil
	}
	if len(fallback) > maxTokenLen {
		fallback = strings.TrimSpace(truncateRunes(fallback, maxTokenLen))
	}
	return []string{fallback}
}

// tokenize lowercases text and splits it on anything that is not a letter
// or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func rankByFrequency(tokens []string) []string {
	type entry struct {
		term  string
		count int
		first int
	}

	index := make(map[string]int)
	var entries []entry
	for pos, t := range tokens {
		if i, ok := index[t]; ok {
			entries[i].count++
			continue
		}
		index[t] = len(entries)
		entries = append(entries, entry{term: t, count: 1, first: pos})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].first < entries[j].first
	})

	if len(entries) > MaxKeywords {
		entries = entries[:MaxKeywords]
	}

	kws := make([]string, len(entries))
	for i, e := range entries {
		kws[i] = e.term
	}
	return kws
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
