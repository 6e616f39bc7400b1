package reader

import (
	"errors"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

var ErrNoHeaderFound = errors.New("could not find header row")

// Header tokens that identify a likely header line when nothing else matches.
var commonHeaderTokens = []string{"date", "amount", "description", "type", "balance", "posting"}

// headerMatcher inspects one parsed line and reports whether it is the
// header row for the given expected column set.
type headerMatcher interface {
	Name() string
	Match(cells []string, expected []string) bool
}

// matcherChain is the ordered strategy list used by findHeader. Earlier
// matchers are stricter; the first hit wins.
func matcherChain() []headerMatcher {
	return []headerMatcher{
		exactMatcher{},
		fuzzyMatcher{cutoff: 0.7},
		genericMatcher{minTokens: 2},
	}
}

// exactMatcher requires every expected column to appear verbatim
// (case-insensitive, trimmed) in the candidate line.
type exactMatcher struct{}

func (exactMatcher) Name() string { return "exact" }

func (exactMatcher) Match(cells []string, expected []string) bool {
	if len(expected) == 0 {
		return false
	}
	present := make(map[string]bool, len(cells))
	for _, c := range cells {
		present[strings.ToLower(strings.TrimSpace(c))] = true
	}
	for _, want := range expected {
		if !present[strings.ToLower(strings.TrimSpace(want))] {
			return false
		}
	}
	return true
}

// fuzzyMatcher accepts the line when at least cutoff of the expected columns
// find a close-enough cell. Tolerates vendor renames like "Posting Date" vs
// "Post Date" and stray punctuation.
type fuzzyMatcher struct {
	cutoff float64
}

func (fuzzyMatcher) Name() string { return "fuzzy" }

func (m fuzzyMatcher) Match(cells []string, expected []string) bool {
	if len(expected) == 0 {
		return false
	}
	matched := 0
	for _, want := range expected {
		wantNorm := normalizeToken(want)
		if wantNorm == "" {
			continue
		}
		for _, c := range cells {
			cellNorm := normalizeToken(c)
			if cellNorm == "" {
				continue
			}
			if strings.Contains(cellNorm, wantNorm) || tokenSimilarity(wantNorm, cellNorm) >= m.cutoff {
				matched++
				break
			}
		}
	}
	return float64(matched) >= float64(len(expected))*m.cutoff
}

// genericMatcher is the last-resort heuristic for files whose headers share
// nothing with the schema: any line carrying at least minTokens of the common
// statement vocabulary is taken as the header.
type genericMatcher struct {
	minTokens int
}

func (genericMatcher) Name() string { return "generic" }

func (m genericMatcher) Match(cells []string, _ []string) bool {
	line := strings.ToLower(strings.Join(cells, " "))
	hits := 0
	for _, tok := range commonHeaderTokens {
		if strings.Contains(line, tok) {
			hits++
		}
	}
	return hits >= m.minTokens
}

// tokenSimilarity is a Levenshtein ratio in [0,1].
func tokenSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// normalizeToken lowercases and strips everything but letters and digits.
func normalizeToken(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}
