// Package match scores material names with token-sort similarity.
//
// Both strings are split on whitespace, the tokens are sorted and rejoined,
// and the two results are compared with an indel edit distance (insert and
// delete cost 1, substitution 2). The score is
// round(100 * (len(a)+len(b)-distance) / (len(a)+len(b))) counted in runes,
// so identical token multisets score 100 and an empty side scores 0.
package match

import (
	"math"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"sitestock/internal/util"
)

const DefaultThreshold = 80

// TokenSortRatio compares a and b regardless of word order. Inputs are
// compared as given; callers lowercase and trim first.
func TokenSortRatio(a, b string) int {
	ra := []rune(util.TokenSortKey(a))
	rb := []rune(util.TokenSortKey(b))
	total := len(ra) + len(rb)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	dist := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptions)
	return int(math.Round(100 * float64(total-dist) / float64(total)))
}

// Matcher picks the best candidate for a query. Candidates are scanned in the
// order given and the first candidate with the highest score wins a tie.
type Matcher struct {
	candidates []string
	threshold  int
	cache      map[string]Result
}

type Result struct {
	Name  string
	Score int
	OK    bool
}

// NewMatcher builds a matcher over candidates. A threshold outside 0..100
// falls back to DefaultThreshold.
func NewMatcher(candidates []string, threshold int) *Matcher {
	if threshold < 0 || threshold > 100 {
		threshold = DefaultThreshold
	}
	return &Matcher{candidates: candidates, threshold: threshold, cache: map[string]Result{}}
}

func (m *Matcher) Threshold() int { return m.threshold }

// Best returns the highest scoring candidate for query. Scores strictly
// below the threshold are reported as no match with score 0. Results are
// memoized per normalized query for the life of the matcher.
func (m *Matcher) Best(query string) Result {
	key := util.NormalizeName(query)
	if res, ok := m.cache[key]; ok {
		return res
	}

	res := Result{}
	bestScore := -1
	for _, candidate := range m.candidates {
		score := TokenSortRatio(key, candidate)
		if score > bestScore {
			bestScore = score
			res.Name = candidate
			res.Score = score
		}
		if score == 100 {
			break
		}
	}
	if bestScore < m.threshold || len(m.candidates) == 0 || key == "" {
		res = Result{}
	} else {
		res.OK = true
	}

	m.cache[key] = res
	return res
}
