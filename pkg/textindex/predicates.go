package textindex

import (
	"regexp"
	"strings"
)

// ScoredHit is the common result shape for WEIGHTED_SEARCH/HYBRID_SEARCH
// style predicates that blend multiple signals.
type ScoredHit struct {
	DocID uint64
	Score float64
}

// FuzzyMatch implements FUZZY_MATCH(field, query, max_distance): true if
// any whitespace-delimited token of field is within max_distance edits of
// query. Token-aware rather than comparing the whole field string, since a
// multi-word field (a document body, say) can contain a close match to
// query without the field as a whole being anywhere near it.
//
// Routes through NGramIndex.FuzzySearch (ngram.go) over an ephemeral index
// of field's tokens, reusing its candidate-generation-then-Levenshtein
// pipeline instead of a second distance routine.
func FuzzyMatch(field, query string, maxDistance int) bool {
	tokens := strings.Fields(field)
	idx := NewNGramIndex(DefaultNGramSize)
	for i, tok := range tokens {
		idx.AddDocument(uint64(i), tok)
	}
	return len(idx.FuzzySearch(query, maxDistance)) > 0
}

// ContainsFuzzy implements CONTAINS_FUZZY(field, substring, max_distance):
// true if any substring-length window of field is within max_distance of
// substring.
func ContainsFuzzy(field, substring string, maxDistance int) bool {
	f := []rune(strings.ToLower(field))
	s := []rune(strings.ToLower(substring))
	if len(s) == 0 {
		return true
	}
	if len(f) < len(s) {
		return Levenshtein(string(f), string(s)) <= maxDistance
	}
	for i := 0; i+len(s) <= len(f); i++ {
		window := string(f[i : i+len(s)])
		if Levenshtein(window, string(s)) <= maxDistance {
			return true
		}
	}
	return false
}

// SimilarityScore returns FuzzySearch's 1 - distance/max(len) formula for
// a single field/query pair, used by SIMILARITY_SCORE and as one input to
// WEIGHTED_SEARCH/HYBRID_SEARCH.
func SimilarityScore(field, query string) float64 {
	d := Levenshtein(strings.ToLower(field), strings.ToLower(query))
	maxLen := len([]rune(field))
	if l := len([]rune(query)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(d)/float64(maxLen)
}

// WeightedSearch implements WEIGHTED_SEARCH(exact_w, fuzzy_w, similarity_w):
// a linear blend of an exact-match indicator, a bounded fuzzy-match
// indicator (distance<=2) and the raw similarity score.
func WeightedSearch(field, query string, exactW, fuzzyW, similarityW float64) float64 {
	exact := 0.0
	if strings.EqualFold(field, query) {
		exact = 1
	}
	fuzzy := 0.0
	if FuzzyMatch(field, query, 2) {
		fuzzy = 1
	}
	return exactW*exact + fuzzyW*fuzzy + similarityW*SimilarityScore(field, query)
}

// KeywordMatch implements KEYWORD_MATCH (any keyword present).
func KeywordMatch(field string, keywords []string) bool {
	lower := strings.ToLower(field)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// KeywordMatchAll implements KEYWORD_MATCH_ALL (every keyword present).
func KeywordMatchAll(field string, keywords []string) bool {
	lower := strings.ToLower(field)
	for _, kw := range keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

func FTStartsWith(field, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(field), strings.ToLower(prefix))
}

func FTEndsWith(field, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(field), strings.ToLower(suffix))
}

// FTWildcard implements FT_WILDCARD: '*' matches any run (including
// empty), '?' matches exactly one character.
func FTWildcard(field, pattern string) bool {
	re := wildcardToRegexp(pattern)
	return re.MatchString(field)
}

func wildcardToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// FTRegex implements FT_REGEX over a POSIX-subset pattern, per spec.md
// §1's "minimal standard subset" non-goal — we use Go's RE2 engine
// (regexp.Compile, with a "(?i)" prefix for case-insensitive matching)
// rather than hand-rolling a regex VM, since RE2 already covers the POSIX
// ERE subset spec.md asks for without pulling in an arbitrary
// backtracking engine.
func FTRegex(field, pattern string) (bool, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(field), nil
}

// FTPhrasePrefix implements FT_PHRASE_PREFIX: every term but the last must
// match exactly (as a substring, case-insensitive); the last term is
// treated as a prefix.
func FTPhrasePrefix(field, phrase string) bool {
	terms := strings.Fields(phrase)
	if len(terms) == 0 {
		return true
	}
	lower := strings.ToLower(field)
	idx := 0
	for i, term := range terms {
		lt := strings.ToLower(term)
		if i == len(terms)-1 {
			pos := strings.Index(lower[idx:], lt)
			return pos >= 0
		}
		pos := strings.Index(lower[idx:], lt)
		if pos < 0 {
			return false
		}
		idx += pos + len(lt)
	}
	return true
}
