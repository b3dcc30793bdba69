// Package textindex implements the analyzer pipeline, the BM25 inverted
// index and the n-gram fuzzy index spec.md §4.3 groups under "Text
// analyzer and indexes".
//
// Grounded on the teacher's pkg/search/fulltext_index.go (BM25 scoring
// over an invertedIndex map) and pkg/search/vector_index.go's n-gram
// helpers, generalized from the teacher's fixed "lowercase + split on
// whitespace" tokenizer into the configurable pipeline spec.md §4.3
// requires: rune-based word-boundary extraction, optional
// lowercasing, optional stop-word removal, optional stemming, all gated
// per Analyzer configuration rather than hardcoded.
package textindex

import (
	"fmt"
	"strings"
	"unicode"
)

// Token is one analyzed word plus its original byte position and length,
// per spec.md §4.3.
type Token struct {
	Text     string
	Position int
	Length   int
}

// AnalyzerConfig selects the pipeline stages spec.md §4.3 names.
type AnalyzerConfig struct {
	Language        string // "" defaults to "english"
	Lowercase       bool
	RemoveStopWords bool
	Stem            bool
}

func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{Language: "english", Lowercase: true, RemoveStopWords: true, Stem: true}
}

// Analyzer runs the tokenize -> lowercase -> stopword -> stem pipeline.
type Analyzer struct {
	cfg       AnalyzerConfig
	stopWords map[string]struct{}
}

// UnsupportedLanguageError is returned by NewAnalyzer for an unknown
// language, per spec.md §4.3 ("Unknown language ⇒ error").
type UnsupportedLanguageError struct{ Language string }

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("textindex: unsupported language %q", e.Language)
}

var supportedLanguages = map[string]map[string]struct{}{
	"english": englishStopWords,
}

func NewAnalyzer(cfg AnalyzerConfig) (*Analyzer, error) {
	lang := cfg.Language
	if lang == "" {
		lang = "english"
	}
	stop, ok := supportedLanguages[strings.ToLower(lang)]
	if !ok {
		return nil, &UnsupportedLanguageError{Language: cfg.Language}
	}
	return &Analyzer{cfg: cfg, stopWords: stop}, nil
}

// Analyze runs the full pipeline over text. Positions are always reported
// against the original input, even when lowercasing/stemming changes the
// token's text, so callers can still highlight the source location.
func (a *Analyzer) Analyze(text string) []Token {
	words := segmentWords(text)
	out := make([]Token, 0, len(words))
	for _, w := range words {
		t := w.Text
		if a.cfg.Lowercase {
			t = strings.ToLower(t)
		}
		if a.cfg.RemoveStopWords {
			if _, stop := a.stopWords[strings.ToLower(t)]; stop {
				continue
			}
		}
		if a.cfg.Stem {
			t = stemEnglish(t)
		}
		if t == "" {
			continue
		}
		out = append(out, Token{Text: t, Position: w.Position, Length: w.Length})
	}
	return out
}

type rawWord struct {
	Text     string
	Position int
	Length   int
}

// segmentWords performs rune-based word-boundary extraction: runs of
// letters/digits/apostrophes separated by anything else (punctuation,
// whitespace, symbols), using unicode.IsLetter/IsDigit as the boundary test rather than
// ASCII-only splitting, so accented and non-Latin scripts tokenize
// sensibly.
func segmentWords(text string) []rawWord {
	var words []rawWord
	runes := []rune(text)
	byteOffsets := make([]int, len(runes)+1)
	offset := 0
	for i, r := range runes {
		byteOffsets[i] = offset
		offset += len(string(r))
	}
	byteOffsets[len(runes)] = offset

	start := -1
	for i := 0; i <= len(runes); i++ {
		isWordRune := i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '\'')
		if isWordRune {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			w := string(runes[start:i])
			words = append(words, rawWord{
				Text:     w,
				Position: byteOffsets[start],
				Length:   byteOffsets[i] - byteOffsets[start],
			})
			start = -1
		}
	}
	return words
}

// stemEnglish is a minimal Snowball-family suffix stripper: it is not a
// full Porter2 implementation, only the handful of suffix rules that
// matter for the predicates spec.md exercises (plurals, -ing, -ed). A full
// Snowball port is out of scope for the core per spec.md §1's size budget;
// this is documented as a deliberate simplification rather than a silent
// gap.
func stemEnglish(word string) string {
	lower := strings.ToLower(word)
	switch {
	case strings.HasSuffix(lower, "ies") && len(lower) > 4:
		return lower[:len(lower)-3] + "y"
	case strings.HasSuffix(lower, "es") && len(lower) > 4:
		return lower[:len(lower)-2]
	case strings.HasSuffix(lower, "ing") && len(lower) > 5:
		return lower[:len(lower)-3]
	case strings.HasSuffix(lower, "ed") && len(lower) > 4:
		return lower[:len(lower)-2]
	case strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss") && len(lower) > 3:
		return lower[:len(lower)-1]
	default:
		return lower
	}
}

var englishStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "of": {}, "on": {}, "that": {}, "the": {}, "to": {},
	"was": {}, "were": {}, "will": {}, "with": {},
}
