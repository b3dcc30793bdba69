package textindex

import "testing"

func TestAnalyzeDeterministicAndNonDecreasingPositions(t *testing.T) {
	a, err := NewAnalyzer(DefaultAnalyzerConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := "The quick brown foxes are running"
	t1 := a.Analyze(text)
	t2 := a.Analyze(text)
	if len(t1) != len(t2) {
		t.Fatalf("analyze must be deterministic in token count")
	}
	for i := 1; i < len(t1); i++ {
		if t1[i].Position < t1[i-1].Position {
			t.Fatalf("positions must be non-decreasing")
		}
	}
}

func TestAnalyzeUnsupportedLanguage(t *testing.T) {
	_, err := NewAnalyzer(AnalyzerConfig{Language: "klingon"})
	if err == nil {
		t.Fatalf("expected error for unsupported language")
	}
}

func TestBM25ScoreNonNegativeAndRanksMoreRelevantHigher(t *testing.T) {
	a, _ := NewAnalyzer(DefaultAnalyzerConfig())
	idx := NewInvertedIndex(a)
	idx.AddDocument(1, "alpha beta")
	idx.AddDocument(2, "beta gamma")
	idx.AddDocument(3, "delta")
	idx.Commit()

	hits := idx.Search("beta", 0)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits for 'beta', got %d", len(hits))
	}
	for _, h := range hits {
		if h.Score < 0 {
			t.Fatalf("BM25 score must be non-negative, got %f", h.Score)
		}
	}
}

func TestLevenshteinProperties(t *testing.T) {
	cases := []struct{ a, b string }{
		{"kitten", "sitting"},
		{"", "abc"},
		{"same", "same"},
	}
	for _, c := range cases {
		if Levenshtein(c.a, c.a) != 0 {
			t.Fatalf("d(a,a) must be 0")
		}
		if Levenshtein(c.a, c.b) != Levenshtein(c.b, c.a) {
			t.Fatalf("levenshtein must be symmetric for %q/%q", c.a, c.b)
		}
	}
	// triangle inequality
	a, b, c := "kitten", "sitting", "sittings"
	if Levenshtein(a, c) > Levenshtein(a, b)+Levenshtein(b, c) {
		t.Fatalf("levenshtein must satisfy the triangle inequality")
	}
}

func TestNGramFuzzySearchScenario(t *testing.T) {
	// spec.md §8 scenario 5: three Doc bodies, FUZZY_MATCH(body, 'beta', 1)
	// matches 2 of them. FuzzyMatch runs the n-gram candidate + distance
	// mechanics per whitespace token of each body.
	bodies := []string{"alpha beta", "beta gamma", "delta"}
	matched := 0
	for _, body := range bodies {
		if FuzzyMatch(body, "beta", 1) {
			matched++
		}
	}
	if matched != 2 {
		t.Fatalf("expected 2 fuzzy matches, got %d", matched)
	}
}

func TestFTWildcard(t *testing.T) {
	if !FTWildcard("file.pdf", "*.pdf") {
		t.Fatalf("expected *.pdf to match file.pdf")
	}
	if !FTWildcard("file.pdf", "?ile.pdf") {
		t.Fatalf("expected ?ile.pdf to match file.pdf")
	}
	if FTWildcard("file.pdf", "*.txt") {
		t.Fatalf("expected *.txt to not match file.pdf")
	}
}

func TestFTPhrasePrefix(t *testing.T) {
	if !FTPhrasePrefix("the quick brown fox", "quick bro") {
		t.Fatalf("expected prefix match on last term")
	}
	if FTPhrasePrefix("the quick brown fox", "quick zzz") {
		t.Fatalf("expected no match when last term prefix absent")
	}
}
