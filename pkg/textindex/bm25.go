package textindex

import (
	"math"
	"sort"
	"sync"
)

// DefaultK1 and DefaultB are spec.md §4.3's tunable BM25 defaults.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Hit is one search result: a document id plus its BM25 score.
type Hit struct {
	DocID uint64
	Score float64
}

// InvertedIndex is the BM25 full-text index spec.md §4.3
// describes, grounded on the teacher's search.FulltextIndex
// (pkg/search/fulltext_index.go) but keyed by uint64 doc id (spec.md's
// "hash of the node's string id") instead of the teacher's raw string id,
// and with an explicit Commit step separating document ingestion from the
// point at which average-document-length statistics are considered
// stable, matching spec.md §4.3's add_document/commit/search split.
type InvertedIndex struct {
	mu sync.RWMutex

	K1 float64
	B  float64

	analyzer *Analyzer

	postings    map[string]map[uint64]int // term -> docID -> term frequency
	docLengths  map[uint64]int
	docText     map[uint64]string
	totalLength int
	committed   bool
}

func NewInvertedIndex(analyzer *Analyzer) *InvertedIndex {
	return &InvertedIndex{
		K1:         DefaultK1,
		B:          DefaultB,
		analyzer:   analyzer,
		postings:   make(map[string]map[uint64]int),
		docLengths: make(map[uint64]int),
		docText:    make(map[uint64]string),
	}
}

// AddDocument indexes (or replaces) a document's text.
func (idx *InvertedIndex) AddDocument(docID uint64, text string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(docID)

	tokens := idx.analyzer.Analyze(text)
	idx.docText[docID] = text
	idx.docLengths[docID] = len(tokens)
	idx.totalLength += len(tokens)

	freq := make(map[string]int)
	for _, tok := range tokens {
		freq[tok.Text]++
	}
	for term, f := range freq {
		if idx.postings[term] == nil {
			idx.postings[term] = make(map[uint64]int)
		}
		idx.postings[term][docID] = f
	}
	idx.committed = false
}

func (idx *InvertedIndex) removeLocked(docID uint64) {
	if oldLen, ok := idx.docLengths[docID]; ok {
		idx.totalLength -= oldLen
	}
	delete(idx.docLengths, docID)
	delete(idx.docText, docID)
	for term, postings := range idx.postings {
		if _, ok := postings[docID]; ok {
			delete(postings, docID)
			if len(postings) == 0 {
				delete(idx.postings, term)
			}
		}
	}
}

// Remove deletes docID from the index.
func (idx *InvertedIndex) Remove(docID uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(docID)
}

// Commit is a no-op beyond marking the index ready; kept as an explicit
// call (rather than folded into AddDocument) because spec.md §4.3 and the
// DDL reindex pass (§6) both call it as a distinct step after a batch of
// AddDocument calls.
func (idx *InvertedIndex) Commit() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.committed = true
}

func (idx *InvertedIndex) DocCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docLengths)
}

func (idx *InvertedIndex) avgDocLength() float64 {
	if len(idx.docLengths) == 0 {
		return 0
	}
	return float64(idx.totalLength) / float64(len(idx.docLengths))
}

// Search runs a BM25 query over the indexed documents. limit<=0 means no
// limit. Results are sorted by descending score.
func (idx *InvertedIndex) Search(query string, limit int) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := idx.analyzer.Analyze(query)
	if len(terms) == 0 {
		return nil
	}
	avgLen := idx.avgDocLength()
	n := float64(len(idx.docLengths))

	scores := make(map[uint64]float64)
	seen := make(map[string]struct{})
	for _, t := range terms {
		if _, dup := seen[t.Text]; dup {
			continue
		}
		seen[t.Text] = struct{}{}

		postings := idx.postings[t.Text]
		df := float64(len(postings))
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for docID, tf := range postings {
			dl := float64(idx.docLengths[docID])
			denom := float64(tf) + idx.K1*(1-idx.B+idx.B*dl/maxFloat(avgLen, 1))
			score := idf * (float64(tf) * (idx.K1 + 1)) / denom
			scores[docID] += score
		}
	}

	hits := make([]Hit, 0, len(scores))
	for docID, score := range scores {
		hits = append(hits, Hit{DocID: docID, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// DocText returns the original text for docID, used by the n-gram fuzzy
// index and by SHOW TEXT INDEXES-style introspection.
func (idx *InvertedIndex) DocText(docID uint64) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	t, ok := idx.docText[docID]
	return t, ok
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
