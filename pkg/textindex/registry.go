package textindex

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DocID derives the u64 document id spec.md §4.3 requires from a node's
// string identifier.
func DocID(nodeID string) uint64 {
	return xxhash.Sum64String(nodeID)
}

// Metadata describes one registered text index, per spec.md §3's "Text
// index metadata": name, target label/field, type, document count, size.
type Metadata struct {
	Name       string
	Label      string
	Field      string
	IndexType  string // a label only, e.g. "fulltext+ngram"; every Index holds both a BM25 and an n-gram structure.
	NGramSize  int
}

// Index bundles the BM25 inverted index and the n-gram fuzzy index behind
// one name, since every predicate in spec.md §4.3 (FUZZY_MATCH,
// FT_WILDCARD, KEYWORD_MATCH, ...) needs one or the other or both.
type Index struct {
	Meta     Metadata
	Analyzer *Analyzer
	Full     *InvertedIndex
	Grams    *NGramIndex
}

func NewIndex(meta Metadata, analyzerCfg AnalyzerConfig) (*Index, error) {
	analyzer, err := NewAnalyzer(analyzerCfg)
	if err != nil {
		return nil, err
	}
	if meta.NGramSize <= 0 {
		meta.NGramSize = DefaultNGramSize
	}
	return &Index{
		Meta:     meta,
		Analyzer: analyzer,
		Full:     NewInvertedIndex(analyzer),
		Grams:    NewNGramIndex(meta.NGramSize),
	}, nil
}

// AddDocument indexes text under both the BM25 and n-gram structures and
// commits the BM25 index so it is immediately searchable. Auto-indexing
// (spec.md §4.3) calls this once per touched node/property.
func (idx *Index) AddDocument(nodeID, text string) {
	id := DocID(nodeID)
	idx.Full.AddDocument(id, text)
	idx.Full.Commit()
	idx.Grams.AddDocument(id, text)
}

func (idx *Index) RemoveDocument(nodeID string) {
	id := DocID(nodeID)
	idx.Full.Remove(id)
	idx.Grams.Remove(id)
}

func (idx *Index) DocCount() int { return idx.Full.DocCount() }

// Registry is the process-wide, label-and-name-keyed catalog of text
// indexes spec.md §3/§5 describes as one of the three permitted global
// singletons. It is safe for concurrent use; add_document/commit on a
// given index instance additionally serialize internally (spec.md §5),
// which falls out of Index.Full/Index.Grams already holding their own
// locks.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*Index
	byLabel  map[string][]*Index
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Index), byLabel: make(map[string][]*Index)}
}

var ErrIndexExists = fmt.Errorf("textindex: index already exists")
var ErrIndexNotFound = fmt.Errorf("textindex: index not found")

func (r *Registry) Create(meta Metadata, analyzerCfg AnalyzerConfig) (*Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[meta.Name]; exists {
		return nil, ErrIndexExists
	}
	idx, err := NewIndex(meta, analyzerCfg)
	if err != nil {
		return nil, err
	}
	r.byName[meta.Name] = idx
	r.byLabel[meta.Label] = append(r.byLabel[meta.Label], idx)
	return idx, nil
}

func (r *Registry) Drop(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.byName[name]
	if !ok {
		return ErrIndexNotFound
	}
	delete(r.byName, name)
	list := r.byLabel[idx.Meta.Label]
	for i, cand := range list {
		if cand == idx {
			r.byLabel[idx.Meta.Label] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Registry) Get(name string) (*Index, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byName[name]
	return idx, ok
}

// ForLabelAndField returns every index registered on label whose field
// equals field exactly, used by the
// write executor's auto-indexing pass (spec.md §4.3).
func (r *Registry) ForLabelAndField(label, field string) []*Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Index
	for _, idx := range r.byLabel[label] {
		if idx.Meta.Field == field {
			out = append(out, idx)
		}
	}
	return out
}

func (r *Registry) ForLabel(label string) []*Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Index(nil), r.byLabel[label]...)
}

func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, 0, len(r.byName))
	for _, idx := range r.byName {
		m := idx.Meta
		m.IndexType = "fulltext+ngram"
		out = append(out, m)
	}
	return out
}

// Reset clears the registry. Exposed only for tests, per spec.md §9's
// guidance that global state needs a reset hook for test isolation.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName = make(map[string]*Index)
	r.byLabel = make(map[string][]*Index)
}
