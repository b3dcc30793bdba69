// Package cache implements the subquery result cache spec.md §4.9
// describes: entries keyed by (structural hash of the normalized subquery
// text, a hash of the outer-variable bindings it was evaluated under, the
// graph and schema versions current at evaluation time, and the subquery
// kind), holding a boolean/scalar/set/row-set result, TTL-bounded with
// capacity-based LRU eviction and version-based invalidation.
//
// Grounded on the teacher's pkg/cache/query_cache.go (LRU list + map +
// TTL + atomic hit/miss counters over a generic interface{} value,
// exactly this cache's shape). Two deliberate adaptations: the key
// composition function switches from the teacher's fnv hash to xxhash
// (already a direct dependency via pkg/value's content hashing, so this
// keeps one hash implementation across the whole repo rather than two),
// and Get takes the caller's current graph/schema version so a cached
// entry recorded under an older version is treated as a miss and evicted
// rather than only expiring by TTL — spec.md §4.9's invalidation
// predicates (`graph_version < v`, `schema_version < v`) have nothing to
// do with elapsed time, so TTL alone can't express them.
package cache

import (
	"container/list"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/vertexql/vertexql/pkg/value"
)

// Row is a subquery evaluation row: a variable-name to Value binding.
// Defined here (rather than reusing pkg/exec.BindingRow, which has the
// identical underlying type) so this package stays a leaf dependency:
// pkg/exec wires a *SubqueryCache into its own evaluation loop, so the
// dependency has to run cache -> nothing, exec -> cache, not the other
// way. Any exec.BindingRow converts to/from Row for free since they
// share an underlying type.
type Row map[string]value.Value

// Kind tags which shape of subquery result an entry holds, per spec.md
// §4.9's "boolean, scalar, set, or full result".
type Kind int

const (
	KindBool Kind = iota
	KindScalar
	KindSet
	KindRows
)

// Result is the cached payload; exactly one field group is populated
// according to Kind.
type Result struct {
	Kind   Kind
	Bool   bool
	Scalar value.Value
	Set    []value.Value
	Rows   []Row
}

// paddedCounter is a uint64 counter padded to a full cache line so
// adjacent hit/miss/eviction counters incremented by concurrent
// goroutines don't false-share a line, per spec.md §4.9's "padded
// atomics" note.
type paddedCounter struct {
	v   uint64
	_   [56]byte // 64-byte cache line minus the 8-byte counter
}

func (c *paddedCounter) add(n uint64)  { atomic.AddUint64(&c.v, n) }
func (c *paddedCounter) load() uint64  { return atomic.LoadUint64(&c.v) }

type entry struct {
	key           uint64
	result        Result
	graphVersion  uint64
	schemaVersion uint64
	expiresAt     time.Time
}

// SubqueryCache is a thread-safe, version- and TTL-aware LRU cache of
// subquery evaluation results.
type SubqueryCache struct {
	mu sync.RWMutex

	maxSize int
	ttl     time.Duration
	enabled bool

	list  *list.List
	items map[uint64]*list.Element

	hits      paddedCounter
	misses    paddedCounter
	evictions paddedCounter
}

// New creates a cache. maxSize<=0 defaults to 1000; ttl==0 means entries
// only expire via version invalidation, never by age.
func New(maxSize int, ttl time.Duration) *SubqueryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &SubqueryCache{
		maxSize: maxSize,
		ttl:     ttl,
		enabled: true,
		list:    list.New(),
		items:   make(map[uint64]*list.Element, maxSize),
	}
}

// Key composes the spec.md §4.9 key tuple into a single lookup hash.
// structuralHash should be NormalizedHash of the subquery's canonical
// text; outerBindings should be BindingsHash of the outer row projected
// to the names the subquery actually references.
func Key(structuralHash, outerBindings, graphVersion, schemaVersion uint64, kind string) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, n := range [...]uint64{structuralHash, outerBindings, graphVersion, schemaVersion} {
		binary.LittleEndian.PutUint64(buf[:], n)
		h.Write(buf[:])
	}
	h.WriteString(kind)
	return h.Sum64()
}

// NormalizedHash hashes a subquery's already-canonicalized text (the
// caller is responsible for whitespace/case normalization — this package
// only hashes, it doesn't parse).
func NormalizedHash(text string) uint64 {
	return xxhash.Sum64String(text)
}

// BindingsHash hashes the outer row's bindings projected down to names,
// the subquery's only visible correlation surface. Sorted iteration over
// a caller-supplied, already-deduplicated name list keeps the hash
// independent of map iteration order.
func BindingsHash(row map[string]value.Value, names []string) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, n := range names {
		h.WriteString(n)
		v, ok := row[n]
		binary.LittleEndian.PutUint64(buf[:], value.Hash64(v))
		h.Write(buf[:])
		if !ok {
			h.WriteString("\x00unbound")
		}
	}
	return h.Sum64()
}

// Get returns the cached result for key if present, unexpired, and not
// older than the caller's current graph/schema version. A version-stale
// hit is treated as a miss and evicted immediately, matching spec.md
// §4.9's `graph_version < v` / `schema_version < v` invalidation rule.
func (c *SubqueryCache) Get(key uint64, graphVersion, schemaVersion uint64) (Result, bool) {
	if !c.enabled {
		c.misses.add(1)
		return Result{}, false
	}

	c.mu.RLock()
	elem, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		c.misses.add(1)
		return Result{}, false
	}

	e := elem.Value.(*entry)
	stale := e.graphVersion < graphVersion || e.schemaVersion < schemaVersion
	expired := c.ttl > 0 && time.Now().After(e.expiresAt)
	if stale || expired {
		c.mu.Lock()
		c.removeElement(elem)
		c.mu.Unlock()
		c.misses.add(1)
		return Result{}, false
	}

	c.mu.Lock()
	c.list.MoveToFront(elem)
	c.mu.Unlock()
	c.hits.add(1)
	return e.result, true
}

// Put records result under key, stamped with the versions it was
// evaluated under.
func (c *SubqueryCache) Put(key uint64, result Result, graphVersion, schemaVersion uint64) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry)
		e.result = result
		e.graphVersion = graphVersion
		e.schemaVersion = schemaVersion
		if c.ttl > 0 {
			e.expiresAt = time.Now().Add(c.ttl)
		}
		c.list.MoveToFront(elem)
		return
	}

	for c.list.Len() >= c.maxSize {
		c.evictOldest()
	}

	e := &entry{key: key, result: result, graphVersion: graphVersion, schemaVersion: schemaVersion}
	if c.ttl > 0 {
		e.expiresAt = time.Now().Add(c.ttl)
	}
	elem := c.list.PushFront(e)
	c.items[key] = elem
}

// Invalidate drops every entry recorded under an older graph or schema
// version than given — used when a mutation bumps the graph's version
// and the coordinator wants to proactively shed now-stale entries rather
// than waiting for each to be individually missed on next lookup.
func (c *SubqueryCache) Invalidate(graphVersion, schemaVersion uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, elem := range c.items {
		e := elem.Value.(*entry)
		if e.graphVersion < graphVersion || e.schemaVersion < schemaVersion {
			c.list.Remove(elem)
			delete(c.items, k)
		}
	}
}

func (c *SubqueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list.Init()
	c.items = make(map[uint64]*list.Element, c.maxSize)
}

func (c *SubqueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list.Len()
}

func (c *SubqueryCache) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled {
		c.list.Init()
		c.items = make(map[uint64]*list.Element, c.maxSize)
	}
}

// Stats reports hit/miss/eviction counters, per spec.md §4.9.
type Stats struct {
	Size      int
	MaxSize   int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64
}

func (c *SubqueryCache) Stats() Stats {
	hits := c.hits.load()
	misses := c.misses.load()
	c.mu.RLock()
	size := c.list.Len()
	c.mu.RUnlock()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	return Stats{
		Size:      size,
		MaxSize:   c.maxSize,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.load(),
		HitRate:   hitRate,
	}
}

func (c *SubqueryCache) evictOldest() {
	elem := c.list.Back()
	if elem != nil {
		c.removeElement(elem)
		c.evictions.add(1)
	}
}

func (c *SubqueryCache) removeElement(elem *list.Element) {
	c.list.Remove(elem)
	e := elem.Value.(*entry)
	delete(c.items, e.key)
}
