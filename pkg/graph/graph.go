// Package graph implements the authoritative in-memory labeled property
// graph described by spec.md §4.2 — the "graph cache" component.
//
// Cross-references between nodes and edges are plain string identifiers
// rather than pointers, matching spec.md §9's "arena-style" guidance:
// adjacency is an index map keyed by id, never a direct reference, which
// keeps removal and cascade-delete simple and keeps the graph free of
// reference cycles a garbage collector would otherwise have to reason
// about. The design is grounded on the teacher's storage.MemoryEngine
// (pkg/storage/memory.go), whose node/edge maps plus label/adjacency
// secondary indexes this type generalizes into a storage-independent
// cache that both the Badger-backed and in-memory storage drivers can
// hydrate into or flush from.
package graph

import (
	"errors"
	"sync"

	"github.com/vertexql/vertexql/pkg/value"
)

var (
	ErrNodeAlreadyExists = errors.New("graph: node already exists")
	ErrEdgeAlreadyExists = errors.New("graph: edge already exists")
	ErrEndpointMissing   = errors.New("graph: edge endpoint missing")
	ErrNodeNotFound      = errors.New("graph: node not found")
	ErrEdgeNotFound      = errors.New("graph: edge not found")
)

// Node is the graph's node record. Properties are stored as value.Value so
// the expression evaluator never has to re-box data crossing the
// graph/query boundary.
type Node struct {
	ID         string
	Labels     map[string]struct{}
	Properties map[string]value.Value
}

func NewNode(id string, labels []string, properties map[string]value.Value) *Node {
	labelSet := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		labelSet[l] = struct{}{}
	}
	if properties == nil {
		properties = make(map[string]value.Value)
	}
	return &Node{ID: id, Labels: labelSet, Properties: properties}
}

func (n *Node) HasLabel(label string) bool {
	_, ok := n.Labels[label]
	return ok
}

func (n *Node) LabelList() []string {
	out := make([]string, 0, len(n.Labels))
	for l := range n.Labels {
		out = append(out, l)
	}
	return out
}

func (n *Node) ToValue() value.NodeRef {
	return value.NodeRef{ID: n.ID, Labels: n.LabelList(), Properties: n.Properties}
}

// Edge is the graph's edge record; edges carry a single label, unlike
// nodes, per spec.md §3.
type Edge struct {
	ID         string
	From       string
	To         string
	Label      string
	Properties map[string]value.Value
}

func (e *Edge) ToValue() value.EdgeRef {
	return value.EdgeRef{ID: e.ID, From: e.From, To: e.To, Label: e.Label, Properties: e.Properties}
}

// Graph owns nodes and edges plus the secondary structures spec.md §4.2
// names: label index, outgoing/incoming adjacency. All three are kept
// consistent at every mutation boundary under mu.
type Graph struct {
	mu sync.RWMutex

	nodes map[string]*Node
	edges map[string]*Edge

	byLabel  map[string]map[string]struct{} // label -> node ids
	outgoing map[string]map[string]struct{} // node id -> outgoing edge ids
	incoming map[string]map[string]struct{} // node id -> incoming edge ids
}

func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		edges:    make(map[string]*Edge),
		byLabel:  make(map[string]map[string]struct{}),
		outgoing: make(map[string]map[string]struct{}),
		incoming: make(map[string]map[string]struct{}),
	}
}

// AddNode inserts n, failing with ErrNodeAlreadyExists when the id
// collides. Callers (the write executor) are responsible for content
// hashing and for downgrading that error into the "duplicate" warning
// spec.md §7 requires — the graph itself never silently no-ops.
func (g *Graph) AddNode(n *Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[n.ID]; exists {
		return ErrNodeAlreadyExists
	}
	g.nodes[n.ID] = n
	for l := range n.Labels {
		if g.byLabel[l] == nil {
			g.byLabel[l] = make(map[string]struct{})
		}
		g.byLabel[l][n.ID] = struct{}{}
	}
	return nil
}

// AddEdge inserts e, failing with ErrEdgeAlreadyExists on id collision and
// ErrEndpointMissing when either endpoint is absent. Endpoint existence is
// re-checked here even though spec.md §4.2 places primary responsibility on
// the executor, so the invariant in §3 ("every edge's endpoints exist")
// cannot be broken by a caller that skips validation.
func (g *Graph) AddEdge(e *Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.edges[e.ID]; exists {
		return ErrEdgeAlreadyExists
	}
	if _, ok := g.nodes[e.From]; !ok {
		return ErrEndpointMissing
	}
	if _, ok := g.nodes[e.To]; !ok {
		return ErrEndpointMissing
	}
	g.edges[e.ID] = e
	if g.outgoing[e.From] == nil {
		g.outgoing[e.From] = make(map[string]struct{})
	}
	g.outgoing[e.From][e.ID] = struct{}{}
	if g.incoming[e.To] == nil {
		g.incoming[e.To] = make(map[string]struct{})
	}
	g.incoming[e.To][e.ID] = struct{}{}
	return nil
}

func (g *Graph) GetNode(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

func (g *Graph) GetEdge(id string) (*Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.edges[id]
	return e, ok
}

func (g *Graph) GetAllNodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

func (g *Graph) GetAllEdges() []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	return out
}

func (g *Graph) GetNodesByLabel(label string) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.byLabel[label]
	out := make([]*Node, 0, len(ids))
	for id := range ids {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

func (g *Graph) GetOutgoingEdges(nodeID string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.outgoing[nodeID]
	out := make([]*Edge, 0, len(ids))
	for id := range ids {
		if e, ok := g.edges[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (g *Graph) GetIncomingEdges(nodeID string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.incoming[nodeID]
	out := make([]*Edge, 0, len(ids))
	for id := range ids {
		if e, ok := g.edges[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// RemoveEdge deletes e from the edge map and both adjacency indexes.
func (g *Graph) RemoveEdge(id string) (*Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removeEdgeLocked(id)
}

func (g *Graph) removeEdgeLocked(id string) (*Edge, error) {
	e, ok := g.edges[id]
	if !ok {
		return nil, ErrEdgeNotFound
	}
	delete(g.edges, id)
	if m := g.outgoing[e.From]; m != nil {
		delete(m, id)
	}
	if m := g.incoming[e.To]; m != nil {
		delete(m, id)
	}
	return e, nil
}

// RemoveNode deletes n and cascades to every incident edge atomically, per
// spec.md §3's invariant. It returns the removed node plus every cascaded
// edge so the write executor can batch their undo records together.
func (g *Graph) RemoveNode(id string) (*Node, []*Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, nil, ErrNodeNotFound
	}

	var cascaded []*Edge
	for eid := range g.outgoing[id] {
		if e, err := g.removeEdgeLocked(eid); err == nil {
			cascaded = append(cascaded, e)
		}
	}
	for eid := range g.incoming[id] {
		if e, err := g.removeEdgeLocked(eid); err == nil {
			cascaded = append(cascaded, e)
		}
	}
	delete(g.nodes, id)
	for l := range n.Labels {
		if m := g.byLabel[l]; m != nil {
			delete(m, id)
		}
	}
	delete(g.outgoing, id)
	delete(g.incoming, id)
	return n, cascaded, nil
}

// UpdateNodeProperties mutates in place and returns the prior property map
// and label set so the caller can build an UndoOperation.UpdateNode.
func (g *Graph) UpdateNodeProperties(id string, mutate func(n *Node)) (oldProps map[string]value.Value, oldLabels []string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, nil, ErrNodeNotFound
	}
	oldProps = cloneProperties(n.Properties)
	oldLabels = n.LabelList()

	// Label index membership may change; remove old entries, apply, then
	// reinsert under the new label set.
	for l := range n.Labels {
		if m := g.byLabel[l]; m != nil {
			delete(m, id)
		}
	}
	mutate(n)
	for l := range n.Labels {
		if g.byLabel[l] == nil {
			g.byLabel[l] = make(map[string]struct{})
		}
		g.byLabel[l][id] = struct{}{}
	}
	return oldProps, oldLabels, nil
}

// UpdateEdgeProperties mutates e's property map in place and returns the
// prior map, mirroring UpdateNodeProperties for SET/REMOVE items whose
// target variable is bound to an edge rather than a node. Edges carry no
// label-index membership to maintain, so there is no secondary structure
// to rebuild here.
func (g *Graph) UpdateEdgeProperties(id string, mutate func(e *Edge)) (oldProps map[string]value.Value, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.edges[id]
	if !ok {
		return nil, ErrEdgeNotFound
	}
	oldProps = cloneProperties(e.Properties)
	mutate(e)
	return oldProps, nil
}

func cloneProperties(props map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
