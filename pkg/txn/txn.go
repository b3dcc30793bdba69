// Package txn implements the transaction manager spec.md §4.8 describes:
// begin/commit/abort over an ordered undo log, applied in reverse on
// abort with Batch entries reversed recursively for atomic rollback of a
// single statement's multiple effects.
//
// Grounded on the teacher's pkg/storage/transaction.go (storage.Transaction,
// whose Operation type already pairs every mutation with its prior state
// — OldNode/OldEdge — for rollback) and pkg/cypher/transaction.go (the
// BEGIN/COMMIT/ROLLBACK statement dispatch). The teacher buffers operations
// at the storage-engine layer and applies them only on commit; this
// package instead applies every mutation to the graph cache immediately
// (spec.md §4.2's cache is the authoritative in-memory graph a reader must
// see consistently) and records an inverse operation for abort to replay,
// since spec.md §3's Undo operation union is explicitly a "reversible
// record", not a staged one.
package txn

import (
	"errors"
	"sync"

	"github.com/vertexql/vertexql/pkg/graph"
	"github.com/vertexql/vertexql/pkg/value"
)

// State is one of Active | Committing | Committed | Aborted, per spec.md §3.
type State int

const (
	StateActive State = iota
	StateCommitting
	StateCommitted
	StateAborted
)

// OpKind tags the UndoOp union spec.md §3 defines.
type OpKind int

const (
	OpInsertNode OpKind = iota
	OpInsertEdge
	OpDeleteNode
	OpDeleteEdge
	OpUpdateNode
	OpUpdateEdge
	OpBatch
)

// UndoOp is the tagged union of reversible mutation records spec.md §3
// names. Exactly one payload group is populated per Kind:
//
//   - InsertNode/InsertEdge: NodeID/EdgeID of the entity to remove on abort.
//   - DeleteNode/DeleteEdge: the removed Node/Edge to re-insert on abort.
//   - UpdateNode: NodeID plus the prior OldProperties/OldLabels to restore.
//   - UpdateEdge: EdgeID plus the prior OldProperties to restore.
//   - Batch: Children, undone in reverse order.
type UndoOp struct {
	Kind OpKind

	NodeID string
	EdgeID string

	Node *graph.Node
	Edge *graph.Edge

	OldProperties map[string]value.Value
	OldLabels     []string

	Children []UndoOp
}

func InsertNode(id string) UndoOp { return UndoOp{Kind: OpInsertNode, NodeID: id} }
func InsertEdge(id string) UndoOp { return UndoOp{Kind: OpInsertEdge, EdgeID: id} }
func DeleteNode(n *graph.Node) UndoOp { return UndoOp{Kind: OpDeleteNode, Node: n} }
func DeleteEdge(e *graph.Edge) UndoOp { return UndoOp{Kind: OpDeleteEdge, Edge: e} }

func UpdateNode(id string, oldProps map[string]value.Value, oldLabels []string) UndoOp {
	return UndoOp{Kind: OpUpdateNode, NodeID: id, OldProperties: oldProps, OldLabels: oldLabels}
}

func UpdateEdge(id string, oldProps map[string]value.Value) UndoOp {
	return UndoOp{Kind: OpUpdateEdge, EdgeID: id, OldProperties: oldProps}
}

// Batch groups children for atomic rollback: abort undoes them in reverse,
// the same order a single top-level log is undone in.
func Batch(children ...UndoOp) UndoOp {
	if len(children) == 0 {
		return UndoOp{Kind: OpBatch}
	}
	return UndoOp{Kind: OpBatch, Children: children}
}

var (
	ErrNotActive    = errors.New("txn: transaction is not active")
	ErrAlreadyEnded = errors.New("txn: transaction already committed or aborted")
)

// Transaction is one session's active unit of work: an id, a state, and
// the ordered undo log spec.md §3 describes. Graph is the cache it mutates
// — carried directly rather than by path, since a transaction is scoped
// to exactly one session's currently-selected graph for its lifetime.
type Transaction struct {
	mu    sync.Mutex
	ID    string
	State State
	Graph *graph.Graph
	log   []UndoOp
}

// Record appends op to the active log. Callers (pkg/write's statement
// executors) call this once per entity mutation they perform, grouping
// multiple entities from one statement into a single Batch (spec.md
// §4.7's "Batch semantics").
func (t *Transaction) Record(op UndoOp) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log = append(t.log, op)
}

// TouchedEntities reports, from this transaction's undo log, which node
// and edge ids were inserted/updated (still live in Graph, and so need
// persisting) versus deleted (and so need their storage record dropped).
// The coordinator calls this before Commit, since Commit's only job is
// discarding the log — nothing else would still be able to see which
// entities this transaction actually touched once it has.
func (t *Transaction) TouchedEntities() (touchedNodes, touchedEdges, removedNodes, removedEdges []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	collectTouched(t.log, &touchedNodes, &touchedEdges, &removedNodes, &removedEdges)
	return
}

func collectTouched(log []UndoOp, touchedNodes, touchedEdges, removedNodes, removedEdges *[]string) {
	for _, op := range log {
		switch op.Kind {
		case OpInsertNode, OpUpdateNode:
			*touchedNodes = append(*touchedNodes, op.NodeID)
		case OpInsertEdge, OpUpdateEdge:
			*touchedEdges = append(*touchedEdges, op.EdgeID)
		case OpDeleteNode:
			if op.Node != nil {
				*removedNodes = append(*removedNodes, op.Node.ID)
			}
		case OpDeleteEdge:
			if op.Edge != nil {
				*removedEdges = append(*removedEdges, op.Edge.ID)
			}
		case OpBatch:
			collectTouched(op.Children, touchedNodes, touchedEdges, removedNodes, removedEdges)
		}
	}
}

// Manager owns the active transaction(s) spec.md §4.8 describes — one per
// session, with single statements running in an implicit transaction the
// coordinator begins and commits around them.
type Manager struct {
	mu  sync.Mutex
	gen int
}

func NewManager() *Manager { return &Manager{} }

// Begin starts a new transaction over g. Per spec.md §5, the caller is
// responsible for holding g's exclusive lock for the transaction's
// duration — Manager itself does no locking beyond protecting its own id
// counter.
func (m *Manager) Begin(g *graph.Graph) *Transaction {
	m.mu.Lock()
	m.gen++
	id := genID(m.gen)
	m.mu.Unlock()
	return &Transaction{ID: id, State: StateActive, Graph: g}
}

func genID(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "tx-0"
	}
	buf := make([]byte, 0, 12)
	for n > 0 {
		buf = append([]byte{alphabet[n%len(alphabet)]}, buf...)
		n /= len(alphabet)
	}
	return "tx-" + string(buf)
}

// Commit discards the undo log: every mutation it recorded is already
// applied to the graph cache, so committing is simply marking the
// transaction done (spec.md §4.8: "a committed transaction's undo log is
// discarded").
func (t *Transaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.State != StateActive {
		return ErrAlreadyEnded
	}
	t.State = StateCommitting
	t.log = nil
	t.State = StateCommitted
	return nil
}

// Abort replays the undo log in reverse, restoring g to its pre-transaction
// state (spec.md §3's commit/abort invariant; tested by spec.md §8
// scenario 6).
func (t *Transaction) Abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.State != StateActive {
		return ErrAlreadyEnded
	}
	for i := len(t.log) - 1; i >= 0; i-- {
		undo(t.Graph, t.log[i])
	}
	t.log = nil
	t.State = StateAborted
	return nil
}

// undo applies the inverse of op to g. Errors are deliberately swallowed:
// an undo step failing (e.g. the entity was already removed by a later,
// already-undone step) means the graph is already in the state that step
// wanted, which can happen when a Batch's children overlap in coverage —
// rollback's job is to reach the pre-transaction state, not to assert
// every individual step was a no-op-free success.
func undo(g *graph.Graph, op UndoOp) {
	switch op.Kind {
	case OpInsertNode:
		g.RemoveNode(op.NodeID)
	case OpInsertEdge:
		g.RemoveEdge(op.EdgeID)
	case OpDeleteNode:
		if op.Node != nil {
			g.AddNode(op.Node)
		}
	case OpDeleteEdge:
		if op.Edge != nil {
			g.AddEdge(op.Edge)
		}
	case OpUpdateNode:
		g.UpdateNodeProperties(op.NodeID, func(n *graph.Node) {
			n.Properties = op.OldProperties
			labelSet := make(map[string]struct{}, len(op.OldLabels))
			for _, l := range op.OldLabels {
				labelSet[l] = struct{}{}
			}
			n.Labels = labelSet
		})
	case OpUpdateEdge:
		g.UpdateEdgeProperties(op.EdgeID, func(e *graph.Edge) {
			e.Properties = op.OldProperties
		})
	case OpBatch:
		for i := len(op.Children) - 1; i >= 0; i-- {
			undo(g, op.Children[i])
		}
	}
}
