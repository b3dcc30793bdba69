// Package write implements the write statement contracts spec.md §4.7
// describes: INSERT, SET, REMOVE, DELETE (and MATCH+mutation variants,
// which fall out of running these per matched row rather than needing a
// separate code path). Every mutation goes through the content-hashing
// rules of spec.md §6, is recorded into the active pkg/txn.Transaction's
// undo log, and triggers pkg/textindex auto-indexing where a registered
// index applies.
//
// Grounded on the teacher's pkg/cypher/create.go (two-pass node-then-edge
// creation over a pattern, binding identifiers as it goes),
// pkg/cypher/set_helpers.go (SET/REMOVE property and label mutation
// helpers operating on already-matched entities), and
// pkg/cypher/merge.go's content-addressed dedup check (teacher computes a
// hash of a node's labels+properties to decide MERGE match-vs-create;
// spec.md §3 generalizes that same hash into the identifier itself for
// every INSERT, not just MERGE). Adapted from the teacher's flat
// regex-driven clause handling into per-physical-row methods satisfying
// pkg/exec's Mutator interface.
package write

import (
	"context"
	"fmt"
	"log"

	"github.com/vertexql/vertexql/pkg/ast"
	"github.com/vertexql/vertexql/pkg/exec"
	"github.com/vertexql/vertexql/pkg/graph"
	"github.com/vertexql/vertexql/pkg/textindex"
	"github.com/vertexql/vertexql/pkg/txn"
	"github.com/vertexql/vertexql/pkg/value"
)

// Executor implements exec.Mutator. Eval supplies expression evaluation
// for property-map values (INSERT patterns, SET right-hand sides) so this
// package doesn't duplicate pkg/exec's arithmetic/function dispatch.
// Tx is swapped in by the coordinator for each statement's implicit or
// explicit transaction; a nil Tx means "no undo tracking" and is only
// valid for callers (tests) that don't need rollback.
type Executor struct {
	Eval    *exec.Executor
	Indexes *textindex.Registry
	Tx      *txn.Transaction
	Logger  *log.Logger
}

func New(eval *exec.Executor, indexes *textindex.Registry, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{Eval: eval, Indexes: indexes, Logger: logger}
}

// SetTransaction points subsequent mutations at tx's undo log.
func (w *Executor) SetTransaction(tx *txn.Transaction) { w.Tx = tx }

func (w *Executor) record(op txn.UndoOp) {
	if w.Tx != nil {
		w.Tx.Record(op)
	}
}

// MutationError reports a write-statement failure spec.md §7 classifies
// under ExecutionError/GraphError.
type MutationError struct {
	Kind    string
	Cause   error
	Message string
}

func (e *MutationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind
}

func (e *MutationError) Unwrap() error { return e.Cause }

// ---- INSERT ----

// Insert implements the two-pass algorithm spec.md §4.7 describes: every
// pattern's nodes are resolved or created first (so later edges can
// reference any of them regardless of declaration order within the
// pattern), then edges are created between the resolved endpoints.
func (w *Executor) Insert(g *graph.Graph, row exec.BindingRow, patterns []ast.PathPattern) (exec.BindingRow, []string, error) {
	out := cloneRow(row)
	var warnings []string

	for _, pat := range patterns {
		nodeIDs := make([]string, len(pat.Nodes))
		for i, elem := range pat.Nodes {
			id, warn, err := w.resolveOrCreateNode(g, out, elem)
			if err != nil {
				return nil, nil, err
			}
			nodeIDs[i] = id
			if warn != "" {
				warnings = append(warnings, warn)
			}
		}

		for i, edge := range pat.Edges {
			fromID, toID, err := edgeEndpoints(edge, nodeIDs[i], nodeIDs[i+1])
			if err != nil {
				return nil, nil, err
			}
			warn, err := w.createEdge(g, out, edge, fromID, toID)
			if err != nil {
				return nil, nil, err
			}
			if warn != "" {
				warnings = append(warnings, warn)
			}
		}
	}

	return out, warnings, nil
}

// edgeEndpoints orders (from, to) per the pattern's declared direction.
// INSERT only accepts a directed edge — Both/Undirected has no single
// creation direction, so the grammar-level ambiguity spec.md §9 flags for
// anonymous endpoints applies here too: we make the choice explicit
// rather than guessing.
func edgeEndpoints(edge ast.EdgePatternElem, left, right string) (from, to string, err error) {
	switch edge.Direction {
	case ast.DirOut:
		return left, right, nil
	case ast.DirIn:
		return right, left, nil
	default:
		return "", "", &MutationError{Kind: "InvalidQuery", Message: "INSERT edge patterns must use -> or <-, not an undirected or bidirectional arrow"}
	}
}

// resolveOrCreateNode returns an already-bound variable's existing node id
// unchanged, or content-hashes and creates a fresh node. A duplicate
// content hash is a warning, not an error (spec.md §3/§7): the existing
// node's id is still returned so edge creation in the same pattern can
// proceed.
func (w *Executor) resolveOrCreateNode(g *graph.Graph, row exec.BindingRow, elem ast.NodePatternElem) (id string, warning string, err error) {
	if elem.Variable != "" {
		if bound, ok := row[elem.Variable]; ok && bound.Kind == value.KindNode {
			return bound.Node.ID, "", nil
		}
	}

	props, err := w.evalPropertyMap(row, elem.Properties)
	if err != nil {
		return "", "", err
	}
	hash := value.ContentHashNode(elem.Labels, props)
	id = fmt.Sprintf("n%016x", hash)

	n := graph.NewNode(id, elem.Labels, props)
	if err := g.AddNode(n); err != nil {
		if err == graph.ErrNodeAlreadyExists {
			if elem.Variable != "" {
				if existing, ok := g.GetNode(id); ok {
					row[elem.Variable] = value.NodeVal(existing.ToValue())
				}
			}
			return id, "Duplicate node detected", nil
		}
		return "", "", &MutationError{Kind: "GraphError", Cause: err}
	}

	w.record(txn.InsertNode(id))
	w.autoIndexNode(g, n)
	if elem.Variable != "" {
		row[elem.Variable] = value.NodeVal(n.ToValue())
	}
	return id, "", nil
}

func (w *Executor) createEdge(g *graph.Graph, row exec.BindingRow, elem ast.EdgePatternElem, fromID, toID string) (warning string, err error) {
	label := ""
	if len(elem.Labels) > 0 {
		label = elem.Labels[0]
	}
	props, err := w.evalPropertyMap(row, elem.Properties)
	if err != nil {
		return "", err
	}
	hash := value.ContentHashEdge(fromID, toID, label, props)
	id := fmt.Sprintf("e%016x", hash)

	e := &graph.Edge{ID: id, From: fromID, To: toID, Label: label, Properties: props}
	if err := g.AddEdge(e); err != nil {
		if err == graph.ErrEdgeAlreadyExists {
			return "Duplicate edge detected", nil
		}
		return "", &MutationError{Kind: "GraphError", Cause: err}
	}
	w.record(txn.InsertEdge(id))
	if elem.Variable != "" {
		row[elem.Variable] = value.EdgeVal(e.ToValue())
	}
	return "", nil
}

func (w *Executor) evalPropertyMap(row exec.BindingRow, props map[string]ast.Expression) (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(props))
	for k, e := range props {
		v, err := w.Eval.Eval(context.Background(), e, row)
		if err != nil {
			return nil, &MutationError{Kind: "ExpressionError", Cause: err}
		}
		out[k] = v
	}
	return out, nil
}

// autoIndexNode runs spec.md §4.3's "auto-indexing on mutation" for a
// freshly inserted node: every text index registered against one of the
// node's labels gets the matching field's value indexed, best-effort.
func (w *Executor) autoIndexNode(g *graph.Graph, n *graph.Node) {
	for _, label := range n.LabelList() {
		for _, idx := range w.Indexes.ForLabel(label) {
			v, ok := n.Properties[idx.Meta.Field]
			if !ok {
				continue
			}
			text, ok := coerceIndexText(v)
			if !ok {
				continue
			}
			idx.AddDocument(n.ID, text)
		}
	}
}

// autoIndexField runs the SET-time half of auto-indexing: only indexes
// registered against the exact field that changed are touched, per
// spec.md §4.3's "(for SET) whose field equals the updated property".
func (w *Executor) autoIndexField(n *graph.Node, field string) {
	for _, label := range n.LabelList() {
		for _, idx := range w.Indexes.ForLabelAndField(label, field) {
			v, ok := n.Properties[field]
			if !ok {
				continue
			}
			text, ok := coerceIndexText(v)
			if !ok {
				continue
			}
			idx.AddDocument(n.ID, text)
		}
	}
}

func coerceIndexText(v value.Value) (string, bool) {
	switch v.Kind {
	case value.KindString:
		return v.Str, true
	case value.KindNumber, value.KindBool:
		return v.String(), true
	default:
		return "", false
	}
}

// ---- SET ----

// SetProperties pre-evaluates every right-hand side before applying any
// of them (spec.md §4.7: "single failure aborts the whole statement"),
// then applies per-variable, recording one UpdateNode/UpdateEdge undo
// entry per touched variable (wrapped in a Batch when more than one
// variable is touched by the same row).
func (w *Executor) SetProperties(g *graph.Graph, row exec.BindingRow, items []ast.SetItem) error {
	type resolved struct {
		item  ast.SetItem
		value value.Value
	}
	resolvedItems := make([]resolved, 0, len(items))
	for _, it := range items {
		if it.Property == "" {
			resolvedItems = append(resolvedItems, resolved{item: it})
			continue
		}
		v, err := w.Eval.Eval(context.Background(), it.Value, row)
		if err != nil {
			return &MutationError{Kind: "ExpressionError", Cause: err}
		}
		resolvedItems = append(resolvedItems, resolved{item: it, value: v})
	}

	byVar := make(map[string][]resolved)
	order := make([]string, 0, 4)
	for _, r := range resolvedItems {
		if _, seen := byVar[r.item.Variable]; !seen {
			order = append(order, r.item.Variable)
		}
		byVar[r.item.Variable] = append(byVar[r.item.Variable], r)
	}

	var undos []txn.UndoOp
	for _, varName := range order {
		bound, ok := row[varName]
		if !ok {
			return &MutationError{Kind: "InvalidQuery", Message: fmt.Sprintf("SET target %q is not bound", varName)}
		}
		group := byVar[varName]
		switch bound.Kind {
		case value.KindNode:
			n, ok := g.GetNode(bound.Node.ID)
			if !ok {
				return &MutationError{Kind: "GraphError", Cause: graph.ErrNodeNotFound}
			}
			var touchedFields []string
			oldProps, oldLabels, err := g.UpdateNodeProperties(n.ID, func(node *graph.Node) {
				for _, r := range group {
					if r.item.Property != "" {
						node.Properties[r.item.Property] = r.value
						touchedFields = append(touchedFields, r.item.Property)
						continue
					}
					for _, l := range r.item.Labels {
						node.Labels[l] = struct{}{}
					}
				}
			})
			if err != nil {
				return &MutationError{Kind: "GraphError", Cause: err}
			}
			undos = append(undos, txn.UpdateNode(n.ID, oldProps, oldLabels))
			if refreshed, ok := g.GetNode(n.ID); ok {
				row[varName] = value.NodeVal(refreshed.ToValue())
				for _, f := range touchedFields {
					w.autoIndexField(refreshed, f)
				}
			}
		case value.KindEdge:
			for _, r := range group {
				if r.item.Property == "" {
					return &MutationError{Kind: "InvalidQuery", Message: "edges do not carry a label set; SET var:Label is only valid on nodes"}
				}
			}
			oldProps, err := g.UpdateEdgeProperties(bound.Edge.ID, func(e *graph.Edge) {
				for _, r := range group {
					e.Properties[r.item.Property] = r.value
				}
			})
			if err != nil {
				return &MutationError{Kind: "GraphError", Cause: err}
			}
			undos = append(undos, txn.UpdateEdge(bound.Edge.ID, oldProps))
			if refreshed, ok := g.GetEdge(bound.Edge.ID); ok {
				row[varName] = value.EdgeVal(refreshed.ToValue())
			}
		default:
			return &MutationError{Kind: "InvalidQuery", Message: fmt.Sprintf("SET target %q is not a node or relationship", varName)}
		}
	}

	if len(undos) == 1 {
		w.record(undos[0])
	} else if len(undos) > 1 {
		w.record(txn.Batch(undos...))
	}
	return nil
}

// ---- REMOVE ----

// RemoveProperties clears the named property or label from each matched
// variable, recording the full prior state for rollback. Removing a
// variable's entity itself is out of scope here — spec.md §4.7 directs
// that case to DELETE — and is rejected before any mutation happens.
func (w *Executor) RemoveProperties(g *graph.Graph, row exec.BindingRow, items []ast.RemoveItem) error {
	for _, it := range items {
		if it.Property == "" && len(it.Labels) == 0 {
			return &MutationError{Kind: "InvalidQuery", Message: "REMOVE cannot target an entire entity; use DELETE"}
		}
	}

	var undos []txn.UndoOp
	for _, it := range items {
		bound, ok := row[it.Variable]
		if !ok {
			return &MutationError{Kind: "InvalidQuery", Message: fmt.Sprintf("REMOVE target %q is not bound", it.Variable)}
		}
		switch bound.Kind {
		case value.KindNode:
			oldProps, oldLabels, err := g.UpdateNodeProperties(bound.Node.ID, func(n *graph.Node) {
				if it.Property != "" {
					delete(n.Properties, it.Property)
				}
				for _, l := range it.Labels {
					delete(n.Labels, l)
				}
			})
			if err != nil {
				return &MutationError{Kind: "GraphError", Cause: err}
			}
			undos = append(undos, txn.UpdateNode(bound.Node.ID, oldProps, oldLabels))
			if refreshed, ok := g.GetNode(bound.Node.ID); ok {
				row[it.Variable] = value.NodeVal(refreshed.ToValue())
			}
		case value.KindEdge:
			if len(it.Labels) > 0 {
				return &MutationError{Kind: "InvalidQuery", Message: "edges carry no label set to REMOVE"}
			}
			oldProps, err := g.UpdateEdgeProperties(bound.Edge.ID, func(e *graph.Edge) {
				delete(e.Properties, it.Property)
			})
			if err != nil {
				return &MutationError{Kind: "GraphError", Cause: err}
			}
			undos = append(undos, txn.UpdateEdge(bound.Edge.ID, oldProps))
			if refreshed, ok := g.GetEdge(bound.Edge.ID); ok {
				row[it.Variable] = value.EdgeVal(refreshed.ToValue())
			}
		default:
			return &MutationError{Kind: "InvalidQuery", Message: fmt.Sprintf("REMOVE target %q is not a node or relationship", it.Variable)}
		}
	}

	if len(undos) == 1 {
		w.record(undos[0])
	} else if len(undos) > 1 {
		w.record(txn.Batch(undos...))
	}
	return nil
}

// ---- DELETE ----

// Delete removes the named nodes/edges. A node with incident edges is
// rejected unless detach is set, in which case its edges cascade away
// first — recorded so the node is restored before its edges on abort
// (AddEdge requires both endpoints to already exist).
func (w *Executor) Delete(g *graph.Graph, row exec.BindingRow, variables []string, detach bool) error {
	for _, varName := range variables {
		bound, ok := row[varName]
		if !ok {
			return &MutationError{Kind: "InvalidQuery", Message: fmt.Sprintf("DELETE target %q is not bound", varName)}
		}
		switch bound.Kind {
		case value.KindEdge:
			e, err := g.RemoveEdge(bound.Edge.ID)
			if err != nil {
				if err == graph.ErrEdgeNotFound {
					continue
				}
				return &MutationError{Kind: "GraphError", Cause: err}
			}
			w.record(txn.DeleteEdge(e))
		case value.KindNode:
			outgoing := g.GetOutgoingEdges(bound.Node.ID)
			incoming := g.GetIncomingEdges(bound.Node.ID)
			if !detach && (len(outgoing) > 0 || len(incoming) > 0) {
				return &MutationError{Kind: "InvalidQuery", Message: fmt.Sprintf("node %q still has relationships; use DETACH DELETE", varName)}
			}
			n, cascaded, err := g.RemoveNode(bound.Node.ID)
			if err != nil {
				if err == graph.ErrNodeNotFound {
					continue
				}
				return &MutationError{Kind: "GraphError", Cause: err}
			}
			undoEdges := make([]txn.UndoOp, 0, len(cascaded)+1)
			for _, e := range cascaded {
				undoEdges = append(undoEdges, txn.DeleteEdge(e))
			}
			// The node-restore entry goes last so reverse-order undo
			// re-adds the node before its edges.
			undoEdges = append(undoEdges, txn.DeleteNode(n))
			if len(undoEdges) == 1 {
				w.record(undoEdges[0])
			} else {
				w.record(txn.Batch(undoEdges...))
			}
		default:
			return &MutationError{Kind: "InvalidQuery", Message: fmt.Sprintf("DELETE target %q is not a node or relationship", varName)}
		}
	}
	return nil
}

// cloneRow copies a BindingRow so a write method can extend it with new
// bindings without mutating the caller's row — exec.BindingRow's own
// clone is unexported, so write keeps a matching copy of the same
// one-line logic rather than growing exec's public surface for it.
func cloneRow(r exec.BindingRow) exec.BindingRow {
	out := make(exec.BindingRow, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
