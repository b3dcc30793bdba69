package txn

import (
	"testing"

	"github.com/vertexql/vertexql/pkg/graph"
	"github.com/vertexql/vertexql/pkg/value"
)

// TestAbortRestoresPreState covers spec.md §8 scenario 6: two nodes
// inserted inside a transaction that then aborts leave the graph exactly
// as it was before the transaction began.
func TestAbortRestoresPreState(t *testing.T) {
	g := graph.New()
	mgr := NewManager()
	tx := mgr.Begin(g)

	a := graph.NewNode("a", []string{"Person"}, nil)
	b := graph.NewNode("b", []string{"Person"}, nil)
	if err := g.AddNode(a); err != nil {
		t.Fatalf("add a: %v", err)
	}
	tx.Record(InsertNode("a"))
	if err := g.AddNode(b); err != nil {
		t.Fatalf("add b: %v", err)
	}
	tx.Record(InsertNode("b"))

	if got := len(g.GetNodesByLabel("Person")); got != 2 {
		t.Fatalf("expected 2 Person nodes before abort, got %d", got)
	}

	if err := tx.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}

	if got := len(g.GetAllNodes()); got != 0 {
		t.Fatalf("expected empty graph after abort, got %d nodes", got)
	}
	if got := len(g.GetNodesByLabel("Person")); got != 0 {
		t.Fatalf("expected label index cleared after abort, got %d", got)
	}
	if tx.State != StateAborted {
		t.Fatalf("expected StateAborted, got %v", tx.State)
	}
}

func TestCommitDiscardsLog(t *testing.T) {
	g := graph.New()
	mgr := NewManager()
	tx := mgr.Begin(g)

	n := graph.NewNode("a", nil, nil)
	if err := g.AddNode(n); err != nil {
		t.Fatalf("add: %v", err)
	}
	tx.Record(InsertNode("a"))

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if tx.State != StateCommitted {
		t.Fatalf("expected StateCommitted, got %v", tx.State)
	}
	// A committed transaction's log is gone, so a (hypothetical) second
	// abort would have nothing left to undo; Abort itself now just
	// reports ErrAlreadyEnded.
	if err := tx.Abort(); err != ErrAlreadyEnded {
		t.Fatalf("expected ErrAlreadyEnded aborting a committed txn, got %v", err)
	}
	if got := len(g.GetAllNodes()); got != 1 {
		t.Fatalf("expected the committed node to remain, got %d", got)
	}
}

func TestBatchUndoReversesChildrenInOrder(t *testing.T) {
	g := graph.New()
	mgr := NewManager()
	tx := mgr.Begin(g)

	a := graph.NewNode("a", []string{"X"}, nil)
	e := &graph.Edge{ID: "e1", From: "a", To: "a", Label: "SELF", Properties: map[string]value.Value{}}
	if err := g.AddNode(a); err != nil {
		t.Fatalf("add node: %v", err)
	}
	if err := g.AddEdge(e); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	tx.Record(Batch(InsertNode("a"), InsertEdge("e1")))

	if err := tx.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if _, ok := g.GetEdge("e1"); ok {
		t.Fatalf("expected edge removed by abort")
	}
	if _, ok := g.GetNode("a"); ok {
		t.Fatalf("expected node removed by abort")
	}
}

func TestTouchedEntities(t *testing.T) {
	g := graph.New()
	mgr := NewManager()
	tx := mgr.Begin(g)

	old := graph.NewNode("keep", []string{"X"}, nil)
	removed := graph.NewNode("gone", []string{"X"}, nil)
	g.AddNode(old)
	g.AddNode(removed)

	tx.Record(InsertNode("keep"))
	tx.Record(UpdateNode("keep", map[string]value.Value{}, []string{"X"}))
	tx.Record(DeleteNode(removed))

	touchedNodes, _, removedNodes, _ := tx.TouchedEntities()
	if len(touchedNodes) != 2 {
		t.Fatalf("expected 2 touched node entries, got %d (%v)", len(touchedNodes), touchedNodes)
	}
	if len(removedNodes) != 1 || removedNodes[0] != "gone" {
		t.Fatalf("expected removedNodes=[gone], got %v", removedNodes)
	}
}
