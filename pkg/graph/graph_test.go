package graph

import (
	"testing"

	"github.com/vertexql/vertexql/pkg/value"
)

func TestAddNodeDuplicateID(t *testing.T) {
	g := New()
	n := NewNode("n1", []string{"Person"}, nil)
	if err := g.AddNode(n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddNode(n); err != ErrNodeAlreadyExists {
		t.Fatalf("expected ErrNodeAlreadyExists, got %v", err)
	}
}

func TestAddEdgeMissingEndpoint(t *testing.T) {
	g := New()
	g.AddNode(NewNode("a", nil, nil))
	err := g.AddEdge(&Edge{ID: "e1", From: "a", To: "missing", Label: "R"})
	if err != ErrEndpointMissing {
		t.Fatalf("expected ErrEndpointMissing, got %v", err)
	}
}

func TestRemoveNodeCascadesEdges(t *testing.T) {
	g := New()
	g.AddNode(NewNode("a", nil, nil))
	g.AddNode(NewNode("b", nil, nil))
	if err := g.AddEdge(&Edge{ID: "e1", From: "a", To: "b", Label: "R"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, cascaded, err := g.RemoveNode("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cascaded) != 1 || cascaded[0].ID != "e1" {
		t.Fatalf("expected cascade of e1, got %v", cascaded)
	}
	if _, ok := g.GetEdge("e1"); ok {
		t.Fatalf("edge e1 should have been removed")
	}
	if len(g.GetIncomingEdges("b")) != 0 {
		t.Fatalf("b's incoming adjacency should be empty after cascade")
	}
}

func TestGetNodesByLabel(t *testing.T) {
	g := New()
	g.AddNode(NewNode("a", []string{"Person"}, map[string]value.Value{"name": value.String("Alice")}))
	g.AddNode(NewNode("b", []string{"Person"}, nil))
	g.AddNode(NewNode("c", []string{"Dog"}, nil))

	people := g.GetNodesByLabel("Person")
	if len(people) != 2 {
		t.Fatalf("expected 2 people, got %d", len(people))
	}
}

func TestUpdateNodePropertiesReturnsOldState(t *testing.T) {
	g := New()
	g.AddNode(NewNode("a", []string{"Person"}, map[string]value.Value{"age": value.Number(30)}))

	oldProps, oldLabels, err := g.UpdateNodeProperties("a", func(n *Node) {
		n.Properties["age"] = value.Number(31)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if oldProps["age"].Num != 30 {
		t.Fatalf("expected old age 30, got %v", oldProps["age"])
	}
	if len(oldLabels) != 1 || oldLabels[0] != "Person" {
		t.Fatalf("unexpected old labels: %v", oldLabels)
	}
	n, _ := g.GetNode("a")
	if n.Properties["age"].Num != 31 {
		t.Fatalf("expected updated age 31, got %v", n.Properties["age"])
	}
}
