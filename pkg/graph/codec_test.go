package graph

import (
	"testing"

	"github.com/vertexql/vertexql/pkg/value"
)

func TestEncodeDecodeNodeRoundTrip(t *testing.T) {
	n := NewNode("n1", []string{"Person", "Employee"}, map[string]value.Value{
		"name": value.String("Ada"),
		"age":  value.Number(36),
	})
	b, err := EncodeNode(n)
	if err != nil {
		t.Fatalf("EncodeNode: %v", err)
	}
	got, err := DecodeNode(b)
	if err != nil {
		t.Fatalf("DecodeNode: %v", err)
	}
	if got.ID != n.ID {
		t.Fatalf("expected id %q, got %q", n.ID, got.ID)
	}
	if !got.HasLabel("Person") || !got.HasLabel("Employee") {
		t.Fatalf("expected both labels, got %v", got.LabelList())
	}
	if !got.Properties["name"].Equal(value.String("Ada")) {
		t.Fatalf("expected name Ada, got %v", got.Properties["name"])
	}
}

func TestEncodeDecodeEdgeRoundTrip(t *testing.T) {
	e := &Edge{ID: "e1", From: "a", To: "b", Label: "KNOWS", Properties: map[string]value.Value{
		"since": value.Number(2020),
	}}
	b, err := EncodeEdge(e)
	if err != nil {
		t.Fatalf("EncodeEdge: %v", err)
	}
	got, err := DecodeEdge(b)
	if err != nil {
		t.Fatalf("DecodeEdge: %v", err)
	}
	if got.From != "a" || got.To != "b" || got.Label != "KNOWS" {
		t.Fatalf("unexpected decoded edge: %+v", got)
	}
	if !got.Properties["since"].Equal(value.Number(2020)) {
		t.Fatalf("expected since 2020, got %v", got.Properties["since"])
	}
}

func TestDecodeNodeRejectsUnknownVersion(t *testing.T) {
	if _, err := DecodeNode([]byte{0xFF, 1, 2, 3}); err == nil {
		t.Fatalf("expected error for unknown version byte")
	}
}
